package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AttachmentRepository implements port.AttachmentRepository
type AttachmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *sql.DB, logger *zap.Logger) *AttachmentRepository {
	return &AttachmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new attachment record
func (r *AttachmentRepository) Create(ctx context.Context, att *entity.Attachment) error {
	query := `
		INSERT INTO attachments (
			res_model, res_id, name, file_path, mime_type, file_size, page_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		att.ResModel,
		att.ResID,
		att.Name,
		att.FilePath,
		att.MimeType,
		att.FileSize,
		att.PageCount,
		att.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create attachment",
			zap.String("res_model", att.ResModel),
			zap.Int64("res_id", att.ResID),
			zap.Error(err))
		return fmt.Errorf("failed to create attachment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	att.ID = id
	return nil
}

// GetByResource retrieves all attachments of one record
func (r *AttachmentRepository) GetByResource(ctx context.Context, resModel string, resID int64) ([]*entity.Attachment, error) {
	query := `
		SELECT id, res_model, res_id, name, file_path, mime_type, file_size, page_count, created_at
		FROM attachments
		WHERE res_model = ? AND res_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, resModel, resID)
	if err != nil {
		r.logger.Error("Failed to get attachments by resource",
			zap.String("res_model", resModel),
			zap.Int64("res_id", resID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*entity.Attachment
	for rows.Next() {
		var att entity.Attachment
		err := rows.Scan(
			&att.ID,
			&att.ResModel,
			&att.ResID,
			&att.Name,
			&att.FilePath,
			&att.MimeType,
			&att.FileSize,
			&att.PageCount,
			&att.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, &att)
	}

	return attachments, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *AttachmentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.AttachmentRepository = (*AttachmentRepository)(nil)
