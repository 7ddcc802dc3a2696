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

// SyncLogRepository stores the append-only audit trail of sync runs.
// It has no update or delete operations.
type SyncLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSyncLogRepository creates a new sync log repository
func NewSyncLogRepository(db *sql.DB, logger *zap.Logger) *SyncLogRepository {
	return &SyncLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts entries in order
func (r *SyncLogRepository) Append(ctx context.Context, entries ...*entity.SyncLogEntry) error {
	exec := r.getExecutor(ctx)
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		// stored as text; a single zone keeps range queries ordered
		e.CreatedAt = e.CreatedAt.UTC()
		if e.Func == "" {
			e.Func = "POST"
		}

		result, err := exec.ExecContext(ctx, `
			INSERT INTO sync_logs (run_id, name, company_id, company_name, path, func, level, message, payload, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.RunID,
			e.Name,
			e.CompanyID,
			e.CompanyName,
			e.Path,
			e.Func,
			string(e.Level),
			e.Message,
			e.Payload,
			e.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to append sync log",
				zap.String("job", e.Name),
				zap.String("run_id", e.RunID),
				zap.Error(err))
			return fmt.Errorf("failed to append sync log: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		e.ID = id
	}
	return nil
}

// List returns entries created at or after since, newest first. limit <= 0 means no limit.
func (r *SyncLogRepository) List(ctx context.Context, since time.Time, limit int) ([]*entity.SyncLogEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, `
		SELECT id, run_id, name, company_id, company_name, path, func, level, message, payload, created_at
		FROM sync_logs
		WHERE created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, since.UTC(), limit)
	if err != nil {
		r.logger.Error("Failed to list sync logs", zap.Error(err))
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer rows.Close()

	var entries []*entity.SyncLogEntry
	for rows.Next() {
		var e entity.SyncLogEntry
		var companyID sql.NullInt64
		var level string
		err := rows.Scan(
			&e.ID,
			&e.RunID,
			&e.Name,
			&companyID,
			&e.CompanyName,
			&e.Path,
			&e.Func,
			&level,
			&e.Message,
			&e.Payload,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		if companyID.Valid {
			e.CompanyID = &companyID.Int64
		}
		e.Level = entity.Severity(level)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *SyncLogRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var (
	_ port.SyncLogSink   = (*SyncLogRepository)(nil)
	_ port.SyncLogReader = (*SyncLogRepository)(nil)
)
