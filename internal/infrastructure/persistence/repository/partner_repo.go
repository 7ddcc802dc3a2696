package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// PartnerRepository implements port.PartnerRepository
type PartnerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPartnerRepository creates a new partner repository
func NewPartnerRepository(db *sql.DB, logger *zap.Logger) *PartnerRepository {
	return &PartnerRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a partner
func (r *PartnerRepository) Create(ctx context.Context, p *entity.Partner) error {
	now := time.Now().UTC()
	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO partners (
			company_id, parent_id, name, company_registry, is_company, is_edi_eak,
			street, city, zip, country, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.CompanyID,
		p.ParentID,
		p.Name,
		p.CompanyRegistry,
		p.IsCompany,
		p.IsEDIEAK,
		p.Street,
		p.City,
		p.Zip,
		p.Country,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create partner", zap.String("name", p.Name), zap.Error(err))
		return fmt.Errorf("failed to create partner: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a partner by ID together with its commercial parent
func (r *PartnerRepository) GetByID(ctx context.Context, id int64) (*entity.Partner, error) {
	p, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ParentID != nil {
		parent, err := r.get(ctx, *p.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent of partner %d: %w", id, err)
		}
		p.Parent = parent
	}
	return p, nil
}

func (r *PartnerRepository) get(ctx context.Context, id int64) (*entity.Partner, error) {
	query := `
		SELECT id, company_id, parent_id, name, company_registry, is_company, is_edi_eak,
			street, city, zip, country, created_at, updated_at
		FROM partners
		WHERE id = ?
	`

	var p entity.Partner
	var companyID, parentID sql.NullInt64
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&companyID,
		&parentID,
		&p.Name,
		&p.CompanyRegistry,
		&p.IsCompany,
		&p.IsEDIEAK,
		&p.Street,
		&p.City,
		&p.Zip,
		&p.Country,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("partner %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get partner by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}

	if companyID.Valid {
		p.CompanyID = &companyID.Int64
	}
	if parentID.Valid {
		p.ParentID = &parentID.Int64
	}
	return &p, nil
}

// ListRegistryCandidates returns the distinct registry numbers of company
// partners visible to companyID, sorted
func (r *PartnerRepository) ListRegistryCandidates(ctx context.Context, companyID int64) ([]string, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `
		SELECT DISTINCT company_registry FROM partners
		WHERE is_company = 1 AND company_registry <> '' AND (company_id = ? OR company_id IS NULL)
		ORDER BY company_registry
	`, companyID)
	if err != nil {
		r.logger.Error("Failed to list partner registry numbers", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list partner registry numbers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var reg string
		if err := rows.Scan(&reg); err != nil {
			return nil, fmt.Errorf("failed to scan registry number: %w", err)
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// SetEAKStatus flags every visible company partner with the registry number
func (r *PartnerRepository) SetEAKStatus(ctx context.Context, companyID int64, regNumber string, active bool) (int64, error) {
	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		UPDATE partners
		SET is_edi_eak = ?, updated_at = ?
		WHERE company_registry = ? AND is_company = 1 AND (company_id = ? OR company_id IS NULL)
	`, active, time.Now().UTC(), regNumber, companyID)
	if err != nil {
		r.logger.Error("Failed to set partner eAK status",
			zap.String("reg_number", regNumber),
			zap.Bool("active", active),
			zap.Error(err))
		return 0, fmt.Errorf("failed to set partner eAK status: %w", err)
	}
	return result.RowsAffected()
}

// getExecutor returns appropriate executor based on context
func (r *PartnerRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.PartnerRepository = (*PartnerRepository)(nil)
