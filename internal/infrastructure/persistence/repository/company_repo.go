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

// watermarkLayout keeps stored watermarks lexically ordered so SQL can compare them
const watermarkLayout = "2006-01-02 15:04:05"

// CompanyRepository implements port.CompanyRepository
type CompanyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sql.DB, logger *zap.Logger) *CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

const companyColumns = `id, name, company_registry, eak_url, eak_auth, eak_bill_export_date, eak_bank_id, created_at, updated_at`

// Create inserts a company; a zero watermark takes the schema default
func (r *CompanyRepository) Create(ctx context.Context, c *entity.Company) error {
	now := time.Now().UTC()
	if c.EAKBillExportDate.IsZero() {
		c.EAKBillExportDate = time.Date(2009, 7, 1, 0, 0, 0, 0, time.UTC)
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO companies (name, company_registry, eak_url, eak_auth, eak_bill_export_date, eak_bank_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.CompanyRegistry, c.EAKURL, c.EAKAuth, c.EAKBillExportDate.UTC().Format(watermarkLayout), c.EAKBankID, now, now)
	if err != nil {
		r.logger.Error("Failed to create company", zap.String("name", c.Name), zap.Error(err))
		return fmt.Errorf("failed to create company: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*entity.Company, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = ?`, id)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get company by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

// List returns every company ordered by ID
func (r *CompanyRepository) List(ctx context.Context) ([]*entity.Company, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY id`)
	if err != nil {
		r.logger.Error("Failed to list companies", zap.Error(err))
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*entity.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// AdvanceWatermark moves the vendor bill watermark to `to` only when that is
// later than the stored value. It reports whether the row changed.
func (r *CompanyRepository) AdvanceWatermark(ctx context.Context, id int64, to time.Time) (bool, error) {
	mark := to.UTC().Format(watermarkLayout)
	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		UPDATE companies
		SET eak_bill_export_date = ?, updated_at = ?
		WHERE id = ? AND eak_bill_export_date < ?
	`, mark, time.Now().UTC(), id, mark)
	if err != nil {
		r.logger.Error("Failed to advance watermark", zap.Int64("company_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to advance watermark: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateSettings stores the per-company eAK connection settings
func (r *CompanyRepository) UpdateSettings(ctx context.Context, id int64, url, auth string, bankID *int64) error {
	_, err := r.getExecutor(ctx).ExecContext(ctx, `
		UPDATE companies SET eak_url = ?, eak_auth = ?, eak_bank_id = ?, updated_at = ? WHERE id = ?
	`, url, auth, bankID, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update eAK settings", zap.Int64("company_id", id), zap.Error(err))
		return fmt.Errorf("failed to update eAK settings: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCompany(row rowScanner) (*entity.Company, error) {
	var c entity.Company
	var bankID sql.NullInt64
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.CompanyRegistry,
		&c.EAKURL,
		&c.EAKAuth,
		&c.EAKBillExportDate,
		&bankID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if bankID.Valid {
		c.EAKBankID = &bankID.Int64
	}
	return &c, nil
}

// getExecutor returns appropriate executor based on context
func (r *CompanyRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.CompanyRepository = (*CompanyRepository)(nil)
