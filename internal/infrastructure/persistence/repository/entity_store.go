package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EntityStore implements port.EntityStore over the ledger tables.
// Records with a NULL company_id are shared and match every company,
// company-specific records win over shared ones.
type EntityStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEntityStore creates a new entity store
func NewEntityStore(db *sql.DB, logger *zap.Logger) *EntityStore {
	return &EntityStore{
		db:     db,
		logger: logger,
	}
}

// FindOne looks up one record by its business key
func (s *EntityStore) FindOne(ctx context.Context, category entity.Category, key string, companyID int64) (int64, bool, error) {
	var (
		id  int64
		err error
	)

	switch category {
	case entity.CategoryCompany:
		id, err = s.queryID(ctx, `SELECT id FROM companies WHERE company_registry = ? ORDER BY id LIMIT 1`, key)
	case entity.CategoryCurrency:
		id, err = s.queryID(ctx, `SELECT id FROM currencies WHERE UPPER(name) = ? AND active = 1 LIMIT 1`, key)
	case entity.CategoryPartner:
		id, err = s.queryID(ctx, `
			SELECT id FROM partners
			WHERE company_registry = ? AND (company_id = ? OR company_id IS NULL)
			ORDER BY company_id IS NULL, id
			LIMIT 1
		`, key, companyID)
	case entity.CategoryProduct:
		id, err = s.queryID(ctx, `
			SELECT id FROM products
			WHERE default_code = ? AND (company_id = ? OR company_id IS NULL)
			ORDER BY company_id IS NULL, id
			LIMIT 1
		`, key, companyID)
	case entity.CategoryTax:
		id, err = s.findTax(ctx, key, companyID)
	case entity.CategoryBankAccount:
		id, err = s.findBankAccount(ctx, key, companyID)
	default:
		return 0, false, fmt.Errorf("unsupported lookup category %q", category)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		s.logger.Error("Entity lookup failed",
			zap.String("category", string(category)),
			zap.String("key", key),
			zap.Int64("company_id", companyID),
			zap.Error(err))
		return 0, false, fmt.Errorf("failed to look up %s %q: %w", category, key, err)
	}
	return id, true, nil
}

func (s *EntityStore) queryID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	err := s.getExecutor(ctx).QueryRowContext(ctx, query, args...).Scan(&id)
	return id, err
}

// findTax compares rates numerically so "22", "22.0" and "22.00" are the same purchase tax
func (s *EntityStore) findTax(ctx context.Context, key string, companyID int64) (int64, error) {
	want, err := decimal.NewFromString(key)
	if err != nil {
		return 0, sql.ErrNoRows
	}

	rows, err := s.getExecutor(ctx).QueryContext(ctx, `
		SELECT id, amount FROM taxes
		WHERE company_id = ? AND type_tax_use = ?
		ORDER BY id
	`, companyID, entity.TaxUsePurchase)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var amount decimal.Decimal
		if err := rows.Scan(&id, &amount); err != nil {
			return 0, fmt.Errorf("failed to scan tax: %w", err)
		}
		if amount.Equal(want) {
			return id, nil
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return 0, sql.ErrNoRows
}

// findBankAccount ignores whitespace inside stored account numbers
func (s *EntityStore) findBankAccount(ctx context.Context, key string, companyID int64) (int64, error) {
	want := entity.NormalizeAccountNumber(key)

	rows, err := s.getExecutor(ctx).QueryContext(ctx, `
		SELECT id, acc_number FROM bank_accounts
		WHERE company_id = ? OR company_id IS NULL
		ORDER BY company_id IS NULL, id
	`, companyID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var acc string
		if err := rows.Scan(&id, &acc); err != nil {
			return 0, fmt.Errorf("failed to scan bank account: %w", err)
		}
		if entity.NormalizeAccountNumber(acc) == want {
			return id, nil
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return 0, sql.ErrNoRows
}

// getExecutor returns appropriate executor based on context
func (s *EntityStore) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, s.db)
}

// Verify interface compliance
var _ port.EntityStore = (*EntityStore)(nil)
