package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// BankAccountRepository implements port.BankAccountRepository
type BankAccountRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBankAccountRepository creates a new bank account repository
func NewBankAccountRepository(db *sql.DB, logger *zap.Logger) *BankAccountRepository {
	return &BankAccountRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a bank account
func (r *BankAccountRepository) Create(ctx context.Context, a *entity.BankAccount) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`INSERT INTO bank_accounts (company_id, partner_id, acc_number) VALUES (?, ?, ?)`,
		a.CompanyID, a.PartnerID, a.AccNumber)
	if err != nil {
		r.logger.Error("Failed to create bank account", zap.Error(err))
		return fmt.Errorf("failed to create bank account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	a.ID = id
	return nil
}

// GetByID retrieves a bank account by ID
func (r *BankAccountRepository) GetByID(ctx context.Context, id int64) (*entity.BankAccount, error) {
	var a entity.BankAccount
	var companyID, partnerID sql.NullInt64
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT id, company_id, partner_id, acc_number FROM bank_accounts WHERE id = ?`, id,
	).Scan(&a.ID, &companyID, &partnerID, &a.AccNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bank account %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get bank account by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get bank account: %w", err)
	}
	if companyID.Valid {
		a.CompanyID = &companyID.Int64
	}
	if partnerID.Valid {
		a.PartnerID = &partnerID.Int64
	}
	return &a, nil
}

// getExecutor returns appropriate executor based on context
func (r *BankAccountRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.BankAccountRepository = (*BankAccountRepository)(nil)
