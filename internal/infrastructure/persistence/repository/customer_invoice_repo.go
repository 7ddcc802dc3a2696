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

// CustomerInvoiceRepository implements port.CustomerInvoiceRepository
type CustomerInvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCustomerInvoiceRepository creates a new customer invoice repository
func NewCustomerInvoiceRepository(db *sql.DB, logger *zap.Logger) *CustomerInvoiceRepository {
	return &CustomerInvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an invoice and its lines
func (r *CustomerInvoiceRepository) Create(ctx context.Context, inv *entity.CustomerInvoice) error {
	exec := r.getExecutor(ctx)
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.MoveType == "" {
		inv.MoveType = entity.MoveTypeOutInvoice
	}
	if inv.EAKState == "" {
		inv.EAKState = entity.EAKStateToSend
	}

	result, err := exec.ExecContext(ctx, `
		INSERT INTO customer_invoices (
			company_id, partner_id, partner_bank_id, name, move_type, invoice_date, invoice_date_due,
			currency_code, amount_untaxed, amount_tax, amount_total, amount_rounding,
			pdf_path, eak_state, eak_response, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.CompanyID,
		inv.PartnerID,
		inv.PartnerBankID,
		inv.Name,
		inv.MoveType,
		inv.InvoiceDate,
		inv.InvoiceDateDue,
		inv.CurrencyCode,
		inv.AmountUntaxed,
		inv.AmountTax,
		inv.AmountTotal,
		inv.AmountRounding,
		inv.PDFPath,
		inv.EAKState,
		inv.EAKResponse,
		inv.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create customer invoice", zap.String("name", inv.Name), zap.Error(err))
		return fmt.Errorf("failed to create customer invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	inv.ID = id

	for _, l := range inv.Lines {
		res, err := exec.ExecContext(ctx, `
			INSERT INTO customer_invoice_lines (
				invoice_id, sequence, display_type, name, uom, quantity, price_unit,
				discount, tax_rate, price_subtotal, tax_amount
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, l.Sequence, l.DisplayType, l.Name, l.UoM, l.Quantity, l.PriceUnit,
			l.Discount, l.TaxRate, l.PriceSubtotal, l.TaxAmount)
		if err != nil {
			r.logger.Error("Failed to create customer invoice line", zap.Int64("invoice_id", id), zap.Error(err))
			return fmt.Errorf("failed to create customer invoice line: %w", err)
		}
		lineID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		l.ID, l.InvoiceID = lineID, id
	}
	return nil
}

// GetByID retrieves an invoice with its lines
func (r *CustomerInvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.CustomerInvoice, error) {
	query := `
		SELECT id, company_id, partner_id, partner_bank_id, name, move_type, invoice_date, invoice_date_due,
			currency_code, amount_untaxed, amount_tax, amount_total, amount_rounding,
			pdf_path, eak_state, eak_response, created_at
		FROM customer_invoices
		WHERE id = ?
	`

	var inv entity.CustomerInvoice
	var bankID sql.NullInt64
	var invoiceDate, dueDate sql.NullTime
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&inv.ID,
		&inv.CompanyID,
		&inv.PartnerID,
		&bankID,
		&inv.Name,
		&inv.MoveType,
		&invoiceDate,
		&dueDate,
		&inv.CurrencyCode,
		&inv.AmountUntaxed,
		&inv.AmountTax,
		&inv.AmountTotal,
		&inv.AmountRounding,
		&inv.PDFPath,
		&inv.EAKState,
		&inv.EAKResponse,
		&inv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer invoice %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get customer invoice by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get customer invoice: %w", err)
	}

	if bankID.Valid {
		inv.PartnerBankID = &bankID.Int64
	}
	if invoiceDate.Valid {
		inv.InvoiceDate = &invoiceDate.Time
	}
	if dueDate.Valid {
		inv.InvoiceDateDue = &dueDate.Time
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, `
		SELECT id, invoice_id, sequence, display_type, name, uom, quantity, price_unit,
			discount, tax_rate, price_subtotal, tax_amount
		FROM customer_invoice_lines
		WHERE invoice_id = ?
		ORDER BY sequence, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l entity.CustomerInvoiceLine
		err := rows.Scan(
			&l.ID,
			&l.InvoiceID,
			&l.Sequence,
			&l.DisplayType,
			&l.Name,
			&l.UoM,
			&l.Quantity,
			&l.PriceUnit,
			&l.Discount,
			&l.TaxRate,
			&l.PriceSubtotal,
			&l.TaxAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer invoice line: %w", err)
		}
		inv.Lines = append(inv.Lines, &l)
	}
	return &inv, rows.Err()
}

// UpdateEAKResult records the submission state and the raw response
func (r *CustomerInvoiceRepository) UpdateEAKResult(ctx context.Context, id int64, state, response string) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`UPDATE customer_invoices SET eak_state = ?, eak_response = ? WHERE id = ?`, state, response, id)
	if err != nil {
		r.logger.Error("Failed to update eAK result",
			zap.Int64("id", id),
			zap.String("state", state),
			zap.Error(err))
		return fmt.Errorf("failed to update eAK result: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("customer invoice %d: %w", id, port.ErrNotFound)
	}
	return nil
}

// getExecutor returns appropriate executor based on context
func (r *CustomerInvoiceRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.CustomerInvoiceRepository = (*CustomerInvoiceRepository)(nil)
