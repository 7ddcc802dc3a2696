package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// VendorBillRepository implements port.VendorBillRepository
type VendorBillRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVendorBillRepository creates a new vendor bill repository
func NewVendorBillRepository(db *sql.DB, logger *zap.Logger) *VendorBillRepository {
	return &VendorBillRepository{
		db:     db,
		logger: logger,
	}
}

const vendorBillColumns = `
	id, company_id, partner_id, currency_id, move_type, state, ref, invoice_date, invoice_date_due,
	partner_bank_id, payment_reference, is_vendor_bill_from_eak, remote_invoice_id,
	attachment_processed, attachment_attempted_at, eak_response, created_at`

// CreateMany inserts bills with their lines. Callers run it inside a
// transaction so a failing bill leaves nothing behind.
func (r *VendorBillRepository) CreateMany(ctx context.Context, bills []*entity.VendorBill) ([]int64, error) {
	exec := r.getExecutor(ctx)
	ids := make([]int64, 0, len(bills))

	for _, b := range bills {
		if b.CreatedAt.IsZero() {
			b.CreatedAt = time.Now().UTC()
		}
		if b.MoveType == "" {
			b.MoveType = entity.MoveTypeInInvoice
		}
		if b.State == "" {
			b.State = entity.BillStateDraft
		}

		result, err := exec.ExecContext(ctx, `
			INSERT INTO vendor_bills (
				company_id, partner_id, currency_id, move_type, state, ref, invoice_date, invoice_date_due,
				partner_bank_id, payment_reference, is_vendor_bill_from_eak, remote_invoice_id,
				attachment_processed, eak_response, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			b.CompanyID,
			b.PartnerID,
			b.CurrencyID,
			b.MoveType,
			b.State,
			b.Ref,
			b.InvoiceDate,
			b.InvoiceDateDue,
			b.PartnerBankID,
			b.PaymentReference,
			b.IsVendorBillFromEAK,
			b.RemoteInvoiceID,
			b.AttachmentProcessed,
			b.EAKResponse,
			b.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create vendor bill",
				zap.Int64("company_id", b.CompanyID),
				zap.String("remote_invoice_id", b.RemoteInvoiceID),
				zap.Error(err))
			return nil, fmt.Errorf("failed to create vendor bill %s: %w", b.RemoteInvoiceID, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get last insert id: %w", err)
		}
		b.ID = id

		for _, l := range b.Lines {
			if err := r.createLine(ctx, exec, id, l); err != nil {
				return nil, err
			}
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (r *VendorBillRepository) createLine(ctx context.Context, exec sqlite.Executor, billID int64, l *entity.VendorBillLine) error {
	result, err := exec.ExecContext(ctx, `
		INSERT INTO vendor_bill_lines (
			bill_id, sequence, product_id, name, tax_id, quantity, price_unit,
			price_subtotal, price_total, discount, discount_amount
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		billID,
		l.Sequence,
		l.ProductID,
		l.Name,
		l.TaxID,
		l.Quantity,
		l.PriceUnit,
		l.PriceSubtotal,
		l.PriceTotal,
		l.Discount,
		l.DiscountAmount,
	)
	if err != nil {
		r.logger.Error("Failed to create vendor bill line", zap.Int64("bill_id", billID), zap.Error(err))
		return fmt.Errorf("failed to create vendor bill line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	l.ID, l.BillID = id, billID
	return nil
}

// GetByID retrieves a bill with its lines
func (r *VendorBillRepository) GetByID(ctx context.Context, id int64) (*entity.VendorBill, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT `+vendorBillColumns+` FROM vendor_bills WHERE id = ?`, id)
	b, err := scanVendorBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vendor bill %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get vendor bill by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get vendor bill: %w", err)
	}

	lines, err := r.getLines(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Lines = lines
	return b, nil
}

func (r *VendorBillRepository) getLines(ctx context.Context, billID int64) ([]*entity.VendorBillLine, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `
		SELECT id, bill_id, sequence, product_id, name, tax_id, quantity, price_unit,
			price_subtotal, price_total, discount, discount_amount
		FROM vendor_bill_lines
		WHERE bill_id = ?
		ORDER BY sequence, id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor bill lines: %w", err)
	}
	defer rows.Close()

	var lines []*entity.VendorBillLine
	for rows.Next() {
		var l entity.VendorBillLine
		err := rows.Scan(
			&l.ID,
			&l.BillID,
			&l.Sequence,
			&l.ProductID,
			&l.Name,
			&l.TaxID,
			&l.Quantity,
			&l.PriceUnit,
			&l.PriceSubtotal,
			&l.PriceTotal,
			&l.Discount,
			&l.DiscountAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor bill line: %w", err)
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// ExistingRemoteIDs returns which of remoteIDs are already imported for the company
func (r *VendorBillRepository) ExistingRemoteIDs(ctx context.Context, companyID int64, remoteIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(remoteIDs) == 0 {
		return existing, nil
	}

	args := make([]interface{}, 0, len(remoteIDs)+1)
	args = append(args, companyID)
	for _, id := range remoteIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(remoteIDs)), ",")

	rows, err := r.getExecutor(ctx).QueryContext(ctx, `
		SELECT remote_invoice_id FROM vendor_bills
		WHERE company_id = ? AND remote_invoice_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		r.logger.Error("Failed to check imported bills", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to check imported bills: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan remote invoice id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// ListPendingAttachment returns eAK bills of the company still waiting for their PDF.
// Bills never requested come first, then the least recently requested, so bills
// eAK keeps answering without a document do not hold the batch forever.
func (r *VendorBillRepository) ListPendingAttachment(ctx context.Context, companyID int64, limit int) ([]*entity.VendorBill, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `
		SELECT `+vendorBillColumns+`
		FROM vendor_bills
		WHERE company_id = ? AND is_vendor_bill_from_eak = 1 AND attachment_processed = 0
			AND remote_invoice_id <> ''
		ORDER BY attachment_attempted_at IS NOT NULL, attachment_attempted_at, id
		LIMIT ?
	`, companyID, limit)
	if err != nil {
		r.logger.Error("Failed to list bills pending attachment", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list bills pending attachment: %w", err)
	}
	defer rows.Close()

	var bills []*entity.VendorBill
	for rows.Next() {
		b, err := scanVendorBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor bill: %w", err)
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// MarkAttachmentAttempted records that the PDFs of the given bills were requested at
func (r *VendorBillRepository) MarkAttachmentAttempted(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, at.UTC())
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	_, err := r.getExecutor(ctx).ExecContext(ctx,
		`UPDATE vendor_bills SET attachment_attempted_at = ? WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		r.logger.Error("Failed to record attachment attempt", zap.Int("bills", len(ids)), zap.Error(err))
		return fmt.Errorf("failed to record attachment attempt: %w", err)
	}
	return nil
}

// MarkAttachmentProcessed flips the flag once and reports whether this call flipped it
func (r *VendorBillRepository) MarkAttachmentProcessed(ctx context.Context, id int64) (bool, error) {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`UPDATE vendor_bills SET attachment_processed = 1 WHERE id = ? AND attachment_processed = 0`, id)
	if err != nil {
		r.logger.Error("Failed to mark attachment processed", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark attachment processed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func scanVendorBill(row rowScanner) (*entity.VendorBill, error) {
	var b entity.VendorBill
	var partnerID, bankID sql.NullInt64
	var invoiceDate, dueDate, attemptedAt sql.NullTime

	err := row.Scan(
		&b.ID,
		&b.CompanyID,
		&partnerID,
		&b.CurrencyID,
		&b.MoveType,
		&b.State,
		&b.Ref,
		&invoiceDate,
		&dueDate,
		&bankID,
		&b.PaymentReference,
		&b.IsVendorBillFromEAK,
		&b.RemoteInvoiceID,
		&b.AttachmentProcessed,
		&attemptedAt,
		&b.EAKResponse,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if partnerID.Valid {
		b.PartnerID = &partnerID.Int64
	}
	if bankID.Valid {
		b.PartnerBankID = &bankID.Int64
	}
	if invoiceDate.Valid {
		b.InvoiceDate = &invoiceDate.Time
	}
	if dueDate.Valid {
		b.InvoiceDateDue = &dueDate.Time
	}
	if attemptedAt.Valid {
		b.AttachmentAttemptedAt = &attemptedAt.Time
	}
	return &b, nil
}

// getExecutor returns appropriate executor based on context
func (r *VendorBillRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.VendorBillRepository = (*VendorBillRepository)(nil)
