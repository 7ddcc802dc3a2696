package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// VendorBill is a draft purchase invoice, usually materialised from an eAK export
type VendorBill struct {
	ID               int64      `json:"id"`
	CompanyID        int64      `json:"company_id"`
	PartnerID        *int64     `json:"partner_id,omitempty"`
	CurrencyID       int64      `json:"currency_id"`
	MoveType         string     `json:"move_type"`
	State            string     `json:"state"`
	Ref              string     `json:"ref"`
	InvoiceDate      *time.Time `json:"invoice_date,omitempty"`
	InvoiceDateDue   *time.Time `json:"invoice_date_due,omitempty"`
	PartnerBankID    *int64     `json:"partner_bank_id,omitempty"`
	PaymentReference string     `json:"payment_reference"`

	// IsVendorBillFromEAK marks bills imported from eAK
	IsVendorBillFromEAK bool `json:"is_vendor_bill_from_eak"`
	// RemoteInvoiceID is the eAK invoiceId used for attachment correlation and de-duplication
	RemoteInvoiceID string `json:"remote_invoice_id"`
	// AttachmentProcessed flips once when the bill PDF has been fetched
	AttachmentProcessed bool `json:"attachment_processed"`
	// AttachmentAttemptedAt is when the PDF was last requested; nil means never
	AttachmentAttemptedAt *time.Time `json:"attachment_attempted_at,omitempty"`
	// EAKResponse keeps the raw Invoice XML fragment the bill was built from
	EAKResponse string `json:"-"`

	Lines     []*VendorBillLine `json:"lines"`
	CreatedAt time.Time         `json:"created_at"`
}

// VendorBillLine is one line of a vendor bill
type VendorBillLine struct {
	ID             int64           `json:"id"`
	BillID         int64           `json:"bill_id"`
	Sequence       int             `json:"sequence"`
	ProductID      int64           `json:"product_id"`
	Name           string          `json:"name"`
	TaxID          int64           `json:"tax_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	PriceUnit      decimal.Decimal `json:"price_unit"`
	PriceSubtotal  decimal.Decimal `json:"price_subtotal"`
	PriceTotal     decimal.Decimal `json:"price_total"`
	Discount       decimal.Decimal `json:"discount"`        // percent
	DiscountAmount decimal.Decimal `json:"discount_amount"` // recovered from subtotal and percent
}
