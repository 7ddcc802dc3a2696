package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerInvoice is an outgoing invoice that can be submitted to eAK
type CustomerInvoice struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	PartnerID      int64           `json:"partner_id"`
	PartnerBankID  *int64          `json:"partner_bank_id,omitempty"`
	Name           string          `json:"name"` // invoice number
	MoveType       string          `json:"move_type"`
	InvoiceDate    *time.Time      `json:"invoice_date,omitempty"`
	InvoiceDateDue *time.Time      `json:"invoice_date_due,omitempty"`
	CurrencyCode   string          `json:"currency_code"`
	AmountUntaxed  decimal.Decimal `json:"amount_untaxed"`
	AmountTax      decimal.Decimal `json:"amount_tax"`
	AmountTotal    decimal.Decimal `json:"amount_total"`
	AmountRounding decimal.Decimal `json:"amount_rounding"`
	// PDFPath points into file storage; empty means no rendered PDF is attached
	PDFPath     string `json:"pdf_path,omitempty"`
	EAKState    string `json:"eak_state"`
	EAKResponse string `json:"-"`

	Lines     []*CustomerInvoiceLine `json:"lines"`
	CreatedAt time.Time              `json:"created_at"`
}

// CustomerInvoiceLine is one line of a customer invoice
type CustomerInvoiceLine struct {
	ID            int64           `json:"id"`
	InvoiceID     int64           `json:"invoice_id"`
	Sequence      int             `json:"sequence"`
	DisplayType   string          `json:"display_type"`
	Name          string          `json:"name"`
	UoM           string          `json:"uom"`
	Quantity      decimal.Decimal `json:"quantity"`
	PriceUnit     decimal.Decimal `json:"price_unit"`
	Discount      decimal.Decimal `json:"discount"` // percent
	TaxRate       decimal.Decimal `json:"tax_rate"` // sum of applied tax percents
	PriceSubtotal decimal.Decimal `json:"price_subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
}

// IsProductLine reports whether the line carries an amount (sections and notes do not)
func (l *CustomerInvoiceLine) IsProductLine() bool {
	return l.DisplayType == "" || l.DisplayType == DisplayTypeProduct
}
