package entity

import "time"

// Company is an accounting company together with its eAK connection settings
type Company struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	CompanyRegistry string `json:"company_registry"`

	// EAKURL is the endpoint the company talks to
	EAKURL string `json:"eak_url"`
	// EAKAuth holds the auth phrase or a secret reference resolved at request time
	EAKAuth string `json:"-"`
	// EAKBillExportDate is the vendor bill watermark
	EAKBillExportDate time.Time `json:"eak_bill_export_date"`
	// EAKBankID is the bank account advertised as PayToAccount on exported invoices
	EAKBankID *int64 `json:"eak_bank_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EAKConfigured reports whether both the endpoint and the auth phrase are set
func (c *Company) EAKConfigured() bool {
	return c.EAKURL != "" && c.EAKAuth != ""
}
