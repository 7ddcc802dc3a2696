package entity

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Currency is an ISO currency known to the ledger
type Currency struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"` // ISO 4217 code
	Active bool   `json:"active"`
}

// Tax is a company-specific tax rate
type Tax struct {
	ID         int64           `json:"id"`
	CompanyID  int64           `json:"company_id"`
	Name       string          `json:"name"`
	TypeTaxUse string          `json:"type_tax_use"`
	Amount     decimal.Decimal `json:"amount"` // percent
}

// Product is a sellable or purchasable item identified by its internal reference
type Product struct {
	ID          int64  `json:"id"`
	CompanyID   *int64 `json:"company_id,omitempty"`
	DefaultCode string `json:"default_code"`
	Name        string `json:"name"`
}

// BankAccount is a bank account of a partner or company
type BankAccount struct {
	ID        int64  `json:"id"`
	CompanyID *int64 `json:"company_id,omitempty"`
	PartnerID *int64 `json:"partner_id,omitempty"`
	AccNumber string `json:"acc_number"`
}

// NormalizeAccountNumber strips all whitespace from an account number
func NormalizeAccountNumber(acc string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, acc)
}
