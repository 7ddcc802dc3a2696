package entity

import (
	"strings"
	"time"
)

// Partner is a trading partner (customer or vendor)
type Partner struct {
	ID              int64  `json:"id"`
	CompanyID       *int64 `json:"company_id,omitempty"` // nil means shared between companies
	ParentID        *int64 `json:"parent_id,omitempty"`
	Name            string `json:"name"`
	CompanyRegistry string `json:"company_registry"`
	IsCompany       bool   `json:"is_company"`
	IsEDIEAK        bool   `json:"is_edi_eak"`
	Street          string `json:"street"`
	City            string `json:"city"`
	Zip             string `json:"zip"`
	Country         string `json:"country"`

	// Parent is populated by repositories that load the commercial parent
	Parent *Partner `json:"parent,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactAddress joins the non-empty address parts
func (p *Partner) ContactAddress() string {
	var parts []string
	for _, s := range []string{p.Street, p.Zip, p.City, p.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// ReceivesEAK reports whether invoices to this partner go through eAK.
// Either the partner itself is an eAK-enabled company or its parent is eAK-enabled.
func (p *Partner) ReceivesEAK() bool {
	if p.IsCompany && p.IsEDIEAK {
		return true
	}
	return p.Parent != nil && p.Parent.IsEDIEAK
}
