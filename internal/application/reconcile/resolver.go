// Package reconcile maps parsed eAK vendor invoices onto ledger records.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ResolutionError describes a business key that matched no ledger record
type ResolutionError struct {
	Category entity.Category
	Key      string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unresolved %s %q", e.Category, e.Key)
}

// Resolution is the outcome of looking up one business key
type Resolution struct {
	Category entity.Category
	Key      string
	ID       int64
	Found    bool
}

// Unresolved returns the diagnostic for a miss, or nil when the key resolved
func (r Resolution) Unresolved() *ResolutionError {
	if r.Found {
		return nil
	}
	return &ResolutionError{Category: r.Category, Key: r.Key}
}

// Resolver resolves business keys through an EntityStore
type Resolver struct {
	store port.EntityStore
}

// NewResolver creates a resolver backed by store
func NewResolver(store port.EntityStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks up key in category. Company-specific categories are scoped to
// companyID. A miss is a Resolution with Found false; the error is reserved
// for store failures.
func (r *Resolver) Resolve(ctx context.Context, category entity.Category, key string, companyID int64) (Resolution, error) {
	res := Resolution{Category: category, Key: key}

	normalized, ok := NormalizeKey(category, key)
	if !ok {
		return res, nil
	}
	if !category.CompanyScoped() {
		companyID = 0
	}

	id, found, err := r.store.FindOne(ctx, category, normalized, companyID)
	if err != nil {
		return res, fmt.Errorf("failed to resolve %s %q: %w", category, key, err)
	}
	res.ID, res.Found = id, found
	return res, nil
}

// NormalizeKey brings a raw key into the form the store matches on.
// It reports false for keys that can never match.
func NormalizeKey(category entity.Category, key string) (string, bool) {
	key = strings.TrimSpace(key)
	switch category {
	case entity.CategoryCurrency:
		key = strings.ToUpper(key)
	case entity.CategoryBankAccount:
		key = entity.NormalizeAccountNumber(key)
	case entity.CategoryTax:
		rate, err := decimal.NewFromString(key)
		if err != nil {
			return "", false
		}
		return rate.String(), true
	}
	return key, key != ""
}
