// Package pricing contains the money arithmetic shared by bill import and invoice export.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrFullDiscount is returned when the discount amount cannot be recovered
// from a line whose subtotal was reduced by 100%.
var ErrFullDiscount = errors.New("cannot recover discount amount from a 100% discount")

var hundred = decimal.NewFromInt(100)

// DiscountAmount recovers the absolute discount that was taken off to reach
// subtotal, given the discount percentage: subtotal/(1-pct/100) - subtotal.
// A zero percentage yields zero.
func DiscountAmount(subtotal, pct decimal.Decimal) (decimal.Decimal, error) {
	if pct.IsZero() {
		return decimal.Zero, nil
	}
	remaining := decimal.NewFromInt(1).Sub(pct.Div(hundred))
	if remaining.Sign() <= 0 {
		return decimal.Zero, ErrFullDiscount
	}
	return subtotal.Div(remaining).Sub(subtotal), nil
}

// Money rounds an amount to two decimals for display and wire output
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
