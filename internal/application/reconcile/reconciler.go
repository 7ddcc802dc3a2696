package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/domain/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ErrPlaceholderMissing is returned when the unmatched-product placeholder is not in the store
var ErrPlaceholderMissing = errors.New("unmatched product placeholder not found")

// Result is the outcome of reconciling one vendor bill payload
type Result struct {
	// Bills are ready to persist, in payload order
	Bills []*entity.VendorBill
	// Errors are per-invoice problems that excluded an invoice
	Errors []string
	// Warnings are degraded matches that did not block creation
	Warnings []string
	// Rejected lists the remote ids of excluded invoices
	Rejected []string
}

// HasErrors reports whether any invoice was rejected
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Reconciler turns parsed invoices into vendor bills
type Reconciler struct {
	resolver             *Resolver
	unmatchedProductCode string
	logger               *zap.Logger
}

// NewReconciler creates a new reconciler. unmatchedProductCode names the
// placeholder product used for lines whose product code does not resolve.
func NewReconciler(resolver *Resolver, unmatchedProductCode string, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		resolver:             resolver,
		unmatchedProductCode: unmatchedProductCode,
		logger:               logger,
	}
}

type lookupKey struct {
	category  entity.Category
	key       string
	companyID int64
}

// pass holds the lookups of one Reconcile call so repeated keys hit the store once
type pass struct {
	r       *Reconciler
	lookups map[lookupKey]Resolution
}

func (p *pass) resolve(ctx context.Context, category entity.Category, key string, companyID int64) (Resolution, error) {
	k := lookupKey{category: category, key: key, companyID: companyID}
	if res, ok := p.lookups[k]; ok {
		return res, nil
	}
	res, err := p.r.resolver.Resolve(ctx, category, key, companyID)
	if err != nil {
		return res, err
	}
	p.lookups[k] = res
	return res, nil
}

// Reconcile resolves every invoice. An invoice becomes a bill only when its
// company, currency, partner, every line tax and every discount resolve.
// When companyHint is non-zero, invoices addressed to another company are rejected.
// The returned error is reserved for store failures.
func (r *Reconciler) Reconcile(ctx context.Context, invoices []port.ParsedInvoice, companyHint int64) (*Result, error) {
	p := &pass{r: r, lookups: make(map[lookupKey]Resolution)}
	result := &Result{}

	for i := range invoices {
		inv := &invoices[i]
		bill, errs, warnings, err := p.reconcileInvoice(ctx, inv, companyHint)
		if err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, warnings...)
		if len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
			result.Rejected = append(result.Rejected, inv.RemoteInvoiceID)
			continue
		}
		result.Bills = append(result.Bills, bill)
	}

	r.logger.Debug("Reconciled vendor bills",
		zap.Int("invoices", len(invoices)),
		zap.Int("bills", len(result.Bills)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}

func (p *pass) reconcileInvoice(ctx context.Context, inv *port.ParsedInvoice, companyHint int64) (*entity.VendorBill, []string, []string, error) {
	company, err := p.resolve(ctx, entity.CategoryCompany, inv.CompanyRegistry, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	currency, err := p.resolve(ctx, entity.CategoryCurrency, inv.CurrencyCode, 0)
	if err != nil {
		return nil, nil, nil, err
	}

	var headErrs []string
	if !company.Found {
		headErrs = append(headErrs, fmt.Sprintf("* Company ID: %s Not Found", inv.CompanyRegistry))
	} else if companyHint != 0 && company.ID != companyHint {
		headErrs = append(headErrs, fmt.Sprintf("* Company ID: %s belongs to another company", inv.CompanyRegistry))
	}
	if !currency.Found {
		headErrs = append(headErrs, fmt.Sprintf("* Currency Code: %s Not active", inv.CurrencyCode))
	}
	if len(headErrs) > 0 {
		return nil, headErrs, nil, nil
	}

	companyID := company.ID
	var errs, warnings []string

	bill := &entity.VendorBill{
		CompanyID:           companyID,
		CurrencyID:          currency.ID,
		MoveType:            entity.MoveTypeInInvoice,
		State:               entity.BillStateDraft,
		Ref:                 inv.InvoiceNumber,
		PaymentReference:    inv.PaymentDescription,
		IsVendorBillFromEAK: true,
		RemoteInvoiceID:     inv.RemoteInvoiceID,
		EAKResponse:         inv.Raw,
	}

	if inv.RemoteInvoiceID == "" {
		errs = append(errs, "- Invoice ID: missing")
	}

	partner, err := p.resolve(ctx, entity.CategoryPartner, inv.SellerRegistry, companyID)
	if err != nil {
		return nil, nil, nil, err
	}
	if partner.Found {
		id := partner.ID
		bill.PartnerID = &id
	} else {
		errs = append(errs, fmt.Sprintf("- Partner Company ID: %s", inv.SellerRegistry))
	}

	if bill.InvoiceDate, err = parseDate(inv.InvoiceDate); err != nil {
		errs = append(errs, fmt.Sprintf("- Invoice Date: %s invalid", inv.InvoiceDate))
	}
	if bill.InvoiceDateDue, err = parseDate(inv.DueDate); err != nil {
		errs = append(errs, fmt.Sprintf("- Due Date: %s invalid", inv.DueDate))
	}

	if inv.PayToAccount != "" {
		bank, err := p.resolve(ctx, entity.CategoryBankAccount, inv.PayToAccount, companyID)
		if err != nil {
			return nil, nil, nil, err
		}
		if bank.Found {
			id := bank.ID
			bill.PartnerBankID = &id
		} else {
			warnings = append(warnings, fmt.Sprintf("- Bank Account: %s Not Found", inv.PayToAccount))
		}
	}

	for i, item := range inv.Lines {
		line, lineErrs, lineWarnings, err := p.buildLine(ctx, i+1, item, companyID)
		if err != nil {
			return nil, nil, nil, err
		}
		errs = append(errs, lineErrs...)
		warnings = append(warnings, lineWarnings...)
		bill.Lines = append(bill.Lines, line)
	}

	if len(warnings) > 0 {
		warnings = withContext(inv, warnings)
	}
	if len(errs) > 0 {
		return nil, withContext(inv, errs), warnings, nil
	}
	return bill, nil, warnings, nil
}

func (p *pass) buildLine(ctx context.Context, seq int, item port.ParsedLineItem, companyID int64) (*entity.VendorBillLine, []string, []string, error) {
	var errs, warnings []string
	line := &entity.VendorBillLine{Sequence: seq, Name: item.Description}

	tax, err := p.resolve(ctx, entity.CategoryTax, item.VATRate, companyID)
	if err != nil {
		return nil, nil, nil, err
	}
	if tax.Found {
		line.TaxID = tax.ID
	} else {
		errs = append(errs, fmt.Sprintf("- Tax Amount: %s%%", item.VATRate))
	}

	product, err := p.resolve(ctx, entity.CategoryProduct, item.ProductCode, companyID)
	if err != nil {
		return nil, nil, nil, err
	}
	if product.Found {
		line.ProductID = product.ID
	} else {
		placeholder, err := p.placeholder(ctx, companyID)
		if err != nil {
			return nil, nil, nil, err
		}
		line.ProductID = placeholder
		line.Name = fmt.Sprintf("%s - %s", item.ProductCode, item.Description)
		warnings = append(warnings, fmt.Sprintf("- Product Code: %s Not Found, line %d uses %s", item.ProductCode, seq, p.r.unmatchedProductCode))
	}

	amounts := []struct {
		field string
		raw   string
		dst   *decimal.Decimal
	}{
		{"Quantity", item.Quantity, &line.Quantity},
		{"Unit Price", item.UnitPrice, &line.PriceUnit},
		{"Subtotal", item.Subtotal, &line.PriceSubtotal},
		{"Total", item.Total, &line.PriceTotal},
		{"Discount", item.DiscountRate, &line.Discount},
	}
	valid := true
	for _, a := range amounts {
		v, err := parseAmount(a.raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("- Line %d %s: %s invalid", seq, a.field, a.raw))
			valid = false
			continue
		}
		*a.dst = v
	}

	if valid {
		amount, err := pricing.DiscountAmount(line.PriceSubtotal, line.Discount)
		if err != nil {
			errs = append(errs, fmt.Sprintf("- Line %d Discount: %s%% cannot be recovered", seq, item.DiscountRate))
		} else {
			line.DiscountAmount = amount
		}
	}
	return line, errs, warnings, nil
}

func (p *pass) placeholder(ctx context.Context, companyID int64) (int64, error) {
	res, err := p.resolve(ctx, entity.CategoryProduct, p.r.unmatchedProductCode, companyID)
	if err != nil {
		return 0, err
	}
	if !res.Found {
		return 0, fmt.Errorf("%w: %q", ErrPlaceholderMissing, p.r.unmatchedProductCode)
	}
	return res.ID, nil
}

// withContext prefixes an invoice's messages with a line naming it and its company registry
func withContext(inv *port.ParsedInvoice, msgs []string) []string {
	name := inv.InvoiceNumber
	if name == "" {
		name = inv.RemoteInvoiceID
	}
	out := make([]string, 0, len(msgs)+1)
	out = append(out, fmt.Sprintf("Company ID: %s, Invoice: %s", inv.CompanyRegistry, name))
	return append(out, msgs...)
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
