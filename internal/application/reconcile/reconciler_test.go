package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	companyID     = int64(1)
	currencyEUR   = int64(10)
	partnerID     = int64(20)
	taxID         = int64(30)
	productID     = int64(40)
	placeholderID = int64(41)
	bankID        = int64(50)
)

// fakeStore resolves keys from a fixed table; company 0 entries are shared
type fakeStore struct {
	records map[entity.Category]map[string]map[int64]int64
	calls   int
	err     error
}

func newFakeStore() *fakeStore {
	s := &fakeStore{records: make(map[entity.Category]map[string]map[int64]int64)}
	s.add(entity.CategoryCompany, "10000001", 0, companyID)
	s.add(entity.CategoryCompany, "10000002", 0, 2)
	s.add(entity.CategoryCurrency, "EUR", 0, currencyEUR)
	s.add(entity.CategoryPartner, "20000002", companyID, partnerID)
	s.add(entity.CategoryTax, "22", companyID, taxID)
	s.add(entity.CategoryProduct, "PAPER-A4", companyID, productID)
	s.add(entity.CategoryProduct, "EAK-UNMATCHED", 0, placeholderID)
	s.add(entity.CategoryBankAccount, "EE382200221020145685", companyID, bankID)
	return s
}

func (s *fakeStore) add(c entity.Category, key string, company, id int64) {
	if s.records[c] == nil {
		s.records[c] = make(map[string]map[int64]int64)
	}
	if s.records[c][key] == nil {
		s.records[c][key] = make(map[int64]int64)
	}
	s.records[c][key][company] = id
}

func (s *fakeStore) FindOne(_ context.Context, c entity.Category, key string, company int64) (int64, bool, error) {
	s.calls++
	if s.err != nil {
		return 0, false, s.err
	}
	byCompany := s.records[c][key]
	if id, ok := byCompany[company]; ok {
		return id, true, nil
	}
	if id, ok := byCompany[0]; ok {
		return id, true, nil
	}
	return 0, false, nil
}

func newReconciler(store port.EntityStore) *Reconciler {
	return NewReconciler(NewResolver(store), "EAK-UNMATCHED", zap.NewNop())
}

func validInvoice() port.ParsedInvoice {
	return port.ParsedInvoice{
		RemoteInvoiceID:    "INV-1001",
		CompanyRegistry:    "10000001",
		SellerRegistry:     "20000002",
		InvoiceNumber:      "A-17",
		InvoiceDate:        "2024-02-28",
		DueDate:            "2024-03-14",
		CurrencyCode:       "EUR",
		PayToAccount:       "EE38 2200 2210 2014 5685",
		PaymentDescription: "A-17",
		Raw:                `<Invoice invoiceId="INV-1001"/>`,
		Lines: []port.ParsedLineItem{
			{Description: "Paper A4", ProductCode: "PAPER-A4", Quantity: "10", UnitPrice: "10.00",
				Subtotal: "90.00", Total: "109.80", VATRate: "22", DiscountRate: "10", HasDiscount: true},
		},
	}
}

func TestReconcile_CreatesBill(t *testing.T) {
	result, err := newReconciler(newFakeStore()).Reconcile(context.Background(), []port.ParsedInvoice{validInvoice()}, 0)
	require.NoError(t, err)

	assert.False(t, result.HasErrors())
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Bills, 1)

	bill := result.Bills[0]
	assert.Equal(t, companyID, bill.CompanyID)
	assert.Equal(t, currencyEUR, bill.CurrencyID)
	require.NotNil(t, bill.PartnerID)
	assert.Equal(t, partnerID, *bill.PartnerID)
	require.NotNil(t, bill.PartnerBankID)
	assert.Equal(t, bankID, *bill.PartnerBankID)
	assert.Equal(t, entity.MoveTypeInInvoice, bill.MoveType)
	assert.Equal(t, entity.BillStateDraft, bill.State)
	assert.True(t, bill.IsVendorBillFromEAK)
	assert.Equal(t, "INV-1001", bill.RemoteInvoiceID)
	assert.Equal(t, `<Invoice invoiceId="INV-1001"/>`, bill.EAKResponse)
	assert.Equal(t, "A-17", bill.Ref)
	assert.Equal(t, "2024-02-28", bill.InvoiceDate.Format("2006-01-02"))

	require.Len(t, bill.Lines, 1)
	line := bill.Lines[0]
	assert.Equal(t, productID, line.ProductID)
	assert.Equal(t, taxID, line.TaxID)
	assert.Equal(t, "Paper A4", line.Name)
	assert.True(t, decimal.NewFromInt(10).Equal(line.Discount))
	assert.True(t, decimal.NewFromInt(10).Equal(line.DiscountAmount), "got %s", line.DiscountAmount)
}

func TestReconcile_UnresolvedCompanyOrCurrencyExcluded(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*port.ParsedInvoice)
		message string
	}{
		{
			name:    "unknown company",
			mutate:  func(inv *port.ParsedInvoice) { inv.CompanyRegistry = "99999999" },
			message: "* Company ID: 99999999 Not Found",
		},
		{
			name:    "inactive currency",
			mutate:  func(inv *port.ParsedInvoice) { inv.CurrencyCode = "XYZ" },
			message: "* Currency Code: XYZ Not active",
		},
		{
			name: "company failure stops further resolution",
			mutate: func(inv *port.ParsedInvoice) {
				inv.CompanyRegistry = "99999999"
				inv.SellerRegistry = "unknown"
				inv.Lines[0].VATRate = "7"
			},
			message: "* Company ID: 99999999 Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			tt.mutate(&inv)

			result, err := newReconciler(newFakeStore()).Reconcile(context.Background(), []port.ParsedInvoice{inv}, 0)
			require.NoError(t, err)

			assert.Empty(t, result.Bills)
			assert.Equal(t, []string{tt.message}, result.Errors)
			assert.Equal(t, []string{"INV-1001"}, result.Rejected)
		})
	}
}

func TestReconcile_UnmatchedProductUsesPlaceholder(t *testing.T) {
	inv := validInvoice()
	inv.Lines[0].ProductCode = "UNKNOWN-1"
	inv.Lines[0].Description = "Special widget"

	result, err := newReconciler(newFakeStore()).Reconcile(context.Background(), []port.ParsedInvoice{inv}, 0)
	require.NoError(t, err)

	assert.False(t, result.HasErrors())
	require.Len(t, result.Bills, 1)
	line := result.Bills[0].Lines[0]
	assert.Equal(t, placeholderID, line.ProductID)
	assert.Equal(t, "UNKNOWN-1 - Special widget", line.Name)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[1], "UNKNOWN-1")
}

func TestReconcile_UnresolvedPartnerAndTaxRejectInvoice(t *testing.T) {
	inv := validInvoice()
	inv.SellerRegistry = "55555555"
	inv.Lines = append(inv.Lines, port.ParsedLineItem{Description: "Food", VATRate: "9", DiscountRate: "0"})

	other := validInvoice()
	other.RemoteInvoiceID = "INV-1002"

	result, err := newReconciler(newFakeStore()).Reconcile(context.Background(), []port.ParsedInvoice{inv, other}, 0)
	require.NoError(t, err)

	require.Len(t, result.Bills, 1)
	assert.Equal(t, "INV-1002", result.Bills[0].RemoteInvoiceID)
	assert.Equal(t, []string{
		"Company ID: 10000001, Invoice: A-17",
		"- Partner Company ID: 55555555",
		"- Tax Amount: 9%",
	}, result.Errors)
	assert.Equal(t, []string{"INV-1001"}, result.Rejected)
}

func TestReconcile_FullDiscountIsAnError(t *testing.T) {
	inv := validInvoice()
	inv.Lines[0].DiscountRate = "100"
	inv.Lines[0].Subtotal = "0"

	result, err := newReconciler(newFakeStore()).Reconcile(context.Background(), []port.ParsedInvoice{inv}, 0)
	require.NoError(t, err)

	assert.Empty(t, result.Bills)
	assert.Contains(t, result.Errors, "- Line 1 Discount: 100% cannot be recovered")
}

func TestReconcile_MissingBankAccountDegrades(t *testing.T) {
	inv := validInvoice()
	inv.PayToAccount = "EE00 0000"

	result, err := newReconciler(newFakeStore()).Reconcile(context.Background(), []port.ParsedInvoice{inv}, 0)
	require.NoError(t, err)

	require.Len(t, result.Bills, 1)
	assert.Nil(t, result.Bills[0].PartnerBankID)
	assert.Equal(t, "A-17", result.Bills[0].PaymentReference)
	assert.Contains(t, result.Warnings, "- Bank Account: EE00 0000 Not Found")
}

func TestReconcile_CompanyHintMismatch(t *testing.T) {
	inv := validInvoice()
	inv.CompanyRegistry = "10000002"

	result, err := newReconciler(newFakeStore()).Reconcile(context.Background(), []port.ParsedInvoice{inv}, companyID)
	require.NoError(t, err)

	assert.Empty(t, result.Bills)
	assert.Equal(t, []string{"* Company ID: 10000002 belongs to another company"}, result.Errors)
}

func TestReconcile_IsPure(t *testing.T) {
	r := newReconciler(newFakeStore())
	payload := []port.ParsedInvoice{validInvoice()}

	first, err := r.Reconcile(context.Background(), payload, 0)
	require.NoError(t, err)
	second, err := r.Reconcile(context.Background(), payload, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReconcile_CachesLookupsWithinPass(t *testing.T) {
	store := newFakeStore()
	inv := validInvoice()
	inv.Lines = append(inv.Lines, inv.Lines[0], inv.Lines[0])

	_, err := newReconciler(store).Reconcile(context.Background(), []port.ParsedInvoice{inv}, 0)
	require.NoError(t, err)

	// company, currency, partner, bank, tax, product
	assert.Equal(t, 6, store.calls)
}

func TestReconcile_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("database is locked")

	_, err := newReconciler(store).Reconcile(context.Background(), []port.ParsedInvoice{validInvoice()}, 0)
	assert.Error(t, err)
}

func TestReconcile_MissingPlaceholder(t *testing.T) {
	store := newFakeStore()
	delete(store.records[entity.CategoryProduct], "EAK-UNMATCHED")
	inv := validInvoice()
	inv.Lines[0].ProductCode = ""

	_, err := newReconciler(store).Reconcile(context.Background(), []port.ParsedInvoice{inv}, 0)
	assert.ErrorIs(t, err, ErrPlaceholderMissing)
}
