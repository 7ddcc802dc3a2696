package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/application/reconcile"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/domain/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	initialWatermark = time.Date(2009, 7, 1, 0, 0, 0, 0, time.UTC)
	runTime          = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func testStore() mapStore {
	return mapStore{
		entity.CategoryCompany:  {"10000001": 1, "10000002": 2},
		entity.CategoryCurrency: {"EUR": 10},
		entity.CategoryPartner:  {"20000002": 20},
		entity.CategoryTax:      {"22": 30},
		entity.CategoryProduct:  {"PAPER": 40, "EAK-UNMATCHED": 41},
	}
}

func parsedInvoice(remoteID, companyReg string) port.ParsedInvoice {
	return port.ParsedInvoice{
		RemoteInvoiceID: remoteID,
		CompanyRegistry: companyReg,
		SellerRegistry:  "20000002",
		InvoiceNumber:   "N-" + remoteID,
		InvoiceDate:     "2024-02-28",
		CurrencyCode:    "EUR",
		Lines: []port.ParsedLineItem{
			{Description: "Paper", ProductCode: "PAPER", Quantity: "1", UnitPrice: "10", Subtotal: "10", Total: "12.2", VATRate: "22", DiscountRate: "0"},
		},
	}
}

type vendorBillFixture struct {
	companies *mockCompanyRepo
	bills     *mockBillRepo
	gateway   *mockGateway
	logs      *mockLogSink
	service   VendorBillSyncService
}

func newVendorBillFixture(companies ...*entity.Company) *vendorBillFixture {
	f := &vendorBillFixture{
		companies: &mockCompanyRepo{companies: companies},
		bills:     &mockBillRepo{},
		gateway:   &mockGateway{},
		logs:      &mockLogSink{},
	}
	f.service = NewVendorBillSyncService(VendorBillSyncDeps{
		Companies:  f.companies,
		Bills:      f.bills,
		Gateway:    f.gateway,
		Reconciler: reconcile.NewReconciler(reconcile.NewResolver(testStore()), "EAK-UNMATCHED", zap.NewNop()),
		Secrets:    &mockSecrets{},
		Logs:       f.logs,
		TxManager:  &mockTxManager{},
		Clock:      fixedClock(runTime),
		Logger:     &mockLogger{},
	})
	return f
}

func configuredCompany(id int64, name string) *entity.Company {
	return &entity.Company{
		ID:                id,
		Name:              name,
		EAKURL:            "https://eak.example/erp/" + name,
		EAKAuth:           "token-" + name,
		EAKBillExportDate: initialWatermark,
	}
}

func TestVendorBillSync_SyncAll_Success(t *testing.T) {
	acme := configuredCompany(1, "Acme")
	idle := &entity.Company{ID: 3, Name: "Idle"}
	f := newVendorBillFixture(acme, idle)

	var gotSince time.Time
	var gotAuth string
	f.gateway.vendorBillsFunc = func(ctx context.Context, endpoint, auth string, since time.Time) (*port.VendorBillsResponse, error) {
		gotSince, gotAuth = since, auth
		return &port.VendorBillsResponse{Raw: "<raw/>", Invoices: []port.ParsedInvoice{parsedInvoice("R1", "10000001")}}, nil
	}

	report, err := f.service.SyncAll(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []string{"Idle"}, report.Skipped)
	require.Len(t, report.Outcomes, 1)
	outcome := report.Outcomes[0]
	assert.Equal(t, entity.SeveritySuccess, outcome.Level)
	assert.Len(t, outcome.Created, 1)
	assert.True(t, outcome.WatermarkAdvanced)

	assert.Equal(t, initialWatermark, gotSince)
	assert.Equal(t, "token-Acme", gotAuth)
	assert.Equal(t, runTime, acme.EAKBillExportDate)

	require.Len(t, f.bills.bills, 1)
	assert.True(t, f.bills.bills[0].IsVendorBillFromEAK)
	assert.Equal(t, "R1", f.bills.bills[0].RemoteInvoiceID)

	require.Len(t, f.logs.entries, 2, "one entry for the company, one for skipped companies")
	assert.Equal(t, entity.SeveritySuccess, f.logs.entries[0].Level)
	assert.Equal(t, "<raw/>", f.logs.entries[0].Payload)
	assert.Equal(t, acme.EAKURL, f.logs.entries[0].Path)
	assert.Equal(t, entity.SeverityInfo, f.logs.entries[1].Level)
	assert.Contains(t, f.logs.entries[1].Message, "Idle")
}

func TestVendorBillSync_RerunDoesNotDuplicate(t *testing.T) {
	acme := configuredCompany(1, "Acme")
	f := newVendorBillFixture(acme)
	f.gateway.vendorBillsFunc = func(ctx context.Context, endpoint, auth string, since time.Time) (*port.VendorBillsResponse, error) {
		return &port.VendorBillsResponse{Invoices: []port.ParsedInvoice{
			parsedInvoice("R1", "10000001"),
			parsedInvoice("R2", "10000001"),
		}}, nil
	}

	_, err := f.service.SyncAll(context.Background())
	require.NoError(t, err)
	require.Len(t, f.bills.bills, 2)

	report, err := f.service.SyncAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, f.bills.bills, 2)
	outcome := report.Outcomes[0]
	assert.Empty(t, outcome.Created)
	assert.ElementsMatch(t, []string{"R1", "R2"}, outcome.Duplicates)
	assert.Equal(t, entity.SeveritySuccess, outcome.Level)
}

func TestVendorBillSync_DuplicateWithinPayload(t *testing.T) {
	f := newVendorBillFixture(configuredCompany(1, "Acme"))
	f.gateway.vendorBillsFunc = func(ctx context.Context, endpoint, auth string, since time.Time) (*port.VendorBillsResponse, error) {
		return &port.VendorBillsResponse{Invoices: []port.ParsedInvoice{
			parsedInvoice("R1", "10000001"),
			parsedInvoice("R1", "10000001"),
		}}, nil
	}

	report, err := f.service.SyncAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, f.bills.bills, 1)
	assert.Equal(t, []string{"R1"}, report.Outcomes[0].Duplicates)
}

func TestVendorBillSync_ReconcileErrorsKeepWatermark(t *testing.T) {
	acme := configuredCompany(1, "Acme")
	f := newVendorBillFixture(acme)

	bad := parsedInvoice("R2", "10000001")
	bad.CurrencyCode = "XYZ"
	f.gateway.vendorBillsFunc = func(ctx context.Context, endpoint, auth string, since time.Time) (*port.VendorBillsResponse, error) {
		return &port.VendorBillsResponse{Invoices: []port.ParsedInvoice{parsedInvoice("R1", "10000001"), bad}}, nil
	}

	report, err := f.service.SyncAll(context.Background())
	require.NoError(t, err)

	outcome := report.Outcomes[0]
	assert.Equal(t, entity.SeverityError, outcome.Level)
	assert.Len(t, outcome.Created, 1, "resolved invoices are still persisted")
	assert.False(t, outcome.WatermarkAdvanced)
	assert.Equal(t, initialWatermark, acme.EAKBillExportDate)
	assert.Empty(t, f.companies.advanceCall)
	assert.Contains(t, outcome.Message, "* Currency Code: XYZ Not active")
	assert.Equal(t, NotifyDanger, outcome.Notification("Vendor Bills").Type)
}

func TestVendorBillSync_FaultIsolatedPerCompany(t *testing.T) {
	broken := configuredCompany(1, "Broken")
	healthy := configuredCompany(2, "Healthy")
	f := newVendorBillFixture(broken, healthy)

	f.gateway.vendorBillsFunc = func(ctx context.Context, endpoint, auth string, since time.Time) (*port.VendorBillsResponse, error) {
		if endpoint == broken.EAKURL {
			return nil, &fault.Fault{Op: "BuyInvoiceExportRequest", Kind: fault.Auth, Status: 401, Raw: "denied"}
		}
		return &port.VendorBillsResponse{Invoices: []port.ParsedInvoice{parsedInvoice("R9", "10000002")}}, nil
	}

	report, err := f.service.SyncAll(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, entity.SeverityError, report.Outcomes[0].Level)
	assert.Contains(t, report.Outcomes[0].Message, "invalid Token")
	assert.Equal(t, "denied", report.Outcomes[0].Payload)
	assert.Equal(t, initialWatermark, broken.EAKBillExportDate)

	assert.Equal(t, entity.SeveritySuccess, report.Outcomes[1].Level)
	assert.Equal(t, runTime, healthy.EAKBillExportDate)
	assert.Equal(t, 1, report.Failed())
	assert.Len(t, f.logs.entries, 2)
}

func TestVendorBillSync_PersistFailureKeepsWatermark(t *testing.T) {
	acme := configuredCompany(1, "Acme")
	f := newVendorBillFixture(acme)
	f.bills.createErr = errors.New("disk full")
	f.gateway.vendorBillsFunc = func(ctx context.Context, endpoint, auth string, since time.Time) (*port.VendorBillsResponse, error) {
		return &port.VendorBillsResponse{Invoices: []port.ParsedInvoice{parsedInvoice("R1", "10000001")}}, nil
	}

	report, err := f.service.SyncAll(context.Background())
	require.NoError(t, err)

	outcome := report.Outcomes[0]
	assert.Equal(t, entity.SeverityError, outcome.Level)
	assert.Empty(t, outcome.Created)
	assert.False(t, outcome.WatermarkAdvanced)
	assert.Equal(t, initialWatermark, acme.EAKBillExportDate)
}

func TestVendorBillSync_WatermarkNeverMovesBack(t *testing.T) {
	acme := configuredCompany(1, "Acme")
	future := runTime.Add(24 * time.Hour)
	acme.EAKBillExportDate = future
	f := newVendorBillFixture(acme)

	report, err := f.service.SyncAll(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Outcomes[0].WatermarkAdvanced)
	assert.Equal(t, future, acme.EAKBillExportDate)
}

func TestVendorBillSync_SyncCompany_NotConfigured(t *testing.T) {
	f := newVendorBillFixture(&entity.Company{ID: 5, Name: "Bare"})

	outcome, err := f.service.SyncCompany(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, entity.SeverityError, outcome.Level)
	n := outcome.Notification("Vendor Bills")
	assert.Equal(t, NotifyDanger, n.Type)
	assert.Equal(t, "Please add eAK auth token/eAK URL", n.Message)
	assert.Len(t, f.logs.entries, 1)
}

func TestVendorBillSync_SecretFailure(t *testing.T) {
	acme := configuredCompany(1, "Acme")
	f := newVendorBillFixture(acme)
	f.service.(*vendorBillSyncImpl).Secrets = &mockSecrets{err: errors.New("secret not found")}

	report, err := f.service.SyncAll(context.Background())
	require.NoError(t, err)

	outcome := report.Outcomes[0]
	assert.Equal(t, entity.SeverityError, outcome.Level)
	assert.True(t, errors.Is(outcome.Fault, fault.ErrAuth))
}
