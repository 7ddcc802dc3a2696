package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/domain/fault"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exportFixture struct {
	invoice     *entity.CustomerInvoice
	company     *entity.Company
	partner     *entity.Partner
	invoices    *mockInvoiceRepo
	attachments *mockAttachmentRepo
	gateway     *mockGateway
	builder     *mockBuilder
	storage     *mockStorage
	logs        *mockLogSink
	service     InvoiceExportService
}

func newExportFixture() *exportFixture {
	bankID := int64(7)
	recipientBankID := int64(8)
	invoiceDate := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	f := &exportFixture{
		invoice: &entity.CustomerInvoice{
			ID:            100,
			CompanyID:     1,
			PartnerID:     20,
			Name:          "INV/2024/0001",
			MoveType:      entity.MoveTypeOutInvoice,
			InvoiceDate:   &invoiceDate,
			CurrencyCode:  "EUR",
			PartnerBankID: &recipientBankID,
			AmountTotal:   decimal.RequireFromString("122"),
			EAKState:      entity.EAKStateToSend,
		},
		company: &entity.Company{
			ID:              1,
			Name:            "Acme",
			CompanyRegistry: "10000001",
			EAKURL:          "https://eak.example/erp",
			EAKAuth:         "secret",
			EAKBankID:       &bankID,
		},
		partner: &entity.Partner{
			ID:              20,
			Name:            "Buyer OU",
			CompanyRegistry: "20000002",
			IsCompany:       true,
			IsEDIEAK:        true,
			Street:          "Narva mnt 5",
			City:            "Tallinn",
		},
		attachments: &mockAttachmentRepo{},
		gateway:     &mockGateway{},
		builder:     &mockBuilder{},
		storage:     newMockStorage(),
		logs:        &mockLogSink{},
	}
	f.invoices = &mockInvoiceRepo{invoices: map[int64]*entity.CustomerInvoice{100: f.invoice}}
	f.service = NewInvoiceExportService(InvoiceExportDeps{
		Invoices:    f.invoices,
		Companies:   &mockCompanyRepo{companies: []*entity.Company{f.company}},
		Partners:    &mockPartnerRepo{partners: []*entity.Partner{f.partner}},
		Banks: &mockBankRepo{accounts: map[int64]*entity.BankAccount{
			7: {ID: 7, AccNumber: "EE38 2200 2210 2014 5685"},
			8: {ID: 8, AccNumber: "EE47 1000 0010 2014 5685"},
		}},
		Attachments: f.attachments,
		Builder:     f.builder,
		Gateway:     f.gateway,
		Secrets:     &mockSecrets{},
		Storage:     f.storage,
		Logs:        f.logs,
		Clock:       fixedClock(runTime),
		Logger:      &mockLogger{},
	})
	return f
}

func TestInvoiceExport_Submit_Success(t *testing.T) {
	f := newExportFixture()
	f.invoice.PDFPath = "customer_invoices/100/INV.pdf"
	f.storage.files[f.invoice.PDFPath] = []byte("%PDF")

	var gotEndpoint string
	f.gateway.submitFunc = func(ctx context.Context, endpoint string, document []byte) (string, error) {
		gotEndpoint = endpoint
		return "<ok/>", nil
	}

	result, err := f.service.Submit(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, entity.EAKStateSent, result.State)
	assert.Equal(t, NotifySuccess, result.Notification.Type)
	assert.Equal(t, f.company.EAKURL, gotEndpoint)
	assert.Equal(t, entity.EAKStateSent, f.invoice.EAKState)
	assert.Equal(t, "<ok/>", f.invoice.EAKResponse)

	doc := f.builder.lastDoc
	assert.Equal(t, "EE382200221020145685", doc.PayToAccount)
	assert.Equal(t, "secret", doc.AuthPhrase)
	assert.Equal(t, runTime, doc.IssuedAt)
	require.NotNil(t, doc.PDF)
	assert.Equal(t, "INV.pdf", doc.PDF.Name)

	assert.Equal(t, "customer_invoices/100/INV_2024_0001_eak.xml", result.DocumentPath)
	assert.Contains(t, string(f.storage.files[result.DocumentPath]), "INV/2024/0001")
	require.Len(t, f.attachments.attachments, 1)
	assert.Equal(t, entity.MimeTypeXML, f.attachments.attachments[0].MimeType)

	require.Len(t, f.logs.entries, 1)
	assert.Equal(t, entity.SeveritySuccess, f.logs.entries[0].Level)
}

func TestInvoiceExport_Submit_RemoteFault(t *testing.T) {
	f := newExportFixture()
	f.gateway.submitFunc = func(ctx context.Context, endpoint string, document []byte) (string, error) {
		return "", &fault.Fault{Op: "EInvoice", Kind: fault.Auth, Status: 401, Raw: "<denied/>"}
	}

	result, err := f.service.Submit(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, entity.EAKStateError, result.State)
	assert.Equal(t, NotifyDanger, result.Notification.Type)
	assert.Contains(t, result.Notification.Message, "invalid Token")
	assert.Equal(t, "<denied/>", f.invoice.EAKResponse)
	assert.Equal(t, entity.EAKStateError, f.invoice.EAKState)
	assert.NotEmpty(t, result.DocumentPath, "the rendered document is kept for inspection")
	require.Len(t, f.logs.entries, 1)
	assert.Equal(t, entity.SeverityError, f.logs.entries[0].Level)
}

func TestInvoiceExport_Submit_ValidationListsProblems(t *testing.T) {
	f := newExportFixture()
	f.partner.CompanyRegistry = ""
	f.partner.Street, f.partner.City = "", ""
	f.company.EAKBankID = nil

	called := false
	f.gateway.submitFunc = func(ctx context.Context, endpoint string, document []byte) (string, error) {
		called = true
		return "", nil
	}

	_, err := f.service.Submit(context.Background(), 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrValidation))
	assert.False(t, called)

	msg := fault.Message(err)
	assert.Contains(t, msg, "Customer registry code is missing")
	assert.Contains(t, msg, "Customer address is missing")
	assert.Contains(t, msg, "Company eAK bank account is missing")
	assert.NotContains(t, msg, "Recipient bank account is missing")
	assert.NotContains(t, msg, "Customer name is missing")
	assert.Equal(t, entity.EAKStateToSend, f.invoice.EAKState)
	assert.Empty(t, f.storage.files)
}

func TestInvoiceExport_Submit_NotEAKRecipient(t *testing.T) {
	f := newExportFixture()
	f.partner.IsEDIEAK = false

	_, err := f.service.Submit(context.Background(), 100)
	assert.ErrorIs(t, err, ErrNotEAKInvoice)

	f.partner.IsEDIEAK = true
	f.invoice.MoveType = entity.MoveTypeInInvoice
	_, err = f.service.Submit(context.Background(), 100)
	assert.ErrorIs(t, err, ErrNotEAKInvoice)
}

func TestInvoiceExport_Submit_ParentReceivesEAK(t *testing.T) {
	f := newExportFixture()
	f.partner.IsCompany = false
	f.partner.IsEDIEAK = false
	f.partner.Parent = &entity.Partner{ID: 21, IsCompany: true, IsEDIEAK: true}

	result, err := f.service.Submit(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, entity.EAKStateSent, result.State)
}

func TestInvoiceExport_Submit_RequiresRecipientBank(t *testing.T) {
	cases := []struct {
		name   string
		bankID *int64
	}{
		{name: "not selected", bankID: nil},
		{name: "deleted account", bankID: int64Ptr(99)},
		{name: "blank account number", bankID: int64Ptr(9)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newExportFixture()
			f.invoice.PartnerBankID = tc.bankID
			f.service.(*invoiceExportImpl).Banks.(*mockBankRepo).accounts[9] = &entity.BankAccount{ID: 9, AccNumber: "   "}

			called := false
			f.gateway.submitFunc = func(ctx context.Context, endpoint string, document []byte) (string, error) {
				called = true
				return "", nil
			}

			_, err := f.service.Submit(context.Background(), 100)
			require.Error(t, err)
			assert.True(t, errors.Is(err, fault.ErrValidation))
			assert.Contains(t, fault.Message(err), "Recipient bank account is missing")
			assert.NotContains(t, fault.Message(err), "Company eAK bank account is missing")
			assert.False(t, called)
		})
	}
}

func TestInvoiceExport_Submit_BankLoadFailure(t *testing.T) {
	f := newExportFixture()
	f.service.(*invoiceExportImpl).Banks = &failingBankRepo{err: errors.New("disk I/O error")}

	_, err := f.service.Submit(context.Background(), 100)
	require.Error(t, err)
	assert.False(t, errors.Is(err, fault.ErrValidation))
	assert.Contains(t, err.Error(), "recipient bank account")
}
