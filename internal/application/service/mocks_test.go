package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
)

var errNotFound = port.ErrNotFound

type mockCompanyRepo struct {
	mu          sync.Mutex
	companies   []*entity.Company
	advanceErr  error
	advanceCall []time.Time
}

func (m *mockCompanyRepo) GetByID(ctx context.Context, id int64) (*entity.Company, error) {
	for _, c := range m.companies {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errNotFound
}

func (m *mockCompanyRepo) List(ctx context.Context) ([]*entity.Company, error) {
	return m.companies, nil
}

func (m *mockCompanyRepo) AdvanceWatermark(ctx context.Context, id int64, to time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceCall = append(m.advanceCall, to)
	if m.advanceErr != nil {
		return false, m.advanceErr
	}
	c, err := m.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !to.After(c.EAKBillExportDate) {
		return false, nil
	}
	c.EAKBillExportDate = to
	return true, nil
}

type mockBillRepo struct {
	bills      []*entity.VendorBill
	nextID     int64
	createErr  error
	attempted  [][]int64
	attemptErr error
}

func (m *mockBillRepo) CreateMany(ctx context.Context, bills []*entity.VendorBill) ([]int64, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	ids := make([]int64, 0, len(bills))
	for _, b := range bills {
		m.nextID++
		b.ID = m.nextID
		m.bills = append(m.bills, b)
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (m *mockBillRepo) GetByID(ctx context.Context, id int64) (*entity.VendorBill, error) {
	for _, b := range m.bills {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, errNotFound
}

func (m *mockBillRepo) ExistingRemoteIDs(ctx context.Context, companyID int64, remoteIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, b := range m.bills {
		for _, id := range remoteIDs {
			if b.CompanyID == companyID && b.RemoteInvoiceID == id {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (m *mockBillRepo) ListPendingAttachment(ctx context.Context, companyID int64, limit int) ([]*entity.VendorBill, error) {
	var out []*entity.VendorBill
	for _, b := range m.bills {
		if b.CompanyID == companyID && b.IsVendorBillFromEAK && !b.AttachmentProcessed && len(out) < limit {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBillRepo) MarkAttachmentAttempted(ctx context.Context, ids []int64, at time.Time) error {
	if m.attemptErr != nil {
		return m.attemptErr
	}
	m.attempted = append(m.attempted, ids)
	for _, id := range ids {
		if b, err := m.GetByID(ctx, id); err == nil {
			stamp := at
			b.AttachmentAttemptedAt = &stamp
		}
	}
	return nil
}

func (m *mockBillRepo) MarkAttachmentProcessed(ctx context.Context, id int64) (bool, error) {
	b, err := m.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if b.AttachmentProcessed {
		return false, nil
	}
	b.AttachmentProcessed = true
	return true, nil
}

type mockPartnerRepo struct {
	partners []*entity.Partner
	setCalls int
}

func (m *mockPartnerRepo) GetByID(ctx context.Context, id int64) (*entity.Partner, error) {
	for _, p := range m.partners {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errNotFound
}

func (m *mockPartnerRepo) ListRegistryCandidates(ctx context.Context, companyID int64) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range m.partners {
		if p.IsCompany && p.CompanyRegistry != "" && !seen[p.CompanyRegistry] {
			seen[p.CompanyRegistry] = true
			out = append(out, p.CompanyRegistry)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockPartnerRepo) SetEAKStatus(ctx context.Context, companyID int64, regNumber string, active bool) (int64, error) {
	m.setCalls++
	var n int64
	for _, p := range m.partners {
		if p.CompanyRegistry == regNumber {
			p.IsEDIEAK = active
			n++
		}
	}
	return n, nil
}

type mockBankRepo struct {
	accounts map[int64]*entity.BankAccount
}

func (m *mockBankRepo) GetByID(ctx context.Context, id int64) (*entity.BankAccount, error) {
	if a, ok := m.accounts[id]; ok {
		return a, nil
	}
	return nil, errNotFound
}

func int64Ptr(v int64) *int64 { return &v }

type failingBankRepo struct {
	err error
}

func (m *failingBankRepo) GetByID(ctx context.Context, id int64) (*entity.BankAccount, error) {
	return nil, m.err
}

type mockInvoiceRepo struct {
	invoices map[int64]*entity.CustomerInvoice
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id int64) (*entity.CustomerInvoice, error) {
	if inv, ok := m.invoices[id]; ok {
		return inv, nil
	}
	return nil, errNotFound
}

func (m *mockInvoiceRepo) UpdateEAKResult(ctx context.Context, id int64, state, response string) error {
	inv, ok := m.invoices[id]
	if !ok {
		return errNotFound
	}
	inv.EAKState = state
	inv.EAKResponse = response
	return nil
}

type mockAttachmentRepo struct {
	attachments []*entity.Attachment
}

func (m *mockAttachmentRepo) Create(ctx context.Context, att *entity.Attachment) error {
	att.ID = int64(len(m.attachments) + 1)
	m.attachments = append(m.attachments, att)
	return nil
}

func (m *mockAttachmentRepo) GetByResource(ctx context.Context, resModel string, resID int64) ([]*entity.Attachment, error) {
	var out []*entity.Attachment
	for _, a := range m.attachments {
		if a.ResModel == resModel && a.ResID == resID {
			out = append(out, a)
		}
	}
	return out, nil
}

type mockGateway struct {
	submitFunc      func(ctx context.Context, endpoint string, document []byte) (string, error)
	vendorBillsFunc func(ctx context.Context, endpoint, auth string, since time.Time) (*port.VendorBillsResponse, error)
	statusFunc      func(ctx context.Context, endpoint, auth string, regNumbers []string) (*port.CompanyStatusResponse, error)
	attachmentsFunc func(ctx context.Context, endpoint, auth string, ids []string) (*port.InvoiceAttachmentResponse, error)

	statusCalls [][]string
}

func (m *mockGateway) SubmitInvoice(ctx context.Context, endpoint string, document []byte) (string, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, endpoint, document)
	}
	return "<ok/>", nil
}

func (m *mockGateway) FetchVendorBills(ctx context.Context, endpoint, auth string, since time.Time) (*port.VendorBillsResponse, error) {
	if m.vendorBillsFunc != nil {
		return m.vendorBillsFunc(ctx, endpoint, auth, since)
	}
	return &port.VendorBillsResponse{}, nil
}

func (m *mockGateway) FetchCompanyStatus(ctx context.Context, endpoint, auth string, regNumbers []string) (*port.CompanyStatusResponse, error) {
	m.statusCalls = append(m.statusCalls, regNumbers)
	if m.statusFunc != nil {
		return m.statusFunc(ctx, endpoint, auth, regNumbers)
	}
	return &port.CompanyStatusResponse{}, nil
}

func (m *mockGateway) FetchInvoiceAttachments(ctx context.Context, endpoint, auth string, ids []string) (*port.InvoiceAttachmentResponse, error) {
	if m.attachmentsFunc != nil {
		return m.attachmentsFunc(ctx, endpoint, auth, ids)
	}
	return &port.InvoiceAttachmentResponse{}, nil
}

type mockBuilder struct {
	lastDoc port.InvoiceDocument
}

func (m *mockBuilder) BuildInvoiceDocument(doc port.InvoiceDocument) ([]byte, error) {
	m.lastDoc = doc
	return []byte(fmt.Sprintf("<E_Invoice id=%q/>", doc.Invoice.Name)), nil
}

type mockSecrets struct {
	err error
}

func (m *mockSecrets) Resolve(ctx context.Context, ref string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return ref, nil
}

type mockLogSink struct {
	entries []*entity.SyncLogEntry
}

func (m *mockLogSink) Append(ctx context.Context, entries ...*entity.SyncLogEntry) error {
	m.entries = append(m.entries, entries...)
	return nil
}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockStorage struct {
	files map[string][]byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: make(map[string][]byte)}
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	m.files[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	if c, ok := m.files[path]; ok {
		return c, nil
	}
	return nil, errNotFound
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	_, ok := m.files[path]
	return ok
}

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	delete(m.files, path)
	return nil
}

func (m *mockStorage) GetFullPath(relativePath string) string {
	return "/data/" + relativePath
}

type mockPDF struct {
	pages int
	err   error
}

func (m *mockPDF) PageCount(content []byte) (int, error) {
	return m.pages, m.err
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// mapStore is an EntityStore over fixed keys; company 0 entries are shared
type mapStore map[entity.Category]map[string]int64

func (s mapStore) FindOne(ctx context.Context, c entity.Category, key string, companyID int64) (int64, bool, error) {
	id, ok := s[c][key]
	return id, ok, nil
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
