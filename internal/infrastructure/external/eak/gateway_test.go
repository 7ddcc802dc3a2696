package eak

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garyjia/eak-connector/internal/domain/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGateway() *Gateway {
	return NewGateway(NewClient(time.Second, zap.NewNop()), zap.NewNop())
}

func TestGateway_FetchVendorBills(t *testing.T) {
	fixture := loadFixture(t, "vendor_bills.xml")
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write(fixture)
	}))
	defer srv.Close()

	resp, err := newGateway().FetchVendorBills(context.Background(), srv.URL, "token",
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	require.NoError(t, err)
	assert.Contains(t, gotBody, `since="2024-01-02T03:04:05"`)
	assert.Equal(t, string(fixture), resp.Raw)
	assert.Len(t, resp.Invoices, 2)
}

func TestGateway_FetchCompanyStatus_Fault(t *testing.T) {
	srv := newTestServer(t, http.StatusUnauthorized, "")

	resp, err := newGateway().FetchCompanyStatus(context.Background(), srv.URL, "bad", []string{"1"})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, fault.ErrAuth)
}

func TestGateway_FetchInvoiceAttachments_Malformed(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `<Envelope><InvoiceAttachment invoiceId="1"><Broken></InvoiceAttachment></Envelope>`)

	_, err := newGateway().FetchInvoiceAttachments(context.Background(), srv.URL, "token", []string{"1"})

	f, ok := fault.As(err)
	require.True(t, ok)
	assert.Equal(t, fault.RemoteProtocol, f.Kind)
}

func TestGateway_SubmitInvoice(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, okBody)

	raw, err := newGateway().SubmitInvoice(context.Background(), srv.URL, []byte("<x/>"))

	require.NoError(t, err)
	assert.Equal(t, okBody, raw)
}
