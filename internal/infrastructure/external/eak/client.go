package eak

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/garyjia/eak-connector/internal/domain/fault"
	"go.uber.org/zap"
)

// SOAP actions understood by the eAK ERP endpoint
const (
	ActionCustomerInvoice   = "EInvoice"
	ActionVendorBills       = "BuyInvoiceExportRequest"
	ActionCompanyStatus     = "CompanyStatusRequest"
	ActionInvoiceAttachment = "InvoiceAttachmentRequest"
)

// DefaultTimeout bounds one request-response round trip
const DefaultTimeout = 60 * time.Second

// maxResponseSize caps how much of a response body is read into memory
const maxResponseSize = 64 << 20

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues single SOAP requests against an eAK endpoint. It never retries.
type Client struct {
	httpClient HTTPClient
	logger     *zap.Logger
}

// NewClient creates a client with its own http.Client bounded by timeout
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewClientWithHTTP(&http.Client{Timeout: timeout}, logger)
}

// NewClientWithHTTP creates a client around an existing HTTP client
func NewClientWithHTTP(httpClient HTTPClient, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Send posts payload to endpoint with the given SOAP action and returns the
// raw response body. Every failure is returned as a *fault.Fault.
func (c *Client) Send(ctx context.Context, endpoint, action string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fault.Wrap(action, fault.Network, err)
	}
	req.Header.Set("SOAPAction", `"`+action+`"`)
	req.Header.Set("Content-Type", "text/xml")

	c.logger.Debug("Sending eAK request",
		zap.String("endpoint", endpoint),
		zap.String("action", action),
		zap.Int("payload_bytes", len(payload)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("eAK request failed",
			zap.String("endpoint", endpoint),
			zap.String("action", action),
			zap.Error(err))
		return nil, fault.Wrap(action, fault.Network, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fault.Wrap(action, fault.Network, err)
	}

	c.logger.Debug("Received eAK response",
		zap.String("action", action),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(body)))

	if f := classifyStatus(action, resp.StatusCode, body); f != nil {
		return nil, f
	}
	if f := interpret(action, resp.StatusCode, body); f != nil {
		c.logger.Warn("eAK returned a fault",
			zap.String("action", action),
			zap.String("kind", string(f.Kind)),
			zap.String("code", f.Code),
			zap.String("message", f.Message))
		return nil, f
	}
	return body, nil
}

// classifyStatus maps HTTP statuses that never reach envelope parsing.
// 500 passes through because eAK embeds SOAP faults in 500 bodies.
func classifyStatus(action string, status int, body []byte) *fault.Fault {
	var kind fault.Kind
	switch {
	case status == http.StatusUnauthorized:
		kind = fault.Auth
	case status == http.StatusNotFound:
		kind = fault.NotFound
	case status == http.StatusInternalServerError:
		return nil
	case status < 200 || status > 299:
		kind = fault.HTTP
	default:
		return nil
	}
	return &fault.Fault{
		Op:      action,
		Kind:    kind,
		Status:  status,
		Message: http.StatusText(status),
		Raw:     string(body),
	}
}
