package eak

import (
	"context"
	"time"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/fault"
	"go.uber.org/zap"
)

// Gateway implements port.EAKGateway and port.InvoiceDocumentBuilder on top of Client
type Gateway struct {
	client *Client
	logger *zap.Logger
}

// NewGateway creates a new eAK gateway
func NewGateway(client *Client, logger *zap.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger,
	}
}

// BuildInvoiceDocument renders the EInvoice request for one customer invoice
func (g *Gateway) BuildInvoiceDocument(doc port.InvoiceDocument) ([]byte, error) {
	einvoice, err := BuildEInvoice(doc)
	if err != nil {
		return nil, fault.Wrap(ActionCustomerInvoice, fault.Validation, err)
	}
	payload, err := Marshal(NewEInvoiceRequest(doc.AuthPhrase, einvoice))
	if err != nil {
		return nil, fault.Wrap(ActionCustomerInvoice, fault.Validation, err)
	}
	return payload, nil
}

// SubmitInvoice posts a rendered EInvoice request and returns the raw response
func (g *Gateway) SubmitInvoice(ctx context.Context, endpoint string, document []byte) (string, error) {
	body, err := g.client.Send(ctx, endpoint, ActionCustomerInvoice, document)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchVendorBills requests the vendor bills received since the watermark
func (g *Gateway) FetchVendorBills(ctx context.Context, endpoint, authPhrase string, since time.Time) (*port.VendorBillsResponse, error) {
	body, err := g.send(ctx, endpoint, ActionVendorBills, NewVendorBillsRequest(authPhrase, since))
	if err != nil {
		return nil, err
	}
	invoices, err := ParseVendorBills(body)
	if err != nil {
		return nil, unreadable(ActionVendorBills, body, err)
	}

	g.logger.Debug("Parsed vendor bills response",
		zap.String("endpoint", endpoint),
		zap.Int("invoices", len(invoices)))

	return &port.VendorBillsResponse{Raw: string(body), Invoices: invoices}, nil
}

// FetchCompanyStatus requests the eAK participation of the given registry numbers
func (g *Gateway) FetchCompanyStatus(ctx context.Context, endpoint, authPhrase string, regNumbers []string) (*port.CompanyStatusResponse, error) {
	body, err := g.send(ctx, endpoint, ActionCompanyStatus, NewCompanyStatusRequest(authPhrase, regNumbers))
	if err != nil {
		return nil, err
	}
	statuses, err := ParseCompanyStatus(body)
	if err != nil {
		return nil, unreadable(ActionCompanyStatus, body, err)
	}
	return &port.CompanyStatusResponse{Raw: string(body), Statuses: statuses}, nil
}

// FetchInvoiceAttachments requests the documents of previously imported bills
func (g *Gateway) FetchInvoiceAttachments(ctx context.Context, endpoint, authPhrase string, invoiceIDs []string) (*port.InvoiceAttachmentResponse, error) {
	body, err := g.send(ctx, endpoint, ActionInvoiceAttachment, NewInvoiceAttachmentRequest(authPhrase, invoiceIDs))
	if err != nil {
		return nil, err
	}
	attachments, err := ParseInvoiceAttachments(body)
	if err != nil {
		return nil, unreadable(ActionInvoiceAttachment, body, err)
	}
	return &port.InvoiceAttachmentResponse{Raw: string(body), Attachments: attachments}, nil
}

func (g *Gateway) send(ctx context.Context, endpoint, action string, env *Envelope) ([]byte, error) {
	payload, err := Marshal(env)
	if err != nil {
		return nil, fault.Wrap(action, fault.Validation, err)
	}
	return g.client.Send(ctx, endpoint, action, payload)
}

func unreadable(action string, body []byte, err error) *fault.Fault {
	f := fault.Wrap(action, fault.RemoteProtocol, err)
	f.Raw = string(body)
	return f
}
