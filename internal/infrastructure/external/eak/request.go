package eak

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Namespaces used by eAK ERP requests
const (
	NamespaceSOAP = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceERP  = "http://e-arvetekeskus.eu/erp"
)

// SinceLayout is the timestamp format of the since attribute
const SinceLayout = "2006-01-02T15:04:05"

// Envelope is an outgoing SOAP 1.1 request
type Envelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	SOAPNS  string   `xml:"xmlns:soapenv,attr"`
	ERPNS   string   `xml:"xmlns:erp,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    SOAPBody `xml:"soapenv:Body"`
}

// SOAPBody carries exactly one of the request operations
type SOAPBody struct {
	EInvoice          *EInvoiceRequest          `xml:"erp:EInvoiceRequest,omitempty"`
	VendorBills       *BuyInvoiceExportRequest  `xml:"erp:BuyInvoiceExportRequest,omitempty"`
	CompanyStatus     *CompanyStatusRequest     `xml:"erp:CompanyStatusRequest,omitempty"`
	InvoiceAttachment *InvoiceAttachmentRequest `xml:"erp:InvoiceAttachmentRequest,omitempty"`
}

// EInvoiceRequest submits one customer invoice
type EInvoiceRequest struct {
	AuthPhrase string    `xml:"erp:authPhrase"`
	Document   *EInvoice `xml:"E_Invoice"`
}

// BuyInvoiceExportRequest asks for vendor bills received since a moment
type BuyInvoiceExportRequest struct {
	Since      string `xml:"since,attr"`
	AuthPhrase string `xml:"erp:authPhrase"`
}

// CompanyStatusRequest asks whether the listed companies receive e-invoices
type CompanyStatusRequest struct {
	AuthPhrase string   `xml:"erp:authPhrase"`
	RegNumbers []string `xml:"erp:regNumber"`
}

// InvoiceAttachmentRequest asks for the attachments of imported vendor bills
type InvoiceAttachmentRequest struct {
	AuthPhrase string   `xml:"erp:authPhrase"`
	InvoiceIDs []string `xml:"erp:invoiceId"`
}

func newEnvelope(body SOAPBody) *Envelope {
	return &Envelope{
		SOAPNS: NamespaceSOAP,
		ERPNS:  NamespaceERP,
		Body:   body,
	}
}

// NewVendorBillsRequest builds the vendor bill export request
func NewVendorBillsRequest(authPhrase string, since time.Time) *Envelope {
	return newEnvelope(SOAPBody{VendorBills: &BuyInvoiceExportRequest{
		Since:      since.Format(SinceLayout),
		AuthPhrase: authPhrase,
	}})
}

// NewCompanyStatusRequest builds a partner status request
func NewCompanyStatusRequest(authPhrase string, regNumbers []string) *Envelope {
	return newEnvelope(SOAPBody{CompanyStatus: &CompanyStatusRequest{
		AuthPhrase: authPhrase,
		RegNumbers: regNumbers,
	}})
}

// NewInvoiceAttachmentRequest builds an attachment request
func NewInvoiceAttachmentRequest(authPhrase string, invoiceIDs []string) *Envelope {
	return newEnvelope(SOAPBody{InvoiceAttachment: &InvoiceAttachmentRequest{
		AuthPhrase: authPhrase,
		InvoiceIDs: invoiceIDs,
	}})
}

// NewEInvoiceRequest wraps an E_Invoice document for submission
func NewEInvoiceRequest(authPhrase string, doc *EInvoice) *Envelope {
	return newEnvelope(SOAPBody{EInvoice: &EInvoiceRequest{
		AuthPhrase: authPhrase,
		Document:   doc,
	}})
}

// Marshal serializes an envelope with the XML declaration
func Marshal(env *Envelope) ([]byte, error) {
	out, err := xml.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SOAP envelope: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
