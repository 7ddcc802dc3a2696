package port

import (
	"context"
	"time"

	"github.com/garyjia/eak-connector/internal/domain/entity"
)

// ParsedInvoice is the intermediate form of one remote vendor invoice.
// Every field is kept as received; missing elements are empty strings.
type ParsedInvoice struct {
	RemoteInvoiceID    string
	CompanyRegistry    string // Invoice@regNumber, the receiving company
	SellerRegistry     string // InvoiceParties/SellerParty/RegNumber
	SellerName         string
	InvoiceNumber      string
	InvoiceDate        string
	DueDate            string
	CurrencyCode       string
	InvoiceSum         string
	TotalVATSum        string
	TotalSum           string
	PayToAccount       string
	PaymentDescription string
	Lines              []ParsedLineItem
	// Raw is the Invoice element exactly as it appeared in the response
	Raw string
}

// ParsedLineItem is one ItemEntry of a remote invoice
type ParsedLineItem struct {
	Description  string
	ProductCode  string
	Unit         string
	Quantity     string
	UnitPrice    string
	Subtotal     string
	Total        string
	VATRate      string
	DiscountRate string // "0" unless a DSC addition is present
	HasDiscount  bool
}

// CompanyStatus is the eAK participation flag of one registry number
type CompanyStatus struct {
	RegNumber string
	Active    bool
}

// InvoiceAttachment is one bill document returned by the attachment request
type InvoiceAttachment struct {
	InvoiceID string
	FileName  string
	Content   string // base64
}

// VendorBillsResponse is a fetched and parsed BuyInvoiceExport response
type VendorBillsResponse struct {
	Raw      string
	Invoices []ParsedInvoice
}

// CompanyStatusResponse is a fetched and parsed CompanyStatus response
type CompanyStatusResponse struct {
	Raw      string
	Statuses []CompanyStatus
}

// InvoiceAttachmentResponse is a fetched and parsed InvoiceAttachment response
type InvoiceAttachmentResponse struct {
	Raw         string
	Attachments []InvoiceAttachment
}

// DocumentFile is a binary file embedded in an outgoing document
type DocumentFile struct {
	Name    string
	Content []byte
}

// InvoiceDocument is everything needed to render one customer invoice for eAK
type InvoiceDocument struct {
	Invoice      *entity.CustomerInvoice
	Company      *entity.Company
	Partner      *entity.Partner
	AuthPhrase   string
	PayToAccount string
	PDF          *DocumentFile
	IssuedAt     time.Time
}

// InvoiceDocumentBuilder renders a customer invoice as a ready-to-send SOAP request
type InvoiceDocumentBuilder interface {
	BuildInvoiceDocument(doc InvoiceDocument) ([]byte, error)
}

// EAKGateway issues the four eAK operations. Every returned error is a *fault.Fault.
type EAKGateway interface {
	SubmitInvoice(ctx context.Context, endpoint string, document []byte) (string, error)
	FetchVendorBills(ctx context.Context, endpoint, authPhrase string, since time.Time) (*VendorBillsResponse, error)
	FetchCompanyStatus(ctx context.Context, endpoint, authPhrase string, regNumbers []string) (*CompanyStatusResponse, error)
	FetchInvoiceAttachments(ctx context.Context, endpoint, authPhrase string, invoiceIDs []string) (*InvoiceAttachmentResponse, error)
}

// PDFInspector reads document metadata from PDF content
type PDFInspector interface {
	PageCount(content []byte) (int, error)
}

// SecretResolver turns a stored auth reference into the actual auth phrase
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}
