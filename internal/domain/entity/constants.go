package entity

// Category identifies a kind of ledger record that can be looked up by a business key
type Category string

const (
	CategoryCompany     Category = "company"
	CategoryCurrency    Category = "currency"
	CategoryPartner     Category = "partner"
	CategoryTax         Category = "tax"
	CategoryProduct     Category = "product"
	CategoryBankAccount Category = "bank_account"
)

// CompanyScoped reports whether lookups of this category are restricted to one company.
// Company and currency records are global.
func (c Category) CompanyScoped() bool {
	switch c {
	case CategoryPartner, CategoryTax, CategoryProduct, CategoryBankAccount:
		return true
	}
	return false
}

// Move type constants
const (
	MoveTypeInInvoice  = "in_invoice"  // vendor bill
	MoveTypeOutInvoice = "out_invoice" // customer invoice
)

// Bill state constants
const (
	BillStateDraft  = "draft"
	BillStatePosted = "posted"
)

// Tax usage constants
const (
	TaxUsePurchase = "purchase"
	TaxUseSale     = "sale"
)

// EAK export state constants for customer invoices
const (
	EAKStateToSend = "to_send"
	EAKStateSent   = "sent"
	EAKStateError  = "error"
)

// Line display types for customer invoice lines
const (
	DisplayTypeProduct = "product"
	DisplayTypeSection = "line_section"
	DisplayTypeNote    = "line_note"
)

// Attachment model constants
const (
	ResModelVendorBill      = "vendor_bill"
	ResModelCustomerInvoice = "customer_invoice"

	MimeTypePDF = "application/pdf"
	MimeTypeXML = "application/xml"
)

// Sync job names written to the audit log
const (
	JobVendorBillSync  = "eAK: Sync Vendor Bills"
	JobPartnerSync     = "eAK: Sync Clients Status"
	JobAttachmentSync  = "eAK: Sync Vendor Bills Attachments"
	JobInvoiceDispatch = "eAK: Send Customer Invoice"
)
