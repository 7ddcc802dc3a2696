package eak

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/domain/pricing"
)

const (
	documentVersion  = "1.2"
	documentDate     = "2006-01-02"
	fileIDLayout     = "20060102150405"
	countryExtension = "EE"
	discountCode     = "DSC"
)

// EInvoice is the Estonian e-invoice document, version 1.2
type EInvoice struct {
	Header  DocumentHeader `xml:"Header"`
	Invoice Invoice        `xml:"Invoice"`
	Footer  Footer         `xml:"Footer"`
}

type DocumentHeader struct {
	Date    string `xml:"Date"`
	FileID  string `xml:"FileId"`
	Version string `xml:"Version"`
}

type Invoice struct {
	InvoiceID       string             `xml:"invoiceId,attr"`
	RegNumber       string             `xml:"regNumber,attr"`
	SellerRegNumber string             `xml:"sellerRegnumber,attr"`
	Parties         InvoiceParties     `xml:"InvoiceParties"`
	Information     InvoiceInformation `xml:"InvoiceInformation"`
	SumGroup        InvoiceSumGroup    `xml:"InvoiceSumGroup"`
	Items           InvoiceItem        `xml:"InvoiceItem"`
	Attachment      *AttachmentFile    `xml:"AttachmentFile,omitempty"`
	Payment         PaymentInfo        `xml:"PaymentInfo"`
}

type InvoiceParties struct {
	Seller Party `xml:"SellerParty"`
	Buyer  Party `xml:"BuyerParty"`
}

type Party struct {
	Name      string     `xml:"Name"`
	RegNumber string     `xml:"RegNumber"`
	Extension *Extension `xml:"Extension,omitempty"`
}

type Extension struct {
	ExtensionID        string `xml:"extensionId,attr"`
	InformationContent string `xml:"InformationContent"`
}

type InvoiceInformation struct {
	Type          InvoiceType `xml:"Type"`
	DocumentName  string      `xml:"DocumentName"`
	InvoiceNumber string      `xml:"InvoiceNumber"`
	InvoiceDate   string      `xml:"InvoiceDate"`
	DueDate       string      `xml:"DueDate,omitempty"`
}

type InvoiceType struct {
	Type string `xml:"type,attr"`
}

type InvoiceSumGroup struct {
	InvoiceSum  string `xml:"InvoiceSum"`
	Rounding    string `xml:"Rounding,omitempty"`
	TotalVATSum string `xml:"TotalVATSum"`
	TotalSum    string `xml:"TotalSum"`
	TotalToPay  string `xml:"TotalToPay"`
	Currency    string `xml:"Currency"`
}

type InvoiceItem struct {
	Group InvoiceItemGroup `xml:"InvoiceItemGroup"`
}

type InvoiceItemGroup struct {
	Entries []ItemEntry `xml:"ItemEntry"`
}

type ItemEntry struct {
	Description string         `xml:"Description"`
	Detail      ItemDetailInfo `xml:"ItemDetailInfo"`
	ItemSum     string         `xml:"ItemSum"`
	Addition    *Addition      `xml:"Addition,omitempty"`
	VAT         *VAT           `xml:"VAT,omitempty"`
	ItemTotal   string         `xml:"ItemTotal,omitempty"`
}

type ItemDetailInfo struct {
	ItemUnit   string `xml:"ItemUnit,omitempty"`
	ItemAmount string `xml:"ItemAmount"`
	ItemPrice  string `xml:"ItemPrice"`
}

// Addition is a line-level surcharge or discount; discounts use addCode DSC
type Addition struct {
	AddCode    string `xml:"addCode,attr"`
	AddContent string `xml:"AddContent"`
	AddRate    string `xml:"AddRate"`
	AddSum     string `xml:"AddSum"`
}

type VAT struct {
	VATRate string `xml:"VATRate"`
	VATSum  string `xml:"VATSum"`
}

type AttachmentFile struct {
	FileName   string `xml:"FileName"`
	FileBase64 string `xml:"FileBase64"`
}

type PaymentInfo struct {
	Currency           string `xml:"Currency"`
	PaymentDescription string `xml:"PaymentDescription"`
	Payable            string `xml:"Payable"`
	PayDueDate         string `xml:"PayDueDate,omitempty"`
	PaymentTotalSum    string `xml:"PaymentTotalSum"`
	PayerName          string `xml:"PayerName"`
	PaymentID          string `xml:"PaymentId"`
	PayToAccount       string `xml:"PayToAccount"`
	PayToName          string `xml:"PayToName"`
}

type Footer struct {
	TotalNumberInvoices string `xml:"TotalNumberInvoices"`
	TotalAmount         string `xml:"TotalAmount"`
}

// BuildEInvoice maps a customer invoice onto the e-invoice document tree.
// Only product lines are exported.
func BuildEInvoice(doc port.InvoiceDocument) (*EInvoice, error) {
	inv, company, partner := doc.Invoice, doc.Company, doc.Partner
	if inv == nil || company == nil || partner == nil {
		return nil, fmt.Errorf("invoice, company and partner are required")
	}

	invoiceDate := inv.CreatedAt
	if inv.InvoiceDate != nil {
		invoiceDate = *inv.InvoiceDate
	}
	var dueDate string
	if inv.InvoiceDateDue != nil {
		dueDate = inv.InvoiceDateDue.Format(documentDate)
	}
	currency := inv.CurrencyCode
	if currency == "" {
		currency = "EUR"
	}

	entries := make([]ItemEntry, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		if !line.IsProductLine() {
			continue
		}
		entry, err := buildItemEntry(line)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", line.Name, err)
		}
		entries = append(entries, entry)
	}

	out := &EInvoice{
		Header: DocumentHeader{
			Date:    doc.IssuedAt.Format(documentDate),
			FileID:  doc.IssuedAt.Format(fileIDLayout) + "/" + strconv.FormatInt(inv.ID, 10),
			Version: documentVersion,
		},
		Invoice: Invoice{
			InvoiceID:       strconv.FormatInt(inv.ID, 10),
			RegNumber:       partner.CompanyRegistry,
			SellerRegNumber: company.CompanyRegistry,
			Parties: InvoiceParties{
				Seller: Party{
					Name:      company.Name,
					RegNumber: company.CompanyRegistry,
					Extension: &Extension{ExtensionID: countryExtension, InformationContent: company.CompanyRegistry},
				},
				Buyer: Party{
					Name:      partner.Name,
					RegNumber: partner.CompanyRegistry,
					Extension: &Extension{ExtensionID: countryExtension, InformationContent: partner.CompanyRegistry},
				},
			},
			Information: InvoiceInformation{
				Type:          InvoiceType{Type: "DEB"},
				DocumentName:  "ARVE",
				InvoiceNumber: inv.Name,
				InvoiceDate:   invoiceDate.Format(documentDate),
				DueDate:       dueDate,
			},
			SumGroup: InvoiceSumGroup{
				InvoiceSum:  pricing.Money(inv.AmountUntaxed),
				Rounding:    pricing.Money(inv.AmountRounding),
				TotalVATSum: pricing.Money(inv.AmountTax),
				TotalSum:    pricing.Money(inv.AmountTotal),
				TotalToPay:  pricing.Money(inv.AmountTotal),
				Currency:    currency,
			},
			Items: InvoiceItem{Group: InvoiceItemGroup{Entries: entries}},
			Payment: PaymentInfo{
				Currency:           currency,
				PaymentDescription: inv.Name,
				Payable:            "YES",
				PayDueDate:         dueDate,
				PaymentTotalSum:    pricing.Money(inv.AmountTotal),
				PayerName:          partner.Name,
				PaymentID:          inv.Name,
				PayToAccount:       entity.NormalizeAccountNumber(doc.PayToAccount),
				PayToName:          company.Name,
			},
		},
		Footer: Footer{
			TotalNumberInvoices: "1",
			TotalAmount:         pricing.Money(inv.AmountUntaxed),
		},
	}

	if doc.PDF != nil && len(doc.PDF.Content) > 0 {
		out.Invoice.Attachment = &AttachmentFile{
			FileName:   doc.PDF.Name,
			FileBase64: base64.StdEncoding.EncodeToString(doc.PDF.Content),
		}
	}
	return out, nil
}

func buildItemEntry(line *entity.CustomerInvoiceLine) (ItemEntry, error) {
	entry := ItemEntry{
		Description: line.Name,
		Detail: ItemDetailInfo{
			ItemUnit:   line.UoM,
			ItemAmount: line.Quantity.String(),
			ItemPrice:  pricing.Money(line.PriceUnit),
		},
		ItemSum:   pricing.Money(line.Quantity.Mul(line.PriceUnit)),
		ItemTotal: pricing.Money(line.PriceSubtotal.Add(line.TaxAmount)),
	}

	if !line.Discount.IsZero() {
		amount, err := pricing.DiscountAmount(line.PriceSubtotal, line.Discount)
		if err != nil {
			return ItemEntry{}, err
		}
		entry.Addition = &Addition{
			AddCode:    discountCode,
			AddContent: line.Discount.String() + " %",
			AddRate:    line.Discount.Truncate(0).String(),
			AddSum:     pricing.Money(amount),
		}
	}

	if !line.TaxRate.IsZero() {
		entry.VAT = &VAT{
			VATRate: line.TaxRate.Truncate(0).String(),
			VATSum:  pricing.Money(line.TaxAmount.Abs()),
		}
	}
	return entry, nil
}
