package eak

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/eak-connector/internal/application/port"
)

// Elements are matched by local name, so responses parse the same whatever
// namespace prefixes the endpoint chooses.

type invoiceXML struct {
	InvoiceID          string    `xml:"invoiceId,attr"`
	RegNumber          string    `xml:"regNumber,attr"`
	SellerRegNumber    string    `xml:"sellerRegnumber,attr"`
	SellerName         string    `xml:"InvoiceParties>SellerParty>Name"`
	SellerRegistry     string    `xml:"InvoiceParties>SellerParty>RegNumber"`
	InvoiceNumber      string    `xml:"InvoiceInformation>InvoiceNumber"`
	InvoiceDate        string    `xml:"InvoiceInformation>InvoiceDate"`
	DueDate            string    `xml:"InvoiceInformation>DueDate"`
	InvoiceSum         string    `xml:"InvoiceSumGroup>InvoiceSum"`
	TotalVATSum        string    `xml:"InvoiceSumGroup>TotalVATSum"`
	TotalSum           string    `xml:"InvoiceSumGroup>TotalSum"`
	Currency           string    `xml:"InvoiceSumGroup>Currency"`
	Items              []itemXML `xml:"InvoiceItem>InvoiceItemGroup>ItemEntry"`
	PayToAccount       string    `xml:"PaymentInfo>PayToAccount"`
	PaymentDescription string    `xml:"PaymentInfo>PaymentDescription"`
}

type itemXML struct {
	Description string        `xml:"Description"`
	Unit        string        `xml:"ItemDetailInfo>ItemUnit"`
	Amount      string        `xml:"ItemDetailInfo>ItemAmount"`
	Price       string        `xml:"ItemDetailInfo>ItemPrice"`
	ItemSum     string        `xml:"ItemSum"`
	ItemTotal   string        `xml:"ItemTotal"`
	VATRate     string        `xml:"VAT>VATRate"`
	ProductCode string        `xml:"ItemReserve>InformationContent"`
	Additions   []additionXML `xml:"Addition"`
}

type additionXML struct {
	AddCode string `xml:"addCode,attr"`
	AddRate string `xml:"AddRate"`
}

type companyActiveXML struct {
	RegNumber string `xml:"regNumber,attr"`
	Value     string `xml:",chardata"`
}

type invoiceAttachmentXML struct {
	InvoiceID string `xml:"invoiceId,attr"`
	FileName  string `xml:"fileName,attr"`
	Content   string `xml:"AttachmentContent"`
}

// ParseVendorBills extracts every Invoice element of a BuyInvoiceExport response.
// Missing optional fields become empty strings.
func ParseVendorBills(body []byte) ([]port.ParsedInvoice, error) {
	var invoices []port.ParsedInvoice
	err := eachElement(body, "Invoice", func(dec *xml.Decoder, start xml.StartElement, raw func() string) error {
		var v invoiceXML
		if err := dec.DecodeElement(&v, &start); err != nil {
			return err
		}
		invoices = append(invoices, toParsedInvoice(v, raw()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse vendor bills: %w", err)
	}
	return invoices, nil
}

// ParseCompanyStatus extracts every CompanyActive element; YES means active
func ParseCompanyStatus(body []byte) ([]port.CompanyStatus, error) {
	var statuses []port.CompanyStatus
	err := eachElement(body, "CompanyActive", func(dec *xml.Decoder, start xml.StartElement, _ func() string) error {
		var v companyActiveXML
		if err := dec.DecodeElement(&v, &start); err != nil {
			return err
		}
		statuses = append(statuses, port.CompanyStatus{
			RegNumber: strings.TrimSpace(v.RegNumber),
			Active:    strings.EqualFold(strings.TrimSpace(v.Value), "YES"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse company status: %w", err)
	}
	return statuses, nil
}

// ParseInvoiceAttachments extracts every InvoiceAttachment element
func ParseInvoiceAttachments(body []byte) ([]port.InvoiceAttachment, error) {
	var attachments []port.InvoiceAttachment
	err := eachElement(body, "InvoiceAttachment", func(dec *xml.Decoder, start xml.StartElement, _ func() string) error {
		var v invoiceAttachmentXML
		if err := dec.DecodeElement(&v, &start); err != nil {
			return err
		}
		attachments = append(attachments, port.InvoiceAttachment{
			InvoiceID: strings.TrimSpace(v.InvoiceID),
			FileName:  strings.TrimSpace(v.FileName),
			Content:   strings.Join(strings.Fields(v.Content), ""),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse invoice attachments: %w", err)
	}
	return attachments, nil
}

// eachElement calls fn for every element with the given local name. raw
// returns the element's source text and is only valid after fn has decoded it.
func eachElement(body []byte, local string, fn func(dec *xml.Decoder, start xml.StartElement, raw func() string) error) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != local {
			continue
		}
		raw := func() string {
			end := dec.InputOffset()
			if offset < 0 || end > int64(len(body)) || offset > end {
				return ""
			}
			return string(body[offset:end])
		}
		if err := fn(dec, start, raw); err != nil {
			return err
		}
	}
}

func toParsedInvoice(v invoiceXML, raw string) port.ParsedInvoice {
	inv := port.ParsedInvoice{
		RemoteInvoiceID:    strings.TrimSpace(v.InvoiceID),
		CompanyRegistry:    strings.TrimSpace(v.RegNumber),
		SellerRegistry:     strings.TrimSpace(v.SellerRegistry),
		SellerName:         strings.TrimSpace(v.SellerName),
		InvoiceNumber:      strings.TrimSpace(v.InvoiceNumber),
		InvoiceDate:        strings.TrimSpace(v.InvoiceDate),
		DueDate:            strings.TrimSpace(v.DueDate),
		CurrencyCode:       strings.TrimSpace(v.Currency),
		InvoiceSum:         strings.TrimSpace(v.InvoiceSum),
		TotalVATSum:        strings.TrimSpace(v.TotalVATSum),
		TotalSum:           strings.TrimSpace(v.TotalSum),
		PayToAccount:       strings.TrimSpace(v.PayToAccount),
		PaymentDescription: strings.TrimSpace(v.PaymentDescription),
		Raw:                raw,
	}
	if inv.SellerRegistry == "" {
		inv.SellerRegistry = strings.TrimSpace(v.SellerRegNumber)
	}

	inv.Lines = make([]port.ParsedLineItem, 0, len(v.Items))
	for _, item := range v.Items {
		line := port.ParsedLineItem{
			Description:  strings.TrimSpace(item.Description),
			ProductCode:  strings.TrimSpace(item.ProductCode),
			Unit:         strings.TrimSpace(item.Unit),
			Quantity:     strings.TrimSpace(item.Amount),
			UnitPrice:    strings.TrimSpace(item.Price),
			Subtotal:     strings.TrimSpace(item.ItemSum),
			Total:        strings.TrimSpace(item.ItemTotal),
			VATRate:      strings.TrimSpace(item.VATRate),
			DiscountRate: "0",
		}
		for _, add := range item.Additions {
			if strings.TrimSpace(add.AddCode) != discountCode {
				continue
			}
			line.HasDiscount = true
			if rate := strings.TrimSpace(add.AddRate); rate != "" {
				line.DiscountRate = rate
			}
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv
}
