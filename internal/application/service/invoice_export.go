package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/domain/fault"
	"github.com/google/uuid"
)

// ErrNotEAKInvoice is returned for invoices that are not sent through eAK
var ErrNotEAKInvoice = errors.New("invoice is not addressed to an eAK recipient")

// ExportResult is the outcome of submitting one customer invoice
type ExportResult struct {
	InvoiceID    int64        `json:"invoice_id"`
	State        string       `json:"state"`
	DocumentPath string       `json:"document_path,omitempty"`
	Notification Notification `json:"notification"`
	Response     string       `json:"-"`
}

// InvoiceExportService submits customer invoices to eAK
type InvoiceExportService interface {
	Submit(ctx context.Context, invoiceID int64) (*ExportResult, error)
}

// InvoiceExportDeps groups the collaborators of the invoice export
type InvoiceExportDeps struct {
	Invoices    port.CustomerInvoiceRepository
	Companies   port.CompanyRepository
	Partners    port.PartnerRepository
	Banks       port.BankAccountRepository
	Attachments port.AttachmentRepository
	Builder     port.InvoiceDocumentBuilder
	Gateway     port.EAKGateway
	Secrets     port.SecretResolver
	Storage     port.FileStorage
	Logs        port.SyncLogSink
	Clock       Clock
	Logger      Logger
}

type invoiceExportImpl struct {
	InvoiceExportDeps
}

// NewInvoiceExportService creates a new InvoiceExportService
func NewInvoiceExportService(deps InvoiceExportDeps) InvoiceExportService {
	return &invoiceExportImpl{InvoiceExportDeps: deps}
}

const exportTitle = "Customer Invoice"

// Submit validates, renders and posts one invoice. Validation problems are
// returned as a single validation fault listing every missing field. Remote
// failures are recorded on the invoice and returned in the result.
func (s *invoiceExportImpl) Submit(ctx context.Context, invoiceID int64) (*ExportResult, error) {
	// Load invoice, company and customer
	inv, err := s.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %d: %w", invoiceID, err)
	}
	company, err := s.Companies.GetByID(ctx, inv.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load company %d: %w", inv.CompanyID, err)
	}
	partner, err := s.Partners.GetByID(ctx, inv.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load partner %d: %w", inv.PartnerID, err)
	}

	if inv.MoveType != entity.MoveTypeOutInvoice || !partner.ReceivesEAK() {
		return nil, ErrNotEAKInvoice
	}

	payTo, err := s.validate(ctx, inv, company, partner)
	if err != nil {
		return nil, err
	}

	auth, err := resolveAuth(ctx, s.Secrets, company)
	if err != nil {
		return nil, err
	}

	// Attach the rendered PDF when there is one
	var pdf *port.DocumentFile
	if inv.PDFPath != "" {
		content, err := s.Storage.Read(ctx, inv.PDFPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read invoice PDF: %w", err)
		}
		pdf = &port.DocumentFile{Name: path.Base(inv.PDFPath), Content: content}
	}

	now := s.Clock()
	document, err := s.Builder.BuildInvoiceDocument(port.InvoiceDocument{
		Invoice:      inv,
		Company:      company,
		Partner:      partner,
		AuthPhrase:   auth,
		PayToAccount: payTo,
		PDF:          pdf,
		IssuedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	// Keep a copy of what is sent
	docPath, err := s.storeDocument(ctx, inv, document)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{InvoiceID: inv.ID, DocumentPath: docPath}
	entry := &entity.SyncLogEntry{
		RunID:       uuid.NewString(),
		Name:        entity.JobInvoiceDispatch,
		CompanyID:   &company.ID,
		CompanyName: company.Name,
		Path:        company.EAKURL,
		Func:        "POST",
		CreatedAt:   now,
	}

	// Send
	response, sendErr := s.Gateway.SubmitInvoice(ctx, company.EAKURL, document)
	if sendErr != nil {
		result.State = entity.EAKStateError
		result.Response = fault.Message(sendErr)
		if f, ok := fault.As(sendErr); ok && f.Raw != "" {
			result.Response = f.Raw
		}
		result.Notification = Notification{Title: exportTitle, Type: NotifyDanger, Message: firstLine(fault.Message(sendErr))}
		entry.Level = entity.SeverityError
		entry.Message = fmt.Sprintf("%s\n%s", inv.Name, fault.Message(sendErr))
		entry.Payload = result.Response
		s.Logger.Warn("Invoice submission failed", "invoice", inv.Name, "error", sendErr)
	} else {
		result.State = entity.EAKStateSent
		result.Response = response
		result.Notification = Notification{Title: exportTitle, Type: NotifySuccess, Message: fmt.Sprintf("Invoice %s sent to eAK", inv.Name)}
		entry.Level = entity.SeveritySuccess
		entry.Message = result.Notification.Message
		entry.Payload = response
		s.Logger.Info("Invoice submitted", "invoice", inv.Name, "company", company.Name)
	}

	if err := s.Invoices.UpdateEAKResult(ctx, inv.ID, result.State, result.Response); err != nil {
		return nil, fmt.Errorf("failed to record eAK result: %w", err)
	}
	writeLog(ctx, s.Logs, s.Logger, entry)
	return result, nil
}

// validate checks everything the recipient requires and returns the account to advertise
func (s *invoiceExportImpl) validate(ctx context.Context, inv *entity.CustomerInvoice, company *entity.Company, partner *entity.Partner) (string, error) {
	var problems []string
	if !company.EAKConfigured() {
		problems = append(problems, "Please add eAK auth token/eAK URL")
	}
	if strings.TrimSpace(partner.Name) == "" {
		problems = append(problems, "Customer name is missing")
	}
	if strings.TrimSpace(partner.CompanyRegistry) == "" {
		problems = append(problems, "Customer registry code is missing")
	}
	if strings.TrimSpace(company.CompanyRegistry) == "" {
		problems = append(problems, "Company registry code is missing")
	}
	if partner.ContactAddress() == "" {
		problems = append(problems, "Customer address is missing")
	}

	// The invoice names the bank the customer pays to
	recipient, err := s.accountNumber(ctx, inv.PartnerBankID)
	if err != nil {
		return "", fmt.Errorf("failed to load recipient bank account: %w", err)
	}
	if recipient == "" {
		problems = append(problems, "Recipient bank account is missing")
	}

	// PayToAccount is always the company eAK bank
	payTo, err := s.accountNumber(ctx, company.EAKBankID)
	if err != nil {
		return "", fmt.Errorf("failed to load eAK bank account: %w", err)
	}
	if payTo == "" {
		problems = append(problems, "Company eAK bank account is missing")
	}

	if len(problems) > 0 {
		return "", &fault.Fault{
			Op:      entity.JobInvoiceDispatch,
			Kind:    fault.Validation,
			Message: fmt.Sprintf("Invoice %s cannot be sent:\n%s", inv.Name, strings.Join(problems, "\n")),
		}
	}
	return payTo, nil
}

// accountNumber returns the whitespace-stripped number of a bank account, or ""
// when no account is set or the referenced one no longer exists
func (s *invoiceExportImpl) accountNumber(ctx context.Context, id *int64) (string, error) {
	if id == nil {
		return "", nil
	}
	bank, err := s.Banks.GetByID(ctx, *id)
	if errors.Is(err, port.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return entity.NormalizeAccountNumber(bank.AccNumber), nil
}

func (s *invoiceExportImpl) storeDocument(ctx context.Context, inv *entity.CustomerInvoice, document []byte) (string, error) {
	name := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(inv.Name) + "_eak.xml"
	relPath := path.Join("customer_invoices", fmt.Sprintf("%d", inv.ID), name)
	if err := s.Storage.Save(ctx, relPath, document); err != nil {
		return "", fmt.Errorf("failed to store eAK document: %w", err)
	}
	err := s.Attachments.Create(ctx, &entity.Attachment{
		ResModel:  entity.ResModelCustomerInvoice,
		ResID:     inv.ID,
		Name:      name,
		FilePath:  relPath,
		MimeType:  entity.MimeTypeXML,
		FileSize:  int64(len(document)),
		CreatedAt: s.Clock(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to record eAK document: %w", err)
	}
	return relPath, nil
}
