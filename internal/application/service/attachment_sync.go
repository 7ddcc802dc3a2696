package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/google/uuid"
)

// DefaultAttachmentBatchSize is how many pending bills are requested per company and run
const DefaultAttachmentBatchSize = 10

// ErrNotEAKBill is returned when an attachment is requested for a bill not imported from eAK
var ErrNotEAKBill = errors.New("bill was not imported from eAK")

// AttachmentSyncService fetches the PDF documents of imported vendor bills
type AttachmentSyncService interface {
	SyncAll(ctx context.Context) (*RunReport, error)
	// FetchForBill fetches the attachment of a single bill on demand
	FetchForBill(ctx context.Context, billID int64) (*CompanyOutcome, error)
}

// AttachmentSyncDeps groups the collaborators of the attachment sync
type AttachmentSyncDeps struct {
	Companies   port.CompanyRepository
	Bills       port.VendorBillRepository
	Attachments port.AttachmentRepository
	Gateway     port.EAKGateway
	Secrets     port.SecretResolver
	Storage     port.FileStorage
	PDF         port.PDFInspector
	Logs        port.SyncLogSink
	TxManager   port.TransactionManager
	BatchSize   int
	Clock       Clock
	Logger      Logger
}

type attachmentSyncImpl struct {
	AttachmentSyncDeps
}

// NewAttachmentSyncService creates a new AttachmentSyncService
func NewAttachmentSyncService(deps AttachmentSyncDeps) AttachmentSyncService {
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultAttachmentBatchSize
	}
	return &attachmentSyncImpl{AttachmentSyncDeps: deps}
}

// SyncAll requests attachments for a batch of pending bills of each configured company
func (s *attachmentSyncImpl) SyncAll(ctx context.Context) (*RunReport, error) {
	companies, skipped, err := configuredCompanies(ctx, s.Companies)
	if err != nil {
		return nil, err
	}

	report := &RunReport{RunID: uuid.NewString(), Job: entity.JobAttachmentSync, Skipped: skipped}
	for _, company := range companies {
		bills, err := s.Bills.ListPendingAttachment(ctx, company.ID, s.BatchSize)
		var outcome *CompanyOutcome
		switch {
		case err != nil:
			outcome = &CompanyOutcome{
				CompanyID:   company.ID,
				CompanyName: company.Name,
				Level:       entity.SeverityError,
				Message:     company.Name + "\n" + err.Error(),
				Summary:     "Pending bills could not be loaded",
			}
		case len(bills) == 0:
			outcome = &CompanyOutcome{
				CompanyID:   company.ID,
				CompanyName: company.Name,
				Level:       entity.SeveritySuccess,
				Summary:     "No attachments to process",
				Message:     company.Name + "\nNo attachments to process",
			}
		default:
			outcome = s.process(ctx, company, bills)
		}
		report.Outcomes = append(report.Outcomes, outcome)
		writeLog(ctx, s.Logs, s.Logger, outcomeEntry(report.RunID, report.Job, company, outcome, s.Clock()))
	}
	if len(skipped) > 0 {
		writeLog(ctx, s.Logs, s.Logger, skippedEntry(report.RunID, report.Job, skipped, s.Clock()))
	}

	s.Logger.Info("Attachment sync finished", "run_id", report.RunID, "companies", len(companies), "failed", report.Failed())
	return report, nil
}

// FetchForBill requests the attachment of one bill
func (s *attachmentSyncImpl) FetchForBill(ctx context.Context, billID int64) (*CompanyOutcome, error) {
	bill, err := s.Bills.GetByID(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bill %d: %w", billID, err)
	}
	if !bill.IsVendorBillFromEAK || bill.RemoteInvoiceID == "" {
		return nil, ErrNotEAKBill
	}
	company, err := s.Companies.GetByID(ctx, bill.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load company %d: %w", bill.CompanyID, err)
	}

	var outcome *CompanyOutcome
	if !company.EAKConfigured() {
		outcome = &CompanyOutcome{
			CompanyID:   company.ID,
			CompanyName: company.Name,
			Level:       entity.SeverityError,
			Message:     "Please add eAK auth token/eAK URL",
		}
	} else {
		outcome = s.process(ctx, company, []*entity.VendorBill{bill})
	}
	writeLog(ctx, s.Logs, s.Logger, outcomeEntry(uuid.NewString(), entity.JobAttachmentSync, company, outcome, s.Clock()))
	return outcome, nil
}

// process fetches attachments for bills of one company. Response ids that are not
// among bills and bills without a returned document are reported, not failed.
func (s *attachmentSyncImpl) process(ctx context.Context, company *entity.Company, bills []*entity.VendorBill) *CompanyOutcome {
	auth, err := resolveAuth(ctx, s.Secrets, company)
	if err != nil {
		return faultOutcome(company, err)
	}

	byRemoteID := make(map[string]*entity.VendorBill, len(bills))
	ids := make([]string, 0, len(bills))
	billIDs := make([]int64, 0, len(bills))
	for _, b := range bills {
		byRemoteID[b.RemoteInvoiceID] = b
		ids = append(ids, b.RemoteInvoiceID)
		billIDs = append(billIDs, b.ID)
	}

	resp, err := s.Gateway.FetchInvoiceAttachments(ctx, company.EAKURL, auth, ids)

	// Rotate the pending queue whether or not eAK answered
	if markErr := s.Bills.MarkAttachmentAttempted(ctx, billIDs, s.Clock()); markErr != nil {
		s.Logger.Warn("Failed to record attachment attempt", "company", company.Name, "error", markErr)
	}

	if err != nil {
		s.Logger.Warn("Attachment fetch failed", "company", company.Name, "error", err)
		return faultOutcome(company, err)
	}

	outcome := &CompanyOutcome{CompanyID: company.ID, CompanyName: company.Name, Payload: resp.Raw}
	// Match returned documents to requested bills
	matched := make(map[string]bool)
	created := 0

	for _, att := range resp.Attachments {
		bill, ok := byRemoteID[att.InvoiceID]
		if !ok {
			outcome.NotFound = append(outcome.NotFound, att.InvoiceID)
			continue
		}
		if matched[att.InvoiceID] {
			continue
		}
		stored, err := s.store(ctx, bill, att)
		if err != nil {
			s.Logger.Error("Failed to store bill attachment", "bill_id", bill.ID, "error", err)
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("Bill %s: %s", att.InvoiceID, err.Error()))
			continue
		}
		matched[att.InvoiceID] = true
		if stored {
			created++
		}
	}

	var pending []string
	for _, id := range ids {
		if !matched[id] {
			pending = append(pending, id)
		}
	}

	s.Logger.Info("Bill attachments processed",
		"company", company.Name,
		"requested", len(ids),
		"created", created,
		"pending", len(pending),
		"unknown", len(outcome.NotFound))

	var lines []string
	if len(pending) > 0 {
		lines = append(lines, "List Of Invoice Not Found: "+strings.Join(pending, ", "))
	}
	if len(outcome.NotFound) > 0 {
		lines = append(lines, "Unknown Invoice In Response: "+strings.Join(outcome.NotFound, ", "))
	}

	switch {
	case len(outcome.Errors) > 0:
		outcome.Level = entity.SeverityError
		outcome.Summary = firstLine(outcome.Errors[0])
		lines = append(append([]string{}, outcome.Errors...), lines...)
	case created == 0:
		outcome.Level = entity.SeverityInfo
		outcome.Summary = "No attachment found"
	default:
		outcome.Level = entity.SeveritySuccess
		outcome.Summary = fmt.Sprintf("Attachment Created: %d", created)
	}
	outcome.Message = company.Name + "\n" + outcome.Summary
	if len(lines) > 0 {
		outcome.Message += "\n" + strings.Join(lines, "\n")
	}
	return outcome
}

// store saves one attachment and flips the bill flag in a single transaction.
// It reports false when the bill had already been processed.
func (s *attachmentSyncImpl) store(ctx context.Context, bill *entity.VendorBill, att port.InvoiceAttachment) (bool, error) {
	if bill.AttachmentProcessed {
		return false, nil
	}
	content, err := base64.StdEncoding.DecodeString(att.Content)
	if err != nil {
		return false, fmt.Errorf("attachment content is not valid base64: %w", err)
	}

	name := attachmentName(att.FileName, bill.RemoteInvoiceID)
	relPath := path.Join("vendor_bills", fmt.Sprintf("%d", bill.ID), name)

	pages, err := s.PDF.PageCount(content)
	if err != nil {
		s.Logger.Warn("Could not inspect bill attachment", "bill_id", bill.ID, "file", name, "error", err)
		pages = 0
	}

	existed := s.Storage.Exists(ctx, relPath)
	if err := s.Storage.Save(ctx, relPath, content); err != nil {
		return false, err
	}

	flipped := false
	err = s.TxManager.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.Bills.MarkAttachmentProcessed(ctx, bill.ID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		flipped = true
		return s.Attachments.Create(ctx, &entity.Attachment{
			ResModel:  entity.ResModelVendorBill,
			ResID:     bill.ID,
			Name:      name,
			FilePath:  relPath,
			MimeType:  entity.MimeTypePDF,
			FileSize:  int64(len(content)),
			PageCount: pages,
			CreatedAt: s.Clock(),
		})
	})
	if err != nil {
		if !existed {
			if delErr := s.Storage.Delete(ctx, relPath); delErr != nil {
				s.Logger.Warn("Failed to remove orphaned attachment file", "path", relPath, "error", delErr)
			}
		}
		return false, err
	}
	return flipped, nil
}

func attachmentName(fileName, remoteID string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		name = remoteID + ".pdf"
	}
	return name
}
