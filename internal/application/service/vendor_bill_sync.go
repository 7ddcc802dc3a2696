package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/application/reconcile"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/google/uuid"
)

// VendorBillSyncService imports vendor bills from eAK
type VendorBillSyncService interface {
	// SyncAll runs one import cycle over every configured company
	SyncAll(ctx context.Context) (*RunReport, error)
	// SyncCompany runs one import cycle for a single company
	SyncCompany(ctx context.Context, companyID int64) (*CompanyOutcome, error)
}

// VendorBillSyncDeps groups the collaborators of the vendor bill import
type VendorBillSyncDeps struct {
	Companies  port.CompanyRepository
	Bills      port.VendorBillRepository
	Gateway    port.EAKGateway
	Reconciler *reconcile.Reconciler
	Secrets    port.SecretResolver
	Logs       port.SyncLogSink
	TxManager  port.TransactionManager
	Clock      Clock
	Logger     Logger
}

type vendorBillSyncImpl struct {
	VendorBillSyncDeps
}

// NewVendorBillSyncService creates a new VendorBillSyncService
func NewVendorBillSyncService(deps VendorBillSyncDeps) VendorBillSyncService {
	return &vendorBillSyncImpl{VendorBillSyncDeps: deps}
}

// SyncAll imports for each configured company in turn. A failing company
// never stops the loop; its failure is recorded in its audit entry.
func (s *vendorBillSyncImpl) SyncAll(ctx context.Context) (*RunReport, error) {
	companies, skipped, err := configuredCompanies(ctx, s.Companies)
	if err != nil {
		return nil, err
	}

	report := &RunReport{RunID: uuid.NewString(), Job: entity.JobVendorBillSync, Skipped: skipped}
	s.Logger.Info("Starting vendor bill sync", "run_id", report.RunID, "companies", len(companies), "skipped", len(skipped))

	for _, company := range companies {
		outcome := s.syncCompany(ctx, company)
		report.Outcomes = append(report.Outcomes, outcome)
		writeLog(ctx, s.Logs, s.Logger, outcomeEntry(report.RunID, report.Job, company, outcome, s.Clock()))
	}
	if len(skipped) > 0 {
		writeLog(ctx, s.Logs, s.Logger, skippedEntry(report.RunID, report.Job, skipped, s.Clock()))
	}

	s.Logger.Info("Vendor bill sync finished", "run_id", report.RunID, "failed", report.Failed())
	return report, nil
}

// SyncCompany imports for one company and writes its audit entry
func (s *vendorBillSyncImpl) SyncCompany(ctx context.Context, companyID int64) (*CompanyOutcome, error) {
	company, err := s.Companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load company %d: %w", companyID, err)
	}

	runID := uuid.NewString()
	var outcome *CompanyOutcome
	if !company.EAKConfigured() {
		outcome = &CompanyOutcome{
			CompanyID:   company.ID,
			CompanyName: company.Name,
			Level:       entity.SeverityError,
			Message:     "Please add eAK auth token/eAK URL",
		}
	} else {
		outcome = s.syncCompany(ctx, company)
	}
	writeLog(ctx, s.Logs, s.Logger, outcomeEntry(runID, entity.JobVendorBillSync, company, outcome, s.Clock()))
	return outcome, nil
}

func (s *vendorBillSyncImpl) syncCompany(ctx context.Context, company *entity.Company) *CompanyOutcome {
	// Resolve the auth phrase
	auth, err := resolveAuth(ctx, s.Secrets, company)
	if err != nil {
		return faultOutcome(company, err)
	}

	// Captured before the request so bills arriving during the run fall inside the next window
	requestedAt := s.Clock()

	resp, err := s.Gateway.FetchVendorBills(ctx, company.EAKURL, auth, company.EAKBillExportDate)
	if err != nil {
		s.Logger.Warn("Vendor bill fetch failed", "company", company.Name, "error", err)
		return faultOutcome(company, err)
	}

	outcome := &CompanyOutcome{
		CompanyID:   company.ID,
		CompanyName: company.Name,
		Payload:     resp.Raw,
	}

	// Match remote keys to ledger records
	result, err := s.Reconciler.Reconcile(ctx, resp.Invoices, company.ID)
	if err != nil {
		s.Logger.Error("Vendor bill reconciliation failed", "company", company.Name, "error", err)
		outcome.Level = entity.SeverityError
		outcome.Message = company.Name + "\n" + err.Error()
		outcome.Summary = "Vendor bills could not be matched: " + err.Error()
		return outcome
	}
	outcome.Errors = result.Errors
	outcome.Warnings = result.Warnings

	// Drop bills imported by an earlier run
	fresh, duplicates, err := s.withoutDuplicates(ctx, company.ID, result.Bills)
	if err != nil {
		s.Logger.Error("Duplicate check failed", "company", company.Name, "error", err)
		outcome.Level = entity.SeverityError
		outcome.Message = company.Name + "\n" + err.Error()
		outcome.Summary = "Vendor bills could not be checked for duplicates"
		return outcome
	}
	outcome.Duplicates = duplicates

	// Persist, then advance the watermark in the same transaction
	err = s.TxManager.WithTransaction(ctx, func(ctx context.Context) error {
		if len(fresh) > 0 {
			ids, err := s.Bills.CreateMany(ctx, fresh)
			if err != nil {
				return fmt.Errorf("failed to create vendor bills: %w", err)
			}
			outcome.Created = ids
		}
		// Rejected invoices keep the window open for the next run
		if result.HasErrors() {
			return nil
		}
		advanced, err := s.Companies.AdvanceWatermark(ctx, company.ID, requestedAt)
		if err != nil {
			return fmt.Errorf("failed to advance watermark: %w", err)
		}
		outcome.WatermarkAdvanced = advanced
		return nil
	})
	if err != nil {
		s.Logger.Error("Failed to persist vendor bills", "company", company.Name, "error", err)
		outcome.Created = nil
		outcome.WatermarkAdvanced = false
		outcome.Level = entity.SeverityError
		outcome.Message = company.Name + "\n" + err.Error()
		outcome.Summary = "Vendor bills could not be saved"
		return outcome
	}

	s.Logger.Info("Vendor bills imported",
		"company", company.Name,
		"created", len(outcome.Created),
		"duplicates", len(duplicates),
		"rejected", len(result.Rejected),
		"watermark_advanced", outcome.WatermarkAdvanced)

	if result.HasErrors() {
		outcome.Level = entity.SeverityError
		outcome.Message = fmt.Sprintf("%s\n%s", company.Name, strings.Join(result.Errors, "\n"))
		outcome.Summary = fmt.Sprintf("%d vendor bill(s) imported, %d rejected", len(outcome.Created), len(result.Rejected))
		return outcome
	}

	outcome.Level = entity.SeveritySuccess
	outcome.Summary = fmt.Sprintf("Successfully processed: %d vendor bill(s) imported", len(outcome.Created))
	outcome.Message = fmt.Sprintf("%s Successfully Run Schedule Action\n%s", company.Name, outcome.Summary)
	if len(duplicates) > 0 {
		outcome.Message += fmt.Sprintf("\nAlready imported: %s", strings.Join(duplicates, ", "))
	}
	if len(result.Warnings) > 0 {
		outcome.Message += "\n" + strings.Join(result.Warnings, "\n")
	}
	return outcome
}

// withoutDuplicates drops bills whose remote id is already imported or repeats within the batch
func (s *vendorBillSyncImpl) withoutDuplicates(ctx context.Context, companyID int64, bills []*entity.VendorBill) ([]*entity.VendorBill, []string, error) {
	if len(bills) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, 0, len(bills))
	for _, b := range bills {
		ids = append(ids, b.RemoteInvoiceID)
	}
	existing, err := s.Bills.ExistingRemoteIDs(ctx, companyID, ids)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool, len(bills))
	var fresh []*entity.VendorBill
	var duplicates []string
	for _, b := range bills {
		if existing[b.RemoteInvoiceID] || seen[b.RemoteInvoiceID] {
			duplicates = append(duplicates, b.RemoteInvoiceID)
			continue
		}
		seen[b.RemoteInvoiceID] = true
		fresh = append(fresh, b)
	}
	return fresh, duplicates, nil
}

