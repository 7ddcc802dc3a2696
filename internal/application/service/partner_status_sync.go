package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/domain/fault"
	"github.com/google/uuid"
)

// DefaultPartnerBatchSize is the largest number of registry numbers sent in one status request
const DefaultPartnerBatchSize = 100

// PartnerStatusSyncService refreshes the eAK participation flag of partners
type PartnerStatusSyncService interface {
	SyncAll(ctx context.Context) (*RunReport, error)
	SyncCompany(ctx context.Context, companyID int64) (*CompanyOutcome, error)
}

// PartnerStatusSyncDeps groups the collaborators of the partner status sync
type PartnerStatusSyncDeps struct {
	Companies port.CompanyRepository
	Partners  port.PartnerRepository
	Gateway   port.EAKGateway
	Secrets   port.SecretResolver
	Logs      port.SyncLogSink
	TxManager port.TransactionManager
	BatchSize int
	Clock     Clock
	Logger    Logger
}

type partnerStatusSyncImpl struct {
	PartnerStatusSyncDeps
}

// NewPartnerStatusSyncService creates a new PartnerStatusSyncService
func NewPartnerStatusSyncService(deps PartnerStatusSyncDeps) PartnerStatusSyncService {
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultPartnerBatchSize
	}
	return &partnerStatusSyncImpl{PartnerStatusSyncDeps: deps}
}

// SyncAll refreshes partner flags for each configured company
func (s *partnerStatusSyncImpl) SyncAll(ctx context.Context) (*RunReport, error) {
	companies, skipped, err := configuredCompanies(ctx, s.Companies)
	if err != nil {
		return nil, err
	}

	report := &RunReport{RunID: uuid.NewString(), Job: entity.JobPartnerSync, Skipped: skipped}
	for _, company := range companies {
		outcome := s.syncCompany(ctx, company)
		report.Outcomes = append(report.Outcomes, outcome)
		writeLog(ctx, s.Logs, s.Logger, outcomeEntry(report.RunID, report.Job, company, outcome, s.Clock()))
	}
	if len(skipped) > 0 {
		writeLog(ctx, s.Logs, s.Logger, skippedEntry(report.RunID, report.Job, skipped, s.Clock()))
	}

	s.Logger.Info("Partner status sync finished", "run_id", report.RunID, "companies", len(companies), "failed", report.Failed())
	return report, nil
}

// SyncCompany refreshes partner flags for one company
func (s *partnerStatusSyncImpl) SyncCompany(ctx context.Context, companyID int64) (*CompanyOutcome, error) {
	company, err := s.Companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load company %d: %w", companyID, err)
	}
	if !company.EAKConfigured() {
		return nil, fault.New(entity.JobPartnerSync, fault.Validation, "Please add eAK auth token/eAK URL")
	}

	outcome := s.syncCompany(ctx, company)
	writeLog(ctx, s.Logs, s.Logger, outcomeEntry(uuid.NewString(), entity.JobPartnerSync, company, outcome, s.Clock()))
	return outcome, nil
}

func (s *partnerStatusSyncImpl) syncCompany(ctx context.Context, company *entity.Company) *CompanyOutcome {
	auth, err := resolveAuth(ctx, s.Secrets, company)
	if err != nil {
		return faultOutcome(company, err)
	}

	// Get partners with a registry number
	regNumbers, err := s.Partners.ListRegistryCandidates(ctx, company.ID)
	if err != nil {
		return &CompanyOutcome{
			CompanyID:   company.ID,
			CompanyName: company.Name,
			Level:       entity.SeverityError,
			Message:     company.Name + "\n" + err.Error(),
			Summary:     "Partners could not be loaded",
		}
	}

	outcome := &CompanyOutcome{CompanyID: company.ID, CompanyName: company.Name}
	if len(regNumbers) == 0 {
		outcome.Level = entity.SeveritySuccess
		outcome.Summary = "No partners with a registry number"
		outcome.Message = company.Name + "\n" + outcome.Summary
		return outcome
	}

	// Every batch response is kept; a failed batch does not discard the others
	var statuses []port.CompanyStatus
	var payloads []string
	batches := chunk(regNumbers, s.BatchSize)
	for i, batch := range batches {
		resp, err := s.Gateway.FetchCompanyStatus(ctx, company.EAKURL, auth, batch)
		if err != nil {
			s.Logger.Warn("Partner status batch failed",
				"company", company.Name, "batch", i+1, "batches", len(batches), "error", err)
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("Batch %d/%d: %s", i+1, len(batches), fault.Message(err)))
			if f, ok := fault.As(err); ok && outcome.Fault == nil {
				outcome.Fault = f
			}
			continue
		}
		statuses = append(statuses, resp.Statuses...)
		payloads = append(payloads, resp.Raw)
	}
	outcome.Payload = strings.Join(payloads, "\n")

	// Apply statuses
	updated := 0
	err = s.TxManager.WithTransaction(ctx, func(ctx context.Context) error {
		for _, st := range statuses {
			n, err := s.Partners.SetEAKStatus(ctx, company.ID, st.RegNumber, st.Active)
			if err != nil {
				return fmt.Errorf("failed to update partner %s: %w", st.RegNumber, err)
			}
			if n == 0 {
				outcome.NotFound = append(outcome.NotFound, st.RegNumber)
				continue
			}
			updated += int(n)
		}
		return nil
	})
	if err != nil {
		s.Logger.Error("Failed to apply partner statuses", "company", company.Name, "error", err)
		outcome.Errors = append(outcome.Errors, err.Error())
		outcome.NotFound = nil
		updated = 0
	}

	s.Logger.Info("Partner statuses applied",
		"company", company.Name,
		"batches", len(batches),
		"statuses", len(statuses),
		"updated", updated,
		"unknown", len(outcome.NotFound))

	// Build summary
	var lines []string
	for _, reg := range outcome.NotFound {
		lines = append(lines, fmt.Sprintf("Partner regNumber: %s Not Found", reg))
	}

	switch {
	case len(outcome.Errors) > 0:
		outcome.Level = entity.SeverityError
		outcome.Summary = firstLine(outcome.Errors[0])
		lines = append(append([]string{}, outcome.Errors...), lines...)
	case len(outcome.NotFound) > 0:
		outcome.Level = entity.SeverityInfo
		outcome.Summary = fmt.Sprintf("%d partner(s) updated, %d unknown", updated, len(outcome.NotFound))
	default:
		outcome.Level = entity.SeveritySuccess
		outcome.Summary = fmt.Sprintf("%d partner(s) updated", updated)
	}
	outcome.Message = company.Name + "\n" + outcome.Summary
	if len(lines) > 0 {
		outcome.Message += "\n" + strings.Join(lines, "\n")
	}
	return outcome
}

// chunk splits items into consecutive slices of at most size elements
func chunk(items []string, size int) [][]string {
	var out [][]string
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
