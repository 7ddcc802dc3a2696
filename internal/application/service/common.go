package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/domain/fault"
)

// Logger is the structured logger used by application services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Clock returns the current time
type Clock func() time.Time

// Notification types shown to operators
const (
	NotifySuccess = "success"
	NotifyInfo    = "info"
	NotifyDanger  = "danger"
)

// Notification is the single summarized message returned by interactive triggers
type Notification struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// CompanyOutcome is the result of one sync step for one company
type CompanyOutcome struct {
	CompanyID   int64           `json:"company_id"`
	CompanyName string          `json:"company_name"`
	Level       entity.Severity `json:"level"`
	Message     string          `json:"message"`
	Summary     string          `json:"summary"`
	Created     []int64         `json:"created,omitempty"`
	Duplicates  []string        `json:"duplicates,omitempty"`
	Errors      []string        `json:"errors,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
	NotFound    []string        `json:"not_found,omitempty"`
	// WatermarkAdvanced is set by vendor bill sync only
	WatermarkAdvanced bool         `json:"watermark_advanced"`
	Fault             *fault.Fault `json:"-"`
	// Payload is the raw response kept for the audit log
	Payload string `json:"-"`
}

// Notification summarizes the outcome with its first message line
func (o *CompanyOutcome) Notification(title string) Notification {
	msg := o.Summary
	if msg == "" {
		msg = o.Message
	}
	n := Notification{Title: title, Type: NotifyInfo, Message: firstLine(msg)}
	switch {
	case o.Level == entity.SeverityError:
		n.Type = NotifyDanger
	case o.Level == entity.SeveritySuccess:
		n.Type = NotifySuccess
	}
	return n
}

// RunReport is the result of one cron invocation over every configured company
type RunReport struct {
	RunID    string            `json:"run_id"`
	Job      string            `json:"job"`
	Outcomes []*CompanyOutcome `json:"outcomes"`
	// Skipped names companies without an endpoint or auth token
	Skipped []string `json:"skipped,omitempty"`
}

// Failed counts outcomes at error level
func (r *RunReport) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Level == entity.SeverityError {
			n++
		}
	}
	return n
}

// Notifications summarizes every outcome, plus one info line naming skipped companies
func (r *RunReport) Notifications() []Notification {
	out := make([]Notification, 0, len(r.Outcomes)+1)
	for _, o := range r.Outcomes {
		n := o.Notification(r.Job)
		if o.CompanyName != "" {
			n.Message = o.CompanyName + ": " + n.Message
		}
		out = append(out, n)
	}
	if len(r.Skipped) > 0 {
		out = append(out, Notification{
			Title:   r.Job,
			Type:    NotifyInfo,
			Message: "Please add eAK auth token/eAK URL: " + strings.Join(r.Skipped, ", "),
		})
	}
	return out
}

// configuredCompanies splits companies into those with a complete eAK setup and the names of the rest
func configuredCompanies(ctx context.Context, repo port.CompanyRepository) ([]*entity.Company, []string, error) {
	companies, err := repo.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list companies: %w", err)
	}

	var configured []*entity.Company
	var skipped []string
	for _, c := range companies {
		if c.EAKConfigured() {
			configured = append(configured, c)
			continue
		}
		skipped = append(skipped, c.Name)
	}
	sort.Strings(skipped)
	return configured, skipped, nil
}

// skippedEntry is the single informational audit line for unconfigured companies
func skippedEntry(runID, job string, skipped []string, now time.Time) *entity.SyncLogEntry {
	return &entity.SyncLogEntry{
		RunID:     runID,
		Name:      job,
		Path:      "Empty auth/Url",
		Func:      "POST",
		Level:     entity.SeverityInfo,
		Message:   "Please add eAK auth token/eAK URL: " + strings.Join(skipped, ", "),
		CreatedAt: now,
	}
}

func outcomeEntry(runID, job string, company *entity.Company, o *CompanyOutcome, now time.Time) *entity.SyncLogEntry {
	id := company.ID
	return &entity.SyncLogEntry{
		RunID:       runID,
		Name:        job,
		CompanyID:   &id,
		CompanyName: company.Name,
		Path:        company.EAKURL,
		Func:        "POST",
		Level:       o.Level,
		Message:     o.Message,
		Payload:     o.Payload,
		CreatedAt:   now,
	}
}

// faultOutcome records a failed remote call
func faultOutcome(company *entity.Company, err error) *CompanyOutcome {
	o := &CompanyOutcome{
		CompanyID:   company.ID,
		CompanyName: company.Name,
		Level:       entity.SeverityError,
		Message:     company.Name + "\n" + fault.Message(err),
		Summary:     fault.Message(err),
	}
	if f, ok := fault.As(err); ok {
		o.Fault = f
		o.Payload = f.Raw
	}
	return o
}

func resolveAuth(ctx context.Context, secrets port.SecretResolver, company *entity.Company) (string, error) {
	auth, err := secrets.Resolve(ctx, company.EAKAuth)
	if err != nil {
		return "", fault.Wrap("resolve auth", fault.Auth, err)
	}
	return auth, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// writeLog appends an audit entry; a failing sink is logged and otherwise ignored
func writeLog(ctx context.Context, logs port.SyncLogSink, logger Logger, entry *entity.SyncLogEntry) {
	if err := logs.Append(ctx, entry); err != nil {
		logger.Error("Failed to append sync log", "job", entry.Name, "error", err)
	}
}
