package entity

import "time"

// Severity of a sync log entry
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// SyncLogEntry is one append-only audit record of a sync run for one company
type SyncLogEntry struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Name        string    `json:"name"` // job name
	CompanyID   *int64    `json:"company_id,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Path        string    `json:"path"` // endpoint URL
	Func        string    `json:"func"` // HTTP method
	Level       Severity  `json:"level"`
	Message     string    `json:"message"`
	Payload     string    `json:"payload,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
