package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/eak-connector/internal/domain/entity"
)

// ErrNotFound is returned by repositories when no record has the requested id
var ErrNotFound = errors.New("record not found")

// EntityStore looks up ledger records by their natural business key.
// companyID scopes company-specific categories; it is ignored for global ones.
// The returned id is zero and found is false when nothing matches.
type EntityStore interface {
	FindOne(ctx context.Context, category entity.Category, key string, companyID int64) (id int64, found bool, err error)
}

// CompanyRepository defines persistence operations for Company
type CompanyRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Company, error)
	List(ctx context.Context) ([]*entity.Company, error)
	// AdvanceWatermark moves the vendor bill watermark forward; it never moves it back
	AdvanceWatermark(ctx context.Context, id int64, to time.Time) (bool, error)
}

// PartnerRepository defines persistence operations for Partner
type PartnerRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Partner, error)
	// ListRegistryCandidates returns distinct registry numbers of company partners visible to the company
	ListRegistryCandidates(ctx context.Context, companyID int64) ([]string, error)
	// SetEAKStatus updates every visible partner carrying the registry number and returns how many matched
	SetEAKStatus(ctx context.Context, companyID int64, regNumber string, active bool) (int64, error)
}

// BankAccountRepository defines persistence operations for BankAccount
type BankAccountRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.BankAccount, error)
}

// VendorBillRepository defines persistence operations for VendorBill
type VendorBillRepository interface {
	CreateMany(ctx context.Context, bills []*entity.VendorBill) ([]int64, error)
	GetByID(ctx context.Context, id int64) (*entity.VendorBill, error)
	// ExistingRemoteIDs returns the subset of remote invoice ids already imported for the company
	ExistingRemoteIDs(ctx context.Context, companyID int64, remoteIDs []string) (map[string]bool, error)
	ListPendingAttachment(ctx context.Context, companyID int64, limit int) ([]*entity.VendorBill, error)
	MarkAttachmentAttempted(ctx context.Context, ids []int64, at time.Time) error
	// MarkAttachmentProcessed flips the flag once; false means it was already set
	MarkAttachmentProcessed(ctx context.Context, id int64) (bool, error)
}

// CustomerInvoiceRepository defines persistence operations for CustomerInvoice
type CustomerInvoiceRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.CustomerInvoice, error)
	UpdateEAKResult(ctx context.Context, id int64, state, response string) error
}

// AttachmentRepository defines persistence operations for Attachment
type AttachmentRepository interface {
	Create(ctx context.Context, att *entity.Attachment) error
	GetByResource(ctx context.Context, resModel string, resID int64) ([]*entity.Attachment, error)
}

// SyncLogSink appends audit entries; entries are never read back by the sync code
type SyncLogSink interface {
	Append(ctx context.Context, entries ...*entity.SyncLogEntry) error
}

// SyncLogReader lists audit entries for reporting
type SyncLogReader interface {
	List(ctx context.Context, since time.Time, limit int) ([]*entity.SyncLogEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
