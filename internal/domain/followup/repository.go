package followup

import (
	"context"
	"time"

	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Filter defines filtering options for follow-up queries
type Filter struct {
	shared.Filter
	InvoiceID *uuid.UUID
	Status    *Status
	Kind      *Kind
	Stage     *int
}

// Repository defines the interface for follow-up persistence
type Repository interface {
	// FindByID finds a follow-up by ID
	FindByID(ctx context.Context, id uuid.UUID) (*FollowUp, error)

	// FindByInvoice finds all follow-ups for an invoice, newest first
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]FollowUp, error)

	// FindActiveByInvoice finds the non-terminal follow-up for an
	// invoice, or nil when none exists
	FindActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) (*FollowUp, error)

	// FindDue finds active follow-ups whose dispatch time has passed
	FindDue(ctx context.Context, now time.Time) ([]FollowUp, error)

	// FindActive finds every non-terminal follow-up
	FindActive(ctx context.Context) ([]FollowUp, error)

	// FindAll finds follow-ups with filtering
	FindAll(ctx context.Context, filter Filter) ([]FollowUp, int64, error)

	// Save creates or updates a follow-up. Creating a second active
	// follow-up for the same invoice returns shared.ErrAlreadyExists.
	Save(ctx context.Context, f *FollowUp) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, f *FollowUp) error
}

// LogEntry is one line of the per-invoice reminder audit trail
type LogEntry struct {
	shared.BaseEntity
	InvoiceID  uuid.UUID `json:"invoice_id"`
	FollowUpID uuid.UUID `json:"follow_up_id"`
	Stage      int       `json:"stage"`
	Kind       Kind      `json:"kind"`
	Outcome    string    `json:"outcome"` // sent, failed, skipped
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLogEntry creates an audit log entry
func NewLogEntry(f *FollowUp, outcome, message string, occurredAt time.Time) *LogEntry {
	return &LogEntry{
		BaseEntity: shared.NewBaseEntity(),
		InvoiceID:  f.InvoiceID,
		FollowUpID: f.ID,
		Stage:      f.Stage,
		Kind:       f.Kind,
		Outcome:    outcome,
		Message:    message,
		OccurredAt: occurredAt,
	}
}

// LogRepository persists the reminder audit trail
type LogRepository interface {
	// Append stores a log entry
	Append(ctx context.Context, entry *LogEntry) error

	// FindByInvoice returns the audit trail for an invoice, newest first
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]LogEntry, error)
}
