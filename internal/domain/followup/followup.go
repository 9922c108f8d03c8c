package followup

import (
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Status represents the lifecycle status of a follow-up
type Status string

const (
	StatusPending          Status = "PENDING"            // created, not yet scheduled
	StatusScheduled        Status = "SCHEDULED"          // waiting for its dispatch time
	StatusReadyForDispatch Status = "READY_FOR_DISPATCH" // picked up by a dispatcher pass
	StatusSent             Status = "SENT"               // terminal: reminder delivered
	StatusFailed           Status = "FAILED"             // terminal: delivery failed
	StatusStopped          Status = "STOPPED"            // terminal: invoice paid or cancelled
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusReadyForDispatch, StatusSent, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsActive returns true while the follow-up still counts against the
// one-active-campaign-per-invoice invariant.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusScheduled || s == StatusReadyForDispatch
}

// IsTerminal returns true once the follow-up can no longer change
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusStopped
}

// Kind distinguishes pre-due nudges from overdue reminders
type Kind string

const (
	KindApproachingDeadline Kind = "APPROACHING_DEADLINE"
	KindOverdue             Kind = "OVERDUE"
)

// IsValid checks if the kind is valid
func (k Kind) IsValid() bool {
	return k == KindApproachingDeadline || k == KindOverdue
}

// MaxStage is the highest escalation level of a campaign
const MaxStage = 3

// FollowUp is one reminder action tied to an unpaid or overdue invoice.
// Rows are never deleted; they only transition to a terminal status,
// preserving the collection audit trail.
type FollowUp struct {
	shared.BaseAggregateRoot
	InvoiceID     uuid.UUID  `json:"invoice_id"`
	InvoiceNumber string     `json:"invoice_number"`
	Stage         int        `json:"stage"` // 1..MaxStage
	Kind          Kind       `json:"kind"`
	Status        Status     `json:"status"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	DispatchCount int        `json:"dispatch_count"`
}

// NewFollowUp creates a follow-up in scheduled status
func NewFollowUp(invoiceID uuid.UUID, invoiceNumber string, stage int, kind Kind, scheduledAt time.Time) (*FollowUp, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if stage < 1 || stage > MaxStage {
		return nil, shared.NewDomainError("INVALID_STAGE", fmt.Sprintf("Stage must be between 1 and %d", MaxStage))
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Follow-up kind is not valid")
	}

	f := &FollowUp{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceID:         invoiceID,
		InvoiceNumber:     invoiceNumber,
		Stage:             stage,
		Kind:              kind,
		Status:            StatusScheduled,
		ScheduledAt:       scheduledAt,
	}

	f.AddDomainEvent(NewFollowUpScheduledEvent(f))

	return f, nil
}

// IsDue returns true when the follow-up should be dispatched
func (f *FollowUp) IsDue(now time.Time) bool {
	return f.Status.IsActive() && !f.ScheduledAt.After(now)
}

// Escalate advances kind, stage and dispatch time on an existing
// campaign instead of opening a new one. Only active follow-ups
// escalate, and the stage never moves backwards.
func (f *FollowUp) Escalate(stage int, kind Kind, scheduledAt time.Time, now time.Time) error {
	if !f.Status.IsActive() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot escalate follow-up in %s status", f.Status))
	}
	if stage < f.Stage {
		return shared.NewDomainError("INVALID_STAGE", "Stage cannot decrease")
	}
	if stage > MaxStage {
		stage = MaxStage
	}
	f.Stage = stage
	f.Kind = kind
	f.ScheduledAt = scheduledAt
	f.UpdatedAt = now
	f.IncrementVersion()
	return nil
}

// MarkReady claims the follow-up for an in-flight dispatcher pass
func (f *FollowUp) MarkReady(now time.Time) error {
	if f.Status != StatusPending && f.Status != StatusScheduled {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot ready follow-up in %s status", f.Status))
	}
	f.Status = StatusReadyForDispatch
	f.UpdatedAt = now
	f.IncrementVersion()
	return nil
}

// MarkSent records a successful delivery
func (f *FollowUp) MarkSent(now time.Time) error {
	if !f.Status.IsActive() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark follow-up sent in %s status", f.Status))
	}
	f.Status = StatusSent
	f.SentAt = &now
	f.DispatchCount++
	f.UpdatedAt = now
	f.IncrementVersion()
	f.AddDomainEvent(NewFollowUpSentEvent(f))
	return nil
}

// MarkFailed records a delivery failure. The record is terminal: the
// dispatcher never retries it, a later scheduler pass opens a fresh
// campaign if no active one remains.
func (f *FollowUp) MarkFailed(now time.Time, cause string) error {
	if !f.Status.IsActive() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark follow-up failed in %s status", f.Status))
	}
	f.Status = StatusFailed
	f.LastError = cause
	f.DispatchCount++
	f.UpdatedAt = now
	f.IncrementVersion()
	f.AddDomainEvent(NewFollowUpFailedEvent(f))
	return nil
}

// Stop ends the campaign because the invoice was paid or cancelled.
// Stopping an already terminal follow-up is a no-op, not an error.
func (f *FollowUp) Stop(now time.Time) bool {
	if f.Status.IsTerminal() {
		return false
	}
	f.Status = StatusStopped
	f.StoppedAt = &now
	f.UpdatedAt = now
	f.IncrementVersion()
	f.AddDomainEvent(NewFollowUpStoppedEvent(f))
	return true
}
