package followup

import (
	"time"

	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// FollowUpScheduledEvent is raised when a new campaign entry is created
type FollowUpScheduledEvent struct {
	shared.BaseDomainEvent
	FollowUpID  uuid.UUID `json:"follow_up_id"`
	InvoiceID   uuid.UUID `json:"invoice_id"`
	Stage       int       `json:"stage"`
	Kind        Kind      `json:"kind"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// EventType returns the event type name
func (e *FollowUpScheduledEvent) EventType() string {
	return "FollowUpScheduled"
}

// NewFollowUpScheduledEvent creates a new FollowUpScheduledEvent
func NewFollowUpScheduledEvent(f *FollowUp) *FollowUpScheduledEvent {
	return &FollowUpScheduledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("FollowUpScheduled", "FollowUp", f.ID),
		FollowUpID:      f.ID,
		InvoiceID:       f.InvoiceID,
		Stage:           f.Stage,
		Kind:            f.Kind,
		ScheduledAt:     f.ScheduledAt,
	}
}

// FollowUpSentEvent is raised when a reminder is delivered
type FollowUpSentEvent struct {
	shared.BaseDomainEvent
	FollowUpID uuid.UUID `json:"follow_up_id"`
	InvoiceID  uuid.UUID `json:"invoice_id"`
	Stage      int       `json:"stage"`
	Kind       Kind      `json:"kind"`
	SentAt     time.Time `json:"sent_at"`
}

// EventType returns the event type name
func (e *FollowUpSentEvent) EventType() string {
	return "FollowUpSent"
}

// NewFollowUpSentEvent creates a new FollowUpSentEvent
func NewFollowUpSentEvent(f *FollowUp) *FollowUpSentEvent {
	sentAt := time.Now()
	if f.SentAt != nil {
		sentAt = *f.SentAt
	}
	return &FollowUpSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("FollowUpSent", "FollowUp", f.ID),
		FollowUpID:      f.ID,
		InvoiceID:       f.InvoiceID,
		Stage:           f.Stage,
		Kind:            f.Kind,
		SentAt:          sentAt,
	}
}

// FollowUpFailedEvent is raised when delivery fails
type FollowUpFailedEvent struct {
	shared.BaseDomainEvent
	FollowUpID uuid.UUID `json:"follow_up_id"`
	InvoiceID  uuid.UUID `json:"invoice_id"`
	Stage      int       `json:"stage"`
	Cause      string    `json:"cause"`
}

// EventType returns the event type name
func (e *FollowUpFailedEvent) EventType() string {
	return "FollowUpFailed"
}

// NewFollowUpFailedEvent creates a new FollowUpFailedEvent
func NewFollowUpFailedEvent(f *FollowUp) *FollowUpFailedEvent {
	return &FollowUpFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("FollowUpFailed", "FollowUp", f.ID),
		FollowUpID:      f.ID,
		InvoiceID:       f.InvoiceID,
		Stage:           f.Stage,
		Cause:           f.LastError,
	}
}

// FollowUpStoppedEvent is raised when a campaign stops after its
// invoice was paid or cancelled
type FollowUpStoppedEvent struct {
	shared.BaseDomainEvent
	FollowUpID uuid.UUID `json:"follow_up_id"`
	InvoiceID  uuid.UUID `json:"invoice_id"`
}

// EventType returns the event type name
func (e *FollowUpStoppedEvent) EventType() string {
	return "FollowUpStopped"
}

// NewFollowUpStoppedEvent creates a new FollowUpStoppedEvent
func NewFollowUpStoppedEvent(f *FollowUp) *FollowUpStoppedEvent {
	return &FollowUpStoppedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("FollowUpStopped", "FollowUp", f.ID),
		FollowUpID:      f.ID,
		InvoiceID:       f.InvoiceID,
	}
}
