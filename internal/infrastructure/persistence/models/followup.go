package models

import (
	"time"

	"github.com/facturio/backend/internal/domain/followup"
	"github.com/google/uuid"
)

// FollowUpModel is the persistence model for the FollowUp aggregate
// root. A partial unique index keeps at most one active campaign per
// invoice; concurrent creates collide on it and one writer loses.
type FollowUpModel struct {
	AggregateModel
	InvoiceID     uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_followups_one_active,where:status = 'PENDING' OR status = 'SCHEDULED' OR status = 'READY_FOR_DISPATCH'"`
	InvoiceNumber string           `gorm:"type:varchar(50);not null"`
	Stage         int              `gorm:"not null"`
	Kind          followup.Kind    `gorm:"type:varchar(30);not null"`
	Status        followup.Status  `gorm:"type:varchar(20);not null;default:'SCHEDULED';index"`
	ScheduledAt   time.Time        `gorm:"not null;index"`
	SentAt        *time.Time
	StoppedAt     *time.Time
	LastError     string `gorm:"type:varchar(500)"`
	DispatchCount int    `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (FollowUpModel) TableName() string {
	return "follow_ups"
}

// ToDomain converts the persistence model to a domain FollowUp entity.
func (m *FollowUpModel) ToDomain() *followup.FollowUp {
	f := &followup.FollowUp{
		InvoiceID:     m.InvoiceID,
		InvoiceNumber: m.InvoiceNumber,
		Stage:         m.Stage,
		Kind:          m.Kind,
		Status:        m.Status,
		ScheduledAt:   m.ScheduledAt,
		SentAt:        m.SentAt,
		StoppedAt:     m.StoppedAt,
		LastError:     m.LastError,
		DispatchCount: m.DispatchCount,
	}
	m.PopulateAggregateRoot(&f.BaseAggregateRoot)
	return f
}

// FromDomain populates the persistence model from a domain FollowUp entity.
func (m *FollowUpModel) FromDomain(f *followup.FollowUp) {
	m.FromDomainAggregateRoot(f.BaseAggregateRoot)
	m.InvoiceID = f.InvoiceID
	m.InvoiceNumber = f.InvoiceNumber
	m.Stage = f.Stage
	m.Kind = f.Kind
	m.Status = f.Status
	m.ScheduledAt = f.ScheduledAt
	m.SentAt = f.SentAt
	m.StoppedAt = f.StoppedAt
	m.LastError = f.LastError
	m.DispatchCount = f.DispatchCount
}

// FollowUpModelFromDomain creates a new persistence model from a domain FollowUp.
func FollowUpModelFromDomain(f *followup.FollowUp) *FollowUpModel {
	m := &FollowUpModel{}
	m.FromDomain(f)
	return m
}

// FollowUpLogModel is the persistence model for the reminder audit trail.
type FollowUpLogModel struct {
	BaseModel
	InvoiceID  uuid.UUID     `gorm:"type:uuid;not null;index"`
	FollowUpID uuid.UUID     `gorm:"type:uuid;not null;index"`
	Stage      int           `gorm:"not null"`
	Kind       followup.Kind `gorm:"type:varchar(30);not null"`
	Outcome    string        `gorm:"type:varchar(20);not null"`
	Message    string        `gorm:"type:text"`
	OccurredAt time.Time     `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (FollowUpLogModel) TableName() string {
	return "follow_up_logs"
}

// ToDomain converts the persistence model to a domain LogEntry.
func (m *FollowUpLogModel) ToDomain() *followup.LogEntry {
	return &followup.LogEntry{
		BaseEntity: m.BaseModel.ToDomain(),
		InvoiceID:  m.InvoiceID,
		FollowUpID: m.FollowUpID,
		Stage:      m.Stage,
		Kind:       m.Kind,
		Outcome:    m.Outcome,
		Message:    m.Message,
		OccurredAt: m.OccurredAt,
	}
}

// FromDomain populates the persistence model from a domain LogEntry.
func (m *FollowUpLogModel) FromDomain(e *followup.LogEntry) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.InvoiceID = e.InvoiceID
	m.FollowUpID = e.FollowUpID
	m.Stage = e.Stage
	m.Kind = e.Kind
	m.Outcome = e.Outcome
	m.Message = e.Message
	m.OccurredAt = e.OccurredAt
}
