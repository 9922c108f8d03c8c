package models

import (
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteModel is the persistence model for the Quote aggregate root.
type QuoteModel struct {
	AggregateModel
	Number      string                    `gorm:"type:varchar(50);not null;uniqueIndex:idx_quotes_number"`
	ClientID    uuid.UUID                 `gorm:"type:uuid;not null;index"`
	ClientName  string                    `gorm:"type:varchar(200);not null"`
	ClientEmail string                    `gorm:"type:varchar(320)"`
	Status      billing.QuoteStatus       `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	Items       billing.LineItems         `gorm:"type:jsonb;not null;default:'[]'"`
	Config      billing.FinancialConfig   `gorm:"type:jsonb;not null;default:'{}'"`
	Breakdown   billing.MonetaryBreakdown `gorm:"type:jsonb;not null;default:'{}'"`
	ValidUntil  *time.Time                `gorm:"index"`
	AcceptedAt  *time.Time
	InvoicedAt  *time.Time
	Remark      string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (QuoteModel) TableName() string {
	return "quotes"
}

// ToDomain converts the persistence model to a domain Quote entity.
func (m *QuoteModel) ToDomain() *billing.Quote {
	q := &billing.Quote{
		Number:      m.Number,
		ClientID:    m.ClientID,
		ClientName:  m.ClientName,
		ClientEmail: m.ClientEmail,
		Status:      m.Status,
		Items:       m.Items,
		Config:      m.Config,
		Breakdown:   m.Breakdown,
		ValidUntil:  m.ValidUntil,
		AcceptedAt:  m.AcceptedAt,
		InvoicedAt:  m.InvoicedAt,
		Remark:      m.Remark,
	}
	m.PopulateAggregateRoot(&q.BaseAggregateRoot)
	return q
}

// FromDomain populates the persistence model from a domain Quote entity.
func (m *QuoteModel) FromDomain(q *billing.Quote) {
	m.FromDomainAggregateRoot(q.BaseAggregateRoot)
	m.Number = q.Number
	m.ClientID = q.ClientID
	m.ClientName = q.ClientName
	m.ClientEmail = q.ClientEmail
	m.Status = q.Status
	m.Items = q.Items
	m.Config = q.Config
	m.Breakdown = q.Breakdown
	m.ValidUntil = q.ValidUntil
	m.AcceptedAt = q.AcceptedAt
	m.InvoicedAt = q.InvoicedAt
	m.Remark = q.Remark
}

// QuoteModelFromDomain creates a new persistence model from a domain Quote.
func QuoteModelFromDomain(q *billing.Quote) *QuoteModel {
	m := &QuoteModel{}
	m.FromDomain(q)
	return m
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
// The Kind union is flattened into a discriminant column plus the
// variant payload columns; only the columns of the stored kind are
// populated.
type InvoiceModel struct {
	AggregateModel
	Number           string                    `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_number"`
	ClientID         uuid.UUID                 `gorm:"type:uuid;not null;index"`
	ClientName       string                    `gorm:"type:varchar(200);not null"`
	ClientEmail      string                    `gorm:"type:varchar(320)"`
	Kind             billing.InvoiceKind       `gorm:"type:varchar(20);not null;index"`
	DocumentType     billing.DocumentType      `gorm:"type:varchar(20);not null;index"`
	Status           billing.InvoiceStatus     `gorm:"type:varchar(20);not null;default:'UNPAID';index"`
	Items            billing.LineItems         `gorm:"type:jsonb;not null;default:'[]'"`
	Config           billing.FinancialConfig   `gorm:"type:jsonb;not null;default:'{}'"`
	Breakdown        billing.MonetaryBreakdown `gorm:"type:jsonb;not null;default:'{}'"`
	Amount           decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	NetAmount        decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	VATAmount        decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	DepositBase      decimal.Decimal           `gorm:"type:decimal(18,4)"` // deposit invoices
	DepositInvoiceID *uuid.UUID                `gorm:"type:uuid;index"`    // final invoices
	RelatedInvoiceID *uuid.UUID                `gorm:"type:uuid;index"`    // credit notes
	IssueDate        time.Time                 `gorm:"not null"`
	DueDate          time.Time                 `gorm:"not null;index"`
	QuoteID          *uuid.UUID                `gorm:"type:uuid;index"`
	QuoteNumber      string                    `gorm:"type:varchar(50)"`
	PaidAt           *time.Time
	CancelledAt      *time.Time
	CancelReason     string `gorm:"type:varchar(500)"`
	ReactivatedAt    *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
// It fails on rows whose discriminant column does not form a valid
// variant, rather than silently yielding a half-built invoice.
func (m *InvoiceModel) ToDomain() (*billing.Invoice, error) {
	variant, err := m.variant()
	if err != nil {
		return nil, err
	}
	inv := &billing.Invoice{
		Number:        m.Number,
		ClientID:      m.ClientID,
		ClientName:    m.ClientName,
		ClientEmail:   m.ClientEmail,
		Variant:       variant,
		Status:        m.Status,
		Items:         m.Items,
		Config:        m.Config,
		Breakdown:     m.Breakdown,
		Amount:        m.Amount,
		NetAmount:     m.NetAmount,
		VATAmount:     m.VATAmount,
		IssueDate:     m.IssueDate,
		DueDate:       m.DueDate,
		QuoteID:       m.QuoteID,
		QuoteNumber:   m.QuoteNumber,
		PaidAt:        m.PaidAt,
		CancelledAt:   m.CancelledAt,
		CancelReason:  m.CancelReason,
		ReactivatedAt: m.ReactivatedAt,
	}
	m.PopulateAggregateRoot(&inv.BaseAggregateRoot)
	return inv, nil
}

// variant reassembles the Kind union from the flattened columns.
func (m *InvoiceModel) variant() (billing.Kind, error) {
	switch m.Kind {
	case billing.KindStandard:
		return billing.StandardInvoice{}, nil
	case billing.KindDeposit:
		return billing.DepositInvoice{DepositBase: m.DepositBase}, nil
	case billing.KindFinal:
		if m.DepositInvoiceID == nil {
			return nil, shared.NewDomainError("CORRUPT_ROW",
				fmt.Sprintf("Final invoice %s has no deposit invoice reference", m.Number))
		}
		return billing.FinalInvoice{DepositInvoiceID: *m.DepositInvoiceID}, nil
	case billing.KindCreditNote:
		if m.RelatedInvoiceID == nil {
			return nil, shared.NewDomainError("CORRUPT_ROW",
				fmt.Sprintf("Credit note %s has no related invoice reference", m.Number))
		}
		return billing.CreditNote{RelatedInvoiceID: *m.RelatedInvoiceID}, nil
	default:
		return nil, shared.NewDomainError("CORRUPT_ROW",
			fmt.Sprintf("Invoice %s has unknown kind %q", m.Number, m.Kind))
	}
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.Number = inv.Number
	m.ClientID = inv.ClientID
	m.ClientName = inv.ClientName
	m.ClientEmail = inv.ClientEmail
	m.Kind = inv.Variant.Kind()
	m.DocumentType = inv.Variant.DocumentType()
	m.Status = inv.Status
	m.Items = inv.Items
	m.Config = inv.Config
	m.Breakdown = inv.Breakdown
	m.Amount = inv.Amount
	m.NetAmount = inv.NetAmount
	m.VATAmount = inv.VATAmount
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.QuoteID = inv.QuoteID
	m.QuoteNumber = inv.QuoteNumber
	m.PaidAt = inv.PaidAt
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
	m.ReactivatedAt = inv.ReactivatedAt

	m.DepositBase = decimal.Zero
	m.DepositInvoiceID = nil
	m.RelatedInvoiceID = nil
	switch v := inv.Variant.(type) {
	case billing.DepositInvoice:
		m.DepositBase = v.DepositBase
	case billing.FinalInvoice:
		id := v.DepositInvoiceID
		m.DepositInvoiceID = &id
	case billing.CreditNote:
		id := v.RelatedInvoiceID
		m.RelatedInvoiceID = &id
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}
