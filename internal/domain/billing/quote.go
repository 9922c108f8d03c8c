package billing

import (
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// QuoteStatus represents the lifecycle status of a quote
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "DRAFT"
	QuoteStatusSent     QuoteStatus = "SENT"
	QuoteStatusAccepted QuoteStatus = "ACCEPTED"
	QuoteStatusDeclined QuoteStatus = "DECLINED"
	QuoteStatusInvoiced QuoteStatus = "INVOICED"
)

// IsValid checks if the status is a valid QuoteStatus
func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusAccepted, QuoteStatusDeclined, QuoteStatusInvoiced:
		return true
	}
	return false
}

// String returns the string representation of QuoteStatus
func (s QuoteStatus) String() string {
	return string(s)
}

// Quote is the priced offer an invoice is issued from. Line items and
// financial configuration live on the quote until invoicing freezes
// them onto the issued documents.
type Quote struct {
	shared.BaseAggregateRoot
	Number      string            `json:"number"`
	ClientID    uuid.UUID         `json:"client_id"`
	ClientName  string            `json:"client_name"`
	ClientEmail string            `json:"client_email,omitempty"`
	Status      QuoteStatus       `json:"status"`
	Items       LineItems         `json:"items"`
	Config      FinancialConfig   `json:"config"`
	Breakdown   MonetaryBreakdown `json:"breakdown"`
	ValidUntil  *time.Time        `json:"valid_until,omitempty"`
	AcceptedAt  *time.Time        `json:"accepted_at,omitempty"`
	InvoicedAt  *time.Time        `json:"invoiced_at,omitempty"`
	Remark      string            `json:"remark,omitempty"`
}

// NewQuote creates a quote with its breakdown computed from the given
// items and configuration.
func NewQuote(
	number string,
	clientID uuid.UUID,
	clientName string,
	items LineItems,
	config FinancialConfig,
	validUntil *time.Time,
) (*Quote, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Quote number cannot be empty")
	}
	if len(number) > 50 {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Quote number cannot exceed 50 characters")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID cannot be empty")
	}

	breakdown, err := NewCalculator().Compute(items, config)
	if err != nil {
		return nil, err
	}

	return &Quote{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		ClientID:          clientID,
		ClientName:        clientName,
		Status:            QuoteStatusDraft,
		Items:             items,
		Config:            config,
		Breakdown:         breakdown,
		ValidUntil:        validUntil,
	}, nil
}

// UpdatePricing replaces items and configuration and recomputes the
// breakdown. Only draft and sent quotes may be repriced. A reprice that
// disables VAT carries the VAT the quote already holds, so documents
// created under a different regime keep the tax they were issued with.
func (q *Quote) UpdatePricing(items LineItems, config FinancialConfig) error {
	if q.Status != QuoteStatusDraft && q.Status != QuoteStatusSent {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot reprice quote in %s status", q.Status))
	}
	breakdown, err := NewCalculator().ComputeWithFallbackVAT(items, config, q.Breakdown.VATAmount)
	if err != nil {
		return err
	}
	q.Items = items
	q.Config = config
	q.Breakdown = breakdown
	q.UpdatedAt = time.Now()
	q.IncrementVersion()
	return nil
}

// MarkSent transitions a draft quote to sent
func (q *Quote) MarkSent() error {
	if q.Status != QuoteStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot send quote in %s status", q.Status))
	}
	q.Status = QuoteStatusSent
	q.UpdatedAt = time.Now()
	q.IncrementVersion()
	return nil
}

// Accept records the client's acceptance
func (q *Quote) Accept(now time.Time) error {
	if q.Status != QuoteStatusDraft && q.Status != QuoteStatusSent {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot accept quote in %s status", q.Status))
	}
	q.Status = QuoteStatusAccepted
	q.AcceptedAt = &now
	q.UpdatedAt = now
	q.IncrementVersion()
	return nil
}

// Decline records the client's refusal
func (q *Quote) Decline() error {
	if q.Status != QuoteStatusDraft && q.Status != QuoteStatusSent {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot decline quote in %s status", q.Status))
	}
	q.Status = QuoteStatusDeclined
	q.UpdatedAt = time.Now()
	q.IncrementVersion()
	return nil
}

// MarkInvoiced freezes the quote after invoices were issued from it
func (q *Quote) MarkInvoiced(now time.Time) error {
	if q.Status != QuoteStatusAccepted {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot invoice quote in %s status", q.Status))
	}
	q.Status = QuoteStatusInvoiced
	q.InvoicedAt = &now
	q.UpdatedAt = now
	q.IncrementVersion()
	return nil
}

// HasDeposit returns true when the quote splits into a deposit/final pair
func (q *Quote) HasDeposit() bool {
	return q.Config.Deposit.Enabled && q.Config.Deposit.Amount.IsPositive()
}
