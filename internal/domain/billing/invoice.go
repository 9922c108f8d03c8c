package billing

import (
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the payment status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusUnpaid    InvoiceStatus = "UNPAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusOverdue, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsOpen returns true while the invoice is still being collected
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusUnpaid || s == InvoiceStatusOverdue
}

// IsClosed returns true for paid and cancelled invoices. Closed is not
// strictly terminal: both states can be reactivated.
func (s InvoiceStatus) IsClosed() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// DocumentType distinguishes invoices from credit notes
type DocumentType string

const (
	DocumentTypeInvoice    DocumentType = "INVOICE"
	DocumentTypeCreditNote DocumentType = "CREDIT_NOTE"
)

// InvoiceKind names the discriminant of the Kind union
type InvoiceKind string

const (
	KindStandard   InvoiceKind = "STANDARD"
	KindDeposit    InvoiceKind = "DEPOSIT"
	KindFinal      InvoiceKind = "FINAL"
	KindCreditNote InvoiceKind = "CREDIT_NOTE"
)

// Kind is the discriminated variant attached to each invoice. Each
// variant carries the fields its kind requires, replacing the ad hoc
// optional-field probing a metadata bag would need.
type Kind interface {
	Kind() InvoiceKind
	DocumentType() DocumentType
}

// StandardInvoice is a plain invoice covering a whole quote
type StandardInvoice struct{}

// Kind returns the discriminant
func (StandardInvoice) Kind() InvoiceKind { return KindStandard }

// DocumentType returns the document type
func (StandardInvoice) DocumentType() DocumentType { return DocumentTypeInvoice }

// DepositInvoice is the upfront partial payment on a larger quote
type DepositInvoice struct {
	DepositBase decimal.Decimal // excl. VAT, as configured on the quote
}

// Kind returns the discriminant
func (DepositInvoice) Kind() InvoiceKind { return KindDeposit }

// DocumentType returns the document type
func (DepositInvoice) DocumentType() DocumentType { return DocumentTypeInvoice }

// FinalInvoice covers the remainder of a quote after its deposit invoice
type FinalInvoice struct {
	DepositInvoiceID uuid.UUID
}

// Kind returns the discriminant
func (FinalInvoice) Kind() InvoiceKind { return KindFinal }

// DocumentType returns the document type
func (FinalInvoice) DocumentType() DocumentType { return DocumentTypeInvoice }

// CreditNote is a negative-amount document offsetting a prior invoice
type CreditNote struct {
	RelatedInvoiceID uuid.UUID
}

// Kind returns the discriminant
func (CreditNote) Kind() InvoiceKind { return KindCreditNote }

// DocumentType returns the document type
func (CreditNote) DocumentType() DocumentType { return DocumentTypeCreditNote }

// Invoice is the settlement aggregate root. Items, configuration and
// the computed breakdown are frozen at issuance: the invoice stores its
// own breakdown rather than recomputing, so historical documents stay
// stable when defaults change later.
type Invoice struct {
	shared.BaseAggregateRoot
	Number        string            `json:"number"`
	ClientID      uuid.UUID         `json:"client_id"`
	ClientName    string            `json:"client_name"`
	ClientEmail   string            `json:"client_email,omitempty"`
	Variant       Kind              `json:"-"`
	Status        InvoiceStatus     `json:"status"`
	Items         LineItems         `json:"items"`
	Config        FinancialConfig   `json:"config"`
	Breakdown     MonetaryBreakdown `json:"breakdown"`
	Amount        decimal.Decimal   `json:"amount"` // payable total (negative on credit notes)
	NetAmount     decimal.Decimal   `json:"net_amount"`
	VATAmount     decimal.Decimal   `json:"vat_amount"`
	IssueDate     time.Time         `json:"issue_date"`
	DueDate       time.Time         `json:"due_date"`
	QuoteID       *uuid.UUID        `json:"quote_id,omitempty"`
	QuoteNumber   string            `json:"quote_number,omitempty"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	CancelledAt   *time.Time        `json:"cancelled_at,omitempty"`
	CancelReason  string            `json:"cancel_reason,omitempty"`
	ReactivatedAt *time.Time        `json:"reactivated_at,omitempty"`
}

// NewInvoice creates an invoice of the given kind from frozen items and
// configuration. The payable amount depends on the variant: a standard
// invoice asks for the full total, a deposit invoice for the grossed-up
// deposit, a final invoice for the remaining balance.
func NewInvoice(
	number string,
	clientID uuid.UUID,
	clientName string,
	variant Kind,
	items LineItems,
	config FinancialConfig,
	issueDate time.Time,
	dueDate time.Time,
) (*Invoice, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Invoice number cannot be empty")
	}
	if len(number) > 50 {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if variant == nil {
		return nil, shared.NewDomainError("INVALID_KIND", "Invoice kind is required")
	}
	if dueDate.Before(issueDate) {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot precede issue date")
	}

	calc := NewCalculator()
	breakdown, err := calc.Compute(items, config)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		ClientID:          clientID,
		ClientName:        clientName,
		Variant:           variant,
		Status:            InvoiceStatusUnpaid,
		Items:             items,
		Config:            config,
		IssueDate:         issueDate,
		DueDate:           dueDate,
	}

	switch v := variant.(type) {
	case StandardInvoice:
		inv.Breakdown = breakdown
		inv.Amount = breakdown.TotalWithVAT
	case DepositInvoice:
		if !v.DepositBase.IsPositive() {
			return nil, shared.NewDomainError("INVALID_DEPOSIT", "Deposit base must be positive")
		}
		inv.Breakdown = breakdown
		inv.Amount = calc.DepositInvoiceTotals(breakdown, config).Payable
	case FinalInvoice:
		if v.DepositInvoiceID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_PAIR", "Final invoice requires its deposit invoice")
		}
		if !config.Deposit.Enabled {
			return nil, shared.NewDomainError("INVALID_PAIR", "Final invoice requires a deposit-enabled configuration")
		}
		inv.Breakdown = breakdown
		inv.Amount = calc.FinalInvoiceTotals(breakdown, breakdown.DepositAmount).Remaining
	case CreditNote:
		if v.RelatedInvoiceID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_CREDIT_NOTE", "Credit note requires a related invoice")
		}
		// Credit notes store the exact negation of the equivalent
		// standard breakdown. The incoming items are pre-negated, so the
		// breakdown is computed on their positive counterparts and then
		// negated: ceiling the VAT on a negative base would round toward
		// zero and leave a one-cent residual on the related invoice.
		positive, perr := calc.Compute(items.Negated(), config)
		if perr != nil {
			return nil, perr
		}
		inv.Breakdown = positive.Negate()
		inv.Amount = inv.Breakdown.TotalWithVAT
	default:
		return nil, shared.NewDomainError("INVALID_KIND", fmt.Sprintf("Unknown invoice kind %T", variant))
	}

	inv.NetAmount = inv.Breakdown.NetAmount
	inv.VATAmount = inv.Breakdown.VATAmount

	inv.AddDomainEvent(NewInvoiceIssuedEvent(inv))

	return inv, nil
}

// IsCreditNote returns true when the document is a credit note
func (inv *Invoice) IsCreditNote() bool {
	return inv.Variant != nil && inv.Variant.DocumentType() == DocumentTypeCreditNote
}

// RelatedInvoiceID returns the offset target for credit notes, nil otherwise
func (inv *Invoice) RelatedInvoiceID() *uuid.UUID {
	if cn, ok := inv.Variant.(CreditNote); ok {
		id := cn.RelatedInvoiceID
		return &id
	}
	return nil
}

// MarkPaid transitions the invoice to paid. Paying an already paid or
// cancelled invoice is rejected; collections stop at paid.
func (inv *Invoice) MarkPaid(now time.Time) error {
	if !inv.Status.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark invoice paid in %s status", inv.Status))
	}
	inv.Status = InvoiceStatusPaid
	inv.PaidAt = &now
	inv.UpdatedAt = now
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	return nil
}

// Cancel transitions the invoice to cancelled from any non-cancelled state
func (inv *Invoice) Cancel(now time.Time, reason string) error {
	if inv.Status == InvoiceStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Invoice is already cancelled")
	}
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.UpdatedAt = now
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv))
	return nil
}

// Reactivate reopens a paid or cancelled invoice. The resulting open
// status is chosen from the due date: past due reopens as overdue.
func (inv *Invoice) Reactivate(now time.Time) error {
	if !inv.Status.IsClosed() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot reactivate invoice in %s status", inv.Status))
	}
	if inv.IsOverdueAt(now) {
		inv.Status = InvoiceStatusOverdue
	} else {
		inv.Status = InvoiceStatusUnpaid
	}
	inv.PaidAt = nil
	inv.ReactivatedAt = &now
	inv.UpdatedAt = now
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoiceReactivatedEvent(inv))
	return nil
}

// RefreshDueStatus flips between unpaid and overdue from the due date.
// It touches nothing else: follow-up escalation is governed solely by
// the scheduler's own stage logic.
func (inv *Invoice) RefreshDueStatus(now time.Time) bool {
	if !inv.Status.IsOpen() {
		return false
	}
	next := InvoiceStatusUnpaid
	if inv.IsOverdueAt(now) {
		next = InvoiceStatusOverdue
	}
	if next == inv.Status {
		return false
	}
	inv.Status = next
	inv.UpdatedAt = now
	inv.IncrementVersion()
	return true
}

// IsOverdueAt returns true when the due date has passed at the given instant
func (inv *Invoice) IsOverdueAt(now time.Time) bool {
	return now.After(inv.DueDate)
}

// DaysOverdue returns whole days past due at the given instant, 0 when not overdue
func (inv *Invoice) DaysOverdue(now time.Time) int {
	if !inv.IsOverdueAt(now) {
		return 0
	}
	return int(now.Sub(inv.DueDate).Hours() / 24)
}

// DaysUntilDue returns whole days until the due date, 0 when already due
func (inv *Invoice) DaysUntilDue(now time.Time) int {
	if !now.Before(inv.DueDate) {
		return 0
	}
	return int(inv.DueDate.Sub(now).Hours() / 24)
}
