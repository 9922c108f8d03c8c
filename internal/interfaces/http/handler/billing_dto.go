package handler

import (
	"time"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/followup"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItemRequest represents one priced line in a request body. When
// line_total is omitted it is derived from quantity and unit_price.
type LineItemRequest struct {
	Description string  `json:"description" binding:"required,max=500" example:"Kitchen renovation, labor"`
	Unit        string  `json:"unit" binding:"max=20" example:"day"`
	Quantity    float64 `json:"quantity" binding:"gte=0" example:"3"`
	UnitPrice   float64 `json:"unit_price" binding:"gte=0" example:"450.00"`
	LineTotal   float64 `json:"line_total" binding:"gte=0" example:"1350.00"`
}

// VATConfigRequest controls VAT on a document
type VATConfigRequest struct {
	Enabled     bool    `json:"enabled" example:"true"`
	RatePercent float64 `json:"rate_percent" binding:"gte=0" example:"21"`
}

// DiscountConfigRequest controls the subtotal discount
type DiscountConfigRequest struct {
	Enabled     bool    `json:"enabled" example:"false"`
	RatePercent float64 `json:"rate_percent" binding:"gte=0,lte=100" example:"10"`
}

// DepositConfigRequest controls the upfront deposit split
type DepositConfigRequest struct {
	Enabled bool    `json:"enabled" example:"true"`
	Amount  float64 `json:"amount" binding:"gte=0" example:"1000.00"`
}

// FinancialConfigRequest is the tax/discount/deposit configuration in
// a request body
type FinancialConfigRequest struct {
	VAT      VATConfigRequest      `json:"vat"`
	Discount DiscountConfigRequest `json:"discount"`
	Deposit  DepositConfigRequest  `json:"deposit"`
}

// toDomain converts request line items into domain line items
func toLineItems(items []LineItemRequest) billing.LineItems {
	out := make(billing.LineItems, 0, len(items))
	for _, it := range items {
		out = append(out, billing.NewLineItem(
			it.Description,
			it.Unit,
			decimal.NewFromFloat(it.Quantity),
			decimal.NewFromFloat(it.UnitPrice),
			decimal.NewFromFloat(it.LineTotal),
		))
	}
	return out
}

// toDomain converts a config request into the domain configuration
func (r FinancialConfigRequest) toDomain() billing.FinancialConfig {
	return billing.FinancialConfig{
		VAT: billing.VATConfig{
			Enabled:     r.VAT.Enabled,
			RatePercent: decimal.NewFromFloat(r.VAT.RatePercent),
		},
		Discount: billing.DiscountConfig{
			Enabled:     r.Discount.Enabled,
			RatePercent: decimal.NewFromFloat(r.Discount.RatePercent),
		},
		Deposit: billing.DepositConfig{
			Enabled: r.Deposit.Enabled,
			Amount:  decimal.NewFromFloat(r.Deposit.Amount),
		},
	}
}

// BreakdownResponse carries the derived monetary fields of a document
type BreakdownResponse struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	VATAmount      decimal.Decimal `json:"vat_amount"`
	TotalWithVAT   decimal.Decimal `json:"total_with_vat"`
	DepositAmount  decimal.Decimal `json:"deposit_amount"`
	BalanceAmount  decimal.Decimal `json:"balance_amount"`
}

func toBreakdownResponse(b billing.MonetaryBreakdown) BreakdownResponse {
	return BreakdownResponse{
		Subtotal:       b.Subtotal,
		DiscountAmount: b.DiscountAmount,
		NetAmount:      b.NetAmount,
		VATAmount:      b.VATAmount,
		TotalWithVAT:   b.TotalWithVAT,
		DepositAmount:  b.DepositAmount,
		BalanceAmount:  b.BalanceAmount,
	}
}

// QuoteResponse represents a quote in API responses
type QuoteResponse struct {
	ID          uuid.UUID               `json:"id"`
	Number      string                  `json:"number"`
	ClientID    uuid.UUID               `json:"client_id"`
	ClientName  string                  `json:"client_name"`
	ClientEmail string                  `json:"client_email,omitempty"`
	Status      billing.QuoteStatus     `json:"status"`
	Items       billing.LineItems       `json:"items"`
	Config      billing.FinancialConfig `json:"config"`
	Breakdown   BreakdownResponse       `json:"breakdown"`
	ValidUntil  *time.Time              `json:"valid_until,omitempty"`
	AcceptedAt  *time.Time              `json:"accepted_at,omitempty"`
	InvoicedAt  *time.Time              `json:"invoiced_at,omitempty"`
	Remark      string                  `json:"remark,omitempty"`
	Version     int                     `json:"version"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

func toQuoteResponse(q *billing.Quote) QuoteResponse {
	return QuoteResponse{
		ID:          q.ID,
		Number:      q.Number,
		ClientID:    q.ClientID,
		ClientName:  q.ClientName,
		ClientEmail: q.ClientEmail,
		Status:      q.Status,
		Items:       q.Items,
		Config:      q.Config,
		Breakdown:   toBreakdownResponse(q.Breakdown),
		ValidUntil:  q.ValidUntil,
		AcceptedAt:  q.AcceptedAt,
		InvoicedAt:  q.InvoicedAt,
		Remark:      q.Remark,
		Version:     q.Version,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
}

func toQuoteListResponse(quotes []billing.Quote) []QuoteResponse {
	out := make([]QuoteResponse, 0, len(quotes))
	for i := range quotes {
		out = append(out, toQuoteResponse(&quotes[i]))
	}
	return out
}

// InvoiceResponse represents an invoice or credit note in API responses.
// Variant-specific references are flattened onto optional fields.
type InvoiceResponse struct {
	ID               uuid.UUID               `json:"id"`
	Number           string                  `json:"number"`
	Kind             billing.InvoiceKind     `json:"kind"`
	DocumentType     billing.DocumentType    `json:"document_type"`
	ClientID         uuid.UUID               `json:"client_id"`
	ClientName       string                  `json:"client_name"`
	ClientEmail      string                  `json:"client_email,omitempty"`
	Status           billing.InvoiceStatus   `json:"status"`
	Items            billing.LineItems       `json:"items"`
	Config           billing.FinancialConfig `json:"config"`
	Breakdown        BreakdownResponse       `json:"breakdown"`
	Amount           decimal.Decimal         `json:"amount"`
	NetAmount        decimal.Decimal         `json:"net_amount"`
	VATAmount        decimal.Decimal         `json:"vat_amount"`
	DepositBase      *decimal.Decimal        `json:"deposit_base,omitempty"`
	DepositInvoiceID *uuid.UUID              `json:"deposit_invoice_id,omitempty"`
	RelatedInvoiceID *uuid.UUID              `json:"related_invoice_id,omitempty"`
	IssueDate        time.Time               `json:"issue_date"`
	DueDate          time.Time               `json:"due_date"`
	QuoteID          *uuid.UUID              `json:"quote_id,omitempty"`
	QuoteNumber      string                  `json:"quote_number,omitempty"`
	PaidAt           *time.Time              `json:"paid_at,omitempty"`
	CancelledAt      *time.Time              `json:"cancelled_at,omitempty"`
	CancelReason     string                  `json:"cancel_reason,omitempty"`
	ReactivatedAt    *time.Time              `json:"reactivated_at,omitempty"`
	Version          int                     `json:"version"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

func toInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID,
		Number:        inv.Number,
		Kind:          inv.Variant.Kind(),
		DocumentType:  inv.Variant.DocumentType(),
		ClientID:      inv.ClientID,
		ClientName:    inv.ClientName,
		ClientEmail:   inv.ClientEmail,
		Status:        inv.Status,
		Items:         inv.Items,
		Config:        inv.Config,
		Breakdown:     toBreakdownResponse(inv.Breakdown),
		Amount:        inv.Amount,
		NetAmount:     inv.NetAmount,
		VATAmount:     inv.VATAmount,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		QuoteID:       inv.QuoteID,
		QuoteNumber:   inv.QuoteNumber,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		CancelReason:  inv.CancelReason,
		ReactivatedAt: inv.ReactivatedAt,
		Version:       inv.Version,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
	switch v := inv.Variant.(type) {
	case billing.DepositInvoice:
		base := v.DepositBase
		resp.DepositBase = &base
	case billing.FinalInvoice:
		id := v.DepositInvoiceID
		resp.DepositInvoiceID = &id
	case billing.CreditNote:
		id := v.RelatedInvoiceID
		resp.RelatedInvoiceID = &id
	}
	return resp
}

func toInvoiceListResponse(invoices []billing.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		out = append(out, toInvoiceResponse(&invoices[i]))
	}
	return out
}

// InvoiceDetailResponse is the single-invoice view: the document plus
// its outstanding balance and the credit notes referencing it.
type InvoiceDetailResponse struct {
	InvoiceResponse
	Balance     *decimal.Decimal  `json:"balance,omitempty"`
	Settled     bool              `json:"settled"`
	CreditNotes []InvoiceResponse `json:"credit_notes,omitempty"`
}

// IssuedDocumentsResponse is the result of invoicing a quote
type IssuedDocumentsResponse struct {
	Standard *InvoiceResponse `json:"standard,omitempty"`
	Deposit  *InvoiceResponse `json:"deposit,omitempty"`
	Final    *InvoiceResponse `json:"final,omitempty"`
}

// FollowUpResponse represents a payment follow-up in API responses
type FollowUpResponse struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Stage         int             `json:"stage"`
	Kind          followup.Kind   `json:"kind"`
	Status        followup.Status `json:"status"`
	ScheduledAt   time.Time       `json:"scheduled_at"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
	StoppedAt     *time.Time      `json:"stopped_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	DispatchCount int             `json:"dispatch_count"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toFollowUpResponse(f *followup.FollowUp) FollowUpResponse {
	return FollowUpResponse{
		ID:            f.ID,
		InvoiceID:     f.InvoiceID,
		InvoiceNumber: f.InvoiceNumber,
		Stage:         f.Stage,
		Kind:          f.Kind,
		Status:        f.Status,
		ScheduledAt:   f.ScheduledAt,
		SentAt:        f.SentAt,
		StoppedAt:     f.StoppedAt,
		LastError:     f.LastError,
		DispatchCount: f.DispatchCount,
		Version:       f.Version,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

func toFollowUpListResponse(followUps []followup.FollowUp) []FollowUpResponse {
	out := make([]FollowUpResponse, 0, len(followUps))
	for i := range followUps {
		out = append(out, toFollowUpResponse(&followUps[i]))
	}
	return out
}

// FollowUpLogResponse is one line of the per-invoice reminder trail
type FollowUpLogResponse struct {
	ID         uuid.UUID     `json:"id"`
	InvoiceID  uuid.UUID     `json:"invoice_id"`
	FollowUpID uuid.UUID     `json:"follow_up_id"`
	Stage      int           `json:"stage"`
	Kind       followup.Kind `json:"kind"`
	Outcome    string        `json:"outcome"`
	Message    string        `json:"message,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func toFollowUpLogResponse(entries []followup.LogEntry) []FollowUpLogResponse {
	out := make([]FollowUpLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, FollowUpLogResponse{
			ID:         e.ID,
			InvoiceID:  e.InvoiceID,
			FollowUpID: e.FollowUpID,
			Stage:      e.Stage,
			Kind:       e.Kind,
			Outcome:    e.Outcome,
			Message:    e.Message,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}
