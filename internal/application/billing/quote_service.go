package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPaymentTermDays is the due-date offset applied to issued
// invoices when the caller does not override it.
const DefaultPaymentTermDays = 30

// QuoteService handles the quote lifecycle and the issuance of
// invoices and credit notes from it.
type QuoteService struct {
	quoteRepo       billing.QuoteRepository
	invoiceRepo     billing.InvoiceRepository
	clock           shared.Clock
	paymentTermDays int
	logger          *zap.Logger
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(
	quoteRepo billing.QuoteRepository,
	invoiceRepo billing.InvoiceRepository,
	clock shared.Clock,
	paymentTermDays int,
	logger *zap.Logger,
) *QuoteService {
	if paymentTermDays <= 0 {
		paymentTermDays = DefaultPaymentTermDays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteService{
		quoteRepo:       quoteRepo,
		invoiceRepo:     invoiceRepo,
		clock:           clock,
		paymentTermDays: paymentTermDays,
		logger:          logger,
	}
}

// CreateQuoteRequest carries the input for a new quote
type CreateQuoteRequest struct {
	ClientID    uuid.UUID
	ClientName  string
	ClientEmail string
	Items       billing.LineItems
	Config      billing.FinancialConfig
	ValidUntil  *time.Time
}

// CreateQuote creates a draft quote with its breakdown computed
func (s *QuoteService) CreateQuote(ctx context.Context, req CreateQuoteRequest) (*billing.Quote, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quote", "create")
	defer span.End()

	number, err := s.quoteRepo.NextNumber(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to generate quote number: %w", err)
	}

	quote, err := billing.NewQuote(number, req.ClientID, req.ClientName, req.Items, req.Config, req.ValidUntil)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	quote.ClientEmail = req.ClientEmail
	if err := s.quoteRepo.Save(ctx, quote); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save quote: %w", err)
	}

	s.logger.Info("Quote created",
		zap.String("quote_id", quote.ID.String()),
		zap.String("number", quote.Number))
	return quote, nil
}

// UpdateQuotePricing replaces a quote's items and configuration
func (s *QuoteService) UpdateQuotePricing(ctx context.Context, id uuid.UUID, items billing.LineItems, config billing.FinancialConfig) (*billing.Quote, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quote", "update_pricing")
	defer span.End()

	quote, err := s.loadQuote(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := quote.UpdatePricing(items, config); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.quoteRepo.Save(ctx, quote); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save quote: %w", err)
	}
	return quote, nil
}

// SendQuote marks a draft quote as sent to the client
func (s *QuoteService) SendQuote(ctx context.Context, id uuid.UUID) (*billing.Quote, error) {
	return s.transition(ctx, id, "send", func(q *billing.Quote) error {
		return q.MarkSent()
	})
}

// AcceptQuote records the client's acceptance
func (s *QuoteService) AcceptQuote(ctx context.Context, id uuid.UUID) (*billing.Quote, error) {
	now := s.clock.Now()
	return s.transition(ctx, id, "accept", func(q *billing.Quote) error {
		return q.Accept(now)
	})
}

// DeclineQuote records the client's refusal
func (s *QuoteService) DeclineQuote(ctx context.Context, id uuid.UUID) (*billing.Quote, error) {
	return s.transition(ctx, id, "decline", func(q *billing.Quote) error {
		return q.Decline()
	})
}

// IssuedDocuments is the result of invoicing a quote: one standard
// invoice, or a deposit/final pair when the quote carries a deposit.
type IssuedDocuments struct {
	Standard *billing.Invoice
	Deposit  *billing.Invoice
	Final    *billing.Invoice
}

// IssueInvoices turns an accepted quote into its invoices. Items and
// configuration are frozen from the quote at this point.
func (s *QuoteService) IssueInvoices(ctx context.Context, quoteID uuid.UUID) (*IssuedDocuments, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quote", "issue_invoices")
	defer span.End()
	telemetry.SetAttribute(span, "quote_id", quoteID.String())

	quote, err := s.loadQuote(ctx, quoteID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if quote.Status != billing.QuoteStatusAccepted {
		err := shared.NewDomainError("INVALID_STATE", "Only accepted quotes can be invoiced")
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	issueDate := now
	dueDate := now.AddDate(0, 0, s.paymentTermDays)
	docs := &IssuedDocuments{}

	if quote.HasDeposit() {
		depositNumber, err := s.invoiceRepo.NextNumber(ctx, billing.DocumentTypeInvoice)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to generate invoice number: %w", err)
		}
		deposit, err := billing.NewInvoice(
			depositNumber, quote.ClientID, quote.ClientName,
			billing.DepositInvoice{DepositBase: quote.Config.Deposit.Amount},
			quote.Items, quote.Config, issueDate, dueDate,
		)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		s.linkToQuote(deposit, quote)
		if err := s.invoiceRepo.Save(ctx, deposit); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to save deposit invoice: %w", err)
		}

		finalNumber, err := s.invoiceRepo.NextNumber(ctx, billing.DocumentTypeInvoice)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to generate invoice number: %w", err)
		}
		final, err := billing.NewInvoice(
			finalNumber, quote.ClientID, quote.ClientName,
			billing.FinalInvoice{DepositInvoiceID: deposit.ID},
			quote.Items, quote.Config, issueDate, dueDate,
		)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		s.linkToQuote(final, quote)
		if err := s.invoiceRepo.Save(ctx, final); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to save final invoice: %w", err)
		}

		docs.Deposit = deposit
		docs.Final = final
	} else {
		number, err := s.invoiceRepo.NextNumber(ctx, billing.DocumentTypeInvoice)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to generate invoice number: %w", err)
		}
		standard, err := billing.NewInvoice(
			number, quote.ClientID, quote.ClientName,
			billing.StandardInvoice{},
			quote.Items, quote.Config, issueDate, dueDate,
		)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		s.linkToQuote(standard, quote)
		if err := s.invoiceRepo.Save(ctx, standard); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to save invoice: %w", err)
		}
		docs.Standard = standard
	}

	if err := quote.MarkInvoiced(now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.quoteRepo.Save(ctx, quote); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save quote: %w", err)
	}

	s.logger.Info("Quote invoiced",
		zap.String("quote_id", quote.ID.String()),
		zap.Bool("deposit_pair", quote.HasDeposit()))
	return docs, nil
}

// IssueCreditNoteRequest carries the input for a credit note. When
// Items is empty the full related invoice is credited.
type IssueCreditNoteRequest struct {
	InvoiceID uuid.UUID
	Items     billing.LineItems
	Reason    string
}

// IssueCreditNote creates a credit note offsetting an invoice. The
// stored line items and amounts are negative; the related invoice
// itself is never mutated.
func (s *QuoteService) IssueCreditNote(ctx context.Context, req IssueCreditNoteRequest) (*billing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quote", "issue_credit_note")
	defer span.End()
	telemetry.SetAttribute(span, "invoice_id", req.InvoiceID.String())

	related, err := s.invoiceRepo.FindByID(ctx, req.InvoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if related == nil {
		telemetry.RecordError(span, shared.ErrNotFound)
		return nil, shared.ErrNotFound
	}
	if related.IsCreditNote() {
		err := shared.NewDomainError("INVALID_STATE", "Cannot credit a credit note")
		telemetry.RecordError(span, err)
		return nil, err
	}

	items := req.Items
	if len(items) == 0 {
		items = related.Items.Negated()
	}

	number, err := s.invoiceRepo.NextNumber(ctx, billing.DocumentTypeCreditNote)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to generate credit note number: %w", err)
	}

	now := s.clock.Now()
	note, err := billing.NewInvoice(
		number, related.ClientID, related.ClientName,
		billing.CreditNote{RelatedInvoiceID: related.ID},
		items, related.Config, now, now,
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	note.QuoteID = related.QuoteID
	note.QuoteNumber = related.QuoteNumber
	note.ClientEmail = related.ClientEmail
	if err := s.invoiceRepo.Save(ctx, note); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save credit note: %w", err)
	}

	s.logger.Info("Credit note issued",
		zap.String("credit_note_id", note.ID.String()),
		zap.String("related_invoice_id", related.ID.String()),
		zap.String("reason", req.Reason))
	return note, nil
}

func (s *QuoteService) loadQuote(ctx context.Context, id uuid.UUID) (*billing.Quote, error) {
	quote, err := s.quoteRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load quote: %w", err)
	}
	if quote == nil {
		return nil, shared.ErrNotFound
	}
	return quote, nil
}

func (s *QuoteService) linkToQuote(inv *billing.Invoice, quote *billing.Quote) {
	id := quote.ID
	inv.QuoteID = &id
	inv.QuoteNumber = quote.Number
	inv.ClientEmail = quote.ClientEmail
}

func (s *QuoteService) transition(ctx context.Context, id uuid.UUID, name string, fn func(*billing.Quote) error) (*billing.Quote, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quote", name)
	defer span.End()

	quote, err := s.loadQuote(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := fn(quote); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.quoteRepo.Save(ctx, quote); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save quote: %w", err)
	}
	return quote, nil
}
