package billing

import (
	"context"
	"time"

	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	ClientID     *uuid.UUID
	Status       *InvoiceStatus
	Kind         *InvoiceKind
	DocumentType *DocumentType
	DueFrom      *time.Time
	DueTo        *time.Time
	Overdue      *bool
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByNumber finds an invoice by its document number
	FindByNumber(ctx context.Context, number string) (*Invoice, error)

	// FindAll finds invoices with filtering
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)

	// FindOpen finds all unpaid and overdue invoices (credit notes excluded)
	FindOpen(ctx context.Context) ([]Invoice, error)

	// FindCreditNotesFor finds the credit notes referencing an invoice
	FindCreditNotesFor(ctx context.Context, invoiceID uuid.UUID) ([]Invoice, error)

	// FindByQuote finds every document issued from a quote
	FindByQuote(ctx context.Context, quoteID uuid.UUID) ([]Invoice, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// NextNumber generates the next document number for the given type
	NextNumber(ctx context.Context, docType DocumentType) (string, error)
}

// QuoteFilter defines filtering options for quote queries
type QuoteFilter struct {
	shared.Filter
	ClientID *uuid.UUID
	Status   *QuoteStatus
}

// QuoteRepository defines the interface for quote persistence
type QuoteRepository interface {
	// FindByID finds a quote by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Quote, error)

	// FindByNumber finds a quote by its document number
	FindByNumber(ctx context.Context, number string) (*Quote, error)

	// FindAll finds quotes with filtering
	FindAll(ctx context.Context, filter QuoteFilter) ([]Quote, int64, error)

	// Save creates or updates a quote
	Save(ctx context.Context, quote *Quote) error

	// NextNumber generates the next quote number
	NextNumber(ctx context.Context) (string, error)
}
