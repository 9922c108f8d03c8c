package followup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/followup"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/messaging"
	"github.com/google/uuid"
)

// fakeInvoiceRepo is an in-memory billing.InvoiceRepository
type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*billing.Invoice
	seq      int
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[uuid.UUID]*billing.Invoice)}
}

func (r *fakeInvoiceRepo) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoices[id], nil
}

func (r *fakeInvoiceRepo) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.Number == number {
			return inv, nil
		}
	}
	return nil, nil
}

func (r *fakeInvoiceRepo) FindAll(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.invoices {
		out = append(out, *inv)
	}
	return out, int64(len(out)), nil
}

func (r *fakeInvoiceRepo) FindOpen(ctx context.Context) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.invoices {
		if inv.Status.IsOpen() && !inv.IsCreditNote() {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) FindCreditNotesFor(ctx context.Context, invoiceID uuid.UUID) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.invoices {
		if related := inv.RelatedInvoiceID(); related != nil && *related == invoiceID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) FindByQuote(ctx context.Context, quoteID uuid.UUID) ([]billing.Invoice, error) {
	return nil, nil
}

func (r *fakeInvoiceRepo) Save(ctx context.Context, invoice *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[invoice.ID] = invoice
	return nil
}

func (r *fakeInvoiceRepo) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	return r.Save(ctx, invoice)
}

func (r *fakeInvoiceRepo) NextNumber(ctx context.Context, docType billing.DocumentType) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("DOC-%04d", r.seq), nil
}

// fakeFollowUpRepo is an in-memory followup.Repository that enforces
// the one-active-per-invoice unique constraint on Save.
type fakeFollowUpRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*followup.FollowUp
	order []uuid.UUID

	// conflictOnSave simulates losing a create race: the next Save of a
	// new row returns ErrAlreadyExists after registering this follow-up
	// as the winner.
	conflictOnSave *followup.FollowUp
}

func newFakeFollowUpRepo() *fakeFollowUpRepo {
	return &fakeFollowUpRepo{items: make(map[uuid.UUID]*followup.FollowUp)}
}

func (r *fakeFollowUpRepo) FindByID(ctx context.Context, id uuid.UUID) (*followup.FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id], nil
}

func (r *fakeFollowUpRepo) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]followup.FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []followup.FollowUp
	for i := len(r.order) - 1; i >= 0; i-- {
		f := r.items[r.order[i]]
		if f.InvoiceID == invoiceID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *fakeFollowUpRepo) FindActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) (*followup.FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeByInvoiceLocked(invoiceID), nil
}

func (r *fakeFollowUpRepo) activeByInvoiceLocked(invoiceID uuid.UUID) *followup.FollowUp {
	for _, f := range r.items {
		if f.InvoiceID == invoiceID && f.Status.IsActive() {
			return f
		}
	}
	return nil
}

func (r *fakeFollowUpRepo) FindDue(ctx context.Context, now time.Time) ([]followup.FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []followup.FollowUp
	for _, id := range r.order {
		f := r.items[id]
		if f.IsDue(now) {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *fakeFollowUpRepo) FindActive(ctx context.Context) ([]followup.FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []followup.FollowUp
	for _, id := range r.order {
		f := r.items[id]
		if f.Status.IsActive() {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *fakeFollowUpRepo) FindAll(ctx context.Context, filter followup.Filter) ([]followup.FollowUp, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []followup.FollowUp
	for _, id := range r.order {
		out = append(out, *r.items[id])
	}
	return out, int64(len(out)), nil
}

func (r *fakeFollowUpRepo) Save(ctx context.Context, f *followup.FollowUp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[f.ID]; !exists {
		if r.conflictOnSave != nil {
			winner := r.conflictOnSave
			r.conflictOnSave = nil
			r.storeLocked(winner)
			return shared.ErrAlreadyExists
		}
		if f.Status.IsActive() {
			if active := r.activeByInvoiceLocked(f.InvoiceID); active != nil && active.ID != f.ID {
				return shared.ErrAlreadyExists
			}
		}
	}
	r.storeLocked(f)
	return nil
}

func (r *fakeFollowUpRepo) storeLocked(f *followup.FollowUp) {
	if _, exists := r.items[f.ID]; !exists {
		r.order = append(r.order, f.ID)
	}
	clone := *f
	r.items[f.ID] = &clone
}

func (r *fakeFollowUpRepo) SaveWithLock(ctx context.Context, f *followup.FollowUp) error {
	return r.Save(ctx, f)
}

func (r *fakeFollowUpRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// fakeLogRepo records audit entries in memory
type fakeLogRepo struct {
	mu      sync.Mutex
	entries []followup.LogEntry
}

func (r *fakeLogRepo) Append(ctx context.Context, entry *followup.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeLogRepo) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]followup.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []followup.LogEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].InvoiceID == invoiceID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeLogRepo) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		out = append(out, e.Outcome)
	}
	return out
}

// recordingSender captures outgoing emails, optionally failing
type recordingSender struct {
	mu       sync.Mutex
	sent     []messaging.Email
	failWith error
}

func (s *recordingSender) Send(ctx context.Context, email *messaging.Email) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return "", s.failWith
	}
	s.sent = append(s.sent, *email)
	return fmt.Sprintf("msg-%d", len(s.sent)), nil
}

// fakeDocs serves a fixed PDF, optionally failing
type fakeDocs struct {
	data []byte
	err  error
}

func (d *fakeDocs) Ensure(ctx context.Context, inv *billing.Invoice) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.data, nil
}
