package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/followup"
	"github.com/facturio/backend/internal/infrastructure/document"
	"github.com/facturio/backend/internal/infrastructure/messaging"
	"github.com/facturio/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatch outcomes recorded in the report and the audit log
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// DispatchItem is the per-follow-up outcome of a dispatcher pass
type DispatchItem struct {
	FollowUpID uuid.UUID `json:"follow_up_id"`
	InvoiceID  uuid.UUID `json:"invoice_id"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
}

// DispatchReport summarizes one dispatcher pass
type DispatchReport struct {
	Items   []DispatchItem `json:"items,omitempty"`
	Sent    int            `json:"sent"`
	Failed  int            `json:"failed"`
	Skipped int            `json:"skipped"`
}

func (r *DispatchReport) add(f *followup.FollowUp, outcome, reason string) {
	r.Items = append(r.Items, DispatchItem{
		FollowUpID: f.ID,
		InvoiceID:  f.InvoiceID,
		Outcome:    outcome,
		Reason:     reason,
	})
	switch outcome {
	case OutcomeSent:
		r.Sent++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	}
}

// DocumentProvider supplies the invoice PDF attached to reminders.
// Implemented by the document service.
type DocumentProvider interface {
	Ensure(ctx context.Context, inv *billing.Invoice) ([]byte, error)
}

// Dispatcher sends due payment reminders. Each item is handled in
// isolation; a failed send marks that follow-up failed and moves on,
// it is never retried within or across passes.
type Dispatcher struct {
	invoiceRepo  billing.InvoiceRepository
	followUpRepo followup.Repository
	logRepo      followup.LogRepository
	resolver     *billing.BalanceResolver
	sender       messaging.Sender
	composer     *messaging.ReminderComposer
	documents    DocumentProvider
	logger       *zap.Logger
}

// NewDispatcher creates a new Dispatcher. The document provider may be
// nil, in which case reminders go out without an attachment.
func NewDispatcher(
	invoiceRepo billing.InvoiceRepository,
	followUpRepo followup.Repository,
	logRepo followup.LogRepository,
	resolver *billing.BalanceResolver,
	sender messaging.Sender,
	composer *messaging.ReminderComposer,
	documents DocumentProvider,
	logger *zap.Logger,
) *Dispatcher {
	if resolver == nil {
		resolver = billing.NewBalanceResolver()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		invoiceRepo:  invoiceRepo,
		followUpRepo: followUpRepo,
		logRepo:      logRepo,
		resolver:     resolver,
		sender:       sender,
		composer:     composer,
		documents:    documents,
		logger:       logger,
	}
}

// DispatchDue processes every follow-up whose dispatch time has
// passed. The invoice is re-read per item so a payment or cancellation
// landing after scheduling still suppresses the reminder.
func (d *Dispatcher) DispatchDue(ctx context.Context, now time.Time) (*DispatchReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "follow_up_dispatcher", "dispatch_due")
	defer span.End()

	due, err := d.followUpRepo.FindDue(ctx, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list due follow-ups: %w", err)
	}

	report := &DispatchReport{}
	for i := range due {
		d.dispatchOne(ctx, &due[i], now, report)
	}

	telemetry.SetAttributes(span,
		"sent", report.Sent, "failed", report.Failed, "skipped", report.Skipped)
	if report.Sent+report.Failed+report.Skipped > 0 {
		d.logger.Info("Dispatch pass completed",
			zap.Int("sent", report.Sent),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped))
	}
	return report, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, f *followup.FollowUp, now time.Time, report *DispatchReport) {
	inv, err := d.invoiceRepo.FindByID(ctx, f.InvoiceID)
	if err != nil {
		d.logger.Warn("Failed to load invoice for follow-up",
			zap.String("follow_up_id", f.ID.String()), zap.Error(err))
		report.add(f, OutcomeSkipped, "invoice load failed")
		return
	}
	if inv == nil {
		d.stopAndLog(ctx, f, now, "invoice no longer exists")
		report.add(f, OutcomeSkipped, "invoice not found")
		return
	}

	// Fresh read decides: a closed invoice ends the campaign.
	if !inv.Status.IsOpen() {
		d.stopAndLog(ctx, f, now, fmt.Sprintf("invoice is %s", inv.Status))
		report.add(f, OutcomeSkipped, fmt.Sprintf("invoice %s", inv.Status))
		return
	}

	// Credit notes may have settled the balance without a payment.
	notes, err := d.invoiceRepo.FindCreditNotesFor(ctx, inv.ID)
	if err == nil && d.resolver.IsSettled(inv, notes) {
		d.stopAndLog(ctx, f, now, "balance settled by credit notes")
		report.add(f, OutcomeSkipped, "balance settled")
		return
	}

	if err := f.MarkReady(now); err != nil {
		report.add(f, OutcomeSkipped, "not in dispatchable state")
		return
	}
	if err := d.followUpRepo.SaveWithLock(ctx, f); err != nil {
		// Another pass claimed it first.
		report.add(f, OutcomeSkipped, "claimed by concurrent pass")
		return
	}

	email, err := d.buildReminder(ctx, inv, f, now)
	if err != nil {
		d.recordFailure(ctx, f, now, err, report)
		return
	}

	if _, err := d.sender.Send(ctx, email); err != nil {
		d.recordFailure(ctx, f, now, err, report)
		return
	}

	if err := f.MarkSent(now); err != nil {
		d.logger.Warn("Failed to mark follow-up sent",
			zap.String("follow_up_id", f.ID.String()), zap.Error(err))
	}
	if err := d.followUpRepo.SaveWithLock(ctx, f); err != nil {
		d.logger.Warn("Failed to persist sent follow-up",
			zap.String("follow_up_id", f.ID.String()), zap.Error(err))
	}
	d.appendLog(ctx, f, OutcomeSent, "", now)
	report.add(f, OutcomeSent, "")
}

// buildReminder composes the email for a follow-up. The template is
// chosen from the invoice's position at send time, not at scheduling
// time: an invoice that went overdue while the reminder waited gets
// the overdue wording.
func (d *Dispatcher) buildReminder(ctx context.Context, inv *billing.Invoice, f *followup.FollowUp, now time.Time) (*messaging.Email, error) {
	if inv.ClientEmail == "" {
		return nil, fmt.Errorf("invoice %s has no client email", inv.Number)
	}

	data := messaging.ReminderData{
		ClientName:    inv.ClientName,
		ClientEmail:   inv.ClientEmail,
		InvoiceNumber: inv.Number,
		Amount:        inv.Amount,
		DueDate:       inv.DueDate,
		DaysOverdue:   inv.DaysOverdue(now),
		Stage:         f.Stage,
		Overdue:       inv.IsOverdueAt(now),
	}

	// Attachment is best effort: stored document, then a fresh render,
	// then none at all.
	if d.documents != nil {
		pdf, err := d.documents.Ensure(ctx, inv)
		if err != nil {
			d.logger.Warn("Reminder goes out without attachment",
				zap.String("invoice_number", inv.Number), zap.Error(err))
		} else {
			data.Attachment = &messaging.Attachment{
				Filename:    fmt.Sprintf("%s.pdf", inv.Number),
				ContentType: "application/pdf",
				Content:     pdf,
			}
		}
	}

	return d.composer.Compose(data)
}

func (d *Dispatcher) recordFailure(ctx context.Context, f *followup.FollowUp, now time.Time, cause error, report *DispatchReport) {
	if err := f.MarkFailed(now, cause.Error()); err != nil {
		d.logger.Warn("Failed to mark follow-up failed",
			zap.String("follow_up_id", f.ID.String()), zap.Error(err))
	}
	if err := d.followUpRepo.SaveWithLock(ctx, f); err != nil {
		d.logger.Warn("Failed to persist failed follow-up",
			zap.String("follow_up_id", f.ID.String()), zap.Error(err))
	}
	d.appendLog(ctx, f, OutcomeFailed, cause.Error(), now)
	report.add(f, OutcomeFailed, cause.Error())
	d.logger.Warn("Reminder dispatch failed",
		zap.String("invoice_number", f.InvoiceNumber),
		zap.Int("stage", f.Stage),
		zap.Error(cause))
}

func (d *Dispatcher) stopAndLog(ctx context.Context, f *followup.FollowUp, now time.Time, reason string) {
	if f.Stop(now) {
		if err := d.followUpRepo.SaveWithLock(ctx, f); err != nil {
			d.logger.Warn("Failed to stop follow-up",
				zap.String("follow_up_id", f.ID.String()), zap.Error(err))
			return
		}
	}
	d.appendLog(ctx, f, OutcomeSkipped, reason, now)
}

func (d *Dispatcher) appendLog(ctx context.Context, f *followup.FollowUp, outcome, message string, now time.Time) {
	if d.logRepo == nil {
		return
	}
	entry := followup.NewLogEntry(f, outcome, message, now)
	if err := d.logRepo.Append(ctx, entry); err != nil {
		d.logger.Warn("Failed to append follow-up log entry",
			zap.String("follow_up_id", f.ID.String()), zap.Error(err))
	}
}

var _ DocumentProvider = (*document.Service)(nil)
