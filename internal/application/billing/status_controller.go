package billing

import (
	"context"
	"fmt"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/followup"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FollowUpEnsurer opens or escalates a payment follow-up for an
// invoice. Implemented by the follow-up scheduler.
type FollowUpEnsurer interface {
	EnsureFollowUp(ctx context.Context, inv *billing.Invoice) (*followup.FollowUp, error)
}

// InvoiceStatusController drives invoice lifecycle transitions and
// keeps the follow-up state in sync with them. Every transition
// persists the invoice before touching follow-ups, so a crash in
// between leaves at most a stale follow-up, never a wrong invoice.
type InvoiceStatusController struct {
	invoiceRepo  billing.InvoiceRepository
	followUpRepo followup.Repository
	ensurer      FollowUpEnsurer
	clock        shared.Clock
	logger       *zap.Logger
}

// NewInvoiceStatusController creates a new InvoiceStatusController
func NewInvoiceStatusController(
	invoiceRepo billing.InvoiceRepository,
	followUpRepo followup.Repository,
	ensurer FollowUpEnsurer,
	clock shared.Clock,
	logger *zap.Logger,
) *InvoiceStatusController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceStatusController{
		invoiceRepo:  invoiceRepo,
		followUpRepo: followUpRepo,
		ensurer:      ensurer,
		clock:        clock,
		logger:       logger,
	}
}

// MarkPaid records a payment. The paid status is persisted first, then
// any active follow-up for the invoice is stopped.
func (s *InvoiceStatusController) MarkPaid(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_status", "mark_paid")
	defer span.End()
	telemetry.SetAttribute(span, "invoice_id", id.String())

	inv, err := s.loadInvoice(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	if err := inv.MarkPaid(now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	s.stopActiveFollowUp(ctx, inv)

	s.logger.Info("Invoice marked paid",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number))
	return inv, nil
}

// Cancel voids the invoice. Like MarkPaid, the cancelled status is
// persisted before the follow-up stop signal.
func (s *InvoiceStatusController) Cancel(ctx context.Context, id uuid.UUID, reason string) (*billing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_status", "cancel")
	defer span.End()
	telemetry.SetAttribute(span, "invoice_id", id.String())

	inv, err := s.loadInvoice(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	if err := inv.Cancel(now, reason); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	s.stopActiveFollowUp(ctx, inv)

	s.logger.Info("Invoice cancelled",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.String("reason", reason))
	return inv, nil
}

// Reactivate reopens a paid or cancelled invoice. The reopened status
// is derived from the due date, and a follow-up is ensured only when no
// active one already exists for the invoice.
func (s *InvoiceStatusController) Reactivate(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_status", "reactivate")
	defer span.End()
	telemetry.SetAttribute(span, "invoice_id", id.String())

	inv, err := s.loadInvoice(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	if err := inv.Reactivate(now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	active, err := s.followUpRepo.FindActiveByInvoice(ctx, inv.ID)
	if err != nil {
		s.logger.Warn("Failed to check active follow-up after reactivation",
			zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	} else if active == nil && s.ensurer != nil {
		if _, err := s.ensurer.EnsureFollowUp(ctx, inv); err != nil {
			s.logger.Warn("Failed to ensure follow-up after reactivation",
				zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		}
	}

	s.logger.Info("Invoice reactivated",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("status", inv.Status.String()))
	return inv, nil
}

// RefreshDueStatus flips a single invoice between unpaid and overdue
// based on its due date. Follow-ups are untouched; escalation belongs
// to the scheduler.
func (s *InvoiceStatusController) RefreshDueStatus(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_status", "refresh_due_status")
	defer span.End()

	inv, err := s.loadInvoice(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if inv.RefreshDueStatus(s.clock.Now()) {
		if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to save invoice: %w", err)
		}
	}
	return inv, nil
}

// RefreshAllDueStatuses sweeps every open invoice. Each invoice is
// handled independently so one failure does not stall the pass.
func (s *InvoiceStatusController) RefreshAllDueStatuses(ctx context.Context) (updated int, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_status", "refresh_all_due_statuses")
	defer span.End()

	open, err := s.invoiceRepo.FindOpen(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to list open invoices: %w", err)
	}

	now := s.clock.Now()
	for i := range open {
		inv := &open[i]
		if !inv.RefreshDueStatus(now) {
			continue
		}
		if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
			s.logger.Warn("Failed to refresh invoice due status",
				zap.String("invoice_id", inv.ID.String()), zap.Error(err))
			continue
		}
		updated++
	}

	telemetry.SetAttribute(span, "updated", updated)
	return updated, nil
}

// ReconcileStaleFollowUps stops active follow-ups whose invoice is
// already paid or cancelled. This is the recovery pass for a crash
// between persisting a status and stopping the follow-up.
func (s *InvoiceStatusController) ReconcileStaleFollowUps(ctx context.Context) (stopped int, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_status", "reconcile_stale_follow_ups")
	defer span.End()

	active, err := s.followUpRepo.FindActive(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to list active follow-ups: %w", err)
	}

	now := s.clock.Now()
	for i := range active {
		f := &active[i]
		inv, err := s.invoiceRepo.FindByID(ctx, f.InvoiceID)
		if err != nil {
			s.logger.Warn("Failed to load invoice during reconciliation",
				zap.String("invoice_id", f.InvoiceID.String()), zap.Error(err))
			continue
		}
		if inv == nil || inv.Status.IsOpen() {
			continue
		}
		if !f.Stop(now) {
			continue
		}
		if err := s.followUpRepo.SaveWithLock(ctx, f); err != nil {
			s.logger.Warn("Failed to stop stale follow-up",
				zap.String("follow_up_id", f.ID.String()), zap.Error(err))
			continue
		}
		stopped++
	}

	telemetry.SetAttribute(span, "stopped", stopped)
	return stopped, nil
}

func (s *InvoiceStatusController) loadInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if inv == nil {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

// stopActiveFollowUp ends the active follow-up for an invoice, if any.
// Failures are logged, not returned: the invoice status is already
// persisted and the reconciliation pass will catch the leftover.
func (s *InvoiceStatusController) stopActiveFollowUp(ctx context.Context, inv *billing.Invoice) {
	active, err := s.followUpRepo.FindActiveByInvoice(ctx, inv.ID)
	if err != nil {
		s.logger.Warn("Failed to look up active follow-up",
			zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		return
	}
	if active == nil {
		return
	}
	if !active.Stop(s.clock.Now()) {
		return
	}
	if err := s.followUpRepo.SaveWithLock(ctx, active); err != nil {
		s.logger.Warn("Failed to stop follow-up",
			zap.String("follow_up_id", active.ID.String()), zap.Error(err))
	}
}
