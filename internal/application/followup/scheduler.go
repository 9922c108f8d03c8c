package followup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/followup"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StageThreshold maps a reminder stage to the minimum number of days
// an invoice must be overdue before that stage applies.
type StageThreshold struct {
	Stage          int `mapstructure:"stage"`
	MinDaysOverdue int `mapstructure:"min_days_overdue"`
}

// SchedulerConfig tunes stage escalation and the pre-deadline window
type SchedulerConfig struct {
	LookAheadDays int              `mapstructure:"look_ahead_days"`
	Thresholds    []StageThreshold `mapstructure:"thresholds"`
}

// DefaultSchedulerConfig returns the standard escalation ladder:
// a courtesy reminder shortly before the deadline, then overdue
// reminders at day 0, day 14 and day 30 past due.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		LookAheadDays: 3,
		Thresholds: []StageThreshold{
			{Stage: 1, MinDaysOverdue: 0},
			{Stage: 2, MinDaysOverdue: 14},
			{Stage: 3, MinDaysOverdue: 30},
		},
	}
}

// StageFor returns the stage matching the given days overdue
func (c SchedulerConfig) StageFor(daysOverdue int) int {
	thresholds := make([]StageThreshold, len(c.Thresholds))
	copy(thresholds, c.Thresholds)
	sort.Slice(thresholds, func(i, j int) bool {
		return thresholds[i].MinDaysOverdue < thresholds[j].MinDaysOverdue
	})
	stage := 1
	for _, t := range thresholds {
		if daysOverdue >= t.MinDaysOverdue {
			stage = t.Stage
		}
	}
	if stage > followup.MaxStage {
		stage = followup.MaxStage
	}
	return stage
}

// Scheduler decides which invoices need a payment follow-up and keeps
// at most one active campaign per invoice.
type Scheduler struct {
	invoiceRepo  billing.InvoiceRepository
	followUpRepo followup.Repository
	resolver     *billing.BalanceResolver
	config       SchedulerConfig
	clock        shared.Clock
	logger       *zap.Logger
}

// NewScheduler creates a new Scheduler
func NewScheduler(
	invoiceRepo billing.InvoiceRepository,
	followUpRepo followup.Repository,
	resolver *billing.BalanceResolver,
	config SchedulerConfig,
	clock shared.Clock,
	logger *zap.Logger,
) *Scheduler {
	if resolver == nil {
		resolver = billing.NewBalanceResolver()
	}
	if len(config.Thresholds) == 0 {
		config = DefaultSchedulerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		invoiceRepo:  invoiceRepo,
		followUpRepo: followUpRepo,
		resolver:     resolver,
		config:       config,
		clock:        clock,
		logger:       logger,
	}
}

// EnsureFollowUp guarantees an eligible invoice has exactly one active
// follow-up at the right stage. Ineligible invoices return (nil, nil).
// The method is idempotent: it queries before creating, escalates the
// existing active record in place, and on a unique-index collision
// re-reads and returns the winner.
func (s *Scheduler) EnsureFollowUp(ctx context.Context, inv *billing.Invoice) (*followup.FollowUp, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "follow_up_scheduler", "ensure_follow_up")
	defer span.End()

	if inv == nil || inv.IsCreditNote() || !inv.Status.IsOpen() {
		return nil, nil
	}
	telemetry.SetAttribute(span, "invoice_id", inv.ID.String())

	// Credit notes may have settled the invoice without a payment.
	notes, err := s.invoiceRepo.FindCreditNotesFor(ctx, inv.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load credit notes: %w", err)
	}
	if s.resolver.IsSettled(inv, notes) {
		return nil, nil
	}

	now := s.clock.Now()
	kind, stage, eligible := s.classify(inv, now)
	if !eligible {
		return nil, nil
	}
	telemetry.SetAttributes(span, "kind", string(kind), "stage", stage)

	active, err := s.followUpRepo.FindActiveByInvoice(ctx, inv.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to query active follow-up: %w", err)
	}
	if active != nil {
		if stage > active.Stage || (kind != active.Kind && stage >= active.Stage) {
			if err := active.Escalate(stage, kind, now, now); err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
			if err := s.followUpRepo.SaveWithLock(ctx, active); err != nil {
				telemetry.RecordError(span, err)
				return nil, fmt.Errorf("failed to escalate follow-up: %w", err)
			}
		}
		return active, nil
	}

	// A stage already delivered is not repeated; a fresh campaign only
	// opens once the escalation ladder moves past it.
	if s.alreadyDelivered(ctx, inv, kind, stage) {
		return nil, nil
	}

	f, err := followup.NewFollowUp(inv.ID, inv.Number, stage, kind, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.followUpRepo.Save(ctx, f); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// Lost the race to a concurrent pass; the winner's row is
			// the active one.
			return s.followUpRepo.FindActiveByInvoice(ctx, inv.ID)
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save follow-up: %w", err)
	}

	s.logger.Info("Follow-up scheduled",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("kind", string(kind)),
		zap.Int("stage", stage))
	return f, nil
}

// StopFollowUp halts an active campaign by follow-up ID, typically
// because the operator settled the matter outside the system. Stopping
// an already terminal follow-up is a no-op.
func (s *Scheduler) StopFollowUp(ctx context.Context, id uuid.UUID) (*followup.FollowUp, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "follow_up_scheduler", "stop_follow_up")
	defer span.End()
	telemetry.SetAttribute(span, "follow_up_id", id.String())

	f, err := s.followUpRepo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load follow-up: %w", err)
	}
	if f == nil {
		telemetry.RecordError(span, shared.ErrNotFound)
		return nil, shared.ErrNotFound
	}
	if !f.Stop(s.clock.Now()) {
		return f, nil
	}
	if err := s.followUpRepo.SaveWithLock(ctx, f); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Follow-up stopped",
		zap.String("follow_up_id", f.ID.String()),
		zap.String("invoice_id", f.InvoiceID.String()))
	return f, nil
}

// EnsureAll sweeps every open invoice. Failures are isolated per
// invoice so one bad row cannot stall the pass.
func (s *Scheduler) EnsureAll(ctx context.Context) (ensured int, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "follow_up_scheduler", "ensure_all")
	defer span.End()

	open, err := s.invoiceRepo.FindOpen(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to list open invoices: %w", err)
	}

	for i := range open {
		f, err := s.EnsureFollowUp(ctx, &open[i])
		if err != nil {
			s.logger.Warn("Failed to ensure follow-up",
				zap.String("invoice_id", open[i].ID.String()), zap.Error(err))
			continue
		}
		if f != nil {
			ensured++
		}
	}

	telemetry.SetAttribute(span, "ensured", ensured)
	return ensured, nil
}

// classify maps an invoice's position relative to its due date onto a
// reminder kind and stage. Invoices due beyond the look-ahead window
// are left alone.
func (s *Scheduler) classify(inv *billing.Invoice, now time.Time) (followup.Kind, int, bool) {
	if inv.IsOverdueAt(now) {
		return followup.KindOverdue, s.config.StageFor(inv.DaysOverdue(now)), true
	}
	if inv.DaysUntilDue(now) <= s.config.LookAheadDays {
		return followup.KindApproachingDeadline, 1, true
	}
	return "", 0, false
}

// alreadyDelivered reports whether a reminder at the given kind and
// stage has already been sent for the invoice.
func (s *Scheduler) alreadyDelivered(ctx context.Context, inv *billing.Invoice, kind followup.Kind, stage int) bool {
	history, err := s.followUpRepo.FindByInvoice(ctx, inv.ID)
	if err != nil {
		s.logger.Warn("Failed to load follow-up history",
			zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		return false
	}
	for i := range history {
		f := &history[i]
		if f.Status == followup.StatusSent && f.Kind == kind && f.Stage >= stage {
			return true
		}
	}
	return false
}
