package scheduler

import (
	"context"

	appbilling "github.com/facturio/backend/internal/application/billing"
	appfollowup "github.com/facturio/backend/internal/application/followup"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/config"
)

// BillingTasks builds the periodic sweep set from the application
// services. The order of the slice is also the start order: statuses
// are refreshed first so that the scheduling and dispatch sweeps see
// current overdue flags on their first pass.
func BillingTasks(
	cfg config.SchedulerConfig,
	statuses *appbilling.InvoiceStatusController,
	followUps *appfollowup.Scheduler,
	dispatcher *appfollowup.Dispatcher,
	clock shared.Clock,
) []Task {
	if clock == nil {
		clock = shared.SystemClock{}
	}

	return []Task{
		{
			Name:       "invoice-status-refresh",
			Interval:   cfg.StatusRefreshTick,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := statuses.RefreshAllDueStatuses(ctx)
				return err
			},
		},
		{
			Name:       "followup-ensure",
			Interval:   cfg.EnsureInterval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := followUps.EnsureAll(ctx)
				return err
			},
		},
		{
			Name:     "reminder-dispatch",
			Interval: cfg.DispatchInterval,
			Run: func(ctx context.Context) error {
				_, err := dispatcher.DispatchDue(ctx, clock.Now())
				return err
			},
		},
		{
			Name:     "followup-reconcile",
			Interval: cfg.ReconcileInterval,
			Run: func(ctx context.Context) error {
				_, err := statuses.ReconcileStaleFollowUps(ctx)
				return err
			},
		},
	}
}
