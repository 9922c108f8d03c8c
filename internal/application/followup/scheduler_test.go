package followup

import (
	"context"
	"testing"
	"time"

	"github.com/facturio/backend/internal/domain/billing"
	"github.com/facturio/backend/internal/domain/followup"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schedNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func vatConfig() billing.FinancialConfig {
	return billing.FinancialConfig{
		VAT: billing.VATConfig{Enabled: true, RatePercent: decimal.NewFromInt(21)},
	}
}

func openInvoice(t *testing.T, number string, dueDate time.Time) *billing.Invoice {
	t.Helper()
	items := billing.LineItems{
		billing.NewLineItem("consulting", "day", decimal.NewFromInt(1), decimal.NewFromInt(500), decimal.Zero),
	}
	inv, err := billing.NewInvoice(number, uuid.New(), "Acme BV", billing.StandardInvoice{},
		items, vatConfig(), dueDate.AddDate(0, -1, 0), dueDate)
	require.NoError(t, err)
	inv.ClientEmail = "billing@acme.example"
	return inv
}

func fullCreditNoteFor(t *testing.T, inv *billing.Invoice) *billing.Invoice {
	t.Helper()
	note, err := billing.NewInvoice("CN-"+inv.Number, inv.ClientID, inv.ClientName,
		billing.CreditNote{RelatedInvoiceID: inv.ID},
		inv.Items.Negated(), inv.Config, schedNow, schedNow)
	require.NoError(t, err)
	return note
}

func newTestScheduler(invRepo *fakeInvoiceRepo, fuRepo *fakeFollowUpRepo, at time.Time) *Scheduler {
	return NewScheduler(invRepo, fuRepo, nil, DefaultSchedulerConfig(), shared.NewFixedClock(at), nil)
}

func TestSchedulerConfig_StageFor(t *testing.T) {
	cfg := DefaultSchedulerConfig()

	assert.Equal(t, 1, cfg.StageFor(0))
	assert.Equal(t, 1, cfg.StageFor(13))
	assert.Equal(t, 2, cfg.StageFor(14))
	assert.Equal(t, 2, cfg.StageFor(29))
	assert.Equal(t, 3, cfg.StageFor(30))
	assert.Equal(t, 3, cfg.StageFor(365))
}

func TestScheduler_EnsureFollowUp_Eligibility(t *testing.T) {
	t.Run("ignores closed invoices", func(t *testing.T) {
		invRepo := newFakeInvoiceRepo()
		fuRepo := newFakeFollowUpRepo()
		inv := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, -5))
		require.NoError(t, inv.MarkPaid(schedNow))
		require.NoError(t, invRepo.Save(context.Background(), inv))

		f, err := newTestScheduler(invRepo, fuRepo, schedNow).EnsureFollowUp(context.Background(), inv)
		require.NoError(t, err)
		assert.Nil(t, f)
		assert.Zero(t, fuRepo.count())
	})

	t.Run("ignores credit notes", func(t *testing.T) {
		invRepo := newFakeInvoiceRepo()
		fuRepo := newFakeFollowUpRepo()
		inv := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, -5))
		note := fullCreditNoteFor(t, inv)
		require.NoError(t, invRepo.Save(context.Background(), note))

		f, err := newTestScheduler(invRepo, fuRepo, schedNow).EnsureFollowUp(context.Background(), note)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("ignores invoices settled by credit notes", func(t *testing.T) {
		invRepo := newFakeInvoiceRepo()
		fuRepo := newFakeFollowUpRepo()
		inv := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, -5))
		require.NoError(t, invRepo.Save(context.Background(), inv))
		require.NoError(t, invRepo.Save(context.Background(), fullCreditNoteFor(t, inv)))

		f, err := newTestScheduler(invRepo, fuRepo, schedNow).EnsureFollowUp(context.Background(), inv)
		require.NoError(t, err)
		assert.Nil(t, f)
		assert.Zero(t, fuRepo.count())
	})

	t.Run("ignores invoices due beyond the look-ahead window", func(t *testing.T) {
		invRepo := newFakeInvoiceRepo()
		fuRepo := newFakeFollowUpRepo()
		inv := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, 10))
		require.NoError(t, invRepo.Save(context.Background(), inv))

		f, err := newTestScheduler(invRepo, fuRepo, schedNow).EnsureFollowUp(context.Background(), inv)
		require.NoError(t, err)
		assert.Nil(t, f)
	})
}

func TestScheduler_EnsureFollowUp_Creates(t *testing.T) {
	t.Run("approaching deadline inside the window", func(t *testing.T) {
		invRepo := newFakeInvoiceRepo()
		fuRepo := newFakeFollowUpRepo()
		inv := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, 2))
		require.NoError(t, invRepo.Save(context.Background(), inv))

		f, err := newTestScheduler(invRepo, fuRepo, schedNow).EnsureFollowUp(context.Background(), inv)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, followup.KindApproachingDeadline, f.Kind)
		assert.Equal(t, 1, f.Stage)
		assert.Equal(t, followup.StatusScheduled, f.Status)
		assert.Equal(t, inv.Number, f.InvoiceNumber)
	})

	t.Run("overdue stage follows days overdue", func(t *testing.T) {
		cases := []struct {
			daysOverdue int
			wantStage   int
		}{
			{1, 1},
			{20, 2},
			{45, 3},
		}
		for _, tc := range cases {
			invRepo := newFakeInvoiceRepo()
			fuRepo := newFakeFollowUpRepo()
			inv := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, -tc.daysOverdue))
			require.NoError(t, invRepo.Save(context.Background(), inv))

			f, err := newTestScheduler(invRepo, fuRepo, schedNow).EnsureFollowUp(context.Background(), inv)
			require.NoError(t, err)
			require.NotNil(t, f)
			assert.Equal(t, followup.KindOverdue, f.Kind)
			assert.Equal(t, tc.wantStage, f.Stage, "days overdue: %d", tc.daysOverdue)
		}
	})
}

func TestScheduler_EnsureFollowUp_Idempotent(t *testing.T) {
	invRepo := newFakeInvoiceRepo()
	fuRepo := newFakeFollowUpRepo()
	inv := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, -3))
	require.NoError(t, invRepo.Save(context.Background(), inv))
	s := newTestScheduler(invRepo, fuRepo, schedNow)

	first, err := s.EnsureFollowUp(context.Background(), inv)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.EnsureFollowUp(context.Background(), inv)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, fuRepo.count())
}

func TestScheduler_EnsureFollowUp_Escalates(t *testing.T) {
	invRepo := newFakeInvoiceRepo()
	fuRepo := newFakeFollowUpRepo()
	inv := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, -3))
	require.NoError(t, invRepo.Save(context.Background(), inv))

	first, err := newTestScheduler(invRepo, fuRepo, schedNow).EnsureFollowUp(context.Background(), inv)
	require.NoError(t, err)
	require.Equal(t, 1, first.Stage)

	// Three weeks later the same invoice crosses the second threshold.
	later := schedNow.AddDate(0, 0, 21)
	escalated, err := newTestScheduler(invRepo, fuRepo, later).EnsureFollowUp(context.Background(), inv)
	require.NoError(t, err)
	require.NotNil(t, escalated)
	assert.Equal(t, first.ID, escalated.ID)
	assert.Equal(t, 2, escalated.Stage)
	assert.Equal(t, followup.KindOverdue, escalated.Kind)
	assert.Equal(t, 1, fuRepo.count())
}

func TestScheduler_EnsureFollowUp_ApproachingBecomesOverdue(t *testing.T) {
	invRepo := newFakeInvoiceRepo()
	fuRepo := newFakeFollowUpRepo()
	inv := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, 2))
	require.NoError(t, invRepo.Save(context.Background(), inv))

	first, err := newTestScheduler(invRepo, fuRepo, schedNow).EnsureFollowUp(context.Background(), inv)
	require.NoError(t, err)
	require.Equal(t, followup.KindApproachingDeadline, first.Kind)

	later := schedNow.AddDate(0, 0, 5)
	escalated, err := newTestScheduler(invRepo, fuRepo, later).EnsureFollowUp(context.Background(), inv)
	require.NoError(t, err)
	require.NotNil(t, escalated)
	assert.Equal(t, first.ID, escalated.ID)
	assert.Equal(t, followup.KindOverdue, escalated.Kind)
	assert.Equal(t, 1, escalated.Stage)
}

func TestScheduler_EnsureFollowUp_DeliveredStageNotRepeated(t *testing.T) {
	invRepo := newFakeInvoiceRepo()
	fuRepo := newFakeFollowUpRepo()
	inv := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, -3))
	require.NoError(t, invRepo.Save(context.Background(), inv))
	ctx := context.Background()

	sent, err := followup.NewFollowUp(inv.ID, inv.Number, 1, followup.KindOverdue, schedNow.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, sent.MarkReady(schedNow.Add(-time.Minute)))
	require.NoError(t, sent.MarkSent(schedNow.Add(-time.Minute)))
	require.NoError(t, fuRepo.Save(ctx, sent))

	// Still stage 1 overdue: nothing new to say.
	f, err := newTestScheduler(invRepo, fuRepo, schedNow).EnsureFollowUp(ctx, inv)
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.Equal(t, 1, fuRepo.count())

	// Crossing into stage 2 opens a fresh campaign.
	later := schedNow.AddDate(0, 0, 14)
	f, err = newTestScheduler(invRepo, fuRepo, later).EnsureFollowUp(ctx, inv)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 2, f.Stage)
	assert.Equal(t, 2, fuRepo.count())
}

func TestScheduler_EnsureFollowUp_LosesCreateRace(t *testing.T) {
	invRepo := newFakeInvoiceRepo()
	fuRepo := newFakeFollowUpRepo()
	inv := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, -3))
	require.NoError(t, invRepo.Save(context.Background(), inv))

	winner, err := followup.NewFollowUp(inv.ID, inv.Number, 1, followup.KindOverdue, schedNow)
	require.NoError(t, err)
	fuRepo.conflictOnSave = winner

	f, err := newTestScheduler(invRepo, fuRepo, schedNow).EnsureFollowUp(context.Background(), inv)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, winner.ID, f.ID)
	assert.Equal(t, 1, fuRepo.count())
}

func TestScheduler_EnsureAll(t *testing.T) {
	invRepo := newFakeInvoiceRepo()
	fuRepo := newFakeFollowUpRepo()
	ctx := context.Background()

	overdue := openInvoice(t, "INV-2025-0001", schedNow.AddDate(0, 0, -3))
	approaching := openInvoice(t, "INV-2025-0002", schedNow.AddDate(0, 0, 2))
	distant := openInvoice(t, "INV-2025-0003", schedNow.AddDate(0, 1, 0))
	paid := openInvoice(t, "INV-2025-0004", schedNow.AddDate(0, 0, -3))
	require.NoError(t, paid.MarkPaid(schedNow))
	for _, inv := range []*billing.Invoice{overdue, approaching, distant, paid} {
		require.NoError(t, invRepo.Save(ctx, inv))
	}

	ensured, err := newTestScheduler(invRepo, fuRepo, schedNow).EnsureAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ensured)
	assert.Equal(t, 2, fuRepo.count())
}

func TestScheduler_StopFollowUp(t *testing.T) {
	invRepo := newFakeInvoiceRepo()
	fuRepo := newFakeFollowUpRepo()
	ctx := context.Background()

	t.Run("stops an active follow-up", func(t *testing.T) {
		f, err := followup.NewFollowUp(uuid.New(), "INV-2025-0001", 1, followup.KindOverdue, schedNow)
		require.NoError(t, err)
		require.NoError(t, fuRepo.Save(ctx, f))

		stopped, err := newTestScheduler(invRepo, fuRepo, schedNow).StopFollowUp(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, followup.StatusStopped, stopped.Status)
		require.NotNil(t, stopped.StoppedAt)
		assert.Equal(t, schedNow, *stopped.StoppedAt)
	})

	t.Run("terminal follow-up is a no-op", func(t *testing.T) {
		f, err := followup.NewFollowUp(uuid.New(), "INV-2025-0002", 1, followup.KindOverdue, schedNow)
		require.NoError(t, err)
		require.NoError(t, f.MarkReady(schedNow))
		require.NoError(t, f.MarkSent(schedNow))
		require.NoError(t, fuRepo.Save(ctx, f))

		stopped, err := newTestScheduler(invRepo, fuRepo, schedNow).StopFollowUp(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, followup.StatusSent, stopped.Status)
	})

	t.Run("unknown id returns not found", func(t *testing.T) {
		_, err := newTestScheduler(invRepo, fuRepo, schedNow).StopFollowUp(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
