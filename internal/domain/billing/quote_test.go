package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftTestQuote(t *testing.T) *Quote {
	t.Helper()
	quote, err := NewQuote(
		"Q-"+uuid.NewString()[:8],
		uuid.New(),
		"Test Client",
		LineItems{NewLineItem("work", "h", dec("1"), dec("100"), decimal.Zero)},
		vatOnly("21"),
		nil,
	)
	require.NoError(t, err)
	return quote
}

func TestQuote_UpdatePricing(t *testing.T) {
	t.Run("recomputes the breakdown from the new items", func(t *testing.T) {
		quote := draftTestQuote(t)
		items := LineItems{NewLineItem("work", "h", dec("2"), dec("100"), decimal.Zero)}
		require.NoError(t, quote.UpdatePricing(items, vatOnly("21")))
		assert.True(t, quote.Breakdown.Subtotal.Equal(dec("200")))
		assert.True(t, quote.Breakdown.TotalWithVAT.Equal(dec("242")))
	})

	t.Run("disabling VAT keeps the VAT the quote was issued with", func(t *testing.T) {
		quote := draftTestQuote(t)
		require.True(t, quote.Breakdown.VATAmount.Equal(dec("21")))

		noVAT := FinancialConfig{VAT: VATConfig{Enabled: false, RatePercent: dec("21")}}
		require.NoError(t, quote.UpdatePricing(quote.Items, noVAT))
		assert.True(t, quote.Breakdown.VATAmount.Equal(dec("21")), "got %s", quote.Breakdown.VATAmount)
		assert.True(t, quote.Breakdown.TotalWithVAT.Equal(dec("121")))
	})

	t.Run("accepted quote cannot be repriced", func(t *testing.T) {
		quote := draftTestQuote(t)
		now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, quote.MarkSent())
		require.NoError(t, quote.Accept(now))
		require.Error(t, quote.UpdatePricing(quote.Items, vatOnly("21")))
	})
}
