package billing

import (
	"github.com/facturio/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Calculator turns line items and financial configuration into a
// reproducible MonetaryBreakdown. It is pure: no I/O, no clock, safe
// to call concurrently. The same inputs produce the same breakdown for
// on-screen display, stored records, PDF export and credit-note math.
type Calculator struct{}

// NewCalculator creates a Calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Compute derives the breakdown from line items and configuration.
//
// The computation order is fixed and legally significant:
// subtotal -> discount -> net -> VAT -> total -> deposit/balance.
// The discount narrows the tax base before VAT applies; changing the
// order changes the collected tax.
//
// Empty input yields the zero breakdown with no error. A malformed
// configuration is rejected before any computation.
func (c *Calculator) Compute(items LineItems, config FinancialConfig) (MonetaryBreakdown, error) {
	return c.compute(items, config, decimal.Zero)
}

// ComputeWithFallbackVAT behaves like Compute but, when VAT is disabled
// in the configuration, carries the given stored VAT amount instead of
// zero. Historical documents created under a different regime keep the
// VAT they were issued with.
func (c *Calculator) ComputeWithFallbackVAT(items LineItems, config FinancialConfig, storedVAT decimal.Decimal) (MonetaryBreakdown, error) {
	return c.compute(items, config, storedVAT)
}

func (c *Calculator) compute(items LineItems, config FinancialConfig, fallbackVAT decimal.Decimal) (MonetaryBreakdown, error) {
	if err := config.Validate(); err != nil {
		return MonetaryBreakdown{}, err
	}
	if len(items) == 0 {
		return ZeroBreakdown(), nil
	}

	subtotal := items.Subtotal()

	discount := decimal.Zero
	if config.Discount.Enabled {
		discount = subtotal.Mul(config.Discount.RatePercent).Div(decimal.NewFromInt(100))
	}

	net := subtotal.Sub(discount)

	vat := fallbackVAT
	if config.VAT.Enabled {
		// VAT always rounds up to the cent. The stored amount is >= the
		// exact value so tax is never under-collected.
		exact := net.Mul(config.VAT.RatePercent).Div(decimal.NewFromInt(100))
		vat = valueobject.CeilToCents(exact)
	}

	total := net.Add(vat)

	breakdown := MonetaryBreakdown{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		NetAmount:      net,
		VATAmount:      vat,
		TotalWithVAT:   total,
		DepositAmount:  decimal.Zero,
		BalanceAmount:  total,
	}

	if config.Deposit.Enabled {
		// The configured deposit excludes VAT; the payable deposit is
		// grossed up by the document's blended rate.
		breakdown.DepositAmount = grossUp(config.Deposit.Amount, breakdown.BlendedVATRate())
		breakdown.BalanceAmount = total.Sub(breakdown.DepositAmount)
	}

	return breakdown, nil
}

// grossUp converts a VAT-exclusive amount into its payable total using
// the given rate expressed as a fraction (0.21 for 21%).
func grossUp(exclVAT, rate decimal.Decimal) decimal.Decimal {
	return valueobject.CeilToCents(exclVAT.Add(exclVAT.Mul(rate)))
}

// DepositTotals is the payable presentation of a deposit invoice: the
// grossed-up deposit amount alongside the VAT-exclusive base it came
// from and the rate used.
type DepositTotals struct {
	DepositBase decimal.Decimal // excl. VAT, as configured on the quote
	VATRate     decimal.Decimal // blended rate as a fraction
	Payable     decimal.Decimal // incl. VAT
}

// DepositInvoiceTotals computes what a deposit invoice asks the client
// to pay. The blended rate comes from the full-project breakdown, so a
// mixed-rate document grosses its deposit consistently with its totals.
func (c *Calculator) DepositInvoiceTotals(full MonetaryBreakdown, config FinancialConfig) DepositTotals {
	rate := full.BlendedVATRate()
	return DepositTotals{
		DepositBase: config.Deposit.Amount,
		VATRate:     rate,
		Payable:     grossUp(config.Deposit.Amount, rate),
	}
}

// FinalTotals is the dual presentation of a final invoice paired with a
// deposit invoice: the document displays the full project subtotal and
// VAT, with the deposit broken out and only the remainder payable.
type FinalTotals struct {
	Subtotal       decimal.Decimal // full project
	DiscountAmount decimal.Decimal // full project
	NetAmount      decimal.Decimal // full project
	VATAmount      decimal.Decimal // full project
	TotalWithVAT   decimal.Decimal // full project
	DepositPayable decimal.Decimal // already invoiced upfront
	Remaining      decimal.Decimal // payable on this document
}

// FinalInvoiceTotals computes the presentation of the final invoice in
// a deposit/final pair. The displayed subtotal and VAT are the full
// project's; the payable amount is the remaining balance.
func (c *Calculator) FinalInvoiceTotals(full MonetaryBreakdown, depositPayable decimal.Decimal) FinalTotals {
	return FinalTotals{
		Subtotal:       full.Subtotal,
		DiscountAmount: full.DiscountAmount,
		NetAmount:      full.NetAmount,
		VATAmount:      full.VATAmount,
		TotalWithVAT:   full.TotalWithVAT,
		DepositPayable: depositPayable,
		Remaining:      full.TotalWithVAT.Sub(depositPayable),
	}
}
