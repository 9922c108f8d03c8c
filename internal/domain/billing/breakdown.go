package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// MonetaryBreakdown is the full set of derived monetary fields for one
// document. It is computed once by the Calculator and stored on the
// document, so historical invoices stay stable when configuration
// defaults change later.
type MonetaryBreakdown struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	VATAmount      decimal.Decimal `json:"vat_amount"`
	TotalWithVAT   decimal.Decimal `json:"total_with_vat"`
	DepositAmount  decimal.Decimal `json:"deposit_amount"` // incl. VAT (grossed up)
	BalanceAmount  decimal.Decimal `json:"balance_amount"`
}

// ZeroBreakdown returns the all-zero breakdown used for empty documents
func ZeroBreakdown() MonetaryBreakdown {
	return MonetaryBreakdown{
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		NetAmount:      decimal.Zero,
		VATAmount:      decimal.Zero,
		TotalWithVAT:   decimal.Zero,
		DepositAmount:  decimal.Zero,
		BalanceAmount:  decimal.Zero,
	}
}

// Negate returns the credit-note variant of this breakdown: every
// stored amount is the negation of the equivalent standard breakdown.
func (b MonetaryBreakdown) Negate() MonetaryBreakdown {
	return MonetaryBreakdown{
		Subtotal:       b.Subtotal.Neg(),
		DiscountAmount: b.DiscountAmount.Neg(),
		NetAmount:      b.NetAmount.Neg(),
		VATAmount:      b.VATAmount.Neg(),
		TotalWithVAT:   b.TotalWithVAT.Neg(),
		DepositAmount:  b.DepositAmount.Neg(),
		BalanceAmount:  b.BalanceAmount.Neg(),
	}
}

// IsZero returns true when every derived amount is zero
func (b MonetaryBreakdown) IsZero() bool {
	return b.Subtotal.IsZero() &&
		b.DiscountAmount.IsZero() &&
		b.NetAmount.IsZero() &&
		b.VATAmount.IsZero() &&
		b.TotalWithVAT.IsZero() &&
		b.DepositAmount.IsZero() &&
		b.BalanceAmount.IsZero()
}

// BlendedVATRate is the effective VAT rate of the whole document,
// VATAmount / NetAmount, used to gross up partial (deposit) amounts.
// Returns the default rate as a fraction when NetAmount is zero.
func (b MonetaryBreakdown) BlendedVATRate() decimal.Decimal {
	if b.NetAmount.IsZero() {
		return DefaultVATRatePercent.Div(decimal.NewFromInt(100))
	}
	return b.VATAmount.Div(b.NetAmount)
}

// Value implements driver.Valuer for JSONB storage
func (b MonetaryBreakdown) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner for JSONB retrieval
func (b *MonetaryBreakdown) Scan(value interface{}) error {
	if value == nil {
		*b = ZeroBreakdown()
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan MonetaryBreakdown: unsupported type")
	}

	if len(bytes) == 0 {
		*b = ZeroBreakdown()
		return nil
	}

	return json.Unmarshal(bytes, b)
}
