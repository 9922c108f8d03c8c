package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/facturio/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// VATConfig controls value-added tax computation for a document
type VATConfig struct {
	Enabled     bool            `json:"enabled"`
	RatePercent decimal.Decimal `json:"rate_percent"`
}

// DiscountConfig controls the percentage discount applied to the subtotal
type DiscountConfig struct {
	Enabled     bool            `json:"enabled"`
	RatePercent decimal.Decimal `json:"rate_percent"`
}

// DepositConfig controls the upfront deposit split on a quote
type DepositConfig struct {
	Enabled bool            `json:"enabled"`
	Amount  decimal.Decimal `json:"amount"` // excl. VAT
}

// FinancialConfig is the tax/discount/deposit configuration attached to
// a quote and frozen onto invoices at issuance time.
type FinancialConfig struct {
	VAT      VATConfig      `json:"vat"`
	Discount DiscountConfig `json:"discount"`
	Deposit  DepositConfig  `json:"deposit"`
}

// DefaultVATRatePercent is used to gross up deposit amounts when a
// project's own blended rate cannot be inferred (net amount of zero).
var DefaultVATRatePercent = decimal.NewFromInt(21)

// Validate rejects malformed rates before any computation runs.
// A bad rate is a configuration error, never silently zeroed.
func (c FinancialConfig) Validate() error {
	if c.VAT.Enabled && c.VAT.RatePercent.IsNegative() {
		return shared.NewDomainError("INVALID_CONFIG", "VAT rate percent cannot be negative")
	}
	if c.Discount.Enabled && c.Discount.RatePercent.IsNegative() {
		return shared.NewDomainError("INVALID_CONFIG", "Discount rate percent cannot be negative")
	}
	if c.Discount.Enabled && c.Discount.RatePercent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainError("INVALID_CONFIG", "Discount rate percent cannot exceed 100")
	}
	if c.Deposit.Enabled && c.Deposit.Amount.IsNegative() {
		return shared.NewDomainError("INVALID_CONFIG", "Deposit amount cannot be negative")
	}
	return nil
}

// Value implements driver.Valuer for JSONB storage
func (c FinancialConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB retrieval
func (c *FinancialConfig) Scan(value interface{}) error {
	if value == nil {
		*c = FinancialConfig{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan FinancialConfig: unsupported type")
	}

	if len(bytes) == 0 {
		*c = FinancialConfig{}
		return nil
	}

	return json.Unmarshal(bytes, c)
}
