package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem represents one priced line on a quote or invoice.
//
// LineTotal is authoritative: when the operator enters an explicit total
// (materials lines are typically pre-totaled by the supplier), it is
// stored as-is and never re-derived by multiplying UnitPrice by
// Quantity. Re-deriving would double-scale lines whose unit price
// already covers the full quantity.
type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// NewLineItem creates a line item. If lineTotal is zero and both
// quantity and unit price are set, the total is derived once at entry
// time; an explicit non-zero total always wins.
func NewLineItem(description, unit string, quantity, unitPrice, lineTotal decimal.Decimal) LineItem {
	total := lineTotal
	if total.IsZero() && !quantity.IsZero() && !unitPrice.IsZero() {
		total = quantity.Mul(unitPrice)
	}
	return LineItem{
		ID:          uuid.New(),
		Description: description,
		Quantity:    quantity,
		Unit:        unit,
		UnitPrice:   unitPrice,
		LineTotal:   total,
	}
}

// LineItems is a slice of LineItem stored as a JSONB column
type LineItems []LineItem

// Value implements driver.Valuer for JSONB storage
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB retrieval
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}

	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// Subtotal sums the authoritative line totals
func (l LineItems) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range l {
		sum = sum.Add(item.LineTotal)
	}
	return sum
}

// Negated returns a copy with every line total and unit price negated,
// used when deriving credit-note lines from an invoice.
func (l LineItems) Negated() LineItems {
	out := make(LineItems, len(l))
	for i, item := range l {
		out[i] = item
		out[i].ID = uuid.New()
		out[i].UnitPrice = item.UnitPrice.Neg()
		out[i].LineTotal = item.LineTotal.Neg()
	}
	return out
}
