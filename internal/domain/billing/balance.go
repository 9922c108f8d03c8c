package billing

import (
	"github.com/facturio/backend/internal/domain/shared/valueobject"
)

// BalanceResolver computes the outstanding balance of an invoice from
// the credit notes that reference it. Credit note amounts are stored
// negative, so the balance is a plain sum.
type BalanceResolver struct{}

// NewBalanceResolver creates a BalanceResolver
func NewBalanceResolver() *BalanceResolver {
	return &BalanceResolver{}
}

// ResolveBalance returns the outstanding balance of the invoice given
// every document that may reference it. Returns nil for credit notes:
// they offset other documents and are never independently chased.
//
// The balance is deliberately not clamped at zero. Credit notes that
// exceed the invoice amount yield a negative balance, surfacing the
// over-credit to the operator instead of hiding it; the follow-up
// scheduler separately treats balance <= 0 as settled.
func (r *BalanceResolver) ResolveBalance(inv *Invoice, documents []Invoice) *valueobject.Money {
	if inv.IsCreditNote() {
		return nil
	}

	balance := inv.Amount
	for i := range documents {
		doc := &documents[i]
		if !doc.IsCreditNote() {
			continue
		}
		related := doc.RelatedInvoiceID()
		if related == nil || *related != inv.ID {
			continue
		}
		if doc.Status == InvoiceStatusCancelled {
			continue
		}
		balance = balance.Add(doc.Amount)
	}

	money := valueobject.NewMoneyEUR(balance)
	return &money
}

// IsSettled reports whether the invoice carries no collectible balance:
// it is a credit note, or credit notes fully offset it.
func (r *BalanceResolver) IsSettled(inv *Invoice, documents []Invoice) bool {
	balance := r.ResolveBalance(inv, documents)
	if balance == nil {
		return true
	}
	return !balance.IsPositive()
}
