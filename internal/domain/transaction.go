package domain

import (
	"fmt"
	"strings"
	"time"
)

// TransactionType identifies the kind of trust movement.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionTransfer   TransactionType = "transfer"
	TransactionRefund     TransactionType = "refund"
)

// TransactionTypes lists every known type in display order.
var TransactionTypes = []TransactionType{
	TransactionDeposit,
	TransactionWithdrawal,
	TransactionTransfer,
	TransactionRefund,
}

// ParseTransactionType accepts the wire names, case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	for _, t := range TransactionTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown transaction type %q", ErrInvalidRequest, s)
}

// IsValid checks if the type is known.
func (t TransactionType) IsValid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsCredit reports whether the type increases the balance.
func (t TransactionType) IsCredit() bool {
	return t == TransactionDeposit
}

// Signed returns the balance effect of amount for this type.
func (t TransactionType) Signed(amount Money) Money {
	if t.IsCredit() {
		return amount
	}
	return amount.Neg()
}

// Opposite is the type a reversal of t takes.
func (t TransactionType) Opposite() TransactionType {
	if t.IsCredit() {
		return TransactionWithdrawal
	}
	return TransactionDeposit
}

// TrustTransaction is an immutable ledger entry.
type TrustTransaction struct {
	ID            string
	MatterID      string
	Type          TransactionType
	Amount        Money
	Description   string
	Reference     string
	ReversalOf    *string
	CreatedAt     time.Time
	CreatedBy     string
	CreatedByRole Role
	BalanceAfter  Money
	Sequence      int64
	Shortfall     bool
}

// SignedAmount returns the transaction's effect on the balance.
func (t *TrustTransaction) SignedAmount() Money {
	return t.Type.Signed(t.Amount)
}

// BalanceBefore derives the balance immediately before this entry.
func (t *TrustTransaction) BalanceBefore() Money {
	return t.BalanceAfter.Sub(t.SignedAmount())
}

// IsReversal reports whether the entry corrects an earlier one.
func (t *TrustTransaction) IsReversal() bool {
	return t.ReversalOf != nil
}
