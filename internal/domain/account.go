package domain

import "time"

// TrustAccount is one matter's sub-account within a pooled firm trust account.
type TrustAccount struct {
	MatterID       string
	ClientID       string
	FirmAccountID  string
	Currency       string
	CurrentBalance Money
	// Version counts the transactions applied; it is also the last sequence number.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTrustAccount returns an uninitialized account with a zero balance.
func NewTrustAccount(matterID, clientID, firmAccountID, currency string, now time.Time) *TrustAccount {
	return &TrustAccount{
		MatterID:       matterID,
		ClientID:       clientID,
		FirmAccountID:  firmAccountID,
		Currency:       currency,
		CurrentBalance: Zero,
		Version:        0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsNew reports whether the account has never been persisted.
func (a *TrustAccount) IsNew() bool {
	return a.Version == 0
}

// NextSequence is the sequence the next transaction will take.
func (a *TrustAccount) NextSequence() int64 {
	return a.Version + 1
}

// ValidateDebit checks if the account can be debited by amount without an override.
func (a *TrustAccount) ValidateDebit(amount Money) error {
	if a.CurrentBalance.Sub(amount).IsNegative() {
		return ErrInsufficientFunds
	}
	return nil
}

// Apply returns the balance after applying a transaction of the given type.
func (a *TrustAccount) Apply(txType TransactionType, amount Money) Money {
	return a.CurrentBalance.Add(txType.Signed(amount))
}
