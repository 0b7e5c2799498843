package domain

import (
	"errors"
	"testing"
	"time"
)

func TestTrustAccount_ValidateDebit(t *testing.T) {
	tests := []struct {
		name        string
		balance     Money
		debitAmount Money
		expectError bool
	}{
		{
			name:        "debit more than balance",
			balance:     NewMoneyFromInt(100),
			debitAmount: NewMoneyFromInt(150),
			expectError: true,
		},
		{
			name:        "debit exact balance",
			balance:     NewMoneyFromInt(100),
			debitAmount: NewMoneyFromInt(100),
			expectError: false,
		},
		{
			name:        "debit less than balance",
			balance:     NewMoneyFromInt(100),
			debitAmount: NewMoneyFromInt(50),
			expectError: false,
		},
		{
			name:        "debit one cent over",
			balance:     MustParseMoney("999.99"),
			debitAmount: MustParseMoney("1000.00"),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &TrustAccount{CurrentBalance: tt.balance}

			err := acc.ValidateDebit(tt.debitAmount)

			if tt.expectError && !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("expected ErrInsufficientFunds, got %v", err)
			}

			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTrustAccount_Apply(t *testing.T) {
	acc := &TrustAccount{CurrentBalance: NewMoneyFromInt(100)}

	tests := []struct {
		txType TransactionType
		want   Money
	}{
		{TransactionDeposit, NewMoneyFromInt(130)},
		{TransactionWithdrawal, NewMoneyFromInt(70)},
		{TransactionTransfer, NewMoneyFromInt(70)},
		{TransactionRefund, NewMoneyFromInt(70)},
	}

	for _, tt := range tests {
		got := acc.Apply(tt.txType, NewMoneyFromInt(30))
		if !got.Equal(tt.want) {
			t.Errorf("%s: expected balance %s, got %s", tt.txType, tt.want, got)
		}
	}
}

func TestNewTrustAccount(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	acc := NewTrustAccount("matter-1", "client-1", "iolta-main", "USD", now)

	if !acc.IsNew() {
		t.Fatal("expected new account")
	}
	if acc.NextSequence() != 1 {
		t.Fatalf("expected next sequence 1, got %d", acc.NextSequence())
	}
	if !acc.CurrentBalance.IsZero() {
		t.Fatalf("expected zero balance, got %s", acc.CurrentBalance)
	}
}
