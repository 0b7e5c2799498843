package dto

import (
	"fmt"
	"time"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/usecase"
)

// RecordTransactionRequest represents a request to record a trust transaction.
type RecordTransactionRequest struct {
	Type          string       `json:"type"`
	Amount        domain.Money `json:"amount"`
	Description   string       `json:"description"`
	Reference     string       `json:"reference,omitempty"`
	Currency      string       `json:"currency,omitempty"`
	ClientID      string       `json:"client_id,omitempty"`
	FirmAccountID string       `json:"firm_account_id,omitempty"`
}

// ToUseCaseInput converts to use case input. The actor comes from the request context.
func (r *RecordTransactionRequest) ToUseCaseInput(matterID string) (usecase.RecordTransactionInput, error) {
	txType, err := domain.ParseTransactionType(r.Type)
	if err != nil {
		return usecase.RecordTransactionInput{}, err
	}

	return usecase.RecordTransactionInput{
		MatterID:      matterID,
		Type:          txType,
		Amount:        r.Amount,
		Description:   r.Description,
		Reference:     r.Reference,
		Currency:      r.Currency,
		ClientID:      r.ClientID,
		FirmAccountID: r.FirmAccountID,
	}, nil
}

// ReverseTransactionRequest represents a request to reverse an entry.
type ReverseTransactionRequest struct {
	Reason string `json:"reason"`
}

// ReconcileRequest carries a bank statement balance and the instant it was taken.
type ReconcileRequest struct {
	BankBalance *domain.Money `json:"bank_balance"`
	AsOf        *time.Time    `json:"as_of,omitempty"`
}

// Balance returns the statement balance. It is required: a missing value is
// not read as zero.
func (r *ReconcileRequest) Balance() (domain.Money, error) {
	if r.BankBalance == nil {
		return domain.Zero, fmt.Errorf("%w: bank_balance is required", domain.ErrInvalidRequest)
	}
	return *r.BankBalance, nil
}

// AsOfOr returns the statement time, or fallback when the request omits it.
func (r *ReconcileRequest) AsOfOr(fallback time.Time) time.Time {
	if r.AsOf == nil || r.AsOf.IsZero() {
		return fallback
	}
	return *r.AsOf
}
