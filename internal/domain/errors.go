package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientFunds   = errors.New("insufficient trust funds")
	ErrConcurrencyConflict = errors.New("concurrent modification of trust account")
	ErrTimeout             = errors.New("operation timed out")
	ErrNotFound            = errors.New("not found")
	ErrAuditDelivery       = errors.New("audit delivery failed")

	// ErrVersionConflict is raised by stores when the optimistic version guard
	// misses. The ledger retries it and surfaces ErrConcurrencyConflict.
	ErrVersionConflict = errors.New("trust account version mismatch")
)

// LedgerError carries the caller-facing context of a rejected ledger operation.
type LedgerError struct {
	Op       string
	MatterID string
	Amount   *Money
	Reason   string
	Err      error
}

func (e *LedgerError) Error() string {
	msg := e.Op + ": " + e.Err.Error()
	if e.MatterID != "" {
		msg += fmt.Sprintf(" (matter %s", e.MatterID)
		if e.Amount != nil {
			msg += ", amount " + e.Amount.String()
		}
		msg += ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// NewLedgerError wraps a sentinel with operation context.
func NewLedgerError(op, matterID string, amount *Money, err error, reason string) *LedgerError {
	return &LedgerError{
		Op:       op,
		MatterID: matterID,
		Amount:   amount,
		Reason:   reason,
		Err:      err,
	}
}

// ErrAlreadyReversed is an invalid request: an entry may be reversed only once.
var ErrAlreadyReversed = fmt.Errorf("%w: transaction has already been reversed", ErrInvalidRequest)

// ErrInternal hides storage details from callers; the cause is logged.
var ErrInternal = errors.New("internal ledger error")
