package domain

import (
	"encoding/json"
	"time"
)

// AuditAction names an audited ledger action.
type AuditAction string

const (
	AuditActionTransactionRecorded    AuditAction = "trust.transaction.recorded"
	AuditActionTransactionReversed    AuditAction = "trust.transaction.reversed"
	AuditActionTransactionRejected    AuditAction = "trust.transaction.rejected"
	AuditActionReconciliationMatched  AuditAction = "trust.reconciliation.matched"
	AuditActionReconciliationMismatch AuditAction = "trust.reconciliation.mismatched"
)

// AuditEvent is the record handed to the AuditSink.
type AuditEvent struct {
	ID               string            `json:"id"`
	ActorID          string            `json:"actor_id"`
	ActorRole        Role              `json:"actor_role"`
	MatterID         string            `json:"matter_id"`
	Action           AuditAction       `json:"action"`
	Amount           *Money            `json:"amount,omitempty"`
	ResultingBalance *Money            `json:"resulting_balance,omitempty"`
	TransactionID    string            `json:"transaction_id,omitempty"`
	Shortfall        bool              `json:"shortfall"`
	Reason           string            `json:"reason,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// AuditEventFromTransaction builds the success audit record for a persisted entry.
// The transaction id doubles as the correlation id.
func AuditEventFromTransaction(id string, tx *TrustTransaction) *AuditEvent {
	action := AuditActionTransactionRecorded
	if tx.IsReversal() {
		action = AuditActionTransactionReversed
	}

	amount := tx.Amount
	balance := tx.BalanceAfter
	event := &AuditEvent{
		ID:               id,
		ActorID:          tx.CreatedBy,
		ActorRole:        tx.CreatedByRole,
		MatterID:         tx.MatterID,
		Action:           action,
		Amount:           &amount,
		ResultingBalance: &balance,
		TransactionID:    tx.ID,
		Shortfall:        tx.Shortfall,
		Metadata:         map[string]string{"type": string(tx.Type), "sequence": formatInt(tx.Sequence)},
		Timestamp:        tx.CreatedAt,
	}
	if tx.ReversalOf != nil {
		event.Metadata["reversal_of"] = *tx.ReversalOf
	}
	return event
}

// Payload encodes the event for the outbox.
func (e *AuditEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeAuditEvent reverses Payload.
func DecodeAuditEvent(payload []byte) (*AuditEvent, error) {
	var e AuditEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
