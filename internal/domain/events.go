package domain

import (
	"strconv"
	"time"
)

// AggregateTypeTrustAccount is the outbox aggregate for trust audit events.
const AggregateTypeTrustAccount = "trust_account"

// OutboxEvent is an audit event waiting for delivery to the AuditSink.
// It is written in the same storage transaction as the ledger change it describes.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	Published     bool
	PublishedAt   *time.Time
	DeadLettered  bool
}

// NewOutboxEvent wraps an audit event for durable delivery.
func NewOutboxEvent(id string, event *AuditEvent, now time.Time) (*OutboxEvent, error) {
	payload, err := event.Payload()
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:            id,
		AggregateID:   event.MatterID,
		AggregateType: AggregateTypeTrustAccount,
		EventType:     string(event.Action),
		Payload:       payload,
		CreatedAt:     now,
		NextAttemptAt: now,
	}, nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
