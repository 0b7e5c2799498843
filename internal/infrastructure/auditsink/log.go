// Package auditsink holds the destinations audit events are delivered to.
package auditsink

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/iho/trustledger/internal/domain"
)

// Log writes audit events as structured log lines.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a log sink.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "audit").Logger()}
}

// Record logs the event.
func (s *Log) Record(_ context.Context, event *domain.AuditEvent) error {
	entry := s.logger.Info().
		Str("audit_id", event.ID).
		Str("action", string(event.Action)).
		Str("actor_id", event.ActorID).
		Str("actor_role", string(event.ActorRole)).
		Str("matter_id", event.MatterID).
		Str("transaction_id", event.TransactionID).
		Bool("shortfall", event.Shortfall).
		Time("occurred_at", event.Timestamp)

	if event.Amount != nil {
		entry = entry.Str("amount", event.Amount.String())
	}
	if event.ResultingBalance != nil {
		entry = entry.Str("resulting_balance", event.ResultingBalance.String())
	}
	if event.Reason != "" {
		entry = entry.Str("reason", event.Reason)
	}
	if len(event.Metadata) > 0 {
		dict := zerolog.Dict()
		for k, v := range event.Metadata {
			dict = dict.Str(k, v)
		}
		entry = entry.Dict("metadata", dict)
	}

	entry.Msg("AUDIT")
	return nil
}
