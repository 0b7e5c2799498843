package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/postgres/generated"
)

// AuditRepository is the append-only trust_audit_log table. It implements
// usecase.AuditSink; redelivering an event with the same ID is a no-op.
type AuditRepository struct {
	queries *generated.Queries
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(pool generated.DBTX) *AuditRepository {
	return &AuditRepository{queries: generated.New(pool)}
}

// Record inserts an audit log entry.
func (r *AuditRepository) Record(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	metadata := []byte("{}")
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return err
		}
	}

	_, err := r.queries.InsertTrustAuditLog(ctx, generated.InsertTrustAuditLogParams{
		ID:               event.ID,
		ActorID:          event.ActorID,
		ActorRole:        string(event.ActorRole),
		MatterID:         event.MatterID,
		Action:           string(event.Action),
		Amount:           optionalMoneyToNumeric(event.Amount),
		ResultingBalance: optionalMoneyToNumeric(event.ResultingBalance),
		TransactionID:    event.TransactionID,
		Shortfall:        event.Shortfall,
		Reason:           event.Reason,
		Metadata:         metadata,
		OccurredAt:       timeToPgTimestamptz(event.Timestamp),
	})
	return err
}
