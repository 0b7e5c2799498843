package postgres

import (
	"context"
	"time"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/postgres/generated"
	"github.com/iho/trustledger/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	queries *generated.Queries
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(pool generated.DBTX) *OutboxRepository {
	return &OutboxRepository{
		queries: generated.New(pool),
	}
}

// Create creates a new outbox event within a transaction.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	return queries.CreateTrustOutboxEvent(ctx, generated.CreateTrustOutboxEventParams{
		ID:            event.ID,
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		EventType:     event.EventType,
		Payload:       event.Payload,
		CreatedAt:     timeToPgTimestamptz(event.CreatedAt),
		NextAttemptAt: timeToPgTimestamptz(event.NextAttemptAt),
	})
}

// GetDue retrieves undelivered events whose next attempt is due.
func (r *OutboxRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.queries.GetDueTrustOutboxEvents(ctx, generated.GetDueTrustOutboxEventsParams{
		Now:   timeToPgTimestamptz(now),
		Limit: int32(limit),
	})
	if err != nil {
		return nil, err
	}

	events := make([]*domain.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, rowToOutboxEvent(row))
	}

	return events, nil
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	affected, err := r.queries.MarkTrustOutboxPublished(ctx, generated.MarkTrustOutboxPublishedParams{
		ID:          id,
		PublishedAt: timeToPgTimestamptz(publishedAt),
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed records a failed delivery attempt and its schedule.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string, deadLettered bool) error {
	affected, err := r.queries.MarkTrustOutboxFailed(ctx, generated.MarkTrustOutboxFailedParams{
		ID:            id,
		Attempts:      int32(attempts),
		NextAttemptAt: timeToPgTimestamptz(nextAttemptAt),
		LastError:     lastError,
		DeadLettered:  deadLettered,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeletePublished deletes published events older than the given time.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	return r.queries.DeletePublishedTrustOutbox(ctx, timeToPgTimestamptz(before))
}

func rowToOutboxEvent(row generated.TrustOutbox) *domain.OutboxEvent {
	var publishedAt *time.Time
	if row.PublishedAt.Valid {
		t := row.PublishedAt.Time
		publishedAt = &t
	}

	return &domain.OutboxEvent{
		ID:            row.ID,
		AggregateID:   row.AggregateID,
		AggregateType: row.AggregateType,
		EventType:     row.EventType,
		Payload:       row.Payload,
		CreatedAt:     row.CreatedAt.Time,
		Attempts:      int(row.Attempts),
		NextAttemptAt: row.NextAttemptAt.Time,
		LastError:     row.LastError,
		Published:     row.Published,
		PublishedAt:   publishedAt,
		DeadLettered:  row.DeadLettered,
	}
}
