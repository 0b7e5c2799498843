package memory

import (
	"context"
	"time"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// Create stages an outbox event in the transaction.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	staged := copyEvent(event)

	return t.stage(func(s *Store) (func(), error) {
		if _, exists := s.outbox[staged.ID]; exists {
			return nil, domain.ErrVersionConflict
		}
		s.outbox[staged.ID] = staged
		order := s.outboxOrder
		s.outboxOrder = append(order, staged.ID)
		return func() {
			delete(s.outbox, staged.ID)
			s.outboxOrder = order
		}, nil
	})
}

// GetDue returns pending events whose next attempt time has passed, oldest first.
func (r *OutboxRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	events := []*domain.OutboxEvent{}
	for _, id := range r.store.outboxOrder {
		event := r.store.outbox[id]
		if event.Published || event.DeadLettered || event.NextAttemptAt.After(now) {
			continue
		}
		events = append(events, copyEvent(event))
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

// MarkPublished marks an event as delivered.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event, ok := r.store.outbox[id]
	if !ok {
		return domain.ErrNotFound
	}
	at := publishedAt
	event.Published = true
	event.PublishedAt = &at
	return nil
}

// MarkFailed records a failed delivery attempt.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string, deadLettered bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event, ok := r.store.outbox[id]
	if !ok {
		return domain.ErrNotFound
	}
	event.Attempts = attempts
	event.NextAttemptAt = nextAttemptAt
	event.LastError = lastError
	event.DeadLettered = deadLettered
	return nil
}

// DeletePublished drops delivered events published before the cutoff.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.outboxOrder[:0:0]
	for _, id := range r.store.outboxOrder {
		event := r.store.outbox[id]
		if event.Published && event.PublishedAt != nil && event.PublishedAt.Before(before) {
			delete(r.store.outbox, id)
			continue
		}
		kept = append(kept, id)
	}
	r.store.outboxOrder = kept
	return nil
}

// Events returns a snapshot of every outbox event in insertion order.
func (r *OutboxRepository) Events() []*domain.OutboxEvent {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	events := make([]*domain.OutboxEvent, 0, len(r.store.outboxOrder))
	for _, id := range r.store.outboxOrder {
		events = append(events, copyEvent(r.store.outbox[id]))
	}
	return events
}
