package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/trustledger/internal/domain"
)

// auditOutbox stages audit events for the relay. Events describing a
// committed change go in the same storage transaction as the change; events
// describing something that did not change the ledger (rejections,
// reconciliation findings) get a transaction of their own.
type auditOutbox struct {
	txManager  TransactionManager
	outboxRepo OutboxRepository
	idGen      IDGenerator
	clock      Clock
	notifier   AuditNotifier
	logger     zerolog.Logger
	timeout    time.Duration
}

func (a *auditOutbox) appendTx(ctx context.Context, tx Transaction, event *domain.AuditEvent) error {
	outboxEvent, err := domain.NewOutboxEvent(a.idGen.Generate(), event, a.clock.Now().UTC())
	if err != nil {
		return err
	}
	return a.outboxRepo.Create(ctx, tx, outboxEvent)
}

// appendStandalone is best effort: a failure is logged, never returned, so it
// cannot mask the error the caller is about to see.
func (a *auditOutbox) appendStandalone(ctx context.Context, event *domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	err := a.writeStandalone(ctx, event)
	if err != nil {
		a.logger.Error().
			Err(err).
			Str("action", string(event.Action)).
			Str("matter_id", event.MatterID).
			Msg("failed to stage audit event")
		return
	}
	a.notify()
}

func (a *auditOutbox) writeStandalone(ctx context.Context, event *domain.AuditEvent) error {
	tx, err := a.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := a.appendTx(ctx, tx, event); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (a *auditOutbox) notify() {
	if a.notifier != nil {
		a.notifier.Notify()
	}
}
