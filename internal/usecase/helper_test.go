package usecase_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/trustledger/internal/adapter/repository/memory"
	"github.com/iho/trustledger/internal/adapter/repository/postgres"
	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/locker"
	"github.com/iho/trustledger/internal/infrastructure/metrics"
	"github.com/iho/trustledger/internal/usecase"
	"github.com/iho/trustledger/internal/usecase/mocks"
)

var (
	standard = &domain.Actor{ID: "associate-1", Role: domain.RoleStandard}
	override = &domain.Actor{ID: "partner-1", Role: domain.RoleOverride}
	viewer   = &domain.Actor{ID: "auditor-1", Role: domain.RoleViewer}

	epoch = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
)

type harness struct {
	ledger   *usecase.TrustLedger
	recon    *usecase.ReconciliationUseCase
	store    *memory.Store
	accounts usecase.TrustAccountRepository
	txs      usecase.TrustTransactionRepository
	outbox   *memory.OutboxRepository
	clock    *mocks.MockClock
	notifier *mocks.MockNotifier
	metrics  *metrics.Metrics
}

type option func(*harness, *usecase.TrustLedgerConfig, *usecase.ReconciliationConfig)

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()

	store := memory.NewStore()
	h := &harness{
		store:    store,
		accounts: memory.NewAccountRepository(store),
		txs:      memory.NewTransactionRepository(store),
		outbox:   memory.NewOutboxRepository(store),
		clock:    mocks.NewMockClock(epoch),
		notifier: &mocks.MockNotifier{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}

	idGen := mocks.NewMockIDGenerator("id")
	ledgerCfg := usecase.TrustLedgerConfig{
		TxManager:       memory.NewTxManager(store),
		AccountRepo:     h.accounts,
		TransactionRepo: h.txs,
		OutboxRepo:      h.outbox,
		Locker:          locker.NewLocal(),
		Retrier:         postgres.NewRetrier(5, zerolog.Nop()).WithIntervals(time.Millisecond, 5*time.Millisecond, 2*time.Second),
		IDGen:           idGen,
		Clock:           h.clock,
		Notifier:        h.notifier,
		Metrics:         h.metrics,
		Logger:          zerolog.Nop(),
	}
	reconCfg := usecase.ReconciliationConfig{
		TxManager:       ledgerCfg.TxManager,
		TransactionRepo: h.txs,
		OutboxRepo:      h.outbox,
		IDGen:           idGen,
		Clock:           h.clock,
		Notifier:        h.notifier,
		Metrics:         h.metrics,
		Logger:          zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(h, &ledgerCfg, &reconCfg)
	}

	h.ledger = usecase.NewTrustLedger(ledgerCfg)
	h.recon = usecase.NewReconciliationUseCase(reconCfg)
	return h
}

func newLedger(t *testing.T, mutate func(*usecase.TrustLedgerConfig)) *harness {
	t.Helper()
	return newHarness(t, func(_ *harness, l *usecase.TrustLedgerConfig, _ *usecase.ReconciliationConfig) {
		mutate(l)
	})
}

func money(s string) domain.Money {
	return domain.MustParseMoney(s)
}

func input(matterID string, txType domain.TransactionType, amount string, actor *domain.Actor) usecase.RecordTransactionInput {
	return usecase.RecordTransactionInput{
		MatterID:    matterID,
		Type:        txType,
		Amount:      money(amount),
		Description: string(txType) + " " + amount,
		Actor:       actor,
	}
}

func auditActions(h *harness) []domain.AuditAction {
	var actions []domain.AuditAction
	for _, event := range h.outbox.Events() {
		actions = append(actions, domain.AuditAction(event.EventType))
	}
	return actions
}
