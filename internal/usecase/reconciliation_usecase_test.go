package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/usecase"
	"github.com/iho/trustledger/internal/usecase/mocks"
)

func TestReconcile_OneCentShort(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.RecordTransaction(ctx, input("M-1", domain.TransactionDeposit, "1000.00", standard))
	require.NoError(t, err)

	result, err := h.recon.Reconcile(ctx, "M-1", money("999.99"), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationMismatched, result.Status)
	assert.True(t, result.Discrepancy.Equal(money("0.01")), "discrepancy %s", result.Discrepancy)
	assert.True(t, result.LedgerBalance.Equal(money("1000.00")))
	assert.True(t, result.SubledgerDiscrepancy.IsZero())
	assert.Equal(t, int64(1), result.TransactionCount)

	events := h.outbox.Events()
	require.Len(t, events, 2)
	audit, err := domain.DecodeAuditEvent(events[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, domain.AuditActionReconciliationMismatch, audit.Action)
	assert.Equal(t, usecase.SystemActorID, audit.ActorID)
	assert.Equal(t, "matter", audit.Metadata["scope"])
	assert.True(t, audit.Amount.Equal(money("0.01")))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Reconciliations.WithLabelValues("matter", "mismatched")))
}

func TestReconcile_MatchedIsNotAudited(t *testing.T) {
	h := newHarness(t)
	ctx := domain.ContextWithActor(context.Background(), standard)

	_, err := h.ledger.RecordTransaction(ctx, input("M-2", domain.TransactionDeposit, "250.00", nil))
	require.NoError(t, err)
	_, err = h.ledger.RecordTransaction(ctx, input("M-2", domain.TransactionWithdrawal, "50.00", nil))
	require.NoError(t, err)

	result, err := h.recon.Reconcile(ctx, "M-2", money("200"), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationMatched, result.Status)
	assert.True(t, result.Discrepancy.IsZero())
	assert.Len(t, h.outbox.Events(), 2)
}

func TestReconcile_Epsilon(t *testing.T) {
	h := newHarness(t, func(_ *harness, _ *usecase.TrustLedgerConfig, r *usecase.ReconciliationConfig) {
		r.Epsilon = money("0.01")
	})
	ctx := context.Background()

	_, err := h.ledger.RecordTransaction(ctx, input("M-3", domain.TransactionDeposit, "1000.00", standard))
	require.NoError(t, err)

	result, err := h.recon.Reconcile(ctx, "M-3", money("999.99"), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationMatched, result.Status)

	result, err = h.recon.Reconcile(ctx, "M-3", money("999.98"), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationMismatched, result.Status)
}

func TestReconcile_AsOfExcludesLaterEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.RecordTransaction(ctx, input("M-4", domain.TransactionDeposit, "100.00", standard))
	require.NoError(t, err)
	cutoff := h.clock.Advance(time.Hour)
	h.clock.Advance(time.Hour)
	_, err = h.ledger.RecordTransaction(ctx, input("M-4", domain.TransactionDeposit, "900.00", standard))
	require.NoError(t, err)

	result, err := h.recon.Reconcile(ctx, "M-4", money("100.00"), cutoff)
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationMatched, result.Status)
	assert.Equal(t, int64(1), result.TransactionCount)

	before, err := h.recon.Reconcile(ctx, "M-4", domain.Zero, epoch.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationMatched, before.Status)
	assert.Zero(t, before.TransactionCount)
}

func TestReconcile_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.RecordTransaction(ctx, input("M-5", domain.TransactionDeposit, "10.00", standard))
	require.NoError(t, err)
	asOf := h.clock.Now()

	first, err := h.recon.Reconcile(ctx, "M-5", money("12.00"), asOf)
	require.NoError(t, err)
	h.clock.Advance(24 * time.Hour)
	second, err := h.recon.Reconcile(ctx, "M-5", money("12.00"), asOf)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	balance, err := h.ledger.GetBalance(ctx, "M-5")
	require.NoError(t, err)
	assert.True(t, balance.Equal(money("10.00")), "reconciliation must not write to the ledger")
}

func TestReconcile_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.recon.Reconcile(context.Background(), "M-6", domain.Zero, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = h.recon.Reconcile(context.Background(), "", domain.Zero, epoch)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = h.recon.ReconcileFirm(context.Background(), "iolta-main", domain.Zero, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestReconcileFirm_ThreeWay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	record := func(matter, client, firm string, txType domain.TransactionType, amount string, actor *domain.Actor) {
		t.Helper()
		in := input(matter, txType, amount, actor)
		in.ClientID = client
		in.FirmAccountID = firm
		_, err := h.ledger.RecordTransaction(ctx, in)
		require.NoError(t, err)
	}

	record("M-B", "C-2", "iolta-main", domain.TransactionDeposit, "300.00", standard)
	record("M-A", "C-1", "iolta-main", domain.TransactionDeposit, "700.00", standard)
	record("M-A", "C-1", "iolta-main", domain.TransactionWithdrawal, "100.00", standard)
	record("M-X", "C-9", "iolta-other", domain.TransactionDeposit, "5000.00", standard)

	result, err := h.recon.ReconcileFirm(ctx, "iolta-main", money("900.00"), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationMatched, result.Status)
	assert.True(t, result.LedgerBalance.Equal(money("900.00")))
	assert.True(t, result.SubledgerSum.Equal(money("900.00")))
	require.Len(t, result.Subledgers, 2)
	assert.Equal(t, "M-A", result.Subledgers[0].MatterID)
	assert.Equal(t, "C-1", result.Subledgers[0].ClientID)
	assert.True(t, result.Subledgers[0].Balance.Equal(money("600.00")))
	assert.Equal(t, int64(2), result.Subledgers[0].TransactionCount)
	assert.Empty(t, result.NegativeMatters)

	mismatched, err := h.recon.ReconcileFirm(ctx, "iolta-main", money("950.00"), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationMismatched, mismatched.Status)
	assert.True(t, mismatched.Discrepancy.Equal(money("-50.00")))
	assert.Contains(t, auditActions(h), domain.AuditActionReconciliationMismatch)
}

func TestReconcileFirm_NegativeMatter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ledger.RecordTransaction(ctx, input("M-1", domain.TransactionDeposit, "100.00", standard))
	require.NoError(t, err)
	_, err = h.ledger.RecordTransaction(ctx, input("M-2", domain.TransactionDeposit, "50.00", standard))
	require.NoError(t, err)
	_, err = h.ledger.RecordTransaction(ctx, input("M-2", domain.TransactionWithdrawal, "80.00", override))
	require.NoError(t, err)

	result, err := h.recon.ReconcileFirm(ctx, usecase.DefaultFirmAccountID, money("70.00"), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"M-2"}, result.NegativeMatters)
	assert.True(t, result.SubledgerSum.Equal(money("70.00")))
	assert.Equal(t, domain.ReconciliationMatched, result.Status)
}

func TestReconcileFirm_InconsistentSubledger(t *testing.T) {
	h := newHarness(t, func(h *harness, l *usecase.TrustLedgerConfig, r *usecase.ReconciliationConfig) {
		r.TransactionRepo = &mocks.MockTrustTransactionRepository{
			Base: h.txs,
			BalanceAsOfFunc: func(ctx context.Context, matterID string, asOf time.Time) (*domain.BalanceSnapshot, error) {
				snapshot, err := h.txs.BalanceAsOf(ctx, matterID, asOf)
				if err != nil {
					return nil, err
				}
				snapshot.Replayed = snapshot.Replayed.Sub(money("0.01"))
				return snapshot, nil
			},
			FirmSnapshotAsOfFunc: func(ctx context.Context, firmAccountID string, asOf time.Time) (*domain.FirmSnapshot, error) {
				firm, err := h.txs.FirmSnapshotAsOf(ctx, firmAccountID, asOf)
				if err != nil {
					return nil, err
				}
				for _, matter := range firm.Matters {
					matter.Snapshot.Replayed = matter.Snapshot.Replayed.Sub(money("0.01"))
				}
				return firm, nil
			},
		}
	})
	ctx := context.Background()

	_, err := h.ledger.RecordTransaction(ctx, input("M-1", domain.TransactionDeposit, "10.00", standard))
	require.NoError(t, err)

	result, err := h.recon.ReconcileFirm(ctx, usecase.DefaultFirmAccountID, money("10.00"), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationMismatched, result.Status)
	require.Len(t, result.Subledgers, 1)
	assert.False(t, result.Subledgers[0].Consistent())

	matter, err := h.recon.Reconcile(ctx, "M-1", money("10.00"), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationMismatched, matter.Status)
	assert.True(t, matter.SubledgerDiscrepancy.Equal(money("0.01")))
}

func TestReconcileFirm_EmptyFirm(t *testing.T) {
	h := newHarness(t)

	result, err := h.recon.ReconcileFirm(context.Background(), "iolta-empty", domain.Zero, epoch)
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationMatched, result.Status)
	assert.NotNil(t, result.Subledgers)
	assert.Empty(t, result.Subledgers)
}

func TestReconcileFirm_ConcurrentCommitAfterSnapshot(t *testing.T) {
	var committed bool
	h := newHarness(t, func(h *harness, _ *usecase.TrustLedgerConfig, r *usecase.ReconciliationConfig) {
		r.TransactionRepo = &mocks.MockTrustTransactionRepository{
			Base: h.txs,
			FirmSnapshotAsOfFunc: func(ctx context.Context, firmAccountID string, asOf time.Time) (*domain.FirmSnapshot, error) {
				firm, err := h.txs.FirmSnapshotAsOf(ctx, firmAccountID, asOf)
				if err != nil || committed {
					return firm, err
				}
				committed = true
				_, err = h.ledger.RecordTransaction(ctx, input("M-2", domain.TransactionDeposit, "5.00", standard))
				return firm, err
			},
		}
	})
	ctx := context.Background()

	_, err := h.ledger.RecordTransaction(ctx, input("M-1", domain.TransactionDeposit, "10.00", standard))
	require.NoError(t, err)
	_, err = h.ledger.RecordTransaction(ctx, input("M-2", domain.TransactionDeposit, "20.00", standard))
	require.NoError(t, err)

	result, err := h.recon.ReconcileFirm(ctx, usecase.DefaultFirmAccountID, money("30.00"), h.clock.Now())
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, domain.ReconciliationMatched, result.Status)
	assert.True(t, result.LedgerBalance.Equal(money("30.00")), "ledger %s", result.LedgerBalance)
	assert.True(t, result.SubledgerSum.Equal(money("30.00")), "sub-ledgers %s", result.SubledgerSum)
	assert.NotContains(t, auditActions(h), domain.AuditActionReconciliationMismatch)
}
