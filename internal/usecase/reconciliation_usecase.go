package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/metrics"
)

// ReconciliationConfig wires a ReconciliationUseCase.
type ReconciliationConfig struct {
	TxManager       TransactionManager
	TransactionRepo TrustTransactionRepository
	OutboxRepo      OutboxRepository
	IDGen           IDGenerator
	Clock           Clock
	Notifier        AuditNotifier
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger

	// Epsilon is the largest difference still treated as matched.
	Epsilon        domain.Money
	StorageTimeout time.Duration
}

// ReconciliationUseCase compares ledger balances with bank statements. It
// only reads the ledger; mismatches are reported to the audit outbox.
type ReconciliationUseCase struct {
	txRepo         TrustTransactionRepository
	audit          *auditOutbox
	idGen          IDGenerator
	clock          Clock
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	epsilon        domain.Money
	storageTimeout time.Duration
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(cfg ReconciliationConfig) *ReconciliationUseCase {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = DefaultStorageTimeout
	}

	return &ReconciliationUseCase{
		txRepo: cfg.TransactionRepo,
		audit: &auditOutbox{
			txManager:  cfg.TxManager,
			outboxRepo: cfg.OutboxRepo,
			idGen:      cfg.IDGen,
			clock:      cfg.Clock,
			notifier:   cfg.Notifier,
			logger:     cfg.Logger,
			timeout:    cfg.StorageTimeout,
		},
		idGen:          cfg.IDGen,
		clock:          cfg.Clock,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		epsilon:        cfg.Epsilon.Abs(),
		storageTimeout: cfg.StorageTimeout,
	}
}

// Reconcile compares one matter's ledger balance as of asOf with the bank
// statement balance and with the replayed sum of its entries. The same
// inputs over an unchanged ledger always produce the same result.
func (uc *ReconciliationUseCase) Reconcile(ctx context.Context, matterID string, bankStatementBalance domain.Money, asOf time.Time) (*domain.ReconciliationResult, error) {
	const op = "reconcile"

	if err := domain.ValidateIdentifier("matter id", matterID); err != nil {
		return nil, domain.NewLedgerError(op, matterID, nil, err, "")
	}
	if asOf.IsZero() {
		return nil, domain.NewLedgerError(op, matterID, nil, domain.ErrInvalidRequest, "as-of time is required")
	}

	readCtx, cancel := context.WithTimeout(ctx, uc.storageTimeout)
	defer cancel()

	snapshot, err := uc.txRepo.BalanceAsOf(readCtx, matterID, asOf)
	if err != nil {
		return nil, translateError(uc.logger, op, matterID, nil, err)
	}

	result := &domain.ReconciliationResult{
		MatterID:             matterID,
		AsOf:                 asOf.UTC(),
		LedgerBalance:        snapshot.Balance,
		SubledgerSum:         snapshot.Replayed,
		BankStatementBalance: bankStatementBalance,
		Discrepancy:          snapshot.Balance.Sub(bankStatementBalance),
		SubledgerDiscrepancy: snapshot.Balance.Sub(snapshot.Replayed),
		TransactionCount:     snapshot.TransactionCount,
		Status:               domain.ReconciliationMatched,
	}
	if !domain.WithinTolerance(result.LedgerBalance, result.BankStatementBalance, uc.epsilon) ||
		!domain.WithinTolerance(result.LedgerBalance, result.SubledgerSum, uc.epsilon) {
		result.Status = domain.ReconciliationMismatched
	}

	uc.count("matter", result.Status)
	if result.Status == domain.ReconciliationMismatched {
		discrepancy := result.Discrepancy
		balance := result.LedgerBalance
		uc.report(ctx, &domain.AuditEvent{
			MatterID:         matterID,
			Amount:           &discrepancy,
			ResultingBalance: &balance,
			Reason: fmt.Sprintf("ledger %s, bank %s, sub-ledger %s",
				result.LedgerBalance, result.BankStatementBalance, result.SubledgerSum),
			Metadata: map[string]string{
				"scope":                 "matter",
				"as_of":                 result.AsOf.Format(time.RFC3339Nano),
				"bank_statement":        result.BankStatementBalance.String(),
				"subledger_sum":         result.SubledgerSum.String(),
				"subledger_discrepancy": result.SubledgerDiscrepancy.String(),
			},
		})
	}

	return result, nil
}

// ReconcileFirm performs the three-way reconciliation of a pooled firm trust
// account: the firm-level ledger total, the sum of every matter's sub-ledger
// and the bank statement must all agree within epsilon.
func (uc *ReconciliationUseCase) ReconcileFirm(ctx context.Context, firmAccountID string, bankStatementBalance domain.Money, asOf time.Time) (*domain.FirmReconciliationResult, error) {
	const op = "reconcile firm"

	if err := domain.ValidateIdentifier("firm account id", firmAccountID); err != nil {
		return nil, domain.NewLedgerError(op, "", nil, err, "")
	}
	if asOf.IsZero() {
		return nil, domain.NewLedgerError(op, "", nil, domain.ErrInvalidRequest, "as-of time is required")
	}

	readCtx, cancel := context.WithTimeout(ctx, uc.storageTimeout)
	defer cancel()

	firm, err := uc.txRepo.FirmSnapshotAsOf(readCtx, firmAccountID, asOf)
	if err != nil {
		return nil, translateError(uc.logger, op, "", nil, err)
	}
	matters := firm.Matters
	sort.Slice(matters, func(i, j int) bool { return matters[i].Account.MatterID < matters[j].Account.MatterID })

	result := &domain.FirmReconciliationResult{
		FirmAccountID:        firmAccountID,
		AsOf:                 asOf.UTC(),
		LedgerBalance:        firm.LedgerBalance,
		SubledgerSum:         domain.Zero,
		BankStatementBalance: bankStatementBalance,
		Subledgers:           []*domain.SubledgerBalance{},
		NegativeMatters:      []string{},
		Status:               domain.ReconciliationMatched,
	}

	inconsistent := false
	for _, matter := range matters {
		snapshot := matter.Snapshot
		if snapshot.TransactionCount == 0 {
			continue
		}

		line := &domain.SubledgerBalance{
			MatterID:         matter.Account.MatterID,
			ClientID:         matter.Account.ClientID,
			Balance:          snapshot.Balance,
			Replayed:         snapshot.Replayed,
			TransactionCount: snapshot.TransactionCount,
		}
		result.Subledgers = append(result.Subledgers, line)
		result.SubledgerSum = result.SubledgerSum.Add(line.Balance)

		if line.Balance.IsNegative() {
			result.NegativeMatters = append(result.NegativeMatters, line.MatterID)
		}
		if !line.Consistent() {
			inconsistent = true
		}
	}

	result.Discrepancy = result.LedgerBalance.Sub(result.BankStatementBalance)
	result.SubledgerDiscrepancy = result.LedgerBalance.Sub(result.SubledgerSum)

	if inconsistent ||
		!domain.WithinTolerance(result.LedgerBalance, result.BankStatementBalance, uc.epsilon) ||
		!domain.WithinTolerance(result.LedgerBalance, result.SubledgerSum, uc.epsilon) {
		result.Status = domain.ReconciliationMismatched
	}

	uc.count("firm", result.Status)
	if result.Status == domain.ReconciliationMismatched {
		discrepancy := result.Discrepancy
		balance := result.LedgerBalance
		uc.report(ctx, &domain.AuditEvent{
			MatterID:         firmAccountID,
			Amount:           &discrepancy,
			ResultingBalance: &balance,
			Reason: fmt.Sprintf("ledger %s, bank %s, sub-ledgers %s",
				result.LedgerBalance, result.BankStatementBalance, result.SubledgerSum),
			Metadata: map[string]string{
				"scope":                 "firm",
				"as_of":                 result.AsOf.Format(time.RFC3339Nano),
				"bank_statement":        result.BankStatementBalance.String(),
				"subledger_sum":         result.SubledgerSum.String(),
				"subledger_discrepancy": result.SubledgerDiscrepancy.String(),
				"negative_matters":      fmt.Sprint(len(result.NegativeMatters)),
			},
		})
	}

	return result, nil
}

func (uc *ReconciliationUseCase) report(ctx context.Context, event *domain.AuditEvent) {
	event.ID = uc.idGen.Generate()
	event.Action = domain.AuditActionReconciliationMismatch
	event.ActorID = SystemActorID
	event.Timestamp = uc.clock.Now().UTC()
	if actor, ok := domain.ActorFromContext(ctx); ok {
		event.ActorID = actor.ID
		event.ActorRole = actor.Role
	}

	uc.logger.Warn().
		Str("scope", event.Metadata["scope"]).
		Str("id", event.MatterID).
		Str("discrepancy", event.Amount.String()).
		Msg("reconciliation mismatch")

	uc.audit.appendStandalone(ctx, event)
}

func (uc *ReconciliationUseCase) count(scope string, status domain.ReconciliationStatus) {
	if uc.metrics != nil {
		uc.metrics.Reconciliations.WithLabelValues(scope, string(status)).Inc()
	}
}
