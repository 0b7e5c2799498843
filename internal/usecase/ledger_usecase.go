package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/metrics"
)

// TrustLedgerConfig wires a TrustLedger.
type TrustLedgerConfig struct {
	TxManager       TransactionManager
	AccountRepo     TrustAccountRepository
	TransactionRepo TrustTransactionRepository
	OutboxRepo      OutboxRepository
	Locker          AccountLocker
	Retrier         Retrier
	IDGen           IDGenerator
	Clock           Clock
	Notifier        AuditNotifier
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger

	DefaultCurrency      string
	DefaultFirmAccountID string
	// MaxAmount is the per-transaction ceiling. Zero disables it.
	MaxAmount      domain.Money
	LockTimeout    time.Duration
	StorageTimeout time.Duration
}

// TrustLedger records and reads client trust transactions. Writes to one
// matter are serialized by the AccountLocker and guarded by the account
// version, so balances stay gapless under any interleaving.
type TrustLedger struct {
	txManager   TransactionManager
	accountRepo TrustAccountRepository
	txRepo      TrustTransactionRepository
	locker      AccountLocker
	retrier     Retrier
	idGen       IDGenerator
	clock       Clock
	audit       *auditOutbox
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	defaultCurrency      string
	defaultFirmAccountID string
	maxAmount            domain.Money
	lockTimeout          time.Duration
	storageTimeout       time.Duration
}

// NewTrustLedger creates a new TrustLedger.
func NewTrustLedger(cfg TrustLedgerConfig) *TrustLedger {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultCurrency
	}
	if cfg.DefaultFirmAccountID == "" {
		cfg.DefaultFirmAccountID = DefaultFirmAccountID
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = DefaultStorageTimeout
	}

	return &TrustLedger{
		txManager:   cfg.TxManager,
		accountRepo: cfg.AccountRepo,
		txRepo:      cfg.TransactionRepo,
		locker:      cfg.Locker,
		retrier:     cfg.Retrier,
		idGen:       cfg.IDGen,
		clock:       cfg.Clock,
		audit: &auditOutbox{
			txManager:  cfg.TxManager,
			outboxRepo: cfg.OutboxRepo,
			idGen:      cfg.IDGen,
			clock:      cfg.Clock,
			notifier:   cfg.Notifier,
			logger:     cfg.Logger,
			timeout:    cfg.StorageTimeout,
		},
		metrics:              cfg.Metrics,
		logger:               cfg.Logger,
		defaultCurrency:      domain.NormalizeCurrency(cfg.DefaultCurrency),
		defaultFirmAccountID: cfg.DefaultFirmAccountID,
		maxAmount:            cfg.MaxAmount,
		lockTimeout:          cfg.LockTimeout,
		storageTimeout:       cfg.StorageTimeout,
	}
}

// RecordTransactionInput represents input for recording a trust transaction.
type RecordTransactionInput struct {
	MatterID    string
	Type        domain.TransactionType
	Amount      domain.Money
	Description string
	Reference   string
	// Currency, ClientID and FirmAccountID only apply when the matter's
	// account is created by this write. A currency that disagrees with an
	// existing account is rejected.
	Currency      string
	ClientID      string
	FirmAccountID string
	// Actor falls back to the actor carried by ctx.
	Actor *domain.Actor
}

// writeRequest is a validated write on its way to storage.
type writeRequest struct {
	op            string
	matterID      string
	txType        domain.TransactionType
	amount        domain.Money
	description   string
	reference     string
	currency      string
	clientID      string
	firmAccountID string
	reversalOf    *string
	actor         *domain.Actor
}

// RecordTransaction validates and persists one trust transaction and returns
// it with its balance_after and sequence. Debits that would take the matter
// negative are rejected with domain.ErrInsufficientFunds unless the actor
// holds the override role, in which case the entry is flagged as a shortfall.
func (l *TrustLedger) RecordTransaction(ctx context.Context, input RecordTransactionInput) (*domain.TrustTransaction, error) {
	const op = "record transaction"

	if err := domain.ValidateIdentifier("matter id", input.MatterID); err != nil {
		return nil, domain.NewLedgerError(op, input.MatterID, nil, err, "")
	}
	if !input.Type.IsValid() {
		return nil, domain.NewLedgerError(op, input.MatterID, nil,
			fmt.Errorf("%w: unknown transaction type %q", domain.ErrInvalidRequest, input.Type), "")
	}

	currency := l.defaultCurrency
	if input.Currency != "" {
		currency = domain.NormalizeCurrency(input.Currency)
		if err := domain.ValidateCurrency(currency); err != nil {
			return nil, domain.NewLedgerError(op, input.MatterID, nil, err, "")
		}
	}

	amount := input.Amount
	if err := domain.ValidateAmount(amount, currency, l.maxAmount); err != nil {
		return nil, domain.NewLedgerError(op, input.MatterID, &amount, err, "")
	}
	if err := domain.ValidateDescription(input.Description); err != nil {
		return nil, domain.NewLedgerError(op, input.MatterID, &amount, err, "")
	}
	if err := domain.ValidateReference(input.Reference); err != nil {
		return nil, domain.NewLedgerError(op, input.MatterID, &amount, err, "")
	}
	if input.ClientID != "" {
		if err := domain.ValidateIdentifier("client id", input.ClientID); err != nil {
			return nil, domain.NewLedgerError(op, input.MatterID, &amount, err, "")
		}
	}
	if input.FirmAccountID != "" {
		if err := domain.ValidateIdentifier("firm account id", input.FirmAccountID); err != nil {
			return nil, domain.NewLedgerError(op, input.MatterID, &amount, err, "")
		}
	}

	actor, err := l.resolveWriter(ctx, input.Actor)
	if err != nil {
		return nil, domain.NewLedgerError(op, input.MatterID, &amount, err, "")
	}

	return l.write(ctx, writeRequest{
		op:            op,
		matterID:      input.MatterID,
		txType:        input.Type,
		amount:        amount,
		description:   input.Description,
		reference:     input.Reference,
		currency:      domain.NormalizeCurrency(input.Currency),
		clientID:      input.ClientID,
		firmAccountID: input.FirmAccountID,
		actor:         actor,
	})
}

// ReverseTransaction records a compensating entry of the opposite type for
// originalID. The original is never modified. A transaction can be reversed
// once and a reversal cannot itself be reversed.
func (l *TrustLedger) ReverseTransaction(ctx context.Context, originalID string, actor *domain.Actor, reason string) (*domain.TrustTransaction, error) {
	const op = "reverse transaction"

	if err := domain.ValidateIdentifier("transaction id", originalID); err != nil {
		return nil, domain.NewLedgerError(op, "", nil, err, "")
	}
	resolved, err := l.resolveWriter(ctx, actor)
	if err != nil {
		return nil, domain.NewLedgerError(op, "", nil, err, "")
	}
	if err := domain.ValidateDescription(reason); err != nil {
		return nil, domain.NewLedgerError(op, "", nil, err, "reversal reason is required")
	}

	readCtx, cancel := context.WithTimeout(ctx, l.storageTimeout)
	original, err := l.txRepo.GetByID(readCtx, originalID)
	cancel()
	if err != nil {
		return nil, l.translate(op, originalID, nil, err)
	}
	if original.IsReversal() {
		return nil, domain.NewLedgerError(op, original.MatterID, &original.Amount,
			domain.ErrInvalidRequest, "a reversal cannot itself be reversed")
	}

	description := fmt.Sprintf("Reversal of %s: %s", original.ID, reason)
	if err := domain.ValidateDescription(description); err != nil {
		return nil, domain.NewLedgerError(op, original.MatterID, &original.Amount, err, "")
	}

	originalID = original.ID
	return l.write(ctx, writeRequest{
		op:          op,
		matterID:    original.MatterID,
		txType:      original.Type.Opposite(),
		amount:      original.Amount,
		description: description,
		reference:   original.ID,
		reversalOf:  &originalID,
		actor:       resolved,
	})
}

// write takes the matter lock and runs attempts until one commits, a
// non-retryable error occurs or the retry budget is spent.
func (l *TrustLedger) write(ctx context.Context, req writeRequest) (*domain.TrustTransaction, error) {
	start := time.Now()

	lockCtx, cancel := context.WithTimeout(ctx, l.lockTimeout)
	release, err := l.locker.Lock(lockCtx, req.matterID)
	cancel()
	if l.metrics != nil {
		l.metrics.LockWaitDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrTimeout)) {
			err = domain.ErrTimeout
		}
		return nil, l.reject(ctx, req, l.translate(req.op, req.matterID, &req.amount, err))
	}
	defer release()

	var recorded *domain.TrustTransaction
	attempt := 0
	err = l.retrier.Retry(ctx, func() error {
		attempt++
		if attempt > 1 && l.metrics != nil {
			l.metrics.ConcurrencyRetries.Inc()
		}
		result, err := l.apply(ctx, req)
		if err != nil {
			return err
		}
		recorded = result
		return nil
	})
	if err != nil {
		return nil, l.reject(ctx, req, l.translate(req.op, req.matterID, &req.amount, err))
	}

	l.audit.notify()
	l.observe(recorded, start)
	l.logger.Info().
		Str("transaction_id", recorded.ID).
		Str("matter_id", recorded.MatterID).
		Str("type", string(recorded.Type)).
		Str("amount", recorded.Amount.String()).
		Str("balance_after", recorded.BalanceAfter.String()).
		Int64("sequence", recorded.Sequence).
		Str("actor_id", recorded.CreatedBy).
		Bool("shortfall", recorded.Shortfall).
		Msg("trust transaction recorded")

	return recorded, nil
}

// apply is one storage attempt: read the account, compute the new balance,
// persist account, entry and audit outbox row in one transaction.
func (l *TrustLedger) apply(ctx context.Context, req writeRequest) (*domain.TrustTransaction, error) {
	txCtx, cancel := context.WithTimeout(ctx, l.storageTimeout)
	defer cancel()

	tx, err := l.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := l.clock.Now().UTC()

	account, err := l.accountRepo.GetByMatterIDTx(txCtx, tx, req.matterID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if req.reversalOf != nil {
			return nil, fmt.Errorf("%w: trust account for matter %s", domain.ErrNotFound, req.matterID)
		}
		account = l.newAccount(req, now)
	case err != nil:
		return nil, err
	}

	if req.currency != "" && req.currency != account.Currency {
		return nil, domain.NewLedgerError(req.op, req.matterID, &req.amount, domain.ErrInvalidRequest,
			fmt.Sprintf("account is held in %s, not %s", account.Currency, req.currency))
	}
	if err := domain.ValidateAmount(req.amount, account.Currency, l.maxAmount); err != nil {
		return nil, domain.NewLedgerError(req.op, req.matterID, &req.amount, err, "")
	}

	if req.reversalOf != nil {
		_, err := l.txRepo.GetReversalOfTx(txCtx, tx, *req.reversalOf)
		switch {
		case err == nil:
			return nil, domain.NewLedgerError(req.op, req.matterID, &req.amount, domain.ErrAlreadyReversed, "")
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	balanceAfter := account.Apply(req.txType, req.amount)
	shortfall := false
	if !req.txType.IsCredit() && balanceAfter.IsNegative() {
		if !req.actor.Role.CanOverdraw() {
			balance := account.CurrentBalance
			return nil, domain.NewLedgerError(req.op, req.matterID, &req.amount, domain.ErrInsufficientFunds,
				fmt.Sprintf("available balance is %s", balance.String()))
		}
		shortfall = true
	}

	record := &domain.TrustTransaction{
		ID:            l.idGen.Generate(),
		MatterID:      req.matterID,
		Type:          req.txType,
		Amount:        req.amount,
		Description:   req.description,
		Reference:     req.reference,
		ReversalOf:    req.reversalOf,
		CreatedAt:     now,
		CreatedBy:     req.actor.ID,
		CreatedByRole: req.actor.Role,
		BalanceAfter:  balanceAfter,
		Sequence:      account.NextSequence(),
		Shortfall:     shortfall,
	}

	if account.IsNew() {
		account.CurrentBalance = balanceAfter
		account.Version = record.Sequence
		account.UpdatedAt = now
		if err := l.accountRepo.CreateTx(txCtx, tx, account); err != nil {
			return nil, err
		}
	} else {
		if err := l.accountRepo.UpdateBalanceTx(txCtx, tx, req.matterID, balanceAfter, account.Version, now); err != nil {
			return nil, err
		}
	}

	if err := l.txRepo.CreateTx(txCtx, tx, record); err != nil {
		return nil, err
	}

	if err := l.audit.appendTx(txCtx, tx, domain.AuditEventFromTransaction(l.idGen.Generate(), record)); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return record, nil
}

func (l *TrustLedger) newAccount(req writeRequest, now time.Time) *domain.TrustAccount {
	currency := req.currency
	if currency == "" {
		currency = l.defaultCurrency
	}
	firmAccountID := req.firmAccountID
	if firmAccountID == "" {
		firmAccountID = l.defaultFirmAccountID
	}
	return domain.NewTrustAccount(req.matterID, req.clientID, firmAccountID, currency, now)
}

// reject writes a best-effort audit note for refused writes and returns err.
func (l *TrustLedger) reject(ctx context.Context, req writeRequest, err error) error {
	reason := rejectionReason(err)
	if l.metrics != nil {
		l.metrics.TransactionsRejected.WithLabelValues(reason).Inc()
	}

	if !errors.Is(err, domain.ErrInsufficientFunds) &&
		!errors.Is(err, domain.ErrConcurrencyConflict) &&
		!errors.Is(err, domain.ErrTimeout) &&
		!errors.Is(err, domain.ErrInvalidRequest) {
		return err
	}

	amount := req.amount
	event := &domain.AuditEvent{
		ID:        l.idGen.Generate(),
		ActorID:   req.actor.ID,
		ActorRole: req.actor.Role,
		MatterID:  req.matterID,
		Action:    domain.AuditActionTransactionRejected,
		Amount:    &amount,
		Reason:    err.Error(),
		Metadata:  map[string]string{"type": string(req.txType), "reason": reason},
		Timestamp: l.clock.Now().UTC(),
	}
	if req.reversalOf != nil {
		event.Metadata["reversal_of"] = *req.reversalOf
	}
	l.audit.appendStandalone(ctx, event)

	l.logger.Warn().
		Str("matter_id", req.matterID).
		Str("type", string(req.txType)).
		Str("amount", req.amount.String()).
		Str("actor_id", req.actor.ID).
		Str("reason", reason).
		Msg("trust transaction rejected")

	return err
}

func (l *TrustLedger) observe(record *domain.TrustTransaction, start time.Time) {
	if l.metrics == nil {
		return
	}
	l.metrics.TransactionsRecorded.WithLabelValues(string(record.Type)).Inc()
	l.metrics.RecordDuration.Observe(time.Since(start).Seconds())
	if record.IsReversal() {
		l.metrics.TransactionsReversed.Inc()
	}
	if record.Shortfall {
		l.metrics.Shortfalls.Inc()
	}
}

// GetBalance returns the matter's current balance. A matter that was never
// written to has a zero balance.
func (l *TrustLedger) GetBalance(ctx context.Context, matterID string) (domain.Money, error) {
	account, err := l.GetAccount(ctx, matterID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Zero, nil
	}
	if err != nil {
		return domain.Zero, err
	}
	return account.CurrentBalance, nil
}

// GetAccount returns the matter's trust account.
func (l *TrustLedger) GetAccount(ctx context.Context, matterID string) (*domain.TrustAccount, error) {
	const op = "get account"

	if err := domain.ValidateIdentifier("matter id", matterID); err != nil {
		return nil, domain.NewLedgerError(op, matterID, nil, err, "")
	}

	readCtx, cancel := context.WithTimeout(ctx, l.storageTimeout)
	defer cancel()

	account, err := l.accountRepo.GetByMatterID(readCtx, matterID)
	if err != nil {
		return nil, l.translate(op, matterID, nil, err)
	}
	return account, nil
}

// GetHistory streams the matter's entries in sequence order, one storage page
// at a time. Each range over the returned sequence starts from the filter's
// cursor again. An error ends the sequence.
func (l *TrustLedger) GetHistory(ctx context.Context, matterID string, filter domain.HistoryFilter) iter.Seq2[*domain.TrustTransaction, error] {
	const op = "get history"

	return func(yield func(*domain.TrustTransaction, error) bool) {
		if err := domain.ValidateIdentifier("matter id", matterID); err != nil {
			yield(nil, domain.NewLedgerError(op, matterID, nil, err, ""))
			return
		}

		f := filter
		f.PageSize = domain.ValidatePagination(f.PageSize)
		emitted := 0

		for {
			readCtx, cancel := context.WithTimeout(ctx, l.storageTimeout)
			page, err := l.txRepo.List(readCtx, matterID, f)
			cancel()
			if err != nil {
				yield(nil, l.translate(op, matterID, nil, err))
				return
			}

			for _, t := range page {
				if f.Limit > 0 && emitted >= f.Limit {
					return
				}
				if !yield(t, nil) {
					return
				}
				emitted++
			}

			if len(page) < f.PageSize {
				return
			}
			f.Cursor = page[len(page)-1].Sequence
		}
	}
}

// ListHistory returns a single page of history and the cursor to continue from.
func (l *TrustLedger) ListHistory(ctx context.Context, matterID string, filter domain.HistoryFilter) (*domain.HistoryPage, error) {
	const op = "list history"

	if err := domain.ValidateIdentifier("matter id", matterID); err != nil {
		return nil, domain.NewLedgerError(op, matterID, nil, err, "")
	}

	size := domain.ValidatePagination(filter.PageSize)
	f := filter
	f.PageSize = size + 1

	readCtx, cancel := context.WithTimeout(ctx, l.storageTimeout)
	defer cancel()

	rows, err := l.txRepo.List(readCtx, matterID, f)
	if err != nil {
		return nil, l.translate(op, matterID, nil, err)
	}

	page := &domain.HistoryPage{Transactions: rows}
	if len(rows) > size {
		page.Transactions = rows[:size]
		page.HasMore = true
		page.NextCursor = rows[size-1].Sequence
	}
	if page.Transactions == nil {
		page.Transactions = []*domain.TrustTransaction{}
	}
	return page, nil
}

// VerifyAccount replays the matter's history up to the stored account's
// version and checks it against that account: sequences are gapless from 1,
// every balance_after follows from its predecessor, and the last one equals
// the stored balance.
func (l *TrustLedger) VerifyAccount(ctx context.Context, matterID string) (*domain.IntegrityReport, error) {
	account, err := l.GetAccount(ctx, matterID)
	if errors.Is(err, domain.ErrNotFound) {
		account = domain.NewTrustAccount(matterID, "", "", l.defaultCurrency, l.clock.Now().UTC())
	} else if err != nil {
		return nil, err
	}

	report := &domain.IntegrityReport{
		MatterID:        matterID,
		StoredBalance:   account.CurrentBalance,
		ReplayedBalance: domain.Zero,
		Version:         account.Version,
		CheckedAt:       l.clock.Now().UTC(),
	}

	// Entries up to the snapshot's version commit with it; later writes are
	// outside the check.
	upTo := account.Version
	filter := domain.HistoryFilter{Order: domain.SortAscending, PageSize: domain.MaxPageSize, MaxSequence: &upTo}

	running := domain.Zero
	expected := int64(1)
	for t, err := range l.GetHistory(ctx, matterID, filter) {
		if err != nil {
			return nil, err
		}
		if t.Sequence != expected {
			report.Problems = append(report.Problems,
				fmt.Sprintf("sequence gap: expected %d, found %d at transaction %s", expected, t.Sequence, t.ID))
			expected = t.Sequence
		}
		running = running.Add(t.SignedAmount())
		if !t.BalanceAfter.Equal(running) {
			report.Problems = append(report.Problems,
				fmt.Sprintf("balance_after %s at sequence %d does not match replayed %s", t.BalanceAfter, t.Sequence, running))
			running = t.BalanceAfter
		}
		if t.BalanceAfter.IsNegative() && !t.Shortfall && !t.Type.IsCredit() {
			report.Problems = append(report.Problems,
				fmt.Sprintf("negative balance at sequence %d without an override", t.Sequence))
		}
		report.TransactionCount++
		expected++
	}
	report.ReplayedBalance = running

	if report.TransactionCount != account.Version {
		report.Problems = append(report.Problems,
			fmt.Sprintf("account version %d does not match %d transactions", account.Version, report.TransactionCount))
	}
	if !running.Equal(account.CurrentBalance) {
		report.Problems = append(report.Problems,
			fmt.Sprintf("stored balance %s does not match replayed %s", account.CurrentBalance, running))
	}

	if !report.OK() {
		l.logger.Error().
			Str("matter_id", matterID).
			Strs("problems", report.Problems).
			Msg("trust account failed integrity check")
	}

	return report, nil
}

// resolveWriter returns the acting identity and checks it may write.
func (l *TrustLedger) resolveWriter(ctx context.Context, actor *domain.Actor) (*domain.Actor, error) {
	if actor == nil {
		if fromCtx, ok := domain.ActorFromContext(ctx); ok {
			actor = fromCtx
		}
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !actor.Role.CanWrite() {
		return nil, fmt.Errorf("%w: role %s cannot record trust transactions", domain.ErrUnauthorized, actor.Role)
	}
	return actor, nil
}

// translate maps store and context errors to the caller-facing taxonomy.
// Anything unrecognized is logged and hidden behind domain.ErrInternal.
func (l *TrustLedger) translate(op, matterID string, amount *domain.Money, err error) error {
	return translateError(l.logger, op, matterID, amount, err)
}

func translateError(logger zerolog.Logger, op, matterID string, amount *domain.Money, err error) error {
	var ledgerErr *domain.LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return domain.NewLedgerError(op, matterID, amount, context.Canceled, "")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrTimeout):
		return domain.NewLedgerError(op, matterID, amount, domain.ErrTimeout, "")
	case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrConcurrencyConflict):
		return domain.NewLedgerError(op, matterID, amount, domain.ErrConcurrencyConflict, "retries exhausted")
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInsufficientFunds):
		return domain.NewLedgerError(op, matterID, amount, err, "")
	}

	logger.Error().Err(err).Str("op", op).Str("matter_id", matterID).Msg("trust ledger storage error")
	return domain.NewLedgerError(op, matterID, amount, domain.ErrInternal, "")
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrAlreadyReversed):
		return "already_reversed"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_request"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
