package usecase

import (
	"context"
	"time"

	"github.com/iho/trustledger/internal/domain"
)

// The PersistenceStore the ledger depends on is the combination of
// TransactionManager, TrustAccountRepository, TrustTransactionRepository and
// OutboxRepository. Writes made through one Transaction commit atomically.

// TrustAccountRepository defines data access for trust accounts.
type TrustAccountRepository interface {
	// GetByMatterID returns domain.ErrNotFound for matters without an account.
	GetByMatterID(ctx context.Context, matterID string) (*domain.TrustAccount, error)
	GetByMatterIDTx(ctx context.Context, tx Transaction, matterID string) (*domain.TrustAccount, error)
	// CreateTx returns domain.ErrVersionConflict if the account already exists.
	CreateTx(ctx context.Context, tx Transaction, account *domain.TrustAccount) error
	// UpdateBalanceTx moves the account from expectedVersion to expectedVersion+1.
	// It returns domain.ErrVersionConflict if the stored version differs.
	UpdateBalanceTx(ctx context.Context, tx Transaction, matterID string, balance domain.Money, expectedVersion int64, updatedAt time.Time) error
}

// TrustTransactionRepository defines data access for ledger entries. There is
// deliberately no update or delete.
type TrustTransactionRepository interface {
	// CreateTx returns domain.ErrVersionConflict if the sequence is taken and
	// domain.ErrAlreadyReversed if the reversal target already has a reversal.
	CreateTx(ctx context.Context, tx Transaction, transaction *domain.TrustTransaction) error
	GetByID(ctx context.Context, id string) (*domain.TrustTransaction, error)
	GetReversalOfTx(ctx context.Context, tx Transaction, originalID string) (*domain.TrustTransaction, error)
	// List returns one page of entries after filter.Cursor in filter order.
	List(ctx context.Context, matterID string, filter domain.HistoryFilter) ([]*domain.TrustTransaction, error)
	BalanceAsOf(ctx context.Context, matterID string, asOf time.Time) (*domain.BalanceSnapshot, error)
	// FirmSnapshotAsOf reads the firm's matters, their positions and the
	// firm-level aggregate from one consistent view of storage.
	FirmSnapshotAsOf(ctx context.Context, firmAccountID string, asOf time.Time) (*domain.FirmSnapshot, error)
}

// OutboxRepository defines data access for pending audit deliveries.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	// GetDue returns undelivered, non-dead-lettered events whose next attempt is due.
	GetDue(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string, deadLettered bool) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// AuditSink receives audit events. Implementations must be append-only.
type AuditSink interface {
	Record(ctx context.Context, event *domain.AuditEvent) error
}

// AuditNotifier wakes the audit relay after new outbox rows commit.
type AuditNotifier interface {
	Notify()
}

// AccountLocker serializes writers per matter.
type AccountLocker interface {
	// Lock blocks until the key is held or ctx ends. release must be called exactly once.
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Retrier re-runs an operation while it fails with a retryable error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock supplies the ledger's notion of now.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claim so a failed request can be retried.
	Release(ctx context.Context, key string) error
}
