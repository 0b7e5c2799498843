// Package mocks holds test doubles for the usecase interfaces: hand-written
// stubs with overridable funcs, plus mockgen mocks in mock_interfaces.go.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/usecase"
)

// MockIDGenerator returns prefix-1, prefix-2, ...
type MockIDGenerator struct {
	Prefix string
	n      atomic.Int64
}

func NewMockIDGenerator(prefix string) *MockIDGenerator {
	return &MockIDGenerator{Prefix: prefix}
}

func (m *MockIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%06d", m.Prefix, m.n.Add(1))
}

// MockClock is a settable clock.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMockClock(now time.Time) *MockClock {
	return &MockClock{now: now.UTC()}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *MockClock) Set(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now.UTC()
}

// Advance moves the clock forward by d and returns the new time.
func (m *MockClock) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// MockNotifier counts Notify calls.
type MockNotifier struct {
	calls atomic.Int64
}

func (m *MockNotifier) Notify() {
	m.calls.Add(1)
}

func (m *MockNotifier) Calls() int64 {
	return m.calls.Load()
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
	Committed    bool
	RolledBack   bool
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	m.Committed = true
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	if !m.Committed {
		m.RolledBack = true
	}
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockAccountLocker hands out locks immediately unless LockFunc says otherwise.
type MockAccountLocker struct {
	LockFunc func(ctx context.Context, key string) (func(), error)
	released atomic.Int64
}

func (m *MockAccountLocker) Lock(ctx context.Context, key string) (func(), error) {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, key)
	}
	return func() { m.released.Add(1) }, nil
}

// Released reports how many default locks were released.
func (m *MockAccountLocker) Released() int64 {
	return m.released.Load()
}

// MockTrustAccountRepository delegates to Base unless a func is set.
type MockTrustAccountRepository struct {
	Base usecase.TrustAccountRepository

	GetByMatterIDFunc   func(ctx context.Context, matterID string) (*domain.TrustAccount, error)
	GetByMatterIDTxFunc func(ctx context.Context, tx usecase.Transaction, matterID string) (*domain.TrustAccount, error)
	CreateTxFunc        func(ctx context.Context, tx usecase.Transaction, account *domain.TrustAccount) error
	UpdateBalanceTxFunc func(ctx context.Context, tx usecase.Transaction, matterID string, balance domain.Money, expectedVersion int64, updatedAt time.Time) error
}

func (m *MockTrustAccountRepository) GetByMatterID(ctx context.Context, matterID string) (*domain.TrustAccount, error) {
	if m.GetByMatterIDFunc != nil {
		return m.GetByMatterIDFunc(ctx, matterID)
	}
	if m.Base == nil {
		return nil, domain.ErrNotFound
	}
	return m.Base.GetByMatterID(ctx, matterID)
}

func (m *MockTrustAccountRepository) GetByMatterIDTx(ctx context.Context, tx usecase.Transaction, matterID string) (*domain.TrustAccount, error) {
	if m.GetByMatterIDTxFunc != nil {
		return m.GetByMatterIDTxFunc(ctx, tx, matterID)
	}
	if m.Base == nil {
		return nil, domain.ErrNotFound
	}
	return m.Base.GetByMatterIDTx(ctx, tx, matterID)
}

func (m *MockTrustAccountRepository) CreateTx(ctx context.Context, tx usecase.Transaction, account *domain.TrustAccount) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, account)
	}
	if m.Base == nil {
		return nil
	}
	return m.Base.CreateTx(ctx, tx, account)
}

func (m *MockTrustAccountRepository) UpdateBalanceTx(ctx context.Context, tx usecase.Transaction, matterID string, balance domain.Money, expectedVersion int64, updatedAt time.Time) error {
	if m.UpdateBalanceTxFunc != nil {
		return m.UpdateBalanceTxFunc(ctx, tx, matterID, balance, expectedVersion, updatedAt)
	}
	if m.Base == nil {
		return nil
	}
	return m.Base.UpdateBalanceTx(ctx, tx, matterID, balance, expectedVersion, updatedAt)
}

// MockTrustTransactionRepository delegates to Base unless a func is set.
type MockTrustTransactionRepository struct {
	Base usecase.TrustTransactionRepository

	CreateTxFunc         func(ctx context.Context, tx usecase.Transaction, transaction *domain.TrustTransaction) error
	GetByIDFunc          func(ctx context.Context, id string) (*domain.TrustTransaction, error)
	ListFunc             func(ctx context.Context, matterID string, filter domain.HistoryFilter) ([]*domain.TrustTransaction, error)
	BalanceAsOfFunc      func(ctx context.Context, matterID string, asOf time.Time) (*domain.BalanceSnapshot, error)
	FirmSnapshotAsOfFunc func(ctx context.Context, firmAccountID string, asOf time.Time) (*domain.FirmSnapshot, error)
}

func (m *MockTrustTransactionRepository) CreateTx(ctx context.Context, tx usecase.Transaction, transaction *domain.TrustTransaction) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, transaction)
	}
	return m.Base.CreateTx(ctx, tx, transaction)
}

func (m *MockTrustTransactionRepository) GetByID(ctx context.Context, id string) (*domain.TrustTransaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return m.Base.GetByID(ctx, id)
}

func (m *MockTrustTransactionRepository) GetReversalOfTx(ctx context.Context, tx usecase.Transaction, originalID string) (*domain.TrustTransaction, error) {
	return m.Base.GetReversalOfTx(ctx, tx, originalID)
}

func (m *MockTrustTransactionRepository) List(ctx context.Context, matterID string, filter domain.HistoryFilter) ([]*domain.TrustTransaction, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, matterID, filter)
	}
	return m.Base.List(ctx, matterID, filter)
}

func (m *MockTrustTransactionRepository) BalanceAsOf(ctx context.Context, matterID string, asOf time.Time) (*domain.BalanceSnapshot, error) {
	if m.BalanceAsOfFunc != nil {
		return m.BalanceAsOfFunc(ctx, matterID, asOf)
	}
	return m.Base.BalanceAsOf(ctx, matterID, asOf)
}

func (m *MockTrustTransactionRepository) FirmSnapshotAsOf(ctx context.Context, firmAccountID string, asOf time.Time) (*domain.FirmSnapshot, error) {
	if m.FirmSnapshotAsOfFunc != nil {
		return m.FirmSnapshotAsOfFunc(ctx, firmAccountID, asOf)
	}
	return m.Base.FirmSnapshotAsOf(ctx, firmAccountID, asOf)
}
