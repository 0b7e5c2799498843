// Package memory is an in-process implementation of the ledger's storage
// contracts. Writes are staged on a Tx and applied atomically at commit, with
// the same uniqueness and version guards the Postgres schema enforces.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/usecase"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("memory: transaction already committed or rolled back")

// Store holds all ledger state.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.TrustAccount
	transactions map[string][]*domain.TrustTransaction
	byID         map[string]*domain.TrustTransaction
	reversals    map[string]string
	outbox       map[string]*domain.OutboxEvent
	outboxOrder  []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]*domain.TrustAccount),
		transactions: make(map[string][]*domain.TrustTransaction),
		byID:         make(map[string]*domain.TrustTransaction),
		reversals:    make(map[string]string),
		outbox:       make(map[string]*domain.OutboxEvent),
	}
}

// Ping always succeeds; it lets the store stand in for a database in health checks.
func (s *Store) Ping(context.Context) error {
	return nil
}

// op applies one staged write and returns how to undo it.
type op func(s *Store) (undo func(), err error)

// Tx implements usecase.Transaction.
type Tx struct {
	store *Store
	ops   []op
	done  bool
}

// Commit applies every staged write or none of them.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	undos := make([]func(), 0, len(t.ops))
	for _, apply := range t.ops {
		undo, err := apply(t.store)
		if err != nil {
			for i := len(undos) - 1; i >= 0; i-- {
				undos[i]()
			}
			return err
		}
		undos = append(undos, undo)
	}
	return nil
}

// Rollback discards staged writes. It is a no-op after Commit.
func (t *Tx) Rollback(context.Context) error {
	t.done = true
	t.ops = nil
	return nil
}

func (t *Tx) stage(o op) error {
	if t.done {
		return ErrTxDone
	}
	t.ops = append(t.ops, o)
	return nil
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: m.store}, nil
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok {
		return nil, errors.New("memory: foreign transaction")
	}
	return t, nil
}

func copyAccount(a *domain.TrustAccount) *domain.TrustAccount {
	c := *a
	return &c
}

func copyTransaction(t *domain.TrustTransaction) *domain.TrustTransaction {
	c := *t
	if t.ReversalOf != nil {
		id := *t.ReversalOf
		c.ReversalOf = &id
	}
	return &c
}

func copyEvent(e *domain.OutboxEvent) *domain.OutboxEvent {
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	if e.PublishedAt != nil {
		at := *e.PublishedAt
		c.PublishedAt = &at
	}
	return &c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
