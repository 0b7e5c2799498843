package memory

import (
	"context"
	"time"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/usecase"
)

// TransactionRepository implements usecase.TrustTransactionRepository.
// Entries are append-only: nothing here updates or removes one.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// CreateTx stages an entry. The sequence must extend the matter's history by
// exactly one and a reversal target may only be reversed once.
func (r *TransactionRepository) CreateTx(ctx context.Context, tx usecase.Transaction, transaction *domain.TrustTransaction) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	staged := copyTransaction(transaction)

	return t.stage(func(s *Store) (func(), error) {
		history := s.transactions[staged.MatterID]
		if staged.Sequence != int64(len(history))+1 {
			return nil, domain.ErrVersionConflict
		}
		if _, exists := s.byID[staged.ID]; exists {
			return nil, domain.ErrVersionConflict
		}
		if staged.ReversalOf != nil {
			if _, reversed := s.reversals[*staged.ReversalOf]; reversed {
				return nil, domain.ErrAlreadyReversed
			}
			s.reversals[*staged.ReversalOf] = staged.ID
		}

		s.transactions[staged.MatterID] = append(history, staged)
		s.byID[staged.ID] = staged

		return func() {
			s.transactions[staged.MatterID] = history
			delete(s.byID, staged.ID)
			if staged.ReversalOf != nil {
				delete(s.reversals, *staged.ReversalOf)
			}
		}, nil
	})
}

// GetByID retrieves an entry by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.TrustTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	transaction, ok := r.store.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyTransaction(transaction), nil
}

// GetReversalOfTx returns the committed reversal of originalID, if any.
func (r *TransactionRepository) GetReversalOfTx(ctx context.Context, tx usecase.Transaction, originalID string) (*domain.TrustTransaction, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	reversalID, ok := r.store.reversals[originalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyTransaction(r.store.byID[reversalID]), nil
}

// List returns one page of the matter's history after the filter's cursor.
func (r *TransactionRepository) List(ctx context.Context, matterID string, filter domain.HistoryFilter) ([]*domain.TrustTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	history := r.store.transactions[matterID]
	size := domain.ValidatePagination(filter.PageSize)
	page := make([]*domain.TrustTransaction, 0, min(size, len(history)))

	for i := range history {
		entry := history[i]
		if filter.Descending() {
			entry = history[len(history)-1-i]
		}
		if !filter.After(entry.Sequence) || !filter.Matches(entry) {
			continue
		}
		page = append(page, copyTransaction(entry))
		if len(page) == size {
			break
		}
	}
	return page, nil
}

// BalanceAsOf summarizes the matter's entries created at or before asOf.
func (r *TransactionRepository) BalanceAsOf(ctx context.Context, matterID string, asOf time.Time) (*domain.BalanceSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return snapshot(r.store.transactions[matterID], asOf), nil
}

// FirmSnapshotAsOf reads every matter of the firm account under one lock, so
// no commit can land between the per-matter and firm-level figures.
func (r *TransactionRepository) FirmSnapshotAsOf(ctx context.Context, firmAccountID string, asOf time.Time) (*domain.FirmSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := &domain.FirmSnapshot{LedgerBalance: domain.Zero, Matters: []domain.MatterSnapshot{}}
	for _, matterID := range sortedKeys(r.store.accounts) {
		account := r.store.accounts[matterID]
		if account.FirmAccountID != firmAccountID {
			continue
		}
		position := snapshot(r.store.transactions[matterID], asOf)
		result.LedgerBalance = result.LedgerBalance.Add(position.Replayed)
		result.Matters = append(result.Matters, domain.MatterSnapshot{
			Account:  copyAccount(account),
			Snapshot: position,
		})
	}
	return result, nil
}

func snapshot(history []*domain.TrustTransaction, asOf time.Time) *domain.BalanceSnapshot {
	result := &domain.BalanceSnapshot{Balance: domain.Zero, Replayed: domain.Zero}
	for _, entry := range history {
		if entry.CreatedAt.After(asOf) {
			break
		}
		result.Balance = entry.BalanceAfter
		result.Replayed = result.Replayed.Add(entry.SignedAmount())
		result.TransactionCount++
		result.LastSequence = entry.Sequence
	}
	return result
}
