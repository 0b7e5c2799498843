package memory

import (
	"context"
	"time"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/usecase"
)

// AccountRepository implements usecase.TrustAccountRepository.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// GetByMatterID retrieves the account for a matter.
func (r *AccountRepository) GetByMatterID(ctx context.Context, matterID string) (*domain.TrustAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	account, ok := r.store.accounts[matterID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyAccount(account), nil
}

// GetByMatterIDTx reads committed state; the version guard at commit catches
// anything that changes in between.
func (r *AccountRepository) GetByMatterIDTx(ctx context.Context, tx usecase.Transaction, matterID string) (*domain.TrustAccount, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	return r.GetByMatterID(ctx, matterID)
}

// CreateTx stages a new account.
func (r *AccountRepository) CreateTx(ctx context.Context, tx usecase.Transaction, account *domain.TrustAccount) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	staged := copyAccount(account)

	return t.stage(func(s *Store) (func(), error) {
		if _, exists := s.accounts[staged.MatterID]; exists {
			return nil, domain.ErrVersionConflict
		}
		s.accounts[staged.MatterID] = staged
		return func() { delete(s.accounts, staged.MatterID) }, nil
	})
}

// UpdateBalanceTx stages a guarded balance update.
func (r *AccountRepository) UpdateBalanceTx(ctx context.Context, tx usecase.Transaction, matterID string, balance domain.Money, expectedVersion int64, updatedAt time.Time) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	return t.stage(func(s *Store) (func(), error) {
		account, ok := s.accounts[matterID]
		if !ok {
			return nil, domain.ErrNotFound
		}
		if account.Version != expectedVersion {
			return nil, domain.ErrVersionConflict
		}
		previous := *account
		account.CurrentBalance = balance
		account.Version = expectedVersion + 1
		account.UpdatedAt = updatedAt
		return func() { *account = previous }, nil
	})
}
