package postgres

import (
	"context"
	"time"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/postgres/generated"
	"github.com/iho/trustledger/internal/usecase"
)

// TrustAccountRepository implements usecase.TrustAccountRepository.
type TrustAccountRepository struct {
	queries *generated.Queries
}

// NewTrustAccountRepository creates a new TrustAccountRepository.
func NewTrustAccountRepository(pool generated.DBTX) *TrustAccountRepository {
	return &TrustAccountRepository{
		queries: generated.New(pool),
	}
}

// GetByMatterID retrieves the account for a matter.
func (r *TrustAccountRepository) GetByMatterID(ctx context.Context, matterID string) (*domain.TrustAccount, error) {
	row, err := r.queries.GetTrustAccount(ctx, matterID)
	if err != nil {
		return nil, mapReadError(err)
	}

	return rowToTrustAccount(row), nil
}

// GetByMatterIDTx retrieves the account with a FOR UPDATE lock.
func (r *TrustAccountRepository) GetByMatterIDTx(ctx context.Context, tx usecase.Transaction, matterID string) (*domain.TrustAccount, error) {
	queries, err := queriesFor(tx)
	if err != nil {
		return nil, err
	}

	row, err := queries.GetTrustAccountForUpdate(ctx, matterID)
	if err != nil {
		return nil, mapReadError(err)
	}

	return rowToTrustAccount(row), nil
}

// CreateTx inserts a new account within a transaction.
func (r *TrustAccountRepository) CreateTx(ctx context.Context, tx usecase.Transaction, account *domain.TrustAccount) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	err = queries.CreateTrustAccount(ctx, generated.CreateTrustAccountParams{
		MatterID:       account.MatterID,
		ClientID:       account.ClientID,
		FirmAccountID:  account.FirmAccountID,
		Currency:       account.Currency,
		CurrentBalance: moneyToNumeric(account.CurrentBalance),
		Version:        account.Version,
		CreatedAt:      timeToPgTimestamptz(account.CreatedAt),
		UpdatedAt:      timeToPgTimestamptz(account.UpdatedAt),
	})
	return mapWriteError(err)
}

// UpdateBalanceTx applies the new balance if the stored version still equals expectedVersion.
func (r *TrustAccountRepository) UpdateBalanceTx(ctx context.Context, tx usecase.Transaction, matterID string, balance domain.Money, expectedVersion int64, updatedAt time.Time) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	affected, err := queries.UpdateTrustAccountBalance(ctx, generated.UpdateTrustAccountBalanceParams{
		MatterID:       matterID,
		CurrentBalance: moneyToNumeric(balance),
		Version:        expectedVersion,
		UpdatedAt:      timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return mapWriteError(err)
	}
	if affected == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func rowToTrustAccount(row generated.TrustAccount) *domain.TrustAccount {
	return &domain.TrustAccount{
		MatterID:       row.MatterID,
		ClientID:       row.ClientID,
		FirmAccountID:  row.FirmAccountID,
		Currency:       row.Currency,
		CurrentBalance: numericToMoney(row.CurrentBalance),
		Version:        row.Version,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}
