package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/postgres/generated"
	"github.com/iho/trustledger/internal/usecase"
)

// TrustTransactionRepository implements usecase.TrustTransactionRepository.
// The table rejects UPDATE and DELETE through a trigger.
type TrustTransactionRepository struct {
	db      SnapshotDB
	queries *generated.Queries
}

// SnapshotDB is the subset of *pgxpool.Pool the transaction repository uses.
type SnapshotDB interface {
	generated.DBTX
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var snapshotTxOptions = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

// NewTrustTransactionRepository creates a new TrustTransactionRepository.
func NewTrustTransactionRepository(pool SnapshotDB) *TrustTransactionRepository {
	return &TrustTransactionRepository{
		db:      pool,
		queries: generated.New(pool),
	}
}

// CreateTx inserts an entry within a transaction.
func (r *TrustTransactionRepository) CreateTx(ctx context.Context, tx usecase.Transaction, t *domain.TrustTransaction) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	err = queries.CreateTrustTransaction(ctx, generated.CreateTrustTransactionParams{
		ID:            t.ID,
		MatterID:      t.MatterID,
		Type:          string(t.Type),
		Amount:        moneyToNumeric(t.Amount),
		Description:   t.Description,
		Reference:     t.Reference,
		ReversalOf:    stringToPgText(t.ReversalOf),
		CreatedAt:     timeToPgTimestamptz(t.CreatedAt),
		CreatedBy:     t.CreatedBy,
		CreatedByRole: string(t.CreatedByRole),
		BalanceAfter:  moneyToNumeric(t.BalanceAfter),
		Sequence:      t.Sequence,
		Shortfall:     t.Shortfall,
	})
	return mapWriteError(err)
}

// GetByID retrieves an entry by ID.
func (r *TrustTransactionRepository) GetByID(ctx context.Context, id string) (*domain.TrustTransaction, error) {
	row, err := r.queries.GetTrustTransaction(ctx, id)
	if err != nil {
		return nil, mapReadError(err)
	}
	return rowToTrustTransaction(row), nil
}

// GetReversalOfTx returns the reversal of originalID, if one exists.
func (r *TrustTransactionRepository) GetReversalOfTx(ctx context.Context, tx usecase.Transaction, originalID string) (*domain.TrustTransaction, error) {
	queries, err := queriesFor(tx)
	if err != nil {
		return nil, err
	}

	row, err := queries.GetTrustTransactionByReversalOf(ctx, stringToPgText(&originalID))
	if err != nil {
		return nil, mapReadError(err)
	}
	return rowToTrustTransaction(row), nil
}

// List returns one keyset page of the matter's history.
func (r *TrustTransactionRepository) List(ctx context.Context, matterID string, filter domain.HistoryFilter) ([]*domain.TrustTransaction, error) {
	types := make([]string, 0, len(filter.Types))
	for _, t := range filter.Types {
		types = append(types, string(t))
	}
	limit := int32(domain.ValidatePagination(filter.PageSize))

	var (
		rows []generated.TrustTransaction
		err  error
	)
	if filter.Descending() {
		rows, err = r.queries.ListTrustTransactionsDesc(ctx, generated.ListTrustTransactionsDescParams{
			MatterID:       matterID,
			BeforeSequence: filter.Cursor,
			FromTime:       optionalTimeToPgTimestamptz(filter.From),
			ToTime:         optionalTimeToPgTimestamptz(filter.To),
			Types:          types,
			MaxSequence:    optionalInt64ToPgInt8(filter.MaxSequence),
			Limit:          limit,
		})
	} else {
		rows, err = r.queries.ListTrustTransactionsAsc(ctx, generated.ListTrustTransactionsAscParams{
			MatterID:      matterID,
			AfterSequence: filter.Cursor,
			FromTime:      optionalTimeToPgTimestamptz(filter.From),
			ToTime:        optionalTimeToPgTimestamptz(filter.To),
			Types:         types,
			MaxSequence:   optionalInt64ToPgInt8(filter.MaxSequence),
			Limit:         limit,
		})
	}
	if err != nil {
		return nil, err
	}

	transactions := make([]*domain.TrustTransaction, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, rowToTrustTransaction(row))
	}
	return transactions, nil
}

// BalanceAsOf aggregates the matter's entries created at or before asOf.
func (r *TrustTransactionRepository) BalanceAsOf(ctx context.Context, matterID string, asOf time.Time) (*domain.BalanceSnapshot, error) {
	row, err := r.queries.TrustBalanceAsOf(ctx, generated.TrustBalanceAsOfParams{
		MatterID: matterID,
		AsOf:     timeToPgTimestamptz(asOf),
	})
	if err != nil {
		return nil, err
	}

	return &domain.BalanceSnapshot{
		Balance:          numericToMoney(row.Balance),
		Replayed:         numericToMoney(row.Replayed),
		TransactionCount: row.TransactionCount,
		LastSequence:     row.LastSequence,
	}, nil
}

// FirmSnapshotAsOf reads the firm's accounts, each matter's position and the
// firm aggregate inside one read-only repeatable-read transaction.
func (r *TrustTransactionRepository) FirmSnapshotAsOf(ctx context.Context, firmAccountID string, asOf time.Time) (*domain.FirmSnapshot, error) {
	tx, err := r.db.BeginTx(ctx, snapshotTxOptions)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	queries := generated.New(tx)
	at := timeToPgTimestamptz(asOf)

	accounts, err := queries.ListTrustAccountsByFirm(ctx, firmAccountID)
	if err != nil {
		return nil, err
	}

	result := &domain.FirmSnapshot{Matters: make([]domain.MatterSnapshot, 0, len(accounts))}
	for _, account := range accounts {
		row, err := queries.TrustBalanceAsOf(ctx, generated.TrustBalanceAsOfParams{
			MatterID: account.MatterID,
			AsOf:     at,
		})
		if err != nil {
			return nil, err
		}
		result.Matters = append(result.Matters, domain.MatterSnapshot{
			Account: rowToTrustAccount(account),
			Snapshot: &domain.BalanceSnapshot{
				Balance:          numericToMoney(row.Balance),
				Replayed:         numericToMoney(row.Replayed),
				TransactionCount: row.TransactionCount,
				LastSequence:     row.LastSequence,
			},
		})
	}

	total, err := queries.FirmTrustBalanceAsOf(ctx, generated.FirmTrustBalanceAsOfParams{
		FirmAccountID: firmAccountID,
		AsOf:          at,
	})
	if err != nil {
		return nil, err
	}
	result.LedgerBalance = numericToMoney(total)

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func rowToTrustTransaction(row generated.TrustTransaction) *domain.TrustTransaction {
	return &domain.TrustTransaction{
		ID:            row.ID,
		MatterID:      row.MatterID,
		Type:          domain.TransactionType(row.Type),
		Amount:        numericToMoney(row.Amount),
		Description:   row.Description,
		Reference:     row.Reference,
		ReversalOf:    pgTextToString(row.ReversalOf),
		CreatedAt:     row.CreatedAt.Time.UTC(),
		CreatedBy:     row.CreatedBy,
		CreatedByRole: domain.Role(row.CreatedByRole),
		BalanceAfter:  numericToMoney(row.BalanceAfter),
		Sequence:      row.Sequence,
		Shortfall:     row.Shortfall,
	}
}
