package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/trustledger/internal/domain"
)

func TestTxManagerBeginSuccess(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectCommit()

	manager := NewTxManager(mockPool)
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tx == nil {
		t.Fatalf("expected transaction")
	}

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestTxManagerBeginError(t *testing.T) {
	mockPool := newMockPool(t)
	mockErr := errors.New("begin failed")
	mockPool.ExpectBegin().WillReturnError(mockErr)

	manager := NewTxManager(mockPool)
	tx, err := manager.Begin(context.Background())
	if err == nil || !errors.Is(err, mockErr) {
		t.Fatalf("expected begin error, got err=%v tx=%v", err, tx)
	}
}

func TestTxRollback(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectRollback()

	manager := NewTxManager(mockPool)
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestTxRollbackAfterCommitIsNoop(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectCommit()
	mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

	tx, err := NewTxManager(mockPool).Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback after commit should be a no-op, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestTxRollbackErrorPropagates(t *testing.T) {
	mockPool := newMockPool(t)
	mockErr := errors.New("connection lost")
	mockPool.ExpectBegin()
	mockPool.ExpectRollback().WillReturnError(mockErr)

	tx, err := NewTxManager(mockPool).Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Rollback(context.Background()); !errors.Is(err, mockErr) {
		t.Fatalf("expected rollback error, got %v", err)
	}

	assertExpectations(t, mockPool)
}

type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }

func TestRepositoriesRejectForeignTransaction(t *testing.T) {
	mockPool := newMockPool(t)

	err := NewTrustAccountRepository(mockPool).UpdateBalanceTx(context.Background(), foreignTx{}, "matter-1", domain.Zero, 0, time.Now())
	if err == nil {
		t.Fatalf("expected foreign transaction to be rejected")
	}

	assertExpectations(t, mockPool)
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}
