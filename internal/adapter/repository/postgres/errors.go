package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/trustledger/internal/domain"
)

// PostgreSQL error codes the ledger reacts to.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrUniqueViolation      = "23505"
	pgErrQueryCanceled        = "57014"
)

// Constraint names from the trust ledger schema.
const (
	constraintAccountPK       = "trust_accounts_pkey"
	constraintMatterSequence  = "trust_transactions_matter_sequence_key"
	constraintReversalOfIndex = "trust_transactions_reversal_of_key"
)

// mapWriteError turns constraint violations into ledger sentinels. A
// duplicate account or sequence means another writer got there first.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgErrUniqueViolation:
		switch pgErr.ConstraintName {
		case constraintAccountPK, constraintMatterSequence:
			return domain.ErrVersionConflict
		case constraintReversalOfIndex:
			return domain.ErrAlreadyReversed
		}
	case pgErrQueryCanceled:
		return domain.ErrTimeout
	}
	return err
}

func mapReadError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return mapWriteError(err)
}
