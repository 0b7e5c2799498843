package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/iho/trustledger/internal/domain"
)

// DefaultMaxRetries is the retry budget for conflicting writes.
const DefaultMaxRetries = 5

// Retrier implements usecase.Retrier with exponential backoff. Version
// conflicts from any store are retried along with PostgreSQL deadlocks and
// serialization failures.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          zerolog.Logger
}

// NewRetrier creates a new retrier with default settings.
func NewRetrier(maxRetries int, logger zerolog.Logger) *Retrier {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Retrier{
		maxRetries:      maxRetries,
		initialInterval: 10 * time.Millisecond,
		maxInterval:     500 * time.Millisecond,
		maxElapsedTime:  10 * time.Second,
		logger:          logger,
	}
}

// WithIntervals overrides the backoff timing.
func (r *Retrier) WithIntervals(initial, maxInterval, maxElapsed time.Duration) *Retrier {
	r.initialInterval = initial
	r.maxInterval = maxInterval
	r.maxElapsedTime = maxElapsed
	return r
}

// Retry executes an operation with exponential backoff on retryable errors.
// When the budget runs out the last error is returned unchanged.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	retryCount := 0

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}

		retryCount++
		if retryCount > r.maxRetries {
			return backoff.Permanent(err)
		}

		r.logger.Warn().
			Err(err).
			Int("retry", retryCount).
			Msg("retryable storage error, retrying")

		return err
	}, backoff.WithContext(b, ctx))
}

// IsRetryableError reports whether err should trigger another attempt.
func IsRetryableError(err error) bool {
	if errors.Is(err, domain.ErrVersionConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrDeadlock, pgErrSerializationFailure:
			return true
		}
	}
	return false
}
