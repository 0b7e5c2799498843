package locker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/trustledger/internal/domain"
)

const keyPrefix = "trust:lock:"

// RedisOptions tunes the distributed lock.
type RedisOptions struct {
	// Expiry bounds how long a crashed holder can block a matter.
	Expiry      time.Duration
	RetryDelay  time.Duration
	DriftFactor float64
}

// DefaultRedisOptions returns options suited to short ledger writes.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Expiry:      15 * time.Second,
		RetryDelay:  25 * time.Millisecond,
		DriftFactor: 0.01,
	}
}

// Redis is a multi-process locker built on Redlock.
type Redis struct {
	redsync *redsync.Redsync
	opts    RedisOptions
	logger  zerolog.Logger
}

// NewRedis creates a distributed locker on client.
func NewRedis(client redis.UniversalClient, opts RedisOptions, logger zerolog.Logger) *Redis {
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultRedisOptions().Expiry
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRedisOptions().RetryDelay
	}

	return &Redis{
		redsync: redsync.New(goredis.NewPool(client)),
		opts:    opts,
		logger:  logger,
	}
}

// Lock retries until the lock is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	mutex := r.redsync.NewMutex(
		keyPrefix+key,
		redsync.WithExpiry(r.opts.Expiry),
		redsync.WithTries(math.MaxInt32),
		redsync.WithRetryDelay(r.opts.RetryDelay),
		redsync.WithDriftFactor(r.opts.DriftFactor),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, redsync.ErrFailed) {
			return nil, fmt.Errorf("%w: lock %s not acquired", domain.ErrTimeout, key)
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), r.opts.Expiry)
		defer cancel()

		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("failed to release trust lock")
		}
	}, nil
}
