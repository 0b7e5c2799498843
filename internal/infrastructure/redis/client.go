package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options tunes the client beyond what the URL carries.
type Options struct {
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient creates a Redis client for idempotency keys, ledger locks and the
// audit stream, and verifies the connection.
func NewClient(ctx context.Context, redisURL string, options ...Options) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	for _, o := range options {
		if o.PoolSize > 0 {
			opts.PoolSize = o.PoolSize
		}
		if o.DialTimeout > 0 {
			opts.DialTimeout = o.DialTimeout
		}
		if o.ReadTimeout > 0 {
			opts.ReadTimeout = o.ReadTimeout
		}
		if o.WriteTimeout > 0 {
			opts.WriteTimeout = o.WriteTimeout
		}
	}

	client := redis.NewClient(opts)

	if err := Ping(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// Ping checks connectivity for readiness probes.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}
