package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PendingMarker is stored while the first request for a key is in flight.
const PendingMarker = "processing"

// IdempotencyStore implements usecase.IdempotencyStore using Redis.
type IdempotencyStore struct {
	client redis.UniversalClient
	prefix string
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client redis.UniversalClient) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: "trustledger:idempotency:",
	}
}

// CheckAndSet claims key with SETNX. If another request already claimed it,
// the stored value is returned: either PendingMarker or the final response.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	fullKey := s.prefix + key

	value := response
	if value == nil {
		value = []byte(PendingMarker)
	}

	set, err := s.client.SetNX(ctx, fullKey, value, ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if set {
		return false, nil, nil
	}

	existing, err := s.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as still claimed.
		return true, []byte(PendingMarker), nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, existing, nil
}

// Update updates an existing idempotency key with the final response.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	fullKey := s.prefix + key
	return s.client.Set(ctx, fullKey, response, ttl).Err()
}

// Release drops a claim so the request can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
