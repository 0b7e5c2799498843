package auditsink

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iho/trustledger/internal/domain"
)

// DefaultStream is the Redis stream audit events are appended to.
const DefaultStream = "trust:audit"

// RedisStream appends audit events to a Redis stream for downstream consumers.
type RedisStream struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisStream creates a stream sink. A maxLen of zero keeps every entry.
func NewRedisStream(client redis.UniversalClient, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

// Record appends the event with XADD.
func (s *RedisStream) Record(ctx context.Context, event *domain.AuditEvent) error {
	payload, err := event.Payload()
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":        event.ID,
			"action":    string(event.Action),
			"matter_id": event.MatterID,
			"payload":   payload,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
