package auditsink

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/usecase/mocks"
)

func sampleEvent() *domain.AuditEvent {
	amount := domain.MustParseMoney("125.50")
	balance := domain.MustParseMoney("-4.50")
	return &domain.AuditEvent{
		ID:               "audit-1",
		ActorID:          "partner-1",
		ActorRole:        domain.RoleOverride,
		MatterID:         "M-1",
		Action:           domain.AuditActionTransactionRecorded,
		Amount:           &amount,
		ResultingBalance: &balance,
		TransactionID:    "tx-1",
		Shortfall:        true,
		Metadata:         map[string]string{"type": "withdrawal"},
		Timestamp:        time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC),
	}
}

func TestRedisStream_Record(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sink := NewRedisStream(client, "", 0)
	require.NoError(t, sink.Record(context.Background(), sampleEvent()))

	entries, err := client.XRange(context.Background(), DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "audit-1", entries[0].Values["id"])
	assert.Equal(t, string(domain.AuditActionTransactionRecorded), entries[0].Values["action"])

	decoded, err := domain.DecodeAuditEvent([]byte(entries[0].Values["payload"].(string)))
	require.NoError(t, err)
	assert.True(t, decoded.Shortfall)
	assert.True(t, decoded.Amount.Equal(domain.MustParseMoney("125.50")))
}

func TestRedisStream_RecordFailsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := NewRedisStream(client, "trust:audit:test", 100).Record(context.Background(), sampleEvent())
	assert.Error(t, err)
}

func TestLog_Record(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLog(zerolog.New(&buf))

	require.NoError(t, sink.Record(context.Background(), sampleEvent()))

	out := buf.String()
	assert.Contains(t, out, `"message":"AUDIT"`)
	assert.Contains(t, out, `"amount":"125.50"`)
	assert.Contains(t, out, `"shortfall":true`)
	assert.Contains(t, out, `"type":"withdrawal"`)
}

func TestMulti_TriesEverySink(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockAuditSink(ctrl)
	second := mocks.NewMockAuditSink(ctrl)
	event := sampleEvent()

	first.EXPECT().Record(gomock.Any(), event).Return(errors.New("first down"))
	second.EXPECT().Record(gomock.Any(), event).Return(nil)

	err := NewMulti(first, second).Record(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first down")
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockAuditSink(ctrl)
	down := errors.New("sink down")

	inner.EXPECT().Record(gomock.Any(), gomock.Any()).Return(down).Times(2)

	breaker := NewBreaker(inner, BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Hour}, zerolog.Nop())
	ctx := context.Background()

	assert.ErrorIs(t, breaker.Record(ctx, sampleEvent()), down)
	assert.ErrorIs(t, breaker.Record(ctx, sampleEvent()), down)
	assert.Equal(t, "open", breaker.State())

	// Open: the inner sink is not called again.
	err := breaker.Record(ctx, sampleEvent())
	assert.ErrorIs(t, err, domain.ErrAuditDelivery)
}

func TestBreaker_PassesThroughWhenClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockAuditSink(ctrl)
	inner.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	breaker := NewBreaker(inner, BreakerConfig{}, zerolog.Nop())
	for i := 0; i < 3; i++ {
		require.NoError(t, breaker.Record(context.Background(), sampleEvent()))
	}
	assert.Equal(t, "closed", breaker.State())
}
