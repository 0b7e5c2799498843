package auditrelay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/trustledger/internal/adapter/repository/memory"
	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/metrics"
	"github.com/iho/trustledger/internal/usecase/mocks"
)

var start = time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	outbox  *memory.OutboxRepository
	sink    *mocks.MockAuditSink
	clock   *mocks.MockClock
	metrics *metrics.Metrics
	relay   *Relay
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := memory.NewStore()
	f := &fixture{
		store:   store,
		outbox:  memory.NewOutboxRepository(store),
		sink:    mocks.NewMockAuditSink(ctrl),
		clock:   mocks.NewMockClock(start),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.relay = New(Config{
		OutboxRepo:     f.outbox,
		Sink:           f.sink,
		Clock:          f.clock,
		Metrics:        f.metrics,
		Logger:         zerolog.Nop(),
		BatchSize:      10,
		Interval:       time.Hour,
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	})
	return f
}

func (f *fixture) stage(t *testing.T, id string, payload []byte) {
	t.Helper()
	ctx := context.Background()
	event, err := domain.NewOutboxEvent(id, &domain.AuditEvent{
		ID:       "audit-" + id,
		MatterID: "M-1",
		Action:   domain.AuditActionTransactionRecorded,
	}, f.clock.Now())
	require.NoError(t, err)
	if payload != nil {
		event.Payload = payload
	}

	tx, err := memory.NewTxManager(f.store).Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.outbox.Create(ctx, tx, event))
	require.NoError(t, tx.Commit(ctx))
}

func TestProcessOnce_DeliversAndMarks(t *testing.T) {
	f := newFixture(t, 3)
	f.stage(t, "e1", nil)
	f.stage(t, "e2", nil)

	var delivered []string
	f.sink.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event *domain.AuditEvent) error {
			delivered = append(delivered, event.ID)
			return nil
		}).Times(2)

	n, err := f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"audit-e1", "audit-e2"}, delivered)

	for _, event := range f.outbox.Events() {
		assert.True(t, event.Published, event.ID)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.AuditDelivered))

	n, err = f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessOnce_FailureSchedulesRetry(t *testing.T) {
	f := newFixture(t, 3)
	f.stage(t, "e1", nil)

	f.sink.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("stream unavailable"))

	_, err := f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)

	event := f.outbox.Events()[0]
	assert.False(t, event.Published)
	assert.False(t, event.DeadLettered)
	assert.Equal(t, 1, event.Attempts)
	assert.Equal(t, start.Add(time.Second), event.NextAttemptAt)
	assert.Equal(t, "stream unavailable", event.LastError)

	// Not due yet: the sink must not be called again.
	n, err := f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(time.Second)
	f.sink.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	n, err = f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.outbox.Events()[0].Published)
}

func TestProcessOnce_DeadLettersAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, 2)
	f.stage(t, "e1", nil)

	f.sink.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("down")).Times(2)

	_, err := f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)

	event := f.outbox.Events()[0]
	assert.True(t, event.DeadLettered)
	assert.Equal(t, 2, event.Attempts)

	f.clock.Advance(24 * time.Hour)
	n, err := f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuditDeadLettered))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.AuditDeliveryFailures))
}

func TestProcessOnce_OpenBreakerDoesNotConsumeAttempts(t *testing.T) {
	f := newFixture(t, 2)
	f.stage(t, "e1", nil)

	unavailable := fmt.Errorf("%w: circuit breaker is open", domain.ErrAuditDelivery)
	f.sink.EXPECT().Record(gomock.Any(), gomock.Any()).Return(unavailable).Times(5)

	for i := 0; i < 5; i++ {
		_, err := f.relay.ProcessOnce(context.Background())
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
	}

	event := f.outbox.Events()[0]
	assert.False(t, event.DeadLettered)
	assert.Zero(t, event.Attempts)
	assert.Contains(t, event.LastError, "circuit breaker is open")
	assert.Zero(t, testutil.ToFloat64(f.metrics.AuditDeadLettered))

	f.sink.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	n, err := f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.outbox.Events()[0].Published)
}

func TestProcessOnce_OpenBreakerReschedules(t *testing.T) {
	f := newFixture(t, 3)
	f.stage(t, "e1", nil)

	f.sink.EXPECT().Record(gomock.Any(), gomock.Any()).Return(domain.ErrAuditDelivery)
	_, err := f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, start.Add(time.Second), f.outbox.Events()[0].NextAttemptAt)

	n, err := f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessOnce_UndecodablePayloadIsDeadLettered(t *testing.T) {
	f := newFixture(t, 5)
	f.stage(t, "e1", []byte("{not json"))

	_, err := f.relay.ProcessOnce(context.Background())
	require.NoError(t, err)

	event := f.outbox.Events()[0]
	assert.True(t, event.DeadLettered)
	assert.Equal(t, 1, event.Attempts)
}

func TestBackoff(t *testing.T) {
	f := newFixture(t, 3)

	assert.Equal(t, time.Second, f.relay.Backoff(1))
	assert.Equal(t, 1500*time.Millisecond, f.relay.Backoff(2))
	assert.Equal(t, time.Minute, f.relay.Backoff(30))
}

func TestStart_NotifyWakesRelay(t *testing.T) {
	f := newFixture(t, 3)

	delivered := make(chan string, 1)
	f.sink.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event *domain.AuditEvent) error {
			delivered <- event.ID
			return nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.relay.Start(ctx) }()

	f.stage(t, "e1", nil)
	f.relay.Notify()
	f.relay.Notify()

	select {
	case id := <-delivered:
		assert.Equal(t, "audit-e1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not deliver after notify")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}

func TestCleanup(t *testing.T) {
	f := newFixture(t, 3)
	f.stage(t, "e1", nil)
	require.NoError(t, f.outbox.MarkPublished(context.Background(), "e1", start))

	require.NoError(t, f.relay.Cleanup(context.Background()))
	assert.Len(t, f.outbox.Events(), 1)

	f.clock.Advance(DefaultRetention + time.Second)
	require.NoError(t, f.relay.Cleanup(context.Background()))
	assert.Empty(t, f.outbox.Events())
}
