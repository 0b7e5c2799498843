// Package auditrelay delivers audit events from the transactional outbox to
// the AuditSink. Delivery is at-least-once: an event is marked published only
// after the sink accepts it.
package auditrelay

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/metrics"
	"github.com/iho/trustledger/internal/usecase"
)

const (
	DefaultBatchSize   = 100
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 10
	DefaultRetention   = 7 * 24 * time.Hour
)

// Config for Relay.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Sink       usecase.AuditSink
	Clock      usecase.Clock
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger

	BatchSize   int           // events fetched per pass
	Interval    time.Duration // polling interval
	MaxAttempts int           // failed deliveries before an event is dead-lettered

	// InitialBackoff and MaxBackoff bound the redelivery schedule.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Retention is how long published events are kept before cleanup.
	Retention time.Duration
}

// Relay drains the outbox into the sink.
type Relay struct {
	outboxRepo  usecase.OutboxRepository
	sink        usecase.AuditSink
	clock       usecase.Clock
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	batchSize   int
	interval    time.Duration
	maxAttempts int
	initial     time.Duration
	maxBackoff  time.Duration
	retention   time.Duration
	wake        chan struct{}
}

// New creates a Relay.
func New(cfg Config) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Clock == nil {
		cfg.Clock = usecase.SystemClock{}
	}

	return &Relay{
		outboxRepo:  cfg.OutboxRepo,
		sink:        cfg.Sink,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With().Str("component", "audit_relay").Logger(),
		batchSize:   cfg.BatchSize,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		initial:     cfg.InitialBackoff,
		maxBackoff:  cfg.MaxBackoff,
		retention:   cfg.Retention,
		wake:        make(chan struct{}, 1),
	}
}

// Notify asks the relay to run a pass soon. It never blocks.
func (r *Relay) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Start runs until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info().
		Int("batch_size", r.batchSize).
		Dur("interval", r.interval).
		Int("max_attempts", r.maxAttempts).
		Msg("audit relay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	r.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("audit relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		case <-r.wake:
			r.drain(ctx)
		case <-cleanup.C:
			if err := r.Cleanup(ctx); err != nil {
				r.logger.Error().Err(err).Msg("outbox cleanup failed")
			}
		}
	}
}

// drain keeps processing while full batches come back.
func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.ProcessOnce(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("error processing audit events")
			return
		}
		if n < r.batchSize {
			return
		}
	}
}

// ProcessOnce delivers one batch of due events and returns how many were fetched.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	events, err := r.outboxRepo.GetDue(ctx, r.clock.Now().UTC(), r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	if r.metrics != nil {
		r.metrics.AuditBatchSize.Observe(float64(len(events)))
	}

	r.logger.Debug().Int("count", len(events)).Msg("processing audit events")

	for _, event := range events {
		if ctx.Err() != nil {
			return len(events), ctx.Err()
		}
		r.deliver(ctx, event)
	}
	return len(events), nil
}

func (r *Relay) deliver(ctx context.Context, event *domain.OutboxEvent) {
	auditEvent, err := domain.DecodeAuditEvent(event.Payload)
	if err != nil {
		// A payload that cannot be decoded never will be.
		r.fail(ctx, event, err, true)
		return
	}

	if err := r.sink.Record(ctx, auditEvent); err != nil {
		if errors.Is(err, domain.ErrAuditDelivery) {
			r.postpone(ctx, event, err)
			return
		}
		r.fail(ctx, event, err, event.Attempts+1 >= r.maxAttempts)
		return
	}

	if err := r.outboxRepo.MarkPublished(ctx, event.ID, r.clock.Now().UTC()); err != nil {
		// The sink already has it; the next pass redelivers, which sinks tolerate.
		r.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to mark audit event published")
		return
	}
	if r.metrics != nil {
		r.metrics.AuditDelivered.Inc()
	}

	r.logger.Debug().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("matter_id", event.AggregateID).
		Msg("audit event delivered")
}

func (r *Relay) fail(ctx context.Context, event *domain.OutboxEvent, cause error, deadLetter bool) {
	attempts := event.Attempts + 1
	next := r.clock.Now().UTC().Add(r.Backoff(attempts))

	if r.metrics != nil {
		r.metrics.AuditDeliveryFailures.Inc()
		if deadLetter {
			r.metrics.AuditDeadLettered.Inc()
		}
	}

	log := r.logger.Warn()
	if deadLetter {
		log = r.logger.Error()
	}
	log.Err(cause).
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Int("attempts", attempts).
		Bool("dead_lettered", deadLetter).
		Msg("audit delivery failed")

	if err := r.outboxRepo.MarkFailed(ctx, event.ID, attempts, next, cause.Error(), deadLetter); err != nil {
		r.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to record audit delivery failure")
	}
}

// postpone reschedules an event the sink refused without trying, such as
// while its breaker is open. The attempt count is left alone, so an outage
// alone never dead-letters events.
func (r *Relay) postpone(ctx context.Context, event *domain.OutboxEvent, cause error) {
	next := r.clock.Now().UTC().Add(r.Backoff(max(event.Attempts, 1)))

	if r.metrics != nil {
		r.metrics.AuditDeliveryFailures.Inc()
	}
	r.logger.Warn().Err(cause).
		Str("event_id", event.ID).
		Int("attempts", event.Attempts).
		Time("next_attempt_at", next).
		Msg("audit sink unavailable, delivery postponed")

	if err := r.outboxRepo.MarkFailed(ctx, event.ID, event.Attempts, next, cause.Error(), false); err != nil {
		r.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to postpone audit delivery")
	}
}

// Backoff returns the delay before delivery attempt number attempts+1.
func (r *Relay) Backoff(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = r.maxBackoff
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// Cleanup drops published events older than the retention window.
func (r *Relay) Cleanup(ctx context.Context) error {
	return r.outboxRepo.DeletePublished(ctx, r.clock.Now().UTC().Add(-r.retention))
}
