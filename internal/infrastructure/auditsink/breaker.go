package auditsink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/usecase"
)

// BreakerConfig tunes the circuit breaker around a sink.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	MaxRequests uint32
}

// Breaker stops hammering a failing sink. While open, Record fails fast with
// domain.ErrAuditDelivery and the relay reschedules the event.
type Breaker struct {
	sink    usecase.AuditSink
	breaker *gobreaker.CircuitBreaker
}

// NewBreaker wraps sink in a circuit breaker.
func NewBreaker(sink usecase.AuditSink, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "audit-sink"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("audit sink circuit breaker changed state")
		},
	}

	return &Breaker{
		sink:    sink,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Record forwards to the wrapped sink unless the breaker is open.
func (b *Breaker) Record(ctx context.Context, event *domain.AuditEvent) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.sink.Record(ctx, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrAuditDelivery, err)
	}
	return err
}

// State reports the breaker state for health output.
func (b *Breaker) State() string {
	return b.breaker.State().String()
}
