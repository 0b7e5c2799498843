package auditsink

import (
	"context"
	"errors"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/usecase"
)

// Multi fans an event out to several sinks. Every sink is tried; the event
// counts as delivered only if all of them accept it.
type Multi struct {
	sinks []usecase.AuditSink
}

// NewMulti creates a fan-out sink.
func NewMulti(sinks ...usecase.AuditSink) *Multi {
	return &Multi{sinks: sinks}
}

// Record delivers to every sink and joins their errors.
func (m *Multi) Record(ctx context.Context, event *domain.AuditEvent) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
