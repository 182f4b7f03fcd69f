package service

import (
	"context"
	"errors"

	"github.com/dom/autosalon/internal/domain"
	"github.com/dom/autosalon/internal/logging"
	"github.com/dom/autosalon/internal/repository"
)

// ActivitySink consumes auth events for auditing.
type ActivitySink interface {
	Record(ctx context.Context, event *domain.AuthEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event *domain.AuthEvent) error

func (f ActivitySinkFunc) Record(ctx context.Context, event *domain.AuthEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []ActivitySink

func (m MultiSink) Record(ctx context.Context, event *domain.AuthEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRepositorySink persists events to the auth_events table.
func NewRepositorySink(repo repository.AuthEventRepository) ActivitySink {
	return ActivitySinkFunc(func(ctx context.Context, event *domain.AuthEvent) error {
		return repo.Create(ctx, event)
	})
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, *domain.AuthEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recorder delivers events to a sink. A failing sink is logged and never
// fails the operation that produced the event.
type recorder struct {
	sink   ActivitySink
	logger logging.Logger
}

func newRecorder(sink ActivitySink, logger logging.Logger) *recorder {
	return &recorder{sink: normalizeActivitySink(sink), logger: logger}
}

func (r *recorder) record(ctx context.Context, event *domain.AuthEvent) {
	if err := r.sink.Record(ctx, event); err != nil {
		r.logger.Warn(ctx, "failed to record auth event", "type", event.Type, "error", err)
	}
}
