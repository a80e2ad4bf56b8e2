package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/log"
)

// SnapshotInvalidator drops cached reconciliations. A zero month means
// every month of the scope.
type SnapshotInvalidator interface {
	Invalidate(scope core.Scope, month core.Month) int
	InvalidateAll() int
}

// ChangeConsumer delivers change events until ctx is done.
type ChangeConsumer interface {
	ConsumeChanges(ctx context.Context, handler func(context.Context, amqp.ChangeEvent) error) error
}

// Invalidator keeps this instance's snapshot cache in step with changes
// made through any instance.
type Invalidator struct {
	cache   SnapshotInvalidator
	origin  string
	logger  *log.Logger
	handled atomic.Int64
	ignored atomic.Int64
	dropped atomic.Int64
}

// NewInvalidator skips events published by origin, which has already
// invalidated its own cache.
func NewInvalidator(cache SnapshotInvalidator, origin string, logger *log.Logger) *Invalidator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Invalidator{
		cache:  cache,
		origin: origin,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange applies one event to the cache. A resync drops everything.
func (w *Invalidator) HandleChange(ctx context.Context, ev amqp.ChangeEvent) error {
	if ev.Op == amqp.OpResync {
		n := w.cache.InvalidateAll()
		w.handled.Add(1)
		w.dropped.Add(int64(n))
		w.logger.InfoContext(ctx, "Cache flushed after resubscribe",
			log.FieldOperation, log.OpInvalidate,
			log.FieldCount, n)
		return nil
	}
	if w.origin != "" && ev.Origin == w.origin {
		w.ignored.Add(1)
		return nil
	}
	month, err := ev.TargetMonth()
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", ev.Scope().Key(), err)
	}
	n := w.cache.Invalidate(ev.Scope(), month)
	w.handled.Add(1)
	w.dropped.Add(int64(n))

	w.logger.DebugContext(ctx, "Cache invalidated by change event",
		log.FieldOperation, log.OpInvalidate,
		"op", ev.Op,
		log.FieldScope, ev.Scope().Key(),
		log.FieldMonth, ev.Month,
		log.FieldCount, n)
	return nil
}

// Run consumes change events until ctx is cancelled.
func (w *Invalidator) Run(ctx context.Context, consumer ChangeConsumer) error {
	w.logger.InfoContext(ctx, "Starting cache invalidation worker", log.FieldOperation, log.OpStartup)
	err := consumer.ConsumeChanges(ctx, w.HandleChange)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume changes: %w", err)
	}
	w.logger.Info("Cache invalidation worker stopped",
		log.FieldOperation, log.OpShutdown,
		"handled", w.handled.Load(),
		"ignored", w.ignored.Load(),
		"entries_dropped", w.dropped.Load())
	return nil
}

// Stats reports handled, ignored and dropped-entry counters.
func (w *Invalidator) Stats() (handled, ignored, dropped int64) {
	return w.handled.Load(), w.ignored.Load(), w.dropped.Load()
}
