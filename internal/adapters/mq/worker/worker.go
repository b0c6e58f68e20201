// Package worker delivers queued lifecycle events to a Notifier.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/demonlist/internal/adapters/mq/queue"
	"github.com/okian/demonlist/internal/domain/dedupe"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	defaultDeliverTimeout = 10 * time.Second
	defaultMaxAttempts    = 3
	poolShutdownTimeout   = 30 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Notifier delivers one event to the outside world.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Requeuer takes back an event whose delivery failed.
type Requeuer interface {
	Enqueue(ctx context.Context, e Event) bool
}

// Worker processes events until its queue closes.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	notifier Notifier
	deduper  dedupe.Deduper
	requeue  Requeuer
	name     string
	timeout  time.Duration
	attempts int

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, n Notifier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		notifier: n,
		name:     "worker",
		timeout:  defaultDeliverTimeout,
		attempts: defaultMaxAttempts,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.deduper == nil {
		w.deduper = dedupe.NewInMemoryDeduper()
	}
	if r, ok := q.(Requeuer); ok && w.requeue == nil {
		w.requeue = r
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run drains the queue until it closes, ctx is cancelled or Shutdown is
// called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, e); err != nil {
				w.logger.Error(ctx, "notification failed",
					logger.String("event_id", e.EventID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker and waits for the in-flight delivery.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processEvent delivers e at most once. A failed delivery forgets the id
// and puts the event back with the same id, until it has been tried the
// configured number of times. A copy that arrives after a success is
// skipped.
func (w *InMemoryWorker) processEvent(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	if w.deduper.SeenAndRecord(ctx, e.EventID) {
		metrics.RecordNotificationDuplicate()
		w.logger.Debug(ctx, "duplicate notification skipped", logger.String("event_id", e.EventID))
		return nil
	}

	dctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.notifier.Notify(dctx, e); err != nil {
		w.deduper.Unrecord(ctx, e.EventID)
		metrics.RecordNotificationFailed()
		metrics.RecordErrorByComponent("worker", "delivery")
		w.redeliver(ctx, e)
		return fmt.Errorf("deliver %s %s: %w", e.Kind, e.EventID, err)
	}
	metrics.RecordNotificationDelivered()
	return nil
}

func (w *InMemoryWorker) redeliver(ctx context.Context, e Event) { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	e.Attempt++
	if w.requeue == nil || e.Attempt >= w.attempts {
		w.logger.Warn(ctx, "notification abandoned",
			logger.String("event_id", e.EventID), logger.Int("attempts", e.Attempt))
		return
	}
	if !w.requeue.Enqueue(ctx, e) {
		w.logger.Warn(ctx, "notification redelivery dropped", logger.String("event_id", e.EventID))
		return
	}
	metrics.RecordNotificationRedelivered()
}

// Pool manages multiple workers sharing one queue and one deduper.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
	started atomic.Bool
}

// NewPool creates a worker pool. Options apply to every worker.
func NewPool(workerCount int, q Queue, n Notifier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	shared := &InMemoryWorker{logger: logger.Nop()}
	for _, opt := range opts {
		opt(shared)
	}
	if shared.deduper == nil {
		shared.deduper = dedupe.NewInMemoryDeduper()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  shared.logger.Named("pool"),
	}
	for i := range p.workers {
		workerOpts := append([]Option{}, opts...)
		workerOpts = append(workerOpts, WithDeduper(shared.deduper), WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, n, workerOpts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool. Later calls do nothing.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets workers drain what is left and waits for
// them up to ctx or an internal ceiling.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if !p.started.Load() {
		metrics.UpdateWorkerCount(0)
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
