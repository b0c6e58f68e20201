// Package queue buffers lifecycle events between a committed change and
// their asynchronous delivery.
package queue

import (
	"context"
	"sync"

	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Event is the payload flowing through the queue.
type Event = model.Event

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event to the queue.
	// Returns false if the queue is full or closed and the event was dropped.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue returns the channel events are delivered on. It is closed
	// once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the current number of queued events.
	Len(ctx context.Context) int

	// Close stops accepting events. Already queued events stay readable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue never blocks: a full queue drops the event.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) bool { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejected("context_cancelled")
		return false
	}

	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.events))
		return true
	default:
		metrics.RecordQueueRejected("full")
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return false
	}
}

// Dequeue returns the underlying channel. Several consumers may share it.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Event {
	return q.events
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.events)
	metrics.UpdateQueueSize(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Publisher hands committed events to a queue. A dropped event is logged
// and otherwise ignored; the change it describes is already durable.
type Publisher struct {
	queue Queue
	log   logger.Logger
}

// NewPublisher wraps q. A nil logger discards drop reports.
func NewPublisher(q Queue, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{queue: q, log: log}
}

// Publish enqueues e.
func (p *Publisher) Publish(ctx context.Context, e model.Event) {
	if !p.queue.Enqueue(ctx, e) {
		p.log.Warn(ctx, "notification dropped",
			logger.String("event_id", e.EventID),
			logger.String("kind", string(e.Kind)),
		)
	}
}
