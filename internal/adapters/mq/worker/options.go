package worker

import (
	"time"

	"github.com/okian/demonlist/internal/domain/dedupe"
	"github.com/okian/demonlist/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDeduper sets the delivery idempotency tracker.
func WithDeduper(d dedupe.Deduper) Option {
	return func(w *InMemoryWorker) {
		if d != nil {
			w.deduper = d
		}
	}
}

// WithDeliverTimeout bounds a single Notify call.
func WithDeliverTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithMaxAttempts bounds how many times one event is tried, the first
// delivery included. 1 disables redelivery.
func WithMaxAttempts(n int) Option {
	return func(w *InMemoryWorker) {
		if n > 0 {
			w.attempts = n
		}
	}
}
