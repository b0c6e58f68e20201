// Package dedupe tracks delivered event ids so each notification goes out
// at most once per retention window.
package dedupe

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Default retention configuration.
const (
	defaultTTL             = 24 * time.Hour
	defaultCleanupInterval = 10 * time.Minute
)

// Deduper records seen event IDs.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a failed delivery can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps ids in an expiring cache; entries older than ttl are
// forgotten and would be delivered again.
type inMemoryDeduper struct {
	ttl             time.Duration
	cleanupInterval time.Duration
	seen            *gocache.Cache
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		ttl:             defaultTTL,
		cleanupInterval: defaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = gocache.New(d.ttl, d.cleanupInterval)
	return d
}

// SeenAndRecord relies on Add failing for a live key, which makes the
// check and the insert one step.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	return d.seen.Add(id, struct{}{}, gocache.DefaultExpiration) != nil
}

// Unrecord removes an ID from the seen set.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.seen.Delete(id)
}

// Size returns the number of remembered ids, including expired ones not yet
// swept.
func (d *inMemoryDeduper) Size() int64 {
	return int64(d.seen.ItemCount())
}
