// Package coherence derives cache validators from per-class generation
// counters and answers conditional requests.
//
// Counters live only in process memory. A random epoch chosen at startup is
// mixed into every fingerprint, so a tag issued before a restart never
// validates afterwards even though the counters start over from zero.
package coherence

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/okian/demonlist/pkg/metrics"
)

// Class identifies a resource class whose generation is bumped on mutation.
type Class string

// Well-known resource classes.
const (
	Entries    Class = "entries"
	Records    Class = "records"
	Players    Class = "players"
	Rankings   Class = "rankings"
	Submitters Class = "submitters"
)

// PlayerClass is the per-player class bumped when one player's score inputs
// change.
func PlayerClass(id int64) Class {
	return Class("player:" + strconv.FormatInt(id, 10))
}

func (c Class) kind() string {
	s := string(c)
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i]
		}
	}
	return s
}

// Fingerprint is an opaque strong validator.
type Fingerprint string

// ETag renders the fingerprint as a quoted entity tag.
func (f Fingerprint) ETag() string {
	return `"` + string(f) + `"`
}

// Descriptor names the classes a response depends on plus the request
// parameters that select it (pagination, filters, viewer visibility).
type Descriptor struct {
	Classes []Class
	Params  []string
}

// Registry owns the generation counters.
type Registry struct {
	epoch uint64

	mu       sync.RWMutex
	counters map[Class]*atomic.Uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithEpoch fixes the epoch. Tests use it for reproducible fingerprints.
func WithEpoch(epoch uint64) Option {
	return func(r *Registry) { r.epoch = epoch }
}

// New returns an empty registry with a fresh random epoch.
func New(opts ...Option) *Registry {
	id := uuid.New()
	r := &Registry{
		epoch:    binary.BigEndian.Uint64(id[:8]),
		counters: make(map[Class]*atomic.Uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) counter(c Class) *atomic.Uint64 {
	r.mu.RLock()
	ctr, ok := r.counters[c]
	r.mu.RUnlock()
	if ok {
		return ctr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctr, ok = r.counters[c]; ok {
		return ctr
	}
	ctr = new(atomic.Uint64)
	r.counters[c] = ctr
	return ctr
}

// Bump increments the generation of each class. Callers invoke it only
// after the mutation is committed.
func (r *Registry) Bump(classes ...Class) {
	for _, c := range classes {
		r.counter(c).Add(1)
		metrics.RecordGenerationBump(c.kind())
	}
}

// Generation returns the current generation of c.
func (r *Registry) Generation(c Class) uint64 {
	r.mu.RLock()
	ctr, ok := r.counters[c]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return ctr.Load()
}

// Compute returns the fingerprint for d. It reads counters only.
func (r *Registry) Compute(d Descriptor) Fingerprint {
	classes := append([]Class(nil), d.Classes...)
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	h := xxhash.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], r.epoch)
	_, _ = h.Write(buf[:])
	for i, c := range classes {
		if i > 0 && classes[i-1] == c {
			continue
		}
		writeField(h, string(c))
		binary.BigEndian.PutUint64(buf[:], r.Generation(c))
		_, _ = h.Write(buf[:])
	}
	binary.BigEndian.PutUint64(buf[:], uint64(len(d.Params)))
	_, _ = h.Write(buf[:])
	for _, p := range d.Params {
		writeField(h, p)
	}
	return Fingerprint(fmt.Sprintf("%016x", h.Sum64()))
}

// writeField hashes s behind its length so no two field lists collide.
func writeField(h *xxhash.Digest, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	_, _ = h.Write(n[:])
	_, _ = h.WriteString(s)
}
