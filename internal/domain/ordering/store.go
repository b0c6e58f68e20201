// Package ordering owns the dense position sequence of the list.
//
// Writers are serialized. Each mutation renumbers inside one storage
// transaction, then updates the in-memory treap and publishes a new
// Snapshot after commit. Readers only ever see published snapshots, so they
// never observe a duplicate or missing position.
package ordering

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/domain/apperr"
	"github.com/okian/demonlist/internal/domain/coherence"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
)

const tracerName = "github.com/okian/demonlist/internal/domain/ordering"

// Bumper receives generation bumps after commit.
type Bumper interface {
	Bump(classes ...coherence.Class)
}

// Publisher receives lifecycle events after commit.
type Publisher interface {
	Publish(ctx context.Context, e model.Event)
}

type nopBumper struct{}

func (nopBumper) Bump(...coherence.Class) {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, model.Event) {}

// Option configures a Store.
type Option func(*Store)

// WithGenerations sets the generation registry bumped after each commit.
func WithGenerations(b Bumper) Option {
	return func(s *Store) {
		if b != nil {
			s.gens = b
		}
	}
}

// WithPublisher sets the event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.events = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the ordering store.
type Store struct {
	mu   sync.Mutex // single writer
	repo repository.Store
	snap atomic.Pointer[Snapshot]

	gens   Bumper
	events Publisher
	log    logger.Logger
	now    func() time.Time
	tracer trace.Tracer
}

// New loads the current order from repo. A stored order that is not dense
// is refused.
func New(ctx context.Context, repo repository.Store, opts ...Option) (*Store, error) {
	s := &Store{
		repo:   repo,
		gens:   nopBumper{},
		events: nopPublisher{},
		log:    logger.Nop(),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	demons, err := repo.Demons(ctx)
	if err != nil {
		return nil, apperr.Wrap("ordering.New", ErrLoad, err)
	}
	for i, d := range demons {
		if d.Position != i+1 {
			return nil, apperr.New("ordering.New", ErrLoad, "demon %d stored at position %d, expected %d", d.ID, d.Position, i+1)
		}
	}
	s.snap.Store(newSnapshot(build(demons)))
	metrics.UpdateEntriesTotal(len(demons))
	s.log.Info(ctx, "ordering store loaded", logger.Int("entries", len(demons)))
	return s, nil
}

// Snapshot returns the latest published view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Len returns the number of demons.
func (s *Store) Len() int {
	return s.Snapshot().Len()
}

// Get returns the demon at position.
func (s *Store) Get(_ context.Context, position int) (model.Demon, error) {
	d, ok := s.Snapshot().At(position)
	if !ok {
		return model.Demon{}, apperr.NotFound("ordering.Get", "no demon at position %d", position)
	}
	return d, nil
}

// GetByID returns demon id.
func (s *Store) GetByID(_ context.Context, id int64) (model.Demon, error) {
	d, ok := s.Snapshot().ByID(id)
	if !ok {
		return model.Demon{}, apperr.NotFound("ordering.GetByID", "demon %d not found", id)
	}
	return d, nil
}

// List pages over the published order.
func (s *Store) List(offset, limit int) []model.Demon {
	return s.Snapshot().Slice(offset, limit)
}

func validateDemon(op string, d model.Demon) error {
	if strings.TrimSpace(d.Name) == "" {
		return apperr.Validation(op, "demon name is required")
	}
	if !model.ValidRequirement(d.Requirement) {
		return apperr.Validation(op, "requirement must be between 0 and %d, got %d", model.MaxProgress, d.Requirement)
	}
	return nil
}

// mutation runs fn inside a storage transaction under the writer lock. fn
// receives the snapshot the mutation is based on; the stored row count must
// match it. On success apply builds the next tree, which is published
// before the generations are bumped.
func (s *Store) mutation(ctx context.Context, op string, fn func(tx repository.Tx, cur *Snapshot) error, apply func(cur *Snapshot) *node) (err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ordering."+op)
	defer func() {
		result := "ok"
		if err != nil {
			result = apperr.Code(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, apperr.Reason(err))
			metrics.RecordErrorByComponent("ordering", apperr.Code(err))
		}
		span.End()
		metrics.RecordOrderingMutation(op, result, float64(time.Since(start).Microseconds())/1000)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return apperr.Wrap("ordering."+op, apperr.ErrConflict, err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := tx.CountDemons(ctx)
	if err != nil {
		return apperr.Wrap("ordering."+op, apperr.ErrConflict, err)
	}
	if stored != cur.Len() {
		return apperr.Conflict("ordering."+op, "stored order has %d entries, in-memory order has %d", stored, cur.Len())
	}
	if err := fn(tx, cur); err != nil {
		if apperr.KindOf(err) != nil {
			return err
		}
		return apperr.Wrap("ordering."+op, apperr.ErrConflict, err)
	}
	if err := ctx.Err(); err != nil {
		return apperr.Wrap("ordering."+op, apperr.ErrConflict, err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap("ordering."+op, apperr.ErrConflict, err)
	}

	next := newSnapshot(apply(cur))
	s.snap.Store(next)
	span.SetAttributes(attribute.Int("ordering.entries", next.Len()))
	metrics.UpdateEntriesTotal(next.Len())
	return nil
}

func (s *Store) emit(ctx context.Context, kind model.EventKind, d model.Demon, summary string) {
	s.events.Publish(ctx, model.Event{
		EventID:  uuid.NewString(),
		Kind:     kind,
		DemonID:  d.ID,
		Position: d.Position,
		Summary:  summary,
		TS:       s.now().UTC(),
	})
}

// Insert places d at position at, clamped to [1, N+1]. Demons at or after
// that position move down by one.
func (s *Store) Insert(ctx context.Context, d model.Demon, at int) (model.Demon, error) {
	const op = "ordering.Insert"
	if at < 1 {
		return model.Demon{}, apperr.Validation(op, "position must be at least 1, got %d", at)
	}
	d.Name = strings.TrimSpace(d.Name)
	d.Publisher = strings.TrimSpace(d.Publisher)
	d.Verifier = strings.TrimSpace(d.Verifier)
	d.Video = strings.TrimSpace(d.Video)
	if err := validateDemon(op, d); err != nil {
		return model.Demon{}, err
	}

	var placed model.Demon
	err := s.mutation(ctx, "insert",
		func(tx repository.Tx, cur *Snapshot) error {
			n := cur.Len()
			if at > n+1 {
				at = n + 1
			}
			if err := tx.ShiftPositions(ctx, at, n, 1); err != nil {
				return err
			}
			d.Position = at
			var err error
			placed, err = tx.InsertDemon(ctx, d)
			return err
		},
		func(cur *Snapshot) *node { return insertAt(cur.root, placed.Position, placed) },
	)
	if err != nil {
		return model.Demon{}, err
	}
	s.gens.Bump(coherence.Entries, coherence.Rankings)
	s.log.Info(ctx, "demon placed", logger.Int64("demon_id", placed.ID), logger.Int("position", placed.Position))
	s.emit(ctx, model.EventDemonPlaced, placed, placed.Name+" placed")
	return placed, nil
}

// Move relocates demon id to position to, clamped to [1, N]. Demons in
// between shift one step to close the gap. Moving to the current position
// changes nothing.
func (s *Store) Move(ctx context.Context, id int64, to int) (model.Demon, error) {
	return s.Edit(ctx, id, model.DemonPatch{}, &to)
}

// Edit applies patch to demon id and, when to is set, moves it there. Both
// changes commit in one transaction or not at all.
func (s *Store) Edit(ctx context.Context, id int64, patch model.DemonPatch, to *int) (model.Demon, error) {
	const op = "ordering.Edit"
	before, ok := s.Snapshot().ByID(id)
	if !ok {
		return model.Demon{}, apperr.NotFound(op, "demon %d not found", id)
	}
	if patch.Empty() && to == nil {
		return before, nil
	}
	if !patch.Empty() {
		if err := validateDemon(op, patch.Apply(before)); err != nil {
			return model.Demon{}, err
		}
	}

	kind := "update"
	switch {
	case to != nil && patch.Empty():
		kind = "move"
	case to != nil:
		kind = "edit"
	}

	var (
		d        model.Demon
		from     int
		target   int
		moved    bool
		replaced bool
	)
	err := s.mutation(ctx, kind,
		func(tx repository.Tx, cur *Snapshot) error {
			var ok bool
			if d, ok = cur.ByID(id); !ok {
				return apperr.NotFound(op, "demon %d not found", id)
			}
			from = d.Position
			if !patch.Empty() {
				d = patch.Apply(d)
				if err := tx.UpdateDemon(ctx, d); err != nil {
					return err
				}
				replaced = true
			}
			if to == nil {
				return nil
			}
			target = max(1, min(*to, cur.Len()))
			if target == from {
				return nil
			}
			d.Position = target
			moved = true
			return shiftAround(ctx, tx, id, from, target)
		},
		func(cur *Snapshot) *node {
			root := cur.root
			if replaced {
				root = replaceAt(root, from, d)
			}
			if moved {
				root = moveTo(root, from, target)
			}
			return root
		},
	)
	if err != nil {
		return model.Demon{}, err
	}
	if !replaced && !moved {
		return d, nil
	}

	s.gens.Bump(coherence.Entries, coherence.Rankings)
	if replaced {
		s.log.Debug(ctx, "demon updated", logger.Int64("demon_id", id))
	}
	if moved {
		s.log.Info(ctx, "demon moved", logger.Int64("demon_id", id), logger.Int("from", from), logger.Int("to", target))
		s.emit(ctx, model.EventDemonMoved, d, d.Name+" moved")
	}
	return d, nil
}

// shiftAround parks demon id at position 0, shifts the demons between from
// and to one step toward from, then places id at to.
func shiftAround(ctx context.Context, tx repository.Tx, id int64, from, to int) error {
	if err := tx.SetDemonPosition(ctx, id, 0); err != nil {
		return err
	}
	if to < from {
		if err := tx.ShiftPositions(ctx, to, from-1, 1); err != nil {
			return err
		}
	} else if err := tx.ShiftPositions(ctx, from+1, to, -1); err != nil {
		return err
	}
	return tx.SetDemonPosition(ctx, id, to)
}

// Delete removes demon id together with its records. Demons after it move
// up by one.
func (s *Store) Delete(ctx context.Context, id int64) error {
	const op = "ordering.Delete"
	var (
		removed model.Demon
		players []int64
	)
	err := s.mutation(ctx, "delete",
		func(tx repository.Tx, cur *Snapshot) error {
			d, ok := cur.ByID(id)
			if !ok {
				return apperr.NotFound(op, "demon %d not found", id)
			}
			removed = d
			recs, err := tx.Records(ctx, repository.RecordFilter{DemonID: id})
			if err != nil {
				return err
			}
			seen := make(map[int64]bool, len(recs))
			for _, r := range recs {
				if !seen[r.PlayerID] {
					seen[r.PlayerID] = true
					players = append(players, r.PlayerID)
				}
			}
			if err := tx.DeleteDemon(ctx, id); err != nil {
				return err
			}
			return tx.ShiftPositions(ctx, d.Position+1, cur.Len(), -1)
		},
		func(cur *Snapshot) *node {
			root, _ := removeAt(cur.root, removed.Position)
			return root
		},
	)
	if err != nil {
		return err
	}
	classes := []coherence.Class{coherence.Entries, coherence.Rankings, coherence.Records}
	for _, p := range players {
		classes = append(classes, coherence.PlayerClass(p))
	}
	s.gens.Bump(classes...)
	s.log.Info(ctx, "demon removed", logger.Int64("demon_id", id), logger.Int("position", removed.Position))
	s.emit(ctx, model.EventDemonRemoved, removed, removed.Name+" removed")
	return nil
}

// Update changes attributes of demon id without touching positions.
func (s *Store) Update(ctx context.Context, id int64, patch model.DemonPatch) (model.Demon, error) {
	return s.Edit(ctx, id, patch, nil)
}
