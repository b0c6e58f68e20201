// Package records implements the record review workflow.
//
// Every transition runs in one storage transaction while holding the
// player's lock stripe, so two reviews touching the same player never
// interleave. Generation bumps and notifications happen after commit.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
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
	"github.com/okian/demonlist/internal/domain/permissions"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
)

const (
	tracerName = "github.com/okian/demonlist/internal/domain/records"
	stripes    = 64
)

// Demons resolves demons against the current order.
type Demons interface {
	GetByID(ctx context.Context, id int64) (model.Demon, error)
}

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

// Submission is a claim of progress on a demon.
type Submission struct {
	PlayerID    int64
	DemonID     int64
	Progress    int
	SubmitterID int64
	Video       string
}

// Service is the record state machine.
type Service struct {
	repo   repository.Store
	demons Demons
	auth   permissions.Authorizer
	gens   Bumper
	events Publisher
	log    logger.Logger
	now    func() time.Time
	tracer trace.Tracer

	locks [stripes]sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithAuthorizer replaces the default capability policy.
func WithAuthorizer(a permissions.Authorizer) Option {
	return func(s *Service) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithGenerations sets the generation registry.
func WithGenerations(b Bumper) Option {
	return func(s *Service) {
		if b != nil {
			s.gens = b
		}
	}
}

// WithPublisher sets the event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a record service.
func New(repo repository.Store, demons Demons, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		demons: demons,
		auth:   permissions.Default,
		gens:   nopBumper{},
		events: nopPublisher{},
		log:    logger.Nop(),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) lock(playerID int64) func() {
	m := &s.locks[uint64(playerID)%stripes]
	m.Lock()
	return m.Unlock
}

func (s *Service) span(ctx context.Context, name string, recordID int64) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "records."+name)
	if recordID != 0 {
		span.SetAttributes(attribute.Int64("record.id", recordID))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.Reason(err))
		metrics.RecordErrorByComponent("records", apperr.Code(err))
	}
	span.End()
}

func storageErr(op string, err error) error {
	switch {
	case apperr.KindOf(err) != nil:
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Wrap(op, apperr.ErrNotFound, err)
	default:
		return apperr.Wrap(op, apperr.ErrConflict, err)
	}
}

func (s *Service) require(op string, id permissions.Identity, c permissions.Capability) error {
	if s.auth.HasCapability(id, c) {
		return nil
	}
	return apperr.Forbidden(op, "%s capability required", c)
}

func (s *Service) emit(ctx context.Context, kind model.EventKind, r model.Record, summary string) {
	s.events.Publish(ctx, model.Event{
		EventID:  uuid.NewString(),
		Kind:     kind,
		DemonID:  r.DemonID,
		RecordID: r.ID,
		PlayerID: r.PlayerID,
		Progress: r.Progress,
		Summary:  summary,
		TS:       s.now().UTC(),
	})
}

// Submit records a claim in the submitted state.
func (s *Service) Submit(ctx context.Context, sub Submission) (rec model.Record, err error) {
	const op = "records.Submit"
	ctx, span := s.span(ctx, "Submit", 0)
	defer func() { endSpan(span, err) }()

	demon, err := s.demons.GetByID(ctx, sub.DemonID)
	if err != nil {
		return model.Record{}, err
	}
	if sub.Progress < demon.Requirement || sub.Progress > model.MaxProgress {
		return model.Record{}, apperr.Validation(op, "progress must be between %d and %d, got %d",
			demon.Requirement, model.MaxProgress, sub.Progress)
	}

	unlock := s.lock(sub.PlayerID)
	defer unlock()

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Record{}, storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	player, err := tx.Player(ctx, sub.PlayerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Record{}, apperr.NotFound(op, "player %d not found", sub.PlayerID)
		}
		return model.Record{}, storageErr(op, err)
	}
	if player.Banned {
		return model.Record{}, apperr.Forbidden(op, "player %s is banned", player.Name)
	}
	if sub.SubmitterID != 0 {
		submitter, err := tx.Submitter(ctx, sub.SubmitterID)
		switch {
		case err == nil && submitter.Banned:
			return model.Record{}, apperr.Forbidden(op, "submitter %d is banned", sub.SubmitterID)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return model.Record{}, storageErr(op, err)
		}
	}

	existing, err := tx.Records(ctx, repository.RecordFilter{PlayerID: sub.PlayerID, DemonID: sub.DemonID})
	if err != nil {
		return model.Record{}, storageErr(op, err)
	}
	for _, r := range existing {
		if r.Progress < sub.Progress {
			continue
		}
		switch {
		case r.Status == model.StatusApproved:
			return model.Record{}, apperr.Conflict(op, "player already holds an approved %d%% record on %s", r.Progress, demon.Name)
		case !r.Status.Terminal():
			return model.Record{}, apperr.Conflict(op, "record %d with %d%% is still under review", r.ID, r.Progress)
		}
	}

	rec, err = tx.InsertRecord(ctx, model.Record{
		DemonID:     sub.DemonID,
		PlayerID:    sub.PlayerID,
		Progress:    sub.Progress,
		Status:      model.StatusSubmitted,
		SubmitterID: sub.SubmitterID,
		Video:       strings.TrimSpace(sub.Video),
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return model.Record{}, storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Record{}, storageErr(op, err)
	}

	s.gens.Bump(coherence.Records)
	metrics.RecordRecordSubmitted()
	s.log.Info(ctx, "record submitted",
		logger.Int64("record_id", rec.ID), logger.Int64("player_id", rec.PlayerID),
		logger.Int64("demon_id", rec.DemonID), logger.Int("progress", rec.Progress))
	s.emit(ctx, model.EventRecordSubmitted, rec,
		fmt.Sprintf("%s submitted %d%% on %s", player.Name, rec.Progress, demon.Name))
	return rec, nil
}

// transition loads record id, locks its player and runs fn in a
// transaction. fn reports whether anything changed.
func (s *Service) transition(ctx context.Context, op string, id int64, fn func(tx repository.Tx, r *model.Record) (bool, error)) (model.Record, bool, error) {
	current, err := s.repo.Record(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Record{}, false, apperr.NotFound(op, "record %d not found", id)
		}
		return model.Record{}, false, storageErr(op, err)
	}

	unlock := s.lock(current.PlayerID)
	defer unlock()

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Record{}, false, storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := tx.Record(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Record{}, false, apperr.NotFound(op, "record %d not found", id)
		}
		return model.Record{}, false, storageErr(op, err)
	}
	changed, err := fn(tx, &rec)
	if err != nil {
		return model.Record{}, false, storageErr(op, err)
	}
	if !changed {
		return rec, false, nil
	}
	if err := tx.Commit(); err != nil {
		return model.Record{}, false, storageErr(op, err)
	}
	return rec, true, nil
}

func illegal(op string, from, to model.Status) error {
	_, err := from.Transition(to)
	return apperr.Wrap(op, apperr.ErrConflict, err)
}

// Approve marks record id approved. Approving an approved record succeeds
// without change. A lower approved record for the same player and demon is
// demoted; a higher or equal one makes the approval a conflict.
func (s *Service) Approve(ctx context.Context, id int64, reviewer permissions.Identity) (rec model.Record, err error) {
	const op = "records.Approve"
	ctx, span := s.span(ctx, "Approve", id)
	defer func() { endSpan(span, err) }()

	if err := s.require(op, reviewer, permissions.ListAdministrator); err != nil {
		return model.Record{}, err
	}

	var (
		from    model.Status
		demoted []int64
	)
	rec, changed, err := s.transition(ctx, op, id, func(tx repository.Tx, r *model.Record) (bool, error) {
		from = r.Status
		if r.Status == model.StatusApproved {
			return false, nil
		}
		if !r.Status.CanTransition(model.StatusApproved) {
			return false, illegal(op, r.Status, model.StatusApproved)
		}
		demon, err := s.demons.GetByID(ctx, r.DemonID)
		if err != nil {
			return false, err
		}
		if r.Progress < demon.Requirement {
			return false, apperr.Validation(op, "progress %d%% is below the %d%% requirement of %s", r.Progress, demon.Requirement, demon.Name)
		}

		approved, err := tx.Records(ctx, repository.RecordFilter{PlayerID: r.PlayerID, DemonID: r.DemonID, Status: model.StatusApproved})
		if err != nil {
			return false, err
		}
		for _, o := range approved {
			if o.ID != r.ID && o.Progress >= r.Progress {
				return false, apperr.Conflict(op, "record %d already approved with %d%%", o.ID, o.Progress)
			}
		}
		for _, o := range approved {
			if o.ID == r.ID {
				continue
			}
			if err := tx.SetRecordStatus(ctx, o.ID, model.StatusRejected); err != nil {
				return false, err
			}
			if _, err := tx.InsertNote(ctx, model.Note{
				RecordID:  o.ID,
				AuthorID:  reviewer.UserID,
				Content:   fmt.Sprintf("Superseded by record %d with %d%%", r.ID, r.Progress),
				CreatedAt: s.now().UTC(),
			}); err != nil {
				return false, err
			}
			demoted = append(demoted, o.ID)
		}
		if err := tx.SetRecordStatus(ctx, r.ID, model.StatusApproved); err != nil {
			return false, err
		}
		r.Status = model.StatusApproved
		return true, nil
	})
	if err != nil || !changed {
		return rec, err
	}

	s.gens.Bump(coherence.Records, coherence.PlayerClass(rec.PlayerID), coherence.Rankings)
	metrics.RecordRecordTransition(from.String(), model.StatusApproved.String())
	for range demoted {
		metrics.RecordRecordTransition(model.StatusApproved.String(), model.StatusRejected.String())
	}
	s.log.Info(ctx, "record approved",
		logger.Int64("record_id", rec.ID), logger.Int64("reviewer", reviewer.UserID), logger.Int("demoted", len(demoted)))
	s.emit(ctx, model.EventRecordApproved, rec, fmt.Sprintf("record %d approved", rec.ID))
	return rec, nil
}

// Reject marks record id rejected. Rejecting a rejected record succeeds
// without change; an approved record cannot be rejected.
func (s *Service) Reject(ctx context.Context, id int64, reviewer permissions.Identity) (rec model.Record, err error) {
	const op = "records.Reject"
	ctx, span := s.span(ctx, "Reject", id)
	defer func() { endSpan(span, err) }()

	if err := s.require(op, reviewer, permissions.ListAdministrator); err != nil {
		return model.Record{}, err
	}
	var from model.Status
	rec, changed, err := s.transition(ctx, op, id, func(tx repository.Tx, r *model.Record) (bool, error) {
		from = r.Status
		if r.Status == model.StatusRejected {
			return false, nil
		}
		if !r.Status.CanTransition(model.StatusRejected) {
			return false, illegal(op, r.Status, model.StatusRejected)
		}
		if err := tx.SetRecordStatus(ctx, r.ID, model.StatusRejected); err != nil {
			return false, err
		}
		r.Status = model.StatusRejected
		return true, nil
	})
	if err != nil || !changed {
		return rec, err
	}

	s.gens.Bump(coherence.Records)
	metrics.RecordRecordTransition(from.String(), model.StatusRejected.String())
	s.log.Info(ctx, "record rejected", logger.Int64("record_id", rec.ID), logger.Int64("reviewer", reviewer.UserID))
	s.emit(ctx, model.EventRecordRejected, rec, fmt.Sprintf("record %d rejected", rec.ID))
	return rec, nil
}

// Consider moves a submitted record under consideration.
func (s *Service) Consider(ctx context.Context, id int64, reviewer permissions.Identity) (rec model.Record, err error) {
	const op = "records.Consider"
	ctx, span := s.span(ctx, "Consider", id)
	defer func() { endSpan(span, err) }()

	if err := s.require(op, reviewer, permissions.ListModerator); err != nil {
		return model.Record{}, err
	}
	rec, changed, err := s.transition(ctx, op, id, func(tx repository.Tx, r *model.Record) (bool, error) {
		if r.Status == model.StatusUnderConsideration {
			return false, nil
		}
		if !r.Status.CanTransition(model.StatusUnderConsideration) {
			return false, illegal(op, r.Status, model.StatusUnderConsideration)
		}
		if err := tx.SetRecordStatus(ctx, r.ID, model.StatusUnderConsideration); err != nil {
			return false, err
		}
		r.Status = model.StatusUnderConsideration
		return true, nil
	})
	if err != nil || !changed {
		return rec, err
	}
	s.gens.Bump(coherence.Records)
	metrics.RecordRecordTransition(model.StatusSubmitted.String(), model.StatusUnderConsideration.String())
	s.log.Debug(ctx, "record under consideration", logger.Int64("record_id", rec.ID))
	return rec, nil
}

// SetStatus dispatches a requested status change.
func (s *Service) SetStatus(ctx context.Context, id int64, status model.Status, reviewer permissions.Identity) (model.Record, error) {
	switch status {
	case model.StatusApproved:
		return s.Approve(ctx, id, reviewer)
	case model.StatusRejected:
		return s.Reject(ctx, id, reviewer)
	case model.StatusUnderConsideration:
		return s.Consider(ctx, id, reviewer)
	default:
		return model.Record{}, apperr.Validation("records.SetStatus", "cannot move a record to %s", status)
	}
}

// AddNote appends a reviewer note. Notes are allowed in every state.
func (s *Service) AddNote(ctx context.Context, id int64, reviewer permissions.Identity, text string) (note model.Note, err error) {
	const op = "records.AddNote"
	ctx, span := s.span(ctx, "AddNote", id)
	defer func() { endSpan(span, err) }()

	if err := s.require(op, reviewer, permissions.ListHelper); err != nil {
		return model.Note{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Note{}, apperr.Validation(op, "note text is required")
	}
	_, _, err = s.transition(ctx, op, id, func(tx repository.Tx, r *model.Record) (bool, error) {
		var err error
		note, err = tx.InsertNote(ctx, model.Note{
			RecordID:  r.ID,
			AuthorID:  reviewer.UserID,
			Content:   text,
			CreatedAt: s.now().UTC(),
		})
		return err == nil, err
	})
	if err != nil {
		return model.Note{}, err
	}
	s.gens.Bump(coherence.Records)
	s.log.Debug(ctx, "note added", logger.Int64("record_id", id), logger.Int64("note_id", note.ID))
	return note, nil
}

// Delete removes record id and its notes. Deleting an approved record
// changes the player's score.
func (s *Service) Delete(ctx context.Context, id int64, admin permissions.Identity) (err error) {
	const op = "records.Delete"
	ctx, span := s.span(ctx, "Delete", id)
	defer func() { endSpan(span, err) }()

	if err := s.require(op, admin, permissions.ListAdministrator); err != nil {
		return err
	}
	rec, _, err := s.transition(ctx, op, id, func(tx repository.Tx, r *model.Record) (bool, error) {
		return true, tx.DeleteRecord(ctx, r.ID)
	})
	if err != nil {
		return err
	}

	s.gens.Bump(coherence.Records, coherence.PlayerClass(rec.PlayerID), coherence.Rankings)
	s.log.Info(ctx, "record deleted",
		logger.Int64("record_id", rec.ID), logger.Int64("player_id", rec.PlayerID), logger.String("status", rec.Status.String()))
	s.emit(ctx, model.EventRecordDeleted, rec, fmt.Sprintf("record %d deleted", rec.ID))
	return nil
}

// noteOf finds note noteID on r and checks that reviewer may change it.
// Helpers may change their own notes; moderators may change any.
func (s *Service) noteOf(op string, r *model.Record, noteID int64, reviewer permissions.Identity) (model.Note, error) {
	for _, n := range r.Notes {
		if n.ID != noteID {
			continue
		}
		if n.AuthorID != reviewer.UserID {
			if err := s.require(op, reviewer, permissions.ListModerator); err != nil {
				return model.Note{}, err
			}
		}
		return n, nil
	}
	return model.Note{}, apperr.NotFound(op, "note %d not found on record %d", noteID, r.ID)
}

// UpdateNote replaces the text of note noteID on record id.
func (s *Service) UpdateNote(ctx context.Context, id, noteID int64, reviewer permissions.Identity, text string) (note model.Note, err error) {
	const op = "records.UpdateNote"
	ctx, span := s.span(ctx, "UpdateNote", id)
	defer func() { endSpan(span, err) }()

	if err := s.require(op, reviewer, permissions.ListHelper); err != nil {
		return model.Note{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Note{}, apperr.Validation(op, "note text is required")
	}
	_, changed, err := s.transition(ctx, op, id, func(tx repository.Tx, r *model.Record) (bool, error) {
		n, err := s.noteOf(op, r, noteID, reviewer)
		if err != nil {
			return false, err
		}
		note = n
		if n.Content == text {
			return false, nil
		}
		note.Content = text
		return true, tx.UpdateNote(ctx, r.ID, noteID, text)
	})
	if err != nil {
		return model.Note{}, err
	}
	if changed {
		s.gens.Bump(coherence.Records)
		s.log.Debug(ctx, "note edited", logger.Int64("record_id", id), logger.Int64("note_id", noteID))
	}
	return note, nil
}

// DeleteNote removes note noteID from record id.
func (s *Service) DeleteNote(ctx context.Context, id, noteID int64, reviewer permissions.Identity) (err error) {
	const op = "records.DeleteNote"
	ctx, span := s.span(ctx, "DeleteNote", id)
	defer func() { endSpan(span, err) }()

	if err := s.require(op, reviewer, permissions.ListHelper); err != nil {
		return err
	}
	_, _, err = s.transition(ctx, op, id, func(tx repository.Tx, r *model.Record) (bool, error) {
		if _, err := s.noteOf(op, r, noteID, reviewer); err != nil {
			return false, err
		}
		return true, tx.DeleteNote(ctx, r.ID, noteID)
	})
	if err != nil {
		return err
	}
	s.gens.Bump(coherence.Records)
	s.log.Debug(ctx, "note deleted", logger.Int64("record_id", id), logger.Int64("note_id", noteID))
	return nil
}

// Submitters lists every known submitter.
func (s *Service) Submitters(ctx context.Context, moderator permissions.Identity) ([]model.Submitter, error) {
	const op = "records.Submitters"
	if err := s.require(op, moderator, permissions.ListModerator); err != nil {
		return nil, err
	}
	out, err := s.repo.Submitters(ctx)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

// Submitter returns submitter id.
func (s *Service) Submitter(ctx context.Context, id int64, moderator permissions.Identity) (model.Submitter, error) {
	const op = "records.Submitter"
	if err := s.require(op, moderator, permissions.ListModerator); err != nil {
		return model.Submitter{}, err
	}
	sb, err := s.repo.Submitter(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Submitter{}, apperr.NotFound(op, "submitter %d not found", id)
		}
		return model.Submitter{}, storageErr(op, err)
	}
	return sb, nil
}

// SetSubmitterBanned bans or unbans submitter id. The ban only gates new
// submissions; records already sent stay as they are. An id that has never
// submitted can be banned ahead of time.
func (s *Service) SetSubmitterBanned(ctx context.Context, id int64, banned bool, moderator permissions.Identity) (sb model.Submitter, err error) {
	const op = "records.SetSubmitterBanned"
	ctx, span := s.span(ctx, "SetSubmitterBanned", 0)
	defer func() { endSpan(span, err) }()

	if err := s.require(op, moderator, permissions.ListModerator); err != nil {
		return model.Submitter{}, err
	}
	if id <= 0 {
		return model.Submitter{}, apperr.Validation(op, "submitter id must be positive, got %d", id)
	}
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Submitter{}, storageErr(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := tx.Submitter(ctx, id)
	switch {
	case err == nil && cur.Banned == banned:
		return cur, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return model.Submitter{}, storageErr(op, err)
	}
	if err := tx.SetSubmitterBanned(ctx, id, banned); err != nil {
		return model.Submitter{}, storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Submitter{}, storageErr(op, err)
	}

	s.gens.Bump(coherence.Submitters)
	s.log.Info(ctx, "submitter ban changed",
		logger.Int64("submitter_id", id), logger.Bool("banned", banned), logger.Int64("moderator", moderator.UserID))
	return model.Submitter{ID: id, Banned: banned}, nil
}

func canSeeUnapproved(auth permissions.Authorizer, viewer permissions.Identity) bool {
	return auth.HasCapability(viewer, permissions.ListHelper)
}

// Get returns record id. Records that are not approved, and all notes,
// are only visible to list helpers.
func (s *Service) Get(ctx context.Context, id int64, viewer permissions.Identity) (model.Record, error) {
	const op = "records.Get"
	rec, err := s.repo.Record(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Record{}, apperr.NotFound(op, "record %d not found", id)
		}
		return model.Record{}, storageErr(op, err)
	}
	if !canSeeUnapproved(s.auth, viewer) {
		if rec.Status != model.StatusApproved {
			return model.Record{}, apperr.NotFound(op, "record %d not found", id)
		}
		rec.Notes = nil
	}
	return rec, nil
}

// List returns records matching filter that viewer may see.
func (s *Service) List(ctx context.Context, filter repository.RecordFilter, viewer permissions.Identity) ([]model.Record, error) {
	if !canSeeUnapproved(s.auth, viewer) {
		if filter.Status != 0 && filter.Status != model.StatusApproved {
			return []model.Record{}, nil
		}
		filter.Status = model.StatusApproved
	}
	recs, err := s.repo.Records(ctx, filter)
	if err != nil {
		return nil, storageErr("records.List", err)
	}
	return recs, nil
}

// Visibility names the view a viewer gets, for cache keys.
func (s *Service) Visibility(viewer permissions.Identity) string {
	if canSeeUnapproved(s.auth, viewer) {
		return "staff"
	}
	return "public"
}
