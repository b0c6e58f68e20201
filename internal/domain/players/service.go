// Package players manages player profiles.
package players

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/domain/apperr"
	"github.com/okian/demonlist/internal/domain/coherence"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/permissions"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
)

const maxNameLength = 100

// Bumper receives generation bumps after commit.
type Bumper interface {
	Bump(classes ...coherence.Class)
}

type nopBumper struct{}

func (nopBumper) Bump(...coherence.Class) {}

// Service registers and moderates players.
type Service struct {
	repo repository.Store
	auth permissions.Authorizer
	gens Bumper
	log  logger.Logger
	now  func() time.Time
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

// New returns a players service.
func New(repo repository.Store, opts ...Option) *Service {
	s := &Service{repo: repo, auth: permissions.Default, gens: nopBumper{}, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func wrap(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Wrap(op, apperr.ErrNotFound, err)
	}
	return apperr.Wrap(op, apperr.ErrConflict, err)
}

// Register creates a player. Names are unique, case-insensitively.
func (s *Service) Register(ctx context.Context, name string) (model.Player, error) {
	const op = "players.Register"
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Player{}, apperr.Validation(op, "player name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return model.Player{}, apperr.Validation(op, "player name longer than %d characters", maxNameLength)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Player{}, wrap(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.PlayerByName(ctx, name); err == nil {
		return model.Player{}, apperr.Conflict(op, "player %q already exists", name)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Player{}, wrap(op, err)
	}
	p, err := tx.InsertPlayer(ctx, model.Player{Name: name, CreatedAt: s.now().UTC()})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Player{}, apperr.Conflict(op, "player %q already exists", name)
		}
		return model.Player{}, wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Player{}, wrap(op, err)
	}

	// A new player has no score yet, so the ranking is unaffected.
	s.gens.Bump(coherence.Players)
	s.log.Info(ctx, "player registered", logger.Int64("player_id", p.ID), logger.String("name", p.Name))
	if all, err := s.repo.Players(ctx); err == nil {
		metrics.UpdatePlayersTotal(len(all))
	}
	return p, nil
}

// Get returns player id.
func (s *Service) Get(ctx context.Context, id int64) (model.Player, error) {
	p, err := s.repo.Player(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Player{}, apperr.NotFound("players.Get", "player %d not found", id)
		}
		return model.Player{}, wrap("players.Get", err)
	}
	return p, nil
}

// List returns players in registration order, optionally filtered by a
// case-insensitive name prefix.
func (s *Service) List(ctx context.Context, namePrefix string) ([]model.Player, error) {
	all, err := s.repo.Players(ctx)
	if err != nil {
		return nil, wrap("players.List", err)
	}
	namePrefix = strings.ToLower(strings.TrimSpace(namePrefix))
	if namePrefix == "" {
		return all, nil
	}
	out := make([]model.Player, 0, len(all))
	for _, p := range all {
		if strings.HasPrefix(strings.ToLower(p.Name), namePrefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

// SetBanned bans or unbans player id. Banned players score zero.
func (s *Service) SetBanned(ctx context.Context, id int64, banned bool, moderator permissions.Identity) (model.Player, error) {
	const op = "players.SetBanned"
	if !s.auth.HasCapability(moderator, permissions.ListModerator) {
		return model.Player{}, apperr.Forbidden(op, "%s capability required", permissions.ListModerator)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return model.Player{}, wrap(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := tx.Player(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Player{}, apperr.NotFound(op, "player %d not found", id)
		}
		return model.Player{}, wrap(op, err)
	}
	if p.Banned == banned {
		return p, nil
	}
	if err := tx.SetPlayerBanned(ctx, id, banned); err != nil {
		return model.Player{}, wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Player{}, wrap(op, err)
	}
	p.Banned = banned

	s.gens.Bump(coherence.Players, coherence.PlayerClass(id), coherence.Rankings)
	s.log.Info(ctx, "player ban changed",
		logger.Int64("player_id", id), logger.Bool("banned", banned), logger.Int64("moderator", moderator.UserID))
	return p, nil
}
