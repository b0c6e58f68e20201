package api

import (
	"context"
	"net/http"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/domain/apperr"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/permissions"
	"github.com/okian/demonlist/internal/domain/scoring"
)

type playerRequest struct {
	Name string `json:"name"`
}

type playerPatchRequest struct {
	Banned *bool `json:"banned"`
}

type playerDetail struct {
	Player  model.Player   `json:"player"`
	Score   float64        `json:"score"`
	Records []model.Record `json:"records"`
}

func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := s.page(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	prefix := r.URL.Query().Get("name")
	s.cached(w, r, "players", playerListDesc(prefix, offset, limit), func(ctx context.Context) (any, error) {
		all, err := s.deps.Players.List(ctx, prefix)
		if err != nil {
			return nil, err
		}
		return window(all, offset, limit), nil
	})
}

// registerPlayer needs a signed in caller; no capability is required.
func (s *Server) registerPlayer(w http.ResponseWriter, r *http.Request) {
	if IdentityFrom(r.Context()).IsAnonymous() {
		s.fail(w, r, unauthorized("sign in to register players"))
		return
	}
	var req playerRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.deps.Players.Register(r.Context(), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/players/"+itoa(p.ID))
	s.written(w, http.StatusCreated, playerDesc(p.ID), p)
}

func (s *Server) buildPlayer(ctx context.Context, id int64) (playerDetail, error) {
	p, err := s.deps.Players.Get(ctx, id)
	if err != nil {
		return playerDetail{}, err
	}
	score, err := s.deps.Scores.Score(ctx, id)
	if err != nil {
		return playerDetail{}, err
	}
	// The body is shared by every viewer, so it is built from the public
	// view.
	recs, err := s.deps.Records.List(ctx, repository.RecordFilter{PlayerID: id, Status: model.StatusApproved}, permissions.Anonymous)
	if err != nil {
		return playerDetail{}, err
	}
	if recs == nil {
		recs = []model.Record{}
	}
	return playerDetail{Player: p, Score: score, Records: recs}, nil
}

func (s *Server) getPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cached(w, r, "player", playerDesc(id), func(ctx context.Context) (any, error) {
		return s.buildPlayer(ctx, id)
	})
}

func (s *Server) patchPlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.patchPlayer"
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req playerPatchRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Banned == nil {
		s.fail(w, r, apperr.Validation(op, "patch changes nothing"))
		return
	}
	if err := s.precondition(r, playerDesc(id)); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.deps.Players.SetBanned(ctx, id, *req.Banned, IdentityFrom(ctx)); err != nil {
		s.fail(w, r, err)
		return
	}
	detail, err := s.buildPlayer(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.written(w, http.StatusOK, playerDesc(id), detail)
}

func (s *Server) ranking(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := s.page(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cached(w, r, "ranking", rankingDesc(offset, limit), func(ctx context.Context) (any, error) {
		return scoring.Page(s.deps.Scores.Ranking(ctx), offset, limit)
	})
}

// window returns items[offset:offset+limit], clamped.
func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}
