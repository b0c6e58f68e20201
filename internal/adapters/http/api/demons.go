package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/demonlist/internal/domain/apperr"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/permissions"
)

type demonRequest struct {
	Name        string `json:"name"`
	Requirement int    `json:"requirement"`
	Publisher   string `json:"publisher"`
	Verifier    string `json:"verifier"`
	Video       string `json:"video"`
	// Position defaults to the end of the list.
	Position *int `json:"position"`
}

type demonPatchRequest struct {
	Position    *int    `json:"position"`
	Name        *string `json:"name"`
	Requirement *int    `json:"requirement"`
	Publisher   *string `json:"publisher"`
	Verifier    *string `json:"verifier"`
	Video       *string `json:"video"`
}

func (p demonPatchRequest) attributes() model.DemonPatch {
	return model.DemonPatch{
		Name:        p.Name,
		Requirement: p.Requirement,
		Publisher:   p.Publisher,
		Verifier:    p.Verifier,
		Video:       p.Video,
	}
}

func (s *Server) requireModerator(op string, id permissions.Identity) error {
	if s.auth.HasCapability(id, permissions.ListModerator) {
		return nil
	}
	return apperr.Forbidden(op, "%s requires %s", op, permissions.ListModerator)
}

func (s *Server) listDemons(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := s.page(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cached(w, r, "demons", demonListDesc(offset, limit), func(context.Context) (any, error) {
		return s.deps.Demons.List(offset, limit), nil
	})
}

func (s *Server) getDemon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cached(w, r, "demon", demonDesc(id), func(ctx context.Context) (any, error) {
		return s.deps.Demons.GetByID(ctx, id)
	})
}

func (s *Server) getDemonAt(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "position")
	pos, err := strconv.Atoi(raw)
	if err != nil {
		s.fail(w, r, badRequest("invalid position "+strconv.Quote(raw)))
		return
	}
	s.cached(w, r, "demon", demonAtDesc(pos), func(ctx context.Context) (any, error) {
		return s.deps.Demons.Get(ctx, pos)
	})
}

func (s *Server) createDemon(w http.ResponseWriter, r *http.Request) {
	const op = "api.createDemon"
	ctx := r.Context()
	if err := s.requireModerator(op, IdentityFrom(ctx)); err != nil {
		s.fail(w, r, err)
		return
	}
	var req demonRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	at := s.deps.Demons.Len() + 1
	if req.Position != nil {
		at = *req.Position
	}
	d, err := s.deps.Demons.Insert(ctx, model.Demon{
		Name:        req.Name,
		Requirement: req.Requirement,
		Publisher:   req.Publisher,
		Verifier:    req.Verifier,
		Video:       req.Video,
	}, at)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/demons/"+itoa(d.ID))
	s.written(w, http.StatusCreated, demonDesc(d.ID), d)
}

// patchDemon applies attribute changes and the move as one ordering
// mutation.
func (s *Server) patchDemon(w http.ResponseWriter, r *http.Request) {
	const op = "api.patchDemon"
	ctx := r.Context()
	if err := s.requireModerator(op, IdentityFrom(ctx)); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req demonPatchRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	attrs := req.attributes()
	if attrs.Empty() && req.Position == nil {
		s.fail(w, r, apperr.Validation(op, "patch changes nothing"))
		return
	}
	if err := s.precondition(r, demonDesc(id)); err != nil {
		s.fail(w, r, err)
		return
	}

	d, err := s.deps.Demons.Edit(ctx, id, attrs, req.Position)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.written(w, http.StatusOK, demonDesc(id), d)
}

func (s *Server) deleteDemon(w http.ResponseWriter, r *http.Request) {
	const op = "api.deleteDemon"
	ctx := r.Context()
	if err := s.requireModerator(op, IdentityFrom(ctx)); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.precondition(r, demonDesc(id)); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.Demons.Delete(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listInformation struct {
	Demons       int `json:"demons"`
	MainSize     int `json:"main_list_size"`
	ExtendedSize int `json:"extended_list_size"`
	Legacy       int `json:"legacy"`
}

// listInformation reports how the current order splits into the main,
// extended and legacy sections. Without an extended size nothing is legacy.
func (s *Server) listInformation(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, "list_information", listInfoDesc(), func(context.Context) (any, error) {
		info := listInformation{Demons: s.deps.Demons.Len(), MainSize: s.mainList, ExtendedSize: s.extendList}
		if s.extendList > 0 {
			info.Legacy = max(info.Demons-s.extendList, 0)
		}
		return info, nil
	})
}
