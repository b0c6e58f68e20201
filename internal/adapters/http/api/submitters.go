package api

import (
	"context"
	"net/http"
)

type submitterPatchRequest struct {
	Banned *bool `json:"banned"`
}

// Submitter routes are moderator only. The check runs before the
// fingerprint so a revalidation cannot bypass it.

func (s *Server) listSubmitters(w http.ResponseWriter, r *http.Request) {
	viewer := IdentityFrom(r.Context())
	if err := s.requireModerator("api.listSubmitters", viewer); err != nil {
		s.fail(w, r, err)
		return
	}
	offset, limit, err := s.page(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cached(w, r, "submitters", submitterListDesc(offset, limit), func(ctx context.Context) (any, error) {
		all, err := s.deps.Records.Submitters(ctx, viewer)
		if err != nil {
			return nil, err
		}
		return window(all, offset, limit), nil
	})
}

func (s *Server) getSubmitter(w http.ResponseWriter, r *http.Request) {
	viewer := IdentityFrom(r.Context())
	if err := s.requireModerator("api.getSubmitter", viewer); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cached(w, r, "submitter", submitterDesc(id), func(ctx context.Context) (any, error) {
		return s.deps.Records.Submitter(ctx, id, viewer)
	})
}

func (s *Server) patchSubmitter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req submitterPatchRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Banned == nil {
		s.fail(w, r, badRequest("banned is required"))
		return
	}
	if err := s.precondition(r, submitterDesc(id)); err != nil {
		s.fail(w, r, err)
		return
	}
	sb, err := s.deps.Records.SetSubmitterBanned(ctx, id, *req.Banned, IdentityFrom(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.written(w, http.StatusOK, submitterDesc(id), sb)
}
