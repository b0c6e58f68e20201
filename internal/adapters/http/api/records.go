package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/records"
)

type recordRequest struct {
	PlayerID int64  `json:"player_id"`
	DemonID  int64  `json:"demon_id"`
	Progress int    `json:"progress"`
	Video    string `json:"video"`
}

type recordPatchRequest struct {
	Status model.Status `json:"status"`
}

type noteRequest struct {
	Content string `json:"content"`
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := recordFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, limit, err := s.page(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	viewer := IdentityFrom(r.Context())
	d := recordListDesc(s.deps.Records.Visibility(viewer),
		strconv.Itoa(int(filter.Status)), itoa(filter.PlayerID), itoa(filter.DemonID),
		strconv.Itoa(offset), strconv.Itoa(limit))
	s.cached(w, r, "records", d, func(ctx context.Context) (any, error) {
		recs, err := s.deps.Records.List(ctx, filter, viewer)
		if err != nil {
			return nil, err
		}
		return window(recs, offset, limit), nil
	})
}

func recordFilter(r *http.Request) (repository.RecordFilter, error) {
	var f repository.RecordFilter
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		st, err := model.ParseStatus(raw)
		if err != nil {
			return f, badRequest(err.Error())
		}
		f.Status = st
	}
	var err error
	if f.PlayerID, err = queryID(r, "player"); err != nil {
		return f, err
	}
	if f.DemonID, err = queryID(r, "demon"); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	viewer := IdentityFrom(r.Context())
	s.cached(w, r, "record", recordDesc(id, s.deps.Records.Visibility(viewer)), func(ctx context.Context) (any, error) {
		return s.deps.Records.Get(ctx, id, viewer)
	})
}

func (s *Server) submitRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req recordRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	viewer := IdentityFrom(ctx)
	rec, err := s.deps.Records.Submit(ctx, records.Submission{
		PlayerID:    req.PlayerID,
		DemonID:     req.DemonID,
		Progress:    req.Progress,
		SubmitterID: viewer.UserID,
		Video:       req.Video,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/records/"+itoa(rec.ID))
	s.written(w, http.StatusCreated, recordDesc(rec.ID, s.deps.Records.Visibility(viewer)), rec)
}

func (s *Server) patchRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req recordPatchRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	viewer := IdentityFrom(ctx)
	visibility := s.deps.Records.Visibility(viewer)
	if err := s.precondition(r, recordDesc(id, visibility)); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.deps.Records.SetStatus(ctx, id, req.Status, viewer); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.deps.Records.Get(ctx, id, viewer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.written(w, http.StatusOK, recordDesc(id, visibility), rec)
}

func (s *Server) addNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req noteRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	note, err := s.deps.Records.AddNote(ctx, id, IdentityFrom(ctx), req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// deleteRecord honours If-Match against the caller's view of the record.
func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	viewer := IdentityFrom(ctx)
	if err := s.precondition(r, recordDesc(id, s.deps.Records.Visibility(viewer))); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.Records.Delete(ctx, id, viewer); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) patchNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	noteID, err := pathID(r, "note")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req noteRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	note, err := s.deps.Records.UpdateNote(ctx, id, noteID, IdentityFrom(ctx), req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	noteID, err := pathID(r, "note")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.Records.DeleteNote(ctx, id, noteID, IdentityFrom(ctx)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
