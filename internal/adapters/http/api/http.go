// Package api serves the demonlist HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/domain/apperr"
	"github.com/okian/demonlist/internal/domain/coherence"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/permissions"
	"github.com/okian/demonlist/internal/domain/records"
	"github.com/okian/demonlist/internal/domain/scoring"
	"github.com/okian/demonlist/pkg/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	maxBodyBytes    = 1 << 20
)

// Demons is the ordering store as seen by handlers.
type Demons interface {
	Len() int
	List(offset, limit int) []model.Demon
	Get(ctx context.Context, position int) (model.Demon, error)
	GetByID(ctx context.Context, id int64) (model.Demon, error)
	Insert(ctx context.Context, d model.Demon, at int) (model.Demon, error)
	Edit(ctx context.Context, id int64, patch model.DemonPatch, to *int) (model.Demon, error)
	Delete(ctx context.Context, id int64) error
}

// Records is the review workflow.
type Records interface {
	Submit(ctx context.Context, sub records.Submission) (model.Record, error)
	SetStatus(ctx context.Context, id int64, status model.Status, reviewer permissions.Identity) (model.Record, error)
	Delete(ctx context.Context, id int64, admin permissions.Identity) error
	AddNote(ctx context.Context, id int64, reviewer permissions.Identity, text string) (model.Note, error)
	UpdateNote(ctx context.Context, id, noteID int64, reviewer permissions.Identity, text string) (model.Note, error)
	DeleteNote(ctx context.Context, id, noteID int64, reviewer permissions.Identity) error
	Submitters(ctx context.Context, moderator permissions.Identity) ([]model.Submitter, error)
	Submitter(ctx context.Context, id int64, moderator permissions.Identity) (model.Submitter, error)
	SetSubmitterBanned(ctx context.Context, id int64, banned bool, moderator permissions.Identity) (model.Submitter, error)
	Get(ctx context.Context, id int64, viewer permissions.Identity) (model.Record, error)
	List(ctx context.Context, filter repository.RecordFilter, viewer permissions.Identity) ([]model.Record, error)
	Visibility(viewer permissions.Identity) string
}

// Players is the player registry.
type Players interface {
	Register(ctx context.Context, name string) (model.Player, error)
	Get(ctx context.Context, id int64) (model.Player, error)
	List(ctx context.Context, namePrefix string) ([]model.Player, error)
	SetBanned(ctx context.Context, id int64, banned bool, moderator permissions.Identity) (model.Player, error)
}

// Scores computes derived scores.
type Scores interface {
	Score(ctx context.Context, playerID int64) (float64, error)
	Ranking(ctx context.Context) iter.Seq2[scoring.RankedPlayer, error]
}

// Fingerprinter computes validators from generation counters.
type Fingerprinter interface {
	Compute(d coherence.Descriptor) coherence.Fingerprint
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// Deps bundles the domain services behind the API.
type Deps struct {
	Demons        Demons
	Records       Records
	Players       Players
	Scores        Scores
	Fingerprinter Fingerprinter
	Stats         StatsProvider
}

// Server wires HTTP routes for the API.
type Server struct {
	deps        Deps
	tokens      *Tokens
	log         logger.Logger
	auth        permissions.Authorizer
	defaultPage int
	maxPage     int
	mainList    int
	extendList  int

	builds singleflight.Group
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithTokens sets the bearer token verifier.
func WithTokens(t *Tokens) Option {
	return func(s *Server) {
		if t != nil {
			s.tokens = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAuthorizer replaces the default capability policy used for demon
// management.
func WithAuthorizer(a permissions.Authorizer) Option {
	return func(s *Server) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithPageSizes sets the default and the maximum page size.
func WithPageSizes(def, maxSize int) Option {
	return func(s *Server) {
		if def > 0 {
			s.defaultPage = def
		}
		if maxSize >= s.defaultPage {
			s.maxPage = maxSize
		}
	}
}

// WithListSizes sets the main and extended list sizes reported by
// /list_information. 0 means the list has no such section.
func WithListSizes(mainSize, extendedSize int) Option {
	return func(s *Server) {
		s.mainList = max(mainSize, 0)
		s.extendList = max(extendedSize, 0)
	}
}

// NewServer builds the router.
func NewServer(deps Deps, opts ...Option) *Server {
	s := &Server{
		deps:        deps,
		tokens:      NewTokens("", ""),
		log:         logger.Nop(),
		auth:        permissions.Default,
		defaultPage: defaultPageSize,
		maxPage:     maxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxPage < s.defaultPage {
		s.maxPage = s.defaultPage
	}
	s.router = s.routes()
	return s
}

// Router returns the chi router so other adapters can mount routes on it.
func (s *Server) Router() chi.Router { return s.router }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/healthz", handleHealth)
	r.Get("/metrics", handleMetrics)
	r.Get("/stats", s.handleStats)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/list_information", s.listInformation)
		r.Route("/demons", func(r chi.Router) {
			r.Get("/", s.listDemons)
			r.Post("/", s.createDemon)
			r.Get("/position/{position}", s.getDemonAt)
			r.Get("/{id}", s.getDemon)
			r.Patch("/{id}", s.patchDemon)
			r.Delete("/{id}", s.deleteDemon)
		})
		r.Route("/players", func(r chi.Router) {
			r.Get("/", s.listPlayers)
			r.Post("/", s.registerPlayer)
			r.Get("/ranking", s.ranking)
			r.Get("/{id}", s.getPlayer)
			r.Patch("/{id}", s.patchPlayer)
		})
		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.listRecords)
			r.Post("/", s.submitRecord)
			r.Get("/{id}", s.getRecord)
			r.Patch("/{id}", s.patchRecord)
			r.Delete("/{id}", s.deleteRecord)
			r.Post("/{id}/notes", s.addNote)
			r.Patch("/{id}/notes/{note}", s.patchNote)
			r.Delete("/{id}/notes/{note}", s.deleteNote)
		})
		r.Route("/submitters", func(r chi.Router) {
			r.Get("/", s.listSubmitters)
			r.Get("/{id}", s.getSubmitter)
			r.Patch("/{id}", s.patchSubmitter)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail renders err. Server errors are logged with the request id.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := reason(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func reason(err error) string {
	var edge *edgeError
	if errors.As(err, &edge) {
		return edge.msg
	}
	return apperr.Reason(err)
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("malformed JSON body: " + err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid " + name + " " + strconv.Quote(raw))
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("invalid " + name + " " + strconv.Quote(raw))
	}
	return v, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, badRequest("invalid " + name + " " + strconv.Quote(raw))
	}
	return v, nil
}

// page reads offset and limit. A limit above the maximum is clamped.
func (s *Server) page(r *http.Request) (offset, limit int, err error) {
	if offset, err = queryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(r, "limit", s.defaultPage); err != nil {
		return 0, 0, err
	}
	if limit == 0 {
		limit = s.defaultPage
	}
	return offset, min(limit, s.maxPage), nil
}
