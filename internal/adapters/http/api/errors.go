package api

import (
	"errors"
	"net/http"

	"github.com/okian/demonlist/internal/domain/apperr"
)

// Sentinel kinds for errors raised at the HTTP edge.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

type edgeError struct {
	kind error
	msg  string
}

func (e *edgeError) Error() string { return e.msg }
func (e *edgeError) Unwrap() error { return e.kind }

func badRequest(msg string) error   { return &edgeError{kind: ErrBadRequest, msg: msg} }
func unauthorized(msg string) error { return &edgeError{kind: ErrUnauthorized, msg: msg} }

// statusFor maps an error to its HTTP status and stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	}
	switch apperr.KindOf(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound, apperr.Code(err)
	case apperr.ErrValidation:
		return http.StatusUnprocessableEntity, apperr.Code(err)
	case apperr.ErrForbidden:
		return http.StatusForbidden, apperr.Code(err)
	case apperr.ErrConflict:
		return http.StatusConflict, apperr.Code(err)
	case apperr.ErrPreconditionFailed:
		return http.StatusPreconditionFailed, apperr.Code(err)
	}
	return http.StatusInternalServerError, "internal_error"
}
