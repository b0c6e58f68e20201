// Package apperr defines the error taxonomy shared by the domain services.
//
// Every recoverable failure carries one of the kind sentinels below so the
// transport layer can branch with errors.Is without knowing which service
// produced it.
package apperr

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Error is a domain failure with an operation, a kind and a human reason.
type Error struct {
	Op     string
	Kind   error
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an error of the given kind with a formatted reason.
func New(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err yields nil.
func Wrap(op string, kind error, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// NotFound is shorthand for New(op, ErrNotFound, ...).
func NotFound(op, format string, args ...any) error {
	return New(op, ErrNotFound, format, args...)
}

// Validation is shorthand for New(op, ErrValidation, ...).
func Validation(op, format string, args ...any) error {
	return New(op, ErrValidation, format, args...)
}

// Forbidden is shorthand for New(op, ErrForbidden, ...).
func Forbidden(op, format string, args ...any) error {
	return New(op, ErrForbidden, format, args...)
}

// Conflict is shorthand for New(op, ErrConflict, ...).
func Conflict(op, format string, args ...any) error {
	return New(op, ErrConflict, format, args...)
}

var kinds = []error{ErrNotFound, ErrValidation, ErrForbidden, ErrConflict, ErrPreconditionFailed}

// KindOf returns the kind sentinel carried by err, or nil for unclassified
// errors.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Code returns the stable machine-readable code for err's kind.
func Code(err error) string {
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrValidation:
		return "validation_error"
	case ErrForbidden:
		return "forbidden"
	case ErrConflict:
		return "conflict"
	case ErrPreconditionFailed:
		return "precondition_failed"
	default:
		return "internal_error"
	}
}

// Reason returns the human-readable part of err without the op prefix.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Reason != "" {
			return e.Reason
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
