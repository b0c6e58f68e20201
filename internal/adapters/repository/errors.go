package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound = errors.New("row not found")
	// ErrConflict reports a uniqueness or reference violation. Callers treat
	// it as a lost race and roll back.
	ErrConflict = errors.New("storage conflict")
	ErrTxDone   = errors.New("transaction already finished")
)
