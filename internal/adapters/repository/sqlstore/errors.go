package sqlstore

import "errors"

// Sentinel kinds for SQL store setup.
var (
	ErrUnknownDialect = errors.New("unknown sql dialect")
	ErrEmptyDSN       = errors.New("storage dsn is required")
)
