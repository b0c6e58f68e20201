package scoring

import "errors"

// ErrInvalidCurve reports an unusable curve configuration.
var ErrInvalidCurve = errors.New("invalid score curve")
