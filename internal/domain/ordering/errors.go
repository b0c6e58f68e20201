package ordering

import "errors"

// ErrLoad reports a stored order that could not be loaded.
var ErrLoad = errors.New("load ordering")
