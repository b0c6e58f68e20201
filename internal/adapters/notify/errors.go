package notify

import "errors"

// Sentinel errors.
var (
	ErrEmptyURL    = errors.New("webhook url is empty")
	ErrRejected    = errors.New("webhook rejected the notification")
	ErrUnknownKind = errors.New("unknown notifier kind")
)
