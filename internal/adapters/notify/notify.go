// Package notify delivers lifecycle events: to a webhook, or to the log when
// no webhook is configured.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/pkg/logger"
)

// Notifier kinds accepted by New.
const (
	KindLog     = "log"
	KindWebhook = "webhook"
)

const (
	defaultMaxTries       = 4
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultRequestTimeout = 5 * time.Second
)

// Notifier delivers one event.
type Notifier interface {
	Notify(ctx context.Context, e model.Event) error
}

// Log writes each event as a structured log record.
type Log struct {
	log logger.Logger
}

// NewLog returns a log-only notifier.
func NewLog(l logger.Logger) *Log {
	if l == nil {
		l = logger.Nop()
	}
	return &Log{log: l}
}

// Notify logs e.
func (n *Log) Notify(ctx context.Context, e model.Event) error {
	n.log.Info(ctx, "notification",
		logger.String("event_id", e.EventID),
		logger.String("kind", string(e.Kind)),
		logger.String("summary", e.Summary),
	)
	return nil
}

// Webhook POSTs each event as JSON, retrying transient failures with
// exponential backoff. 4xx answers other than 429 are not retried.
type Webhook struct {
	url            string
	client         *http.Client
	maxTries       uint
	initialBackoff time.Duration
	maxBackoff     time.Duration
	log            logger.Logger
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) {
		if c != nil {
			w.client = c
		}
	}
}

// WithMaxTries caps delivery attempts.
func WithMaxTries(n uint) WebhookOption {
	return func(w *Webhook) {
		if n > 0 {
			w.maxTries = n
		}
	}
}

// WithBackoff sets the first and the largest retry delay.
func WithBackoff(initial, maxDelay time.Duration) WebhookOption {
	return func(w *Webhook) {
		if initial > 0 {
			w.initialBackoff = initial
		}
		if maxDelay > 0 {
			w.maxBackoff = maxDelay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) WebhookOption {
	return func(w *Webhook) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWebhook returns a webhook notifier posting to url.
func NewWebhook(url string, opts ...WebhookOption) (*Webhook, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrEmptyURL
	}
	w := &Webhook{
		url:            url,
		client:         &http.Client{Timeout: defaultRequestTimeout},
		maxTries:       defaultMaxTries,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		log:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Notify delivers e.
func (w *Webhook) Notify(ctx context.Context, e model.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.initialBackoff
	b.MaxInterval = w.maxBackoff

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, w.post(ctx, e.EventID, body)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(w.maxTries))
	if err != nil {
		return fmt.Errorf("webhook after %d attempts: %w", attempt, err)
	}
	if attempt > 1 {
		w.log.Info(ctx, "webhook delivered after retry",
			logger.String("event_id", e.EventID),
			logger.Int("attempts", attempt),
		)
	}
	return nil
}

func (w *Webhook) post(ctx context.Context, eventID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", eventID)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode))
	}
}

// New builds the notifier named by kind. An empty kind picks the webhook
// when url is set and the log otherwise.
func New(kind, url string, log logger.Logger, opts ...WebhookOption) (Notifier, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = KindLog
		if strings.TrimSpace(url) != "" {
			kind = KindWebhook
		}
	}
	switch kind {
	case KindLog:
		return NewLog(log), nil
	case KindWebhook:
		return NewWebhook(url, append([]WebhookOption{WithLogger(log)}, opts...)...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}
