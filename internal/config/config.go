// Package config defines service configuration and its defaults.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration. Keys are flat so every field maps
// to one DEMONLIST_* variable.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// StorageDriver is memory, sqlite or postgres.
	StorageDriver string `koanf:"storage_driver"`
	// StorageDSN is a file path for sqlite or a connection string for postgres.
	StorageDSN string `koanf:"storage_dsn"`

	// JWTSecret verifies HS256 bearer tokens. Empty rejects every token.
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`

	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`

	// Curve names the score curve: exponential or linear.
	Curve            string  `koanf:"curve"`
	CurveMaxPoints   float64 `koanf:"curve_max_points"`
	CurveDecay       float64 `koanf:"curve_decay"`
	CurvePartialMin  float64 `koanf:"curve_partial_min"`
	CurvePartialMax  float64 `koanf:"curve_partial_max"`
	MainListSize     int     `koanf:"main_list_size"`
	ExtendedListSize int     `koanf:"extended_list_size"`

	// Notifier is log or webhook; empty picks webhook when WebhookURL is set.
	Notifier        string        `koanf:"notifier"`
	WebhookURL      string        `koanf:"webhook_url"`
	WebhookMaxTries int           `koanf:"webhook_max_tries"`
	EventQueueSize  int           `koanf:"queue_size"`
	WorkerCount     int           `koanf:"worker_count"`
	DedupeTTL       time.Duration `koanf:"dedupe_ttl"`

	// DeliveryAttempts bounds how often a failed event is put back on the queue.
	DeliveryAttempts int `koanf:"delivery_max_attempts"`

	// OTelEndpoint is an OTLP/HTTP collector URL; empty disables export.
	OTelEndpoint    string  `koanf:"otel_endpoint"`
	OTelSampleRatio float64 `koanf:"otel_sample_ratio"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		ShutdownTimeout:  10 * time.Second,
		StorageDriver:    DriverMemory,
		JWTIssuer:        "demonlist",
		DefaultPageSize:  50,
		MaxPageSize:      100,
		Curve:            "exponential",
		CurveMaxPoints:   250,
		CurveDecay:       0.05,
		CurvePartialMin:  0.1,
		CurvePartialMax:  0.5,
		MainListSize:     75,
		ExtendedListSize: 150,
		WebhookMaxTries:  4,
		EventQueueSize:   1024,
		WorkerCount:      2,
		DedupeTTL:        24 * time.Hour,
		DeliveryAttempts: 3,
		OTelSampleRatio:  1,
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case c.DefaultPageSize < 1:
		return invalid("default_page_size must be positive")
	case c.MaxPageSize < c.DefaultPageSize:
		return invalid("max_page_size must be at least default_page_size")
	case c.MainListSize < 0 || c.ExtendedListSize < 0:
		return invalid("list sizes must not be negative")
	case c.ExtendedListSize > 0 && c.MainListSize > c.ExtendedListSize:
		return invalid("main_list_size must not exceed extended_list_size")
	case c.EventQueueSize < 1:
		return invalid("queue_size must be positive")
	case c.WorkerCount < 1:
		return invalid("worker_count must be positive")
	case c.DeliveryAttempts < 1:
		return invalid("delivery_max_attempts must be positive")
	case c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1:
		return invalid("otel_sample_ratio must be within [0, 1]")
	}

	switch strings.ToLower(c.StorageDriver) {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.StorageDSN) == "" {
			return invalid("storage_dsn is required for driver %s", c.StorageDriver)
		}
	default:
		return invalid("unknown storage_driver %q", c.StorageDriver)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
