// Package seedlist fills a running demonlist service through its HTTP API
// and checks the invariants a client can observe from outside.
package seedlist

import (
	"errors"
	"time"
)

// ErrVerification marks a failed post-seed check.
var ErrVerification = errors.New("verification failed")

// Config holds configuration for a seed run.
type Config struct {
	BaseURL string        // Base URL of the service
	Secret  string        // HS256 secret the service verifies tokens with
	Issuer  string        // Token issuer the service expects
	Demons  int           // Number of demons to place
	Players int           // Number of players to register
	Records int           // Number of records to submit and approve
	Workers int           // Number of concurrent submitters
	Timeout time.Duration // HTTP request timeout
	Seed    uint64        // Generator seed; runs with the same seed are identical
	Verbose bool          // Log every request
}

// Stats holds run statistics.
type Stats struct {
	DemonsPlaced     int
	PlayersCreated   int
	RecordsSubmitted int
	RecordsApproved  int
	RecordsFailed    int
	RankedPlayers    int
	StartTime        time.Time
	Duration         time.Duration
}
