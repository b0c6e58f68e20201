package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrIllegalTransition is returned when a status change is not allowed.
var ErrIllegalTransition = errors.New("illegal status transition")

// Status is the closed set of record states.
type Status uint8

// Record states. The zero value is invalid on purpose.
const (
	StatusSubmitted Status = iota + 1
	StatusUnderConsideration
	StatusApproved
	StatusRejected
)

var statusNames = map[Status]string{
	StatusSubmitted:          "submitted",
	StatusUnderConsideration: "under_consideration",
	StatusApproved:           "approved",
	StatusRejected:           "rejected",
}

// transitions lists the legal successor states of each status.
var transitions = map[Status][]Status{
	StatusSubmitted:          {StatusUnderConsideration, StatusApproved, StatusRejected},
	StatusUnderConsideration: {StatusApproved, StatusRejected},
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Transition returns next if the move from s is legal.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, next)
	}
	return next, nil
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus parses a status name (case-insensitive).
func ParseStatus(name string) (Status, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown record status %q", name)
}

// Record is a player's claimed progress on a demon.
type Record struct {
	ID          int64     `json:"id"`
	DemonID     int64     `json:"demon_id"`
	PlayerID    int64     `json:"player_id"`
	Progress    int       `json:"progress"`
	Status      Status    `json:"status"`
	SubmitterID int64     `json:"submitter_id"`
	Video       string    `json:"video,omitempty"`
	Notes       []Note    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Note is a reviewer annotation on a record.
type Note struct {
	ID        int64     `json:"id"`
	RecordID  int64     `json:"record_id"`
	AuthorID  int64     `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Submitter is the account a record was sent from. Only the ban flag is
// kept; a banned submitter cannot send further records.
type Submitter struct {
	ID     int64 `json:"id"`
	Banned bool  `json:"banned"`
}
