package model

import "time"

// EventKind names a lifecycle event published after a commit.
type EventKind string

// Lifecycle event kinds.
const (
	EventRecordSubmitted EventKind = "record_submitted"
	EventRecordApproved  EventKind = "record_approved"
	EventRecordRejected  EventKind = "record_rejected"
	EventRecordDeleted   EventKind = "record_deleted"
	EventDemonPlaced     EventKind = "demon_placed"
	EventDemonMoved      EventKind = "demon_moved"
	EventDemonRemoved    EventKind = "demon_removed"
)

// Event is a notification about a committed change.
type Event struct {
	EventID  string    `json:"event_id"` // unique id for delivery idempotency
	Kind     EventKind `json:"kind"`
	DemonID  int64     `json:"demon_id,omitempty"`
	RecordID int64     `json:"record_id,omitempty"`
	PlayerID int64     `json:"player_id,omitempty"`
	Position int       `json:"position,omitempty"`
	Progress int       `json:"progress,omitempty"`
	Summary  string    `json:"summary"`
	TS       time.Time `json:"ts"`
	// Attempt counts earlier failed deliveries of this event.
	Attempt  int       `json:"attempt,omitempty"`
}
