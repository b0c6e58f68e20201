// Package repository defines the durable storage contract for demons,
// players, records, notes and submitters, plus an in-memory implementation.
//
// The storage layer enforces UNIQUE(position) on demons. Renumbering goes
// through ShiftPositions, which never produces a transient duplicate.
package repository

import (
	"context"

	"github.com/okian/demonlist/internal/domain/model"
)

// RecordFilter selects records. Zero fields match everything.
type RecordFilter struct {
	PlayerID int64
	DemonID  int64
	Status   model.Status
}

// Match reports whether r satisfies the filter.
func (f RecordFilter) Match(r model.Record) bool {
	if f.PlayerID != 0 && r.PlayerID != f.PlayerID {
		return false
	}
	if f.DemonID != 0 && r.DemonID != f.DemonID {
		return false
	}
	if f.Status != 0 && r.Status != f.Status {
		return false
	}
	return true
}

// Reader provides point and list reads.
type Reader interface {
	Demon(ctx context.Context, id int64) (model.Demon, error)
	// Demons returns every demon ordered by position.
	Demons(ctx context.Context) ([]model.Demon, error)
	CountDemons(ctx context.Context) (int, error)

	Player(ctx context.Context, id int64) (model.Player, error)
	PlayerByName(ctx context.Context, name string) (model.Player, error)
	// Players returns every player ordered by id.
	Players(ctx context.Context) ([]model.Player, error)

	// Record returns one record with its notes in creation order.
	Record(ctx context.Context, id int64) (model.Record, error)
	// Records returns matching records ordered by id, without notes.
	Records(ctx context.Context, filter RecordFilter) ([]model.Record, error)

	Submitter(ctx context.Context, id int64) (model.Submitter, error)
	// Submitters returns every known submitter ordered by id.
	Submitters(ctx context.Context) ([]model.Submitter, error)
}

// Writer provides mutations. Writers are only reachable through a Tx.
type Writer interface {
	// InsertDemon stores d at d.Position and returns it with its new id.
	InsertDemon(ctx context.Context, d model.Demon) (model.Demon, error)
	// UpdateDemon rewrites every attribute except the position.
	UpdateDemon(ctx context.Context, d model.Demon) error
	SetDemonPosition(ctx context.Context, id int64, position int) error
	// ShiftPositions adds delta to every position in [from, to].
	ShiftPositions(ctx context.Context, from, to, delta int) error
	// DeleteDemon removes the demon together with its records and notes.
	DeleteDemon(ctx context.Context, id int64) error

	InsertPlayer(ctx context.Context, p model.Player) (model.Player, error)
	SetPlayerBanned(ctx context.Context, id int64, banned bool) error

	// InsertRecord stores r and registers a non-zero r.SubmitterID as a
	// submitter.
	InsertRecord(ctx context.Context, r model.Record) (model.Record, error)
	SetRecordStatus(ctx context.Context, id int64, status model.Status) error
	// DeleteRecord removes the record together with its notes.
	DeleteRecord(ctx context.Context, id int64) error
	InsertNote(ctx context.Context, n model.Note) (model.Note, error)
	// UpdateNote rewrites the content of note noteID on record recordID.
	UpdateNote(ctx context.Context, recordID, noteID int64, content string) error
	DeleteNote(ctx context.Context, recordID, noteID int64) error

	// SetSubmitterBanned creates the submitter if it is not known yet.
	SetSubmitterBanned(ctx context.Context, id int64, banned bool) error
}

// Tx is a unit of work. Exactly one of Commit or Rollback ends it; Rollback
// after Commit is a no-op so callers can defer it.
type Tx interface {
	Reader
	Writer
	Commit() error
	Rollback() error
}

// Store is the durable backend.
type Store interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
	Close() error
}
