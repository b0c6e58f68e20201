// Package repositorytest holds a behaviour suite every repository.Store
// implementation must pass.
package repositorytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/domain/model"
)

// Factory opens a fresh, empty store.
type Factory func(t *testing.T) repository.Store

// Run executes the suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()
	t.Run("DemonLifecycle", func(t *testing.T) { testDemonLifecycle(t, open(t)) })
	t.Run("UniquePosition", func(t *testing.T) { testUniquePosition(t, open(t)) })
	t.Run("ShiftPositions", func(t *testing.T) { testShiftPositions(t, open(t)) })
	t.Run("RollbackDiscards", func(t *testing.T) { testRollbackDiscards(t, open(t)) })
	t.Run("Players", func(t *testing.T) { testPlayers(t, open(t)) })
	t.Run("RecordsAndNotes", func(t *testing.T) { testRecordsAndNotes(t, open(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, open(t)) })
	t.Run("DeleteRecordAndEditNotes", func(t *testing.T) { testDeleteRecordAndEditNotes(t, open(t)) })
	t.Run("Submitters", func(t *testing.T) { testSubmitters(t, open(t)) })
}

func begin(t *testing.T, s repository.Store) repository.Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx
}

func seedDemons(t *testing.T, s repository.Store, names ...string) []model.Demon {
	t.Helper()
	ctx := context.Background()
	tx := begin(t, s)
	out := make([]model.Demon, 0, len(names))
	for i, n := range names {
		d, err := tx.InsertDemon(ctx, model.Demon{Name: n, Position: i + 1, Requirement: 50, Publisher: "pub", Verifier: "ver"})
		require.NoError(t, err)
		out = append(out, d)
	}
	require.NoError(t, tx.Commit())
	return out
}

func names(ds []model.Demon) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func testDemonLifecycle(t *testing.T, s repository.Store) {
	ctx := context.Background()
	seeded := seedDemons(t, s, "A", "B")
	require.NotZero(t, seeded[0].ID)
	require.NotEqual(t, seeded[0].ID, seeded[1].ID)

	got, err := s.Demon(ctx, seeded[1].ID)
	require.NoError(t, err)
	require.Equal(t, "B", got.Name)
	require.Equal(t, 2, got.Position)

	n, err := s.CountDemons(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	tx := begin(t, s)
	got.Name = "B2"
	got.Position = 99
	got.Video = "https://example.com/v"
	require.NoError(t, tx.UpdateDemon(ctx, got))
	require.NoError(t, tx.Commit())

	got, err = s.Demon(ctx, seeded[1].ID)
	require.NoError(t, err)
	require.Equal(t, "B2", got.Name)
	require.Equal(t, 2, got.Position, "update must not touch the position")
	require.Equal(t, "https://example.com/v", got.Video)

	_, err = s.Demon(ctx, 12345)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func testUniquePosition(t *testing.T, s repository.Store) {
	ctx := context.Background()
	seedDemons(t, s, "A")

	tx := begin(t, s)
	_, err := tx.InsertDemon(ctx, model.Demon{Name: "dup", Position: 1})
	require.ErrorIs(t, err, repository.ErrConflict)
}

func testShiftPositions(t *testing.T, s repository.Store) {
	ctx := context.Background()
	ds := seedDemons(t, s, "A", "B", "C")

	// move C to the top: park, shift, place
	tx := begin(t, s)
	require.NoError(t, tx.SetDemonPosition(ctx, ds[2].ID, 0))
	require.NoError(t, tx.ShiftPositions(ctx, 1, 2, 1))
	require.NoError(t, tx.SetDemonPosition(ctx, ds[2].ID, 1))
	require.NoError(t, tx.Commit())

	list, err := s.Demons(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"C", "A", "B"}, names(list))
	for i, d := range list {
		require.Equal(t, i+1, d.Position)
	}

	tx = begin(t, s)
	require.NoError(t, tx.DeleteDemon(ctx, ds[2].ID))
	require.NoError(t, tx.ShiftPositions(ctx, 2, 3, -1))
	require.NoError(t, tx.Commit())

	list, err = s.Demons(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, names(list))
	require.Equal(t, 1, list[0].Position)
	require.Equal(t, 2, list[1].Position)
}

func testRollbackDiscards(t *testing.T, s repository.Store) {
	ctx := context.Background()
	seedDemons(t, s, "A", "B")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.ShiftPositions(ctx, 1, 2, 1))
	_, err = tx.InsertDemon(ctx, model.Demon{Name: "Z", Position: 1})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "second rollback is a no-op")

	list, err := s.Demons(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, names(list))
}

func testPlayers(t *testing.T, s repository.Store) {
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	tx := begin(t, s)
	p1, err := tx.InsertPlayer(ctx, model.Player{Name: "Zoink", CreatedAt: now})
	require.NoError(t, err)
	p2, err := tx.InsertPlayer(ctx, model.Player{Name: "Cursed", CreatedAt: now})
	require.NoError(t, err)
	require.Less(t, p1.ID, p2.ID)
	_, err = tx.InsertPlayer(ctx, model.Player{Name: "zoink", CreatedAt: now})
	require.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, tx.Rollback())

	tx = begin(t, s)
	p1, err = tx.InsertPlayer(ctx, model.Player{Name: "Zoink", CreatedAt: now})
	require.NoError(t, err)
	p2, err = tx.InsertPlayer(ctx, model.Player{Name: "Cursed", CreatedAt: now})
	require.NoError(t, err)
	require.NoError(t, tx.SetPlayerBanned(ctx, p2.ID, true))
	require.NoError(t, tx.Commit())

	got, err := s.PlayerByName(ctx, "ZOINK")
	require.NoError(t, err)
	require.Equal(t, p1.ID, got.ID)
	require.True(t, got.CreatedAt.Equal(now))

	all, err := s.Players(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, p1.ID, all[0].ID)
	require.True(t, all[1].Banned)

	_, err = s.Player(ctx, 999)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func testRecordsAndNotes(t *testing.T, s repository.Store) {
	ctx := context.Background()
	ds := seedDemons(t, s, "A", "B")
	now := time.Date(2026, time.March, 2, 8, 30, 0, 0, time.UTC)

	tx := begin(t, s)
	p, err := tx.InsertPlayer(ctx, model.Player{Name: "P", CreatedAt: now})
	require.NoError(t, err)
	r1, err := tx.InsertRecord(ctx, model.Record{DemonID: ds[0].ID, PlayerID: p.ID, Progress: 80, Status: model.StatusSubmitted, SubmitterID: 7, CreatedAt: now})
	require.NoError(t, err)
	r2, err := tx.InsertRecord(ctx, model.Record{DemonID: ds[1].ID, PlayerID: p.ID, Progress: 100, Status: model.StatusSubmitted, SubmitterID: 7, Video: "https://example.com/r", CreatedAt: now})
	require.NoError(t, err)
	require.NoError(t, tx.SetRecordStatus(ctx, r2.ID, model.StatusApproved))
	_, err = tx.InsertNote(ctx, model.Note{RecordID: r1.ID, AuthorID: 3, Content: "first", CreatedAt: now})
	require.NoError(t, err)
	_, err = tx.InsertNote(ctx, model.Note{RecordID: r1.ID, AuthorID: 4, Content: "second", CreatedAt: now.Add(time.Minute)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	_, err = tx.InsertRecord(ctx, model.Record{DemonID: 4040, PlayerID: p.ID, Progress: 1, Status: model.StatusSubmitted, CreatedAt: now})
	require.ErrorIs(t, err, repository.ErrConflict, "dangling demon reference")
	require.NoError(t, tx.Rollback())

	got, err := s.Record(ctx, r1.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSubmitted, got.Status)
	require.Len(t, got.Notes, 2)
	require.Equal(t, "first", got.Notes[0].Content)
	require.Equal(t, "second", got.Notes[1].Content)

	approved, err := s.Records(ctx, repository.RecordFilter{Status: model.StatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	require.Equal(t, r2.ID, approved[0].ID)
	require.Equal(t, "https://example.com/r", approved[0].Video)

	byDemon, err := s.Records(ctx, repository.RecordFilter{PlayerID: p.ID, DemonID: ds[0].ID})
	require.NoError(t, err)
	require.Len(t, byDemon, 1)

	_, err = s.Record(ctx, 999)
	require.True(t, errors.Is(err, repository.ErrNotFound))
}

func testDeleteCascades(t *testing.T, s repository.Store) {
	ctx := context.Background()
	ds := seedDemons(t, s, "A")
	now := time.Now().UTC()

	tx := begin(t, s)
	p, err := tx.InsertPlayer(ctx, model.Player{Name: "P", CreatedAt: now})
	require.NoError(t, err)
	r, err := tx.InsertRecord(ctx, model.Record{DemonID: ds[0].ID, PlayerID: p.ID, Progress: 100, Status: model.StatusSubmitted, CreatedAt: now})
	require.NoError(t, err)
	_, err = tx.InsertNote(ctx, model.Note{RecordID: r.ID, AuthorID: 1, Content: "n", CreatedAt: now})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	require.NoError(t, tx.DeleteDemon(ctx, ds[0].ID))
	require.ErrorIs(t, tx.DeleteDemon(ctx, ds[0].ID), repository.ErrNotFound)
	require.NoError(t, tx.Commit())

	_, err = s.Record(ctx, r.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	left, err := s.Records(ctx, repository.RecordFilter{})
	require.NoError(t, err)
	require.Empty(t, left)
}

func testDeleteRecordAndEditNotes(t *testing.T, s repository.Store) {
	ctx := context.Background()
	ds := seedDemons(t, s, "A")
	now := time.Date(2026, time.April, 4, 10, 0, 0, 0, time.UTC)

	tx := begin(t, s)
	p, err := tx.InsertPlayer(ctx, model.Player{Name: "P", CreatedAt: now})
	require.NoError(t, err)
	keep, err := tx.InsertRecord(ctx, model.Record{DemonID: ds[0].ID, PlayerID: p.ID, Progress: 70, Status: model.StatusSubmitted, CreatedAt: now})
	require.NoError(t, err)
	drop, err := tx.InsertRecord(ctx, model.Record{DemonID: ds[0].ID, PlayerID: p.ID, Progress: 90, Status: model.StatusSubmitted, CreatedAt: now})
	require.NoError(t, err)
	n1, err := tx.InsertNote(ctx, model.Note{RecordID: keep.ID, AuthorID: 1, Content: "first", CreatedAt: now})
	require.NoError(t, err)
	n2, err := tx.InsertNote(ctx, model.Note{RecordID: keep.ID, AuthorID: 1, Content: "second", CreatedAt: now})
	require.NoError(t, err)
	_, err = tx.InsertNote(ctx, model.Note{RecordID: drop.ID, AuthorID: 1, Content: "gone", CreatedAt: now})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	require.NoError(t, tx.UpdateNote(ctx, keep.ID, n1.ID, "edited"))
	require.ErrorIs(t, tx.UpdateNote(ctx, drop.ID, n1.ID, "wrong record"), repository.ErrNotFound)
	require.NoError(t, tx.DeleteNote(ctx, keep.ID, n2.ID))
	require.ErrorIs(t, tx.DeleteNote(ctx, keep.ID, n2.ID), repository.ErrNotFound)
	require.NoError(t, tx.DeleteRecord(ctx, drop.ID))
	require.ErrorIs(t, tx.DeleteRecord(ctx, drop.ID), repository.ErrNotFound)
	require.NoError(t, tx.Commit())

	got, err := s.Record(ctx, keep.ID)
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	require.Equal(t, "edited", got.Notes[0].Content)

	_, err = s.Record(ctx, drop.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	left, err := s.Records(ctx, repository.RecordFilter{PlayerID: p.ID})
	require.NoError(t, err)
	require.Len(t, left, 1)
}

func testSubmitters(t *testing.T, s repository.Store) {
	ctx := context.Background()
	ds := seedDemons(t, s, "A")
	now := time.Now().UTC()

	tx := begin(t, s)
	p, err := tx.InsertPlayer(ctx, model.Player{Name: "P", CreatedAt: now})
	require.NoError(t, err)
	_, err = tx.InsertRecord(ctx, model.Record{DemonID: ds[0].ID, PlayerID: p.ID, Progress: 60, Status: model.StatusSubmitted, SubmitterID: 9, CreatedAt: now})
	require.NoError(t, err)
	_, err = tx.InsertRecord(ctx, model.Record{DemonID: ds[0].ID, PlayerID: p.ID, Progress: 70, Status: model.StatusSubmitted, SubmitterID: 9, CreatedAt: now})
	require.NoError(t, err)
	_, err = tx.InsertRecord(ctx, model.Record{DemonID: ds[0].ID, PlayerID: p.ID, Progress: 80, Status: model.StatusSubmitted, CreatedAt: now})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	got, err := s.Submitter(ctx, 9)
	require.NoError(t, err)
	require.False(t, got.Banned)
	_, err = s.Submitter(ctx, 0)
	require.ErrorIs(t, err, repository.ErrNotFound, "anonymous submissions register nobody")

	tx = begin(t, s)
	require.NoError(t, tx.SetSubmitterBanned(ctx, 9, true))
	require.NoError(t, tx.SetSubmitterBanned(ctx, 4, true))
	require.NoError(t, tx.Commit())

	all, err := s.Submitters(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Submitter{{ID: 4, Banned: true}, {ID: 9, Banned: true}}, all)

	tx = begin(t, s)
	require.NoError(t, tx.SetSubmitterBanned(ctx, 9, false))
	require.NoError(t, tx.Commit())
	got, err = s.Submitter(ctx, 9)
	require.NoError(t, err)
	require.False(t, got.Banned)
}
