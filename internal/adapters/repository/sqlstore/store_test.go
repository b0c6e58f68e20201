package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/adapters/repository/repositorytest"
	"github.com/okian/demonlist/internal/domain/model"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "demonlist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) repository.Store { return openTempStore(t) })
}

func TestOpenValidatesInput(t *testing.T) {
	_, err := Open(context.Background(), SQLite, "  ")
	require.ErrorIs(t, err, ErrEmptyDSN)

	_, err = Open(context.Background(), Dialect("oracle"), "x")
	require.ErrorIs(t, err, ErrUnknownDialect)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demonlist.db")
	ctx := context.Background()

	s, err := Open(ctx, SQLite, path)
	require.NoError(t, err)
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.InsertDemon(ctx, model.Demon{Name: "Bloodbath", Position: 1, Requirement: 60})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, s.Close())

	s, err = Open(ctx, SQLite, path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountDemons(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var applied int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+migrationTable).Scan(&applied))
	require.Equal(t, 2, applied)
}

func TestShiftKeepsUniqueConstraint(t *testing.T) {
	ctx := context.Background()
	s := openTempStore(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for i, name := range []string{"A", "B", "C", "D"} {
		_, err := tx.InsertDemon(ctx, model.Demon{Name: name, Position: i + 1, Requirement: 50})
		require.NoError(t, err)
	}
	// a naive single UPDATE position = position + 1 would collide here
	require.NoError(t, tx.ShiftPositions(ctx, 1, 4, 1))
	_, err = tx.InsertDemon(ctx, model.Demon{Name: "Z", Position: 1, Requirement: 50})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	list, err := s.Demons(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	for i, d := range list {
		require.Equal(t, i+1, d.Position)
	}
	require.Equal(t, "Z", list[0].Name)
}

func TestRebind(t *testing.T) {
	require.Equal(t, "SELECT 1 WHERE a = ? AND b = ?", SQLite.rebind("SELECT 1 WHERE a = ? AND b = ?"))
	require.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", Postgres.rebind("SELECT 1 WHERE a = ? AND b = ?"))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("PostgreSQL")
	require.NoError(t, err)
	require.Equal(t, Postgres, d)

	d, err = ParseDialect("sqlite3")
	require.NoError(t, err)
	require.Equal(t, SQLite, d)

	_, err = ParseDialect("mysql")
	require.ErrorIs(t, err, ErrUnknownDialect)
}

func TestExtractUpMigration(t *testing.T) {
	up := extractUpMigration("-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n")
	require.Contains(t, up, "CREATE TABLE a")
	require.NotContains(t, up, "DROP TABLE")
	require.Equal(t, "SELECT 1", extractUpMigration("SELECT 1"))
}
