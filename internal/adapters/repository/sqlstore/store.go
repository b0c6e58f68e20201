// Package sqlstore implements repository.Store on database/sql with SQLite
// (modernc.org/sqlite) or PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/adapters/repository/sqlstore/migrations"
	"github.com/okian/demonlist/internal/domain/model"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q querier
	d Dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.d.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.d.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
}

// Store persists demonlist state in a SQL database.
type Store struct {
	reader
	db *sql.DB
}

var _ repository.Store = (*Store)(nil)

// Open connects to the database and applies the embedded migrations. For
// SQLite dsn is a file path.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}
	source := dsn
	switch dialect {
	case SQLite:
		source = filepath.Clean(dsn) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	case Postgres:
	default:
		return nil, ErrUnknownDialect
	}
	db, err := sql.Open(dialect.driverName(), source)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dialect, err)
	}
	if dialect == SQLite {
		// one writer at a time; transactions never upgrade a shared lock
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}
	if err := applyMigrations(ctx, db, dialect, migrations.FS, string(dialect)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{reader: reader{conn{q: db, d: dialect}}, db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (repository.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	c := conn{q: tx, d: s.d}
	return &sqlTx{reader: reader{c}, writer: writer{c}, tx: tx}, nil
}

type sqlTx struct {
	reader
	writer
	tx   *sql.Tx
	done bool
}

func (t *sqlTx) Commit() error {
	if t.done {
		return repository.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return repository.ErrNotFound
	case isConstraintViolation(err):
		return fmt.Errorf("%s: %w: %v", op, repository.ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func mustAffect(op string, res sql.Result, err error) error {
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

const demonColumns = "id, position, name, requirement, publisher, verifier, video"

func scanDemon(row scanner) (model.Demon, error) {
	var d model.Demon
	err := row.Scan(&d.ID, &d.Position, &d.Name, &d.Requirement, &d.Publisher, &d.Verifier, &d.Video)
	return d, err
}

const playerColumns = "id, name, banned, created_at"

func scanPlayer(row scanner) (model.Player, error) {
	var (
		p       model.Player
		created int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Banned, &created); err != nil {
		return model.Player{}, err
	}
	p.CreatedAt = fromMillis(created)
	return p, nil
}

const recordColumns = "id, demon_id, player_id, progress, status, submitter_id, video, created_at"

func scanRecord(row scanner) (model.Record, error) {
	var (
		r       model.Record
		status  string
		created int64
	)
	if err := row.Scan(&r.ID, &r.DemonID, &r.PlayerID, &r.Progress, &status, &r.SubmitterID, &r.Video, &created); err != nil {
		return model.Record{}, err
	}
	st, err := model.ParseStatus(status)
	if err != nil {
		return model.Record{}, err
	}
	r.Status = st
	r.CreatedAt = fromMillis(created)
	return r, nil
}

type reader struct {
	conn
}

func (r reader) Demon(ctx context.Context, id int64) (model.Demon, error) {
	d, err := scanDemon(r.queryRow(ctx, "SELECT "+demonColumns+" FROM demons WHERE id = ?", id))
	if err != nil {
		return model.Demon{}, classify("get demon", err)
	}
	return d, nil
}

func (r reader) Demons(ctx context.Context) ([]model.Demon, error) {
	rows, err := r.query(ctx, "SELECT "+demonColumns+" FROM demons ORDER BY position")
	if err != nil {
		return nil, classify("list demons", err)
	}
	defer rows.Close()
	out := make([]model.Demon, 0)
	for rows.Next() {
		d, err := scanDemon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan demon: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r reader) CountDemons(ctx context.Context) (int, error) {
	var n int
	if err := r.queryRow(ctx, "SELECT COUNT(*) FROM demons").Scan(&n); err != nil {
		return 0, classify("count demons", err)
	}
	return n, nil
}

func (r reader) Player(ctx context.Context, id int64) (model.Player, error) {
	p, err := scanPlayer(r.queryRow(ctx, "SELECT "+playerColumns+" FROM players WHERE id = ?", id))
	if err != nil {
		return model.Player{}, classify("get player", err)
	}
	return p, nil
}

func (r reader) PlayerByName(ctx context.Context, name string) (model.Player, error) {
	p, err := scanPlayer(r.queryRow(ctx, "SELECT "+playerColumns+" FROM players WHERE lower(name) = lower(?)", name))
	if err != nil {
		return model.Player{}, classify("get player by name", err)
	}
	return p, nil
}

func (r reader) Players(ctx context.Context) ([]model.Player, error) {
	rows, err := r.query(ctx, "SELECT "+playerColumns+" FROM players ORDER BY id")
	if err != nil {
		return nil, classify("list players", err)
	}
	defer rows.Close()
	out := make([]model.Player, 0)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r reader) Record(ctx context.Context, id int64) (model.Record, error) {
	rec, err := scanRecord(r.queryRow(ctx, "SELECT "+recordColumns+" FROM records WHERE id = ?", id))
	if err != nil {
		return model.Record{}, classify("get record", err)
	}
	rows, err := r.query(ctx,
		"SELECT id, record_id, author_id, content, created_at FROM record_notes WHERE record_id = ? ORDER BY id", id)
	if err != nil {
		return model.Record{}, classify("list notes", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			n       model.Note
			created int64
		)
		if err := rows.Scan(&n.ID, &n.RecordID, &n.AuthorID, &n.Content, &created); err != nil {
			return model.Record{}, fmt.Errorf("scan note: %w", err)
		}
		n.CreatedAt = fromMillis(created)
		rec.Notes = append(rec.Notes, n)
	}
	return rec, rows.Err()
}

func (r reader) Records(ctx context.Context, f repository.RecordFilter) ([]model.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.PlayerID != 0 {
		where = append(where, "player_id = ?")
		args = append(args, f.PlayerID)
	}
	if f.DemonID != 0 {
		where = append(where, "demon_id = ?")
		args = append(args, f.DemonID)
	}
	if f.Status != 0 {
		where = append(where, "status = ?")
		args = append(args, f.Status.String())
	}
	q := "SELECT " + recordColumns + " FROM records"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"

	rows, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, classify("list records", err)
	}
	defer rows.Close()
	out := make([]model.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r reader) Submitter(ctx context.Context, id int64) (model.Submitter, error) {
	var sb model.Submitter
	err := r.queryRow(ctx, "SELECT id, banned FROM submitters WHERE id = ?", id).Scan(&sb.ID, &sb.Banned)
	if err != nil {
		return model.Submitter{}, classify("get submitter", err)
	}
	return sb, nil
}

func (r reader) Submitters(ctx context.Context) ([]model.Submitter, error) {
	rows, err := r.query(ctx, "SELECT id, banned FROM submitters ORDER BY id")
	if err != nil {
		return nil, classify("list submitters", err)
	}
	defer rows.Close()
	out := make([]model.Submitter, 0)
	for rows.Next() {
		var sb model.Submitter
		if err := rows.Scan(&sb.ID, &sb.Banned); err != nil {
			return nil, fmt.Errorf("scan submitter: %w", err)
		}
		out = append(out, sb)
	}
	return out, rows.Err()
}

type writer struct {
	conn
}

func (w writer) InsertDemon(ctx context.Context, d model.Demon) (model.Demon, error) {
	err := w.queryRow(ctx,
		`INSERT INTO demons (position, name, requirement, publisher, verifier, video)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		d.Position, d.Name, d.Requirement, d.Publisher, d.Verifier, d.Video,
	).Scan(&d.ID)
	if err != nil {
		return model.Demon{}, classify("insert demon", err)
	}
	return d, nil
}

func (w writer) UpdateDemon(ctx context.Context, d model.Demon) error {
	res, err := w.exec(ctx,
		`UPDATE demons SET name = ?, requirement = ?, publisher = ?, verifier = ?, video = ? WHERE id = ?`,
		d.Name, d.Requirement, d.Publisher, d.Verifier, d.Video, d.ID)
	return mustAffect("update demon", res, err)
}

func (w writer) SetDemonPosition(ctx context.Context, id int64, position int) error {
	res, err := w.exec(ctx, "UPDATE demons SET position = ? WHERE id = ?", position, id)
	return mustAffect("set demon position", res, err)
}

// ShiftPositions moves the range through negative space first so no
// statement ever holds two rows at one position.
func (w writer) ShiftPositions(ctx context.Context, from, to, delta int) error {
	if from > to || delta == 0 {
		return nil
	}
	if _, err := w.exec(ctx,
		"UPDATE demons SET position = -(position + ?) WHERE position BETWEEN ? AND ?", delta, from, to); err != nil {
		return classify("shift positions", err)
	}
	if _, err := w.exec(ctx, "UPDATE demons SET position = -position WHERE position < 0"); err != nil {
		return classify("settle positions", err)
	}
	return nil
}

func (w writer) DeleteDemon(ctx context.Context, id int64) error {
	if _, err := w.exec(ctx,
		"DELETE FROM record_notes WHERE record_id IN (SELECT id FROM records WHERE demon_id = ?)", id); err != nil {
		return classify("delete demon notes", err)
	}
	if _, err := w.exec(ctx, "DELETE FROM records WHERE demon_id = ?", id); err != nil {
		return classify("delete demon records", err)
	}
	res, err := w.exec(ctx, "DELETE FROM demons WHERE id = ?", id)
	return mustAffect("delete demon", res, err)
}

func (w writer) InsertPlayer(ctx context.Context, p model.Player) (model.Player, error) {
	err := w.queryRow(ctx,
		"INSERT INTO players (name, banned, created_at) VALUES (?, ?, ?) RETURNING id",
		p.Name, p.Banned, toMillis(p.CreatedAt),
	).Scan(&p.ID)
	if err != nil {
		return model.Player{}, classify("insert player", err)
	}
	return p, nil
}

func (w writer) SetPlayerBanned(ctx context.Context, id int64, banned bool) error {
	res, err := w.exec(ctx, "UPDATE players SET banned = ? WHERE id = ?", banned, id)
	return mustAffect("set player banned", res, err)
}

func (w writer) InsertRecord(ctx context.Context, r model.Record) (model.Record, error) {
	err := w.queryRow(ctx,
		`INSERT INTO records (demon_id, player_id, progress, status, submitter_id, video, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		r.DemonID, r.PlayerID, r.Progress, r.Status.String(), r.SubmitterID, r.Video, toMillis(r.CreatedAt),
	).Scan(&r.ID)
	if err != nil {
		return model.Record{}, classify("insert record", err)
	}
	if r.SubmitterID != 0 {
		if _, err := w.exec(ctx,
			"INSERT INTO submitters (id, banned) VALUES (?, ?) ON CONFLICT (id) DO NOTHING", r.SubmitterID, false); err != nil {
			return model.Record{}, classify("register submitter", err)
		}
	}
	r.Notes = nil
	return r, nil
}

func (w writer) SetRecordStatus(ctx context.Context, id int64, status model.Status) error {
	res, err := w.exec(ctx, "UPDATE records SET status = ? WHERE id = ?", status.String(), id)
	return mustAffect("set record status", res, err)
}

func (w writer) DeleteRecord(ctx context.Context, id int64) error {
	if _, err := w.exec(ctx, "DELETE FROM record_notes WHERE record_id = ?", id); err != nil {
		return classify("delete record notes", err)
	}
	res, err := w.exec(ctx, "DELETE FROM records WHERE id = ?", id)
	return mustAffect("delete record", res, err)
}

func (w writer) InsertNote(ctx context.Context, n model.Note) (model.Note, error) {
	err := w.queryRow(ctx,
		"INSERT INTO record_notes (record_id, author_id, content, created_at) VALUES (?, ?, ?, ?) RETURNING id",
		n.RecordID, n.AuthorID, n.Content, toMillis(n.CreatedAt),
	).Scan(&n.ID)
	if err != nil {
		return model.Note{}, classify("insert note", err)
	}
	return n, nil
}

func (w writer) UpdateNote(ctx context.Context, recordID, noteID int64, content string) error {
	res, err := w.exec(ctx, "UPDATE record_notes SET content = ? WHERE id = ? AND record_id = ?", content, noteID, recordID)
	return mustAffect("update note", res, err)
}

func (w writer) DeleteNote(ctx context.Context, recordID, noteID int64) error {
	res, err := w.exec(ctx, "DELETE FROM record_notes WHERE id = ? AND record_id = ?", noteID, recordID)
	return mustAffect("delete note", res, err)
}

func (w writer) SetSubmitterBanned(ctx context.Context, id int64, banned bool) error {
	_, err := w.exec(ctx,
		"INSERT INTO submitters (id, banned) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET banned = excluded.banned",
		id, banned)
	return classify("set submitter banned", err)
}
