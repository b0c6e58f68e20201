package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/okian/demonlist/internal/domain/model"
)

type memState struct {
	demons     map[int64]model.Demon
	positions  map[int]int64
	players    map[int64]model.Player
	records    map[int64]model.Record
	notes      map[int64][]model.Note
	submitters map[int64]model.Submitter
	nextDemon  int64
	nextPlayer int64
	nextRecord int64
	nextNote   int64
}

func newMemState() *memState {
	return &memState{
		demons:     make(map[int64]model.Demon),
		positions:  make(map[int]int64),
		players:    make(map[int64]model.Player),
		records:    make(map[int64]model.Record),
		notes:      make(map[int64][]model.Note),
		submitters: make(map[int64]model.Submitter),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		demons:     make(map[int64]model.Demon, len(s.demons)),
		positions:  make(map[int]int64, len(s.positions)),
		players:    make(map[int64]model.Player, len(s.players)),
		records:    make(map[int64]model.Record, len(s.records)),
		notes:      make(map[int64][]model.Note, len(s.notes)),
		submitters: make(map[int64]model.Submitter, len(s.submitters)),
		nextDemon:  s.nextDemon,
		nextPlayer: s.nextPlayer,
		nextRecord: s.nextRecord,
		nextNote:   s.nextNote,
	}
	for k, v := range s.demons {
		c.demons[k] = v
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	for k, v := range s.players {
		c.players[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	for k, v := range s.notes {
		c.notes[k] = append([]model.Note(nil), v...)
	}
	for k, v := range s.submitters {
		c.submitters[k] = v
	}
	return c
}

// MemoryStore keeps all rows in process memory. A transaction works on a
// private copy which replaces the shared state on commit. Transactions are
// serialized.
type MemoryStore struct {
	writeMu sync.Mutex

	mu    sync.RWMutex
	state *memState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (m *MemoryStore) snapshot() *memState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Begin starts a transaction, waiting for any other one to finish.
func (m *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.writeMu.Lock()
	return &memTx{store: m, state: m.snapshot().clone()}, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Demon(ctx context.Context, id int64) (model.Demon, error) {
	return m.snapshot().demon(ctx, id)
}

func (m *MemoryStore) Demons(ctx context.Context) ([]model.Demon, error) {
	return m.snapshot().demonList(ctx)
}

func (m *MemoryStore) CountDemons(ctx context.Context) (int, error) {
	return m.snapshot().countDemons(ctx)
}

func (m *MemoryStore) Player(ctx context.Context, id int64) (model.Player, error) {
	return m.snapshot().player(ctx, id)
}

func (m *MemoryStore) PlayerByName(ctx context.Context, name string) (model.Player, error) {
	return m.snapshot().playerByName(ctx, name)
}

func (m *MemoryStore) Players(ctx context.Context) ([]model.Player, error) {
	return m.snapshot().playerList(ctx)
}

func (m *MemoryStore) Record(ctx context.Context, id int64) (model.Record, error) {
	return m.snapshot().record(ctx, id)
}

func (m *MemoryStore) Records(ctx context.Context, f RecordFilter) ([]model.Record, error) {
	return m.snapshot().recordList(ctx, f)
}

func (m *MemoryStore) Submitter(ctx context.Context, id int64) (model.Submitter, error) {
	return m.snapshot().submitter(ctx, id)
}

func (m *MemoryStore) Submitters(ctx context.Context) ([]model.Submitter, error) {
	return m.snapshot().submitterList(ctx)
}

type memTx struct {
	store *MemoryStore
	state *memState
	done  bool
}

func (t *memTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.store.mu.Lock()
	t.store.state = t.state
	t.store.mu.Unlock()
	t.store.writeMu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.writeMu.Unlock()
	return nil
}

func (t *memTx) live(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	return ctx.Err()
}

func (t *memTx) Demon(ctx context.Context, id int64) (model.Demon, error) {
	return t.state.demon(ctx, id)
}

func (t *memTx) Demons(ctx context.Context) ([]model.Demon, error) {
	return t.state.demonList(ctx)
}

func (t *memTx) CountDemons(ctx context.Context) (int, error) {
	return t.state.countDemons(ctx)
}

func (t *memTx) Player(ctx context.Context, id int64) (model.Player, error) {
	return t.state.player(ctx, id)
}

func (t *memTx) PlayerByName(ctx context.Context, name string) (model.Player, error) {
	return t.state.playerByName(ctx, name)
}

func (t *memTx) Players(ctx context.Context) ([]model.Player, error) {
	return t.state.playerList(ctx)
}

func (t *memTx) Record(ctx context.Context, id int64) (model.Record, error) {
	return t.state.record(ctx, id)
}

func (t *memTx) Records(ctx context.Context, f RecordFilter) ([]model.Record, error) {
	return t.state.recordList(ctx, f)
}

func (t *memTx) Submitter(ctx context.Context, id int64) (model.Submitter, error) {
	return t.state.submitter(ctx, id)
}

func (t *memTx) Submitters(ctx context.Context) ([]model.Submitter, error) {
	return t.state.submitterList(ctx)
}

func (t *memTx) InsertDemon(ctx context.Context, d model.Demon) (model.Demon, error) {
	if err := t.live(ctx); err != nil {
		return model.Demon{}, err
	}
	if _, taken := t.state.positions[d.Position]; taken {
		return model.Demon{}, fmt.Errorf("insert demon at %d: %w", d.Position, ErrConflict)
	}
	t.state.nextDemon++
	d.ID = t.state.nextDemon
	t.state.demons[d.ID] = d
	t.state.positions[d.Position] = d.ID
	return d, nil
}

func (t *memTx) UpdateDemon(ctx context.Context, d model.Demon) error {
	if err := t.live(ctx); err != nil {
		return err
	}
	cur, ok := t.state.demons[d.ID]
	if !ok {
		return ErrNotFound
	}
	d.Position = cur.Position
	t.state.demons[d.ID] = d
	return nil
}

func (t *memTx) SetDemonPosition(ctx context.Context, id int64, position int) error {
	if err := t.live(ctx); err != nil {
		return err
	}
	d, ok := t.state.demons[id]
	if !ok {
		return ErrNotFound
	}
	if d.Position == position {
		return nil
	}
	if _, taken := t.state.positions[position]; taken {
		return fmt.Errorf("move demon %d to %d: %w", id, position, ErrConflict)
	}
	delete(t.state.positions, d.Position)
	d.Position = position
	t.state.demons[id] = d
	t.state.positions[position] = id
	return nil
}

func (t *memTx) ShiftPositions(ctx context.Context, from, to, delta int) error {
	if err := t.live(ctx); err != nil {
		return err
	}
	if from > to || delta == 0 {
		return nil
	}
	moved := make(map[int]int64)
	for pos := from; pos <= to; pos++ {
		if id, ok := t.state.positions[pos]; ok {
			moved[pos+delta] = id
			delete(t.state.positions, pos)
		}
	}
	for pos := range moved {
		if _, taken := t.state.positions[pos]; taken {
			return fmt.Errorf("shift [%d,%d] by %d: %w", from, to, delta, ErrConflict)
		}
	}
	for pos, id := range moved {
		d := t.state.demons[id]
		d.Position = pos
		t.state.demons[id] = d
		t.state.positions[pos] = id
	}
	return nil
}

func (t *memTx) DeleteDemon(ctx context.Context, id int64) error {
	if err := t.live(ctx); err != nil {
		return err
	}
	d, ok := t.state.demons[id]
	if !ok {
		return ErrNotFound
	}
	delete(t.state.demons, id)
	delete(t.state.positions, d.Position)
	for rid, r := range t.state.records {
		if r.DemonID == id {
			delete(t.state.records, rid)
			delete(t.state.notes, rid)
		}
	}
	return nil
}

func (t *memTx) InsertPlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if err := t.live(ctx); err != nil {
		return model.Player{}, err
	}
	if _, err := t.state.playerByName(ctx, p.Name); err == nil {
		return model.Player{}, fmt.Errorf("insert player %q: %w", p.Name, ErrConflict)
	}
	t.state.nextPlayer++
	p.ID = t.state.nextPlayer
	t.state.players[p.ID] = p
	return p, nil
}

func (t *memTx) SetPlayerBanned(ctx context.Context, id int64, banned bool) error {
	if err := t.live(ctx); err != nil {
		return err
	}
	p, ok := t.state.players[id]
	if !ok {
		return ErrNotFound
	}
	p.Banned = banned
	t.state.players[id] = p
	return nil
}

func (t *memTx) InsertRecord(ctx context.Context, r model.Record) (model.Record, error) {
	if err := t.live(ctx); err != nil {
		return model.Record{}, err
	}
	if _, ok := t.state.demons[r.DemonID]; !ok {
		return model.Record{}, fmt.Errorf("record demon %d: %w", r.DemonID, ErrConflict)
	}
	if _, ok := t.state.players[r.PlayerID]; !ok {
		return model.Record{}, fmt.Errorf("record player %d: %w", r.PlayerID, ErrConflict)
	}
	t.state.nextRecord++
	r.ID = t.state.nextRecord
	r.Notes = nil
	t.state.records[r.ID] = r
	if _, known := t.state.submitters[r.SubmitterID]; r.SubmitterID != 0 && !known {
		t.state.submitters[r.SubmitterID] = model.Submitter{ID: r.SubmitterID}
	}
	return r, nil
}

func (t *memTx) SetRecordStatus(ctx context.Context, id int64, status model.Status) error {
	if err := t.live(ctx); err != nil {
		return err
	}
	r, ok := t.state.records[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	t.state.records[id] = r
	return nil
}

func (t *memTx) DeleteRecord(ctx context.Context, id int64) error {
	if err := t.live(ctx); err != nil {
		return err
	}
	if _, ok := t.state.records[id]; !ok {
		return ErrNotFound
	}
	delete(t.state.records, id)
	delete(t.state.notes, id)
	return nil
}

func (t *memTx) InsertNote(ctx context.Context, n model.Note) (model.Note, error) {
	if err := t.live(ctx); err != nil {
		return model.Note{}, err
	}
	if _, ok := t.state.records[n.RecordID]; !ok {
		return model.Note{}, fmt.Errorf("note record %d: %w", n.RecordID, ErrConflict)
	}
	t.state.nextNote++
	n.ID = t.state.nextNote
	t.state.notes[n.RecordID] = append(t.state.notes[n.RecordID], n)
	return n, nil
}

func (t *memTx) noteIndex(ctx context.Context, recordID, noteID int64) (int, error) {
	if err := t.live(ctx); err != nil {
		return 0, err
	}
	for i, n := range t.state.notes[recordID] {
		if n.ID == noteID {
			return i, nil
		}
	}
	return 0, ErrNotFound
}

func (t *memTx) UpdateNote(ctx context.Context, recordID, noteID int64, content string) error {
	i, err := t.noteIndex(ctx, recordID, noteID)
	if err != nil {
		return err
	}
	t.state.notes[recordID][i].Content = content
	return nil
}

func (t *memTx) DeleteNote(ctx context.Context, recordID, noteID int64) error {
	i, err := t.noteIndex(ctx, recordID, noteID)
	if err != nil {
		return err
	}
	notes := t.state.notes[recordID]
	t.state.notes[recordID] = append(notes[:i:i], notes[i+1:]...)
	return nil
}

func (t *memTx) SetSubmitterBanned(ctx context.Context, id int64, banned bool) error {
	if err := t.live(ctx); err != nil {
		return err
	}
	t.state.submitters[id] = model.Submitter{ID: id, Banned: banned}
	return nil
}

func (s *memState) demon(ctx context.Context, id int64) (model.Demon, error) {
	if err := ctx.Err(); err != nil {
		return model.Demon{}, err
	}
	d, ok := s.demons[id]
	if !ok {
		return model.Demon{}, ErrNotFound
	}
	return d, nil
}

func (s *memState) demonList(ctx context.Context) ([]model.Demon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Demon, 0, len(s.demons))
	for _, d := range s.demons {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *memState) countDemons(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.demons), nil
}

func (s *memState) player(ctx context.Context, id int64) (model.Player, error) {
	if err := ctx.Err(); err != nil {
		return model.Player{}, err
	}
	p, ok := s.players[id]
	if !ok {
		return model.Player{}, ErrNotFound
	}
	return p, nil
}

func (s *memState) playerByName(ctx context.Context, name string) (model.Player, error) {
	if err := ctx.Err(); err != nil {
		return model.Player{}, err
	}
	for _, p := range s.players {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return model.Player{}, ErrNotFound
}

func (s *memState) playerList(ctx context.Context) ([]model.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memState) record(ctx context.Context, id int64) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, err
	}
	r, ok := s.records[id]
	if !ok {
		return model.Record{}, ErrNotFound
	}
	r.Notes = append([]model.Note(nil), s.notes[id]...)
	return r, nil
}

func (s *memState) recordList(ctx context.Context, f RecordFilter) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Record, 0)
	for _, r := range s.records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memState) submitter(ctx context.Context, id int64) (model.Submitter, error) {
	if err := ctx.Err(); err != nil {
		return model.Submitter{}, err
	}
	sb, ok := s.submitters[id]
	if !ok {
		return model.Submitter{}, ErrNotFound
	}
	return sb, nil
}

func (s *memState) submitterList(ctx context.Context) ([]model.Submitter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Submitter, 0, len(s.submitters))
	for _, sb := range s.submitters {
		out = append(out, sb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
