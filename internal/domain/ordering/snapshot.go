package ordering

import "github.com/okian/demonlist/internal/domain/model"

// Snapshot is an immutable view of the full order. Readers hold on to one
// for as long as they need a consistent picture.
type Snapshot struct {
	root  *node
	index map[int64]int // demon id -> position
}

func newSnapshot(root *node) *Snapshot {
	s := &Snapshot{root: root, index: make(map[int64]int, nsize(root))}
	walk(root, 1, 1, func(pos int, d model.Demon) bool {
		s.index[d.ID] = pos
		return true
	})
	return s
}

// Len returns the number of listed demons.
func (s *Snapshot) Len() int {
	return nsize(s.root)
}

// At returns the demon at position pos.
func (s *Snapshot) At(pos int) (model.Demon, bool) {
	n := at(s.root, pos)
	if n == nil {
		return model.Demon{}, false
	}
	d := n.demon
	d.Position = pos
	return d, true
}

// Position returns the current position of demon id.
func (s *Snapshot) Position(id int64) (int, bool) {
	pos, ok := s.index[id]
	return pos, ok
}

// ByID returns demon id with its current position.
func (s *Snapshot) ByID(id int64) (model.Demon, bool) {
	pos, ok := s.index[id]
	if !ok {
		return model.Demon{}, false
	}
	return s.At(pos)
}

// Slice returns up to limit demons starting after offset entries.
func (s *Snapshot) Slice(offset, limit int) []model.Demon {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= s.Len() {
		return []model.Demon{}
	}
	out := make([]model.Demon, 0, min(limit, s.Len()-offset))
	walk(s.root, 1, offset+1, func(pos int, d model.Demon) bool {
		d.Position = pos
		out = append(out, d)
		return len(out) < limit
	})
	return out
}

// Demons returns the whole list in order.
func (s *Snapshot) Demons() []model.Demon {
	return s.Slice(0, s.Len())
}
