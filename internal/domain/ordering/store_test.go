package ordering_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/adapters/repository/sqlstore"
	"github.com/okian/demonlist/internal/domain/apperr"
	"github.com/okian/demonlist/internal/domain/coherence"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/ordering"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(_ context.Context, e model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []model.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type failingStore struct {
	repository.Store
	failCommit atomic.Bool
}

func (f *failingStore) Begin(ctx context.Context) (repository.Tx, error) {
	tx, err := f.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, fail: f.failCommit.Load()}, nil
}

type failingTx struct {
	repository.Tx
	fail bool
}

func (t *failingTx) Commit() error {
	if t.fail {
		_ = t.Tx.Rollback()
		return errors.New("disk full")
	}
	return t.Tx.Commit()
}

func names(ds []model.Demon) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func assertDense(s *ordering.Store, repo repository.Store) {
	list := s.List(0, s.Len()+1)
	for i, d := range list {
		So(d.Position, ShouldEqual, i+1)
	}
	stored, err := repo.Demons(context.Background())
	So(err, ShouldBeNil)
	So(len(stored), ShouldEqual, len(list))
	for i, d := range stored {
		So(d.Position, ShouldEqual, i+1)
		So(d.ID, ShouldEqual, list[i].ID)
	}
}

func seed(ctx context.Context, s *ordering.Store, names ...string) map[string]model.Demon {
	out := make(map[string]model.Demon, len(names))
	for i, n := range names {
		d, err := s.Insert(ctx, model.Demon{Name: n, Requirement: 50, Publisher: "p", Verifier: "v"}, i+1)
		So(err, ShouldBeNil)
		out[n] = d
	}
	return out
}

func TestOrderingStore(t *testing.T) {
	Convey("Given an ordering store over a memory repository", t, func() {
		ctx := context.Background()
		repo := repository.NewMemoryStore()
		gens := coherence.New(coherence.WithEpoch(1))
		events := &recorder{}
		s, err := ordering.New(ctx, repo, ordering.WithGenerations(gens), ordering.WithPublisher(events))
		So(err, ShouldBeNil)
		ds := seed(ctx, s, "A", "B", "C")

		Convey("When C is moved to the top", func() {
			d, err := s.Move(ctx, ds["C"].ID, 1)

			Convey("Then the order is C, A, B", func() {
				So(err, ShouldBeNil)
				So(d.Position, ShouldEqual, 1)
				So(names(s.List(0, 10)), ShouldResemble, []string{"C", "A", "B"})
				assertDense(s, repo)
			})
		})

		Convey("When a move is repeated", func() {
			_, err := s.Move(ctx, ds["A"].ID, 3)
			So(err, ShouldBeNil)
			first := names(s.List(0, 10))
			gen := gens.Generation(coherence.Entries)

			_, err = s.Move(ctx, ds["A"].ID, 3)

			Convey("Then the second move is a no-op", func() {
				So(err, ShouldBeNil)
				So(names(s.List(0, 10)), ShouldResemble, first)
				So(first, ShouldResemble, []string{"B", "C", "A"})
				So(gens.Generation(coherence.Entries), ShouldEqual, gen)
			})
		})

		Convey("When a move target is out of range", func() {
			_, err := s.Move(ctx, ds["A"].ID, 99)
			So(err, ShouldBeNil)
			_, err = s.Move(ctx, ds["C"].ID, -4)
			So(err, ShouldBeNil)

			Convey("Then it is clamped", func() {
				So(names(s.List(0, 10)), ShouldResemble, []string{"C", "B", "A"})
				assertDense(s, repo)
			})
		})

		Convey("When inserting past the end", func() {
			d, err := s.Insert(ctx, model.Demon{Name: "D", Requirement: 100}, 50)

			Convey("Then it lands at N+1", func() {
				So(err, ShouldBeNil)
				So(d.Position, ShouldEqual, 4)
				So(d.ID, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When inserting in the middle", func() {
			_, err := s.Insert(ctx, model.Demon{Name: "X", Requirement: 40}, 2)

			Convey("Then later demons shift down", func() {
				So(err, ShouldBeNil)
				So(names(s.List(0, 10)), ShouldResemble, []string{"A", "X", "B", "C"})
				assertDense(s, repo)
			})
		})

		Convey("When inserting with bad input", func() {
			_, errPos := s.Insert(ctx, model.Demon{Name: "X", Requirement: 40}, 0)
			_, errName := s.Insert(ctx, model.Demon{Name: "  ", Requirement: 40}, 1)
			_, errReq := s.Insert(ctx, model.Demon{Name: "X", Requirement: 101}, 1)

			Convey("Then each fails validation", func() {
				So(errors.Is(errPos, apperr.ErrValidation), ShouldBeTrue)
				So(errors.Is(errName, apperr.ErrValidation), ShouldBeTrue)
				So(errors.Is(errReq, apperr.ErrValidation), ShouldBeTrue)
				So(s.Len(), ShouldEqual, 3)
			})
		})

		Convey("When deleting the first demon", func() {
			before := gens.Generation(coherence.Rankings)
			err := s.Delete(ctx, ds["A"].ID)

			Convey("Then the rest move up and the generations change", func() {
				So(err, ShouldBeNil)
				So(names(s.List(0, 10)), ShouldResemble, []string{"B", "C"})
				So(gens.Generation(coherence.Rankings), ShouldBeGreaterThan, before)
				assertDense(s, repo)
				_, err := s.GetByID(ctx, ds["A"].ID)
				So(errors.Is(err, apperr.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When updating attributes", func() {
			name := "Bloodbath"
			req := 60
			d, err := s.Update(ctx, ds["B"].ID, model.DemonPatch{Name: &name, Requirement: &req})

			Convey("Then the position is untouched", func() {
				So(err, ShouldBeNil)
				So(d.Position, ShouldEqual, 2)
				got, err := s.Get(ctx, 2)
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "Bloodbath")
				So(got.Requirement, ShouldEqual, 60)
				stored, err := repo.Demon(ctx, ds["B"].ID)
				So(err, ShouldBeNil)
				So(stored.Name, ShouldEqual, "Bloodbath")
			})

			Convey("And invalid patches are rejected", func() {
				bad := 150
				_, err := s.Update(ctx, ds["B"].ID, model.DemonPatch{Requirement: &bad})
				So(errors.Is(err, apperr.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When editing attributes and position together", func() {
			name := "Cataclysm"
			to := 1
			d, err := s.Edit(ctx, ds["C"].ID, model.DemonPatch{Name: &name}, &to)

			Convey("Then both apply in one step", func() {
				So(err, ShouldBeNil)
				So(d.Position, ShouldEqual, 1)
				So(d.Name, ShouldEqual, "Cataclysm")
				So(names(s.List(0, 10)), ShouldResemble, []string{"Cataclysm", "A", "B"})
				assertDense(s, repo)
			})
		})

		Convey("When looking up missing demons", func() {
			_, errPos := s.Get(ctx, 4)
			_, errID := s.GetByID(ctx, 999)
			_, errMove := s.Move(ctx, 999, 1)
			errDel := s.Delete(ctx, 999)

			Convey("Then each is not found", func() {
				So(errors.Is(errPos, apperr.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errID, apperr.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errMove, apperr.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errDel, apperr.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("Then every mutation published an event", func() {
			So(events.kinds(), ShouldResemble, []model.EventKind{
				model.EventDemonPlaced, model.EventDemonPlaced, model.EventDemonPlaced,
			})
		})

		Convey("When a reader holds a snapshot across a mutation", func() {
			snap := s.Snapshot()
			_, err := s.Move(ctx, ds["C"].ID, 1)
			So(err, ShouldBeNil)

			Convey("Then its view is unchanged", func() {
				So(names(snap.Demons()), ShouldResemble, []string{"A", "B", "C"})
				So(names(s.Snapshot().Demons()), ShouldResemble, []string{"C", "A", "B"})
			})
		})
	})
}

func TestOrderingConcurrentInserts(t *testing.T) {
	Convey("Given concurrent inserts at the same position", t, func() {
		ctx := context.Background()
		repo := repository.NewMemoryStore()
		s, err := ordering.New(ctx, repo)
		So(err, ShouldBeNil)
		seed(ctx, s, "A", "B")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.Insert(ctx, model.Demon{Name: fmt.Sprintf("N%d", i), Requirement: 10}, 1)
			}(i)
		}
		wg.Wait()

		Convey("Then both land adjacent at the top and the order stays dense", func() {
			So(errs[0], ShouldBeNil)
			So(errs[1], ShouldBeNil)
			top := names(s.List(0, 2))
			So(top, ShouldContain, "N0")
			So(top, ShouldContain, "N1")
			So(names(s.List(2, 2)), ShouldResemble, []string{"A", "B"})
			assertDense(s, repo)
		})
	})

	Convey("Given many concurrent mixed mutations", t, func() {
		ctx := context.Background()
		repo := repository.NewMemoryStore()
		s, err := ordering.New(ctx, repo)
		So(err, ShouldBeNil)
		ds := seed(ctx, s, "A", "B", "C", "D", "E")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				switch i % 3 {
				case 0:
					_, _ = s.Insert(ctx, model.Demon{Name: fmt.Sprintf("I%d", i), Requirement: 1}, i%4+1)
				case 1:
					_, _ = s.Move(ctx, ds["C"].ID, i%5+1)
				default:
					_ = s.Snapshot().Demons()
				}
			}(i)
		}
		wg.Wait()

		Convey("Then the order is dense in memory and in storage", func() {
			So(s.Len(), ShouldEqual, 12)
			assertDense(s, repo)
		})
	})
}

func TestOrderingStorageFailure(t *testing.T) {
	Convey("Given a store whose commits fail", t, func() {
		ctx := context.Background()
		repo := &failingStore{Store: repository.NewMemoryStore()}
		gens := coherence.New(coherence.WithEpoch(1))
		s, err := ordering.New(ctx, repo, ordering.WithGenerations(gens))
		So(err, ShouldBeNil)
		ds := seed(ctx, s, "A", "B", "C")
		gen := gens.Generation(coherence.Entries)
		repo.failCommit.Store(true)

		Convey("When moving a demon", func() {
			_, err := s.Move(ctx, ds["C"].ID, 1)

			Convey("Then it fails with conflict and nothing changes", func() {
				So(errors.Is(err, apperr.ErrConflict), ShouldBeTrue)
				So(names(s.List(0, 10)), ShouldResemble, []string{"A", "B", "C"})
				So(gens.Generation(coherence.Entries), ShouldEqual, gen)
				assertDense(s, repo)
			})
		})

		Convey("When renaming and moving a demon together", func() {
			name := "Renamed"
			to := 1
			_, err := s.Edit(ctx, ds["C"].ID, model.DemonPatch{Name: &name}, &to)

			Convey("Then neither change lands", func() {
				So(errors.Is(err, apperr.ErrConflict), ShouldBeTrue)
				So(names(s.List(0, 10)), ShouldResemble, []string{"A", "B", "C"})
				stored, err := repo.Demon(ctx, ds["C"].ID)
				So(err, ShouldBeNil)
				So(stored.Name, ShouldEqual, "C")
				So(gens.Generation(coherence.Entries), ShouldEqual, gen)
			})
		})

		Convey("When inserting a demon", func() {
			_, err := s.Insert(ctx, model.Demon{Name: "Z", Requirement: 1}, 1)

			Convey("Then it fails with conflict and nothing changes", func() {
				So(errors.Is(err, apperr.ErrConflict), ShouldBeTrue)
				So(s.Len(), ShouldEqual, 3)
				assertDense(s, repo)
			})
		})
	})

	Convey("Given a cancelled context", t, func() {
		repo := repository.NewMemoryStore()
		s, err := ordering.New(context.Background(), repo)
		So(err, ShouldBeNil)
		seed(context.Background(), s, "A")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = s.Insert(ctx, model.Demon{Name: "Z", Requirement: 1}, 1)

		So(errors.Is(err, apperr.ErrConflict), ShouldBeTrue)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
		So(s.Len(), ShouldEqual, 1)
	})

	Convey("Given storage that diverged from memory", t, func() {
		ctx := context.Background()
		repo := repository.NewMemoryStore()
		s, err := ordering.New(ctx, repo)
		So(err, ShouldBeNil)
		seed(ctx, s, "A")

		tx, err := repo.Begin(ctx)
		So(err, ShouldBeNil)
		_, err = tx.InsertDemon(ctx, model.Demon{Name: "rogue", Position: 2})
		So(err, ShouldBeNil)
		So(tx.Commit(), ShouldBeNil)

		_, err = s.Insert(ctx, model.Demon{Name: "B", Requirement: 1}, 2)

		So(errors.Is(err, apperr.ErrConflict), ShouldBeTrue)
	})
}

func TestOrderingLoad(t *testing.T) {
	Convey("Given a repository with a gap in the order", t, func() {
		ctx := context.Background()
		repo := repository.NewMemoryStore()
		tx, err := repo.Begin(ctx)
		So(err, ShouldBeNil)
		_, err = tx.InsertDemon(ctx, model.Demon{Name: "A", Position: 1})
		So(err, ShouldBeNil)
		_, err = tx.InsertDemon(ctx, model.Demon{Name: "B", Position: 3})
		So(err, ShouldBeNil)
		So(tx.Commit(), ShouldBeNil)

		_, err = ordering.New(ctx, repo)

		So(errors.Is(err, ordering.ErrLoad), ShouldBeTrue)
	})

	Convey("Given a populated SQLite repository", t, func() {
		ctx := context.Background()
		repo, err := sqlstore.Open(ctx, sqlstore.SQLite, filepath.Join(t.TempDir(), "list.db"))
		So(err, ShouldBeNil)
		defer repo.Close()

		first, err := ordering.New(ctx, repo)
		So(err, ShouldBeNil)
		ds := seed(ctx, first, "A", "B", "C", "D")
		_, err = first.Move(ctx, ds["D"].ID, 2)
		So(err, ShouldBeNil)
		So(first.Delete(ctx, ds["A"].ID), ShouldBeNil)

		second, err := ordering.New(ctx, repo)

		Convey("Then a fresh store loads the committed order", func() {
			So(err, ShouldBeNil)
			So(names(second.List(0, 10)), ShouldResemble, []string{"D", "B", "C"})
			assertDense(second, repo)
		})
	})
}
