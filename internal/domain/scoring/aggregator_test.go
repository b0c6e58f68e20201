package scoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/domain/apperr"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/ordering"
	"github.com/okian/demonlist/internal/domain/permissions"
	"github.com/okian/demonlist/internal/domain/records"
	"github.com/okian/demonlist/internal/domain/scoring"
)

var admin = permissions.Identity{UserID: 1, Name: "admin", Permissions: permissions.NewSet(permissions.ListAdministrator)}

// flat scores every record by 10 points per position from the bottom of a
// ten-entry list, times progress percent.
var flat = scoring.CurveFunc(func(in scoring.Input) float64 {
	return float64(11-in.Position) * float64(in.Progress) / 100
})

type env struct {
	repo    *repository.MemoryStore
	list    *ordering.Store
	records *records.Service
	agg     *scoring.Aggregator
	demons  []model.Demon
	players []model.Player
}

func setup(ctx context.Context, playerNames ...string) *env {
	e := &env{repo: repository.NewMemoryStore()}
	var err error
	e.list, err = ordering.New(ctx, e.repo)
	So(err, ShouldBeNil)
	for i, name := range []string{"A", "B", "C"} {
		d, err := e.list.Insert(ctx, model.Demon{Name: name, Requirement: 50, Publisher: "p", Verifier: "v"}, i+1)
		So(err, ShouldBeNil)
		e.demons = append(e.demons, d)
	}
	tx, err := e.repo.Begin(ctx)
	So(err, ShouldBeNil)
	for _, name := range playerNames {
		p, err := tx.InsertPlayer(ctx, model.Player{Name: name, CreatedAt: time.Now()})
		So(err, ShouldBeNil)
		e.players = append(e.players, p)
	}
	So(tx.Commit(), ShouldBeNil)

	e.records = records.New(e.repo, e.list)
	e.agg = scoring.NewAggregator(e.repo, e.list, scoring.WithCurve(flat))
	return e
}

func (e *env) submit(ctx context.Context, player model.Player, demon model.Demon, progress int) model.Record {
	r, err := e.records.Submit(ctx, records.Submission{PlayerID: player.ID, DemonID: demon.ID, Progress: progress})
	So(err, ShouldBeNil)
	return r
}

func (e *env) approve(ctx context.Context, player model.Player, demon model.Demon, progress int) {
	r := e.submit(ctx, player, demon, progress)
	_, err := e.records.Approve(ctx, r.ID, admin)
	So(err, ShouldBeNil)
}

func ranking(ctx context.Context, agg *scoring.Aggregator) []scoring.RankedPlayer {
	rows, err := scoring.Page(agg.Ranking(ctx), 0, 100)
	So(err, ShouldBeNil)
	return rows
}

func TestScore(t *testing.T) {
	Convey("Given a player with no records", t, func() {
		ctx := context.Background()
		e := setup(ctx, "P")
		p := e.players[0]

		Convey("Then the score is zero", func() {
			s, err := e.agg.Score(ctx, p.ID)
			So(err, ShouldBeNil)
			So(s, ShouldEqual, 0.0)
		})

		Convey("When a record is submitted and approved", func() {
			r := e.submit(ctx, p, e.demons[0], 100)
			before, err := e.agg.Score(ctx, p.ID)
			So(err, ShouldBeNil)
			_, err = e.records.Approve(ctx, r.ID, admin)
			So(err, ShouldBeNil)

			Convey("Then the score rises by the contribution", func() {
				after, err := e.agg.Score(ctx, p.ID)
				So(err, ShouldBeNil)
				So(before, ShouldEqual, 0.0)
				So(after, ShouldEqual, 10.0)
			})
		})

		Convey("When a record is submitted and rejected", func() {
			r := e.submit(ctx, p, e.demons[0], 100)
			_, err := e.records.Reject(ctx, r.ID, admin)
			So(err, ShouldBeNil)

			Convey("Then the score is unchanged", func() {
				s, err := e.agg.Score(ctx, p.ID)
				So(err, ShouldBeNil)
				So(s, ShouldEqual, 0.0)
			})
		})

		Convey("When the demon changes position", func() {
			e.approve(ctx, p, e.demons[2], 100)
			_, err := e.list.Move(ctx, e.demons[2].ID, 1)
			So(err, ShouldBeNil)

			Convey("Then the score follows the new position", func() {
				s, err := e.agg.Score(ctx, p.ID)
				So(err, ShouldBeNil)
				So(s, ShouldEqual, 10.0)
			})
		})

		Convey("When the demon is deleted", func() {
			e.approve(ctx, p, e.demons[0], 100)
			So(e.list.Delete(ctx, e.demons[0].ID), ShouldBeNil)

			Convey("Then its record no longer counts", func() {
				s, err := e.agg.Score(ctx, p.ID)
				So(err, ShouldBeNil)
				So(s, ShouldEqual, 0.0)
			})
		})

		Convey("When the player is banned", func() {
			e.approve(ctx, p, e.demons[0], 100)
			tx, err := e.repo.Begin(ctx)
			So(err, ShouldBeNil)
			So(tx.SetPlayerBanned(ctx, p.ID, true), ShouldBeNil)
			So(tx.Commit(), ShouldBeNil)

			Convey("Then the score is zero", func() {
				s, err := e.agg.Score(ctx, p.ID)
				So(err, ShouldBeNil)
				So(s, ShouldEqual, 0.0)
			})
		})

		Convey("When the player does not exist", func() {
			_, err := e.agg.Score(ctx, 404)
			So(errors.Is(err, apperr.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestRanking(t *testing.T) {
	Convey("Given three players with approved records", t, func() {
		ctx := context.Background()
		e := setup(ctx, "First", "Second", "Third", "Idle")
		first, second, third := e.players[0], e.players[1], e.players[2]
		e.approve(ctx, first, e.demons[1], 100)  // 9
		e.approve(ctx, second, e.demons[0], 100) // 10
		e.approve(ctx, third, e.demons[1], 100)  // 9

		Convey("Then players are ordered by score with competition ranks", func() {
			rows := ranking(ctx, e.agg)
			So(len(rows), ShouldEqual, 3)
			So(rows[0].Player.ID, ShouldEqual, second.ID)
			So(rows[0].Rank, ShouldEqual, 1)
			So(rows[1].Player.ID, ShouldEqual, first.ID)
			So(rows[1].Rank, ShouldEqual, 2)
			So(rows[2].Player.ID, ShouldEqual, third.ID)
			So(rows[2].Rank, ShouldEqual, 2)
		})

		Convey("Then ranking scores agree with Score", func() {
			for _, row := range ranking(ctx, e.agg) {
				s, err := e.agg.Score(ctx, row.Player.ID)
				So(err, ShouldBeNil)
				So(row.Score, ShouldEqual, s)
			}
		})

		Convey("When ranging the sequence twice", func() {
			once := ranking(ctx, e.agg)
			e.approve(ctx, third, e.demons[0], 100)
			twice := ranking(ctx, e.agg)

			Convey("Then the second pass sees the new record", func() {
				So(once[0].Player.ID, ShouldEqual, second.ID)
				So(twice[0].Player.ID, ShouldEqual, third.ID)
			})
		})

		Convey("When paging", func() {
			rows, err := scoring.Page(e.agg.Ranking(ctx), 1, 1)
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 1)
			So(rows[0].Player.ID, ShouldEqual, first.ID)

			empty, err := scoring.Page(e.agg.Ranking(ctx), 10, 5)
			So(err, ShouldBeNil)
			So(empty, ShouldBeEmpty)
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := scoring.Page(e.agg.Ranking(cctx), 0, 10)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
