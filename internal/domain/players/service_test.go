package players_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/domain/apperr"
	"github.com/okian/demonlist/internal/domain/coherence"
	"github.com/okian/demonlist/internal/domain/permissions"
	"github.com/okian/demonlist/internal/domain/players"
)

func TestPlayers(t *testing.T) {
	Convey("Given a players service", t, func() {
		ctx := context.Background()
		gens := coherence.New(coherence.WithEpoch(1))
		svc := players.New(repository.NewMemoryStore(), players.WithGenerations(gens))
		mod := permissions.Identity{UserID: 5, Permissions: permissions.NewSet(permissions.ListModerator)}

		Convey("When registering players", func() {
			a, errA := svc.Register(ctx, "  Zoink ")
			b, errB := svc.Register(ctx, "Cursed")
			_, errDup := svc.Register(ctx, "zoink")
			_, errEmpty := svc.Register(ctx, " ")

			Convey("Then ids follow registration order and names are unique", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a.Name, ShouldEqual, "Zoink")
				So(a.ID, ShouldBeLessThan, b.ID)
				So(errors.Is(errDup, apperr.ErrConflict), ShouldBeTrue)
				So(errors.Is(errEmpty, apperr.ErrValidation), ShouldBeTrue)
				So(gens.Generation(coherence.Players), ShouldEqual, uint64(2))
				So(gens.Generation(coherence.Rankings), ShouldEqual, uint64(0))
			})

			Convey("And they can be listed and looked up", func() {
				all, err := svc.List(ctx, "")
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 2)
				found, err := svc.List(ctx, "cur")
				So(err, ShouldBeNil)
				So(len(found), ShouldEqual, 1)
				So(found[0].ID, ShouldEqual, b.ID)

				got, err := svc.Get(ctx, a.ID)
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "Zoink")
				_, err = svc.Get(ctx, 404)
				So(errors.Is(err, apperr.ErrNotFound), ShouldBeTrue)
			})

			Convey("And a moderator can ban one", func() {
				p, err := svc.SetBanned(ctx, a.ID, true, mod)
				So(err, ShouldBeNil)
				So(p.Banned, ShouldBeTrue)
				So(gens.Generation(coherence.PlayerClass(a.ID)), ShouldEqual, uint64(1))

				again, err := svc.SetBanned(ctx, a.ID, true, mod)
				So(err, ShouldBeNil)
				So(again.Banned, ShouldBeTrue)
				So(gens.Generation(coherence.PlayerClass(a.ID)), ShouldEqual, uint64(1))
			})

			Convey("And a helper cannot", func() {
				helper := permissions.Identity{UserID: 6, Permissions: permissions.NewSet(permissions.ListHelper)}
				_, err := svc.SetBanned(ctx, a.ID, true, helper)
				So(errors.Is(err, apperr.ErrForbidden), ShouldBeTrue)
				_, err = svc.SetBanned(ctx, 404, true, mod)
				So(errors.Is(err, apperr.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}
