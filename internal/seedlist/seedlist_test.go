package seedlist

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/demonlist/internal/app"
	"github.com/okian/demonlist/internal/config"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/pkg/logger"
)

func init() {
	if err := logger.InitWith(io.Discard, "text"); err != nil {
		panic(err)
	}
}

func TestGeneratePlan(t *testing.T) {
	Convey("Given a seed configuration", t, func() {
		cfg := &Config{Demons: 12, Players: 5, Records: 40, Seed: 42}

		Convey("Plans are deterministic per seed", func() {
			a, b := generatePlan(cfg), generatePlan(cfg)
			So(a.demons, ShouldResemble, b.demons)
			So(a.records, ShouldResemble, b.records)
			cfg.Seed = 43
			So(generatePlan(cfg).demons, ShouldNotResemble, a.demons)
		})

		Convey("Records never repeat a pair and meet the requirement", func() {
			p := generatePlan(cfg)
			So(p.records, ShouldHaveLength, 40)
			seen := map[[2]int]bool{}
			for _, r := range p.records {
				key := [2]int{r.player, r.demon}
				So(seen[key], ShouldBeFalse)
				seen[key] = true
				So(r.progress, ShouldBeBetweenOrEqual, p.demons[r.demon].Requirement, model.MaxProgress)
			}
		})

		Convey("Record count is capped by the number of pairs", func() {
			cfg.Records = 1000
			So(generatePlan(cfg).records, ShouldHaveLength, 60)
		})

		Convey("Inner placements always fit the list", func() {
			for i, d := range generatePlan(cfg).demons {
				if d.Position != nil {
					So(*d.Position, ShouldBeBetweenOrEqual, 1, i)
				}
			}
		})
	})
}

func TestExpectedOrder(t *testing.T) {
	Convey("Given placements at the end and inside the list", t, func() {
		one, three := 1, 3
		specs := []demonSpec{{}, {}, {Position: &one}, {Position: &three}}
		placed := []model.Demon{{ID: 10}, {ID: 11}, {ID: 12}, {ID: 13}}

		So(expectedOrder(specs, placed), ShouldResemble, []int64{12, 10, 13, 11})
	})
}

func TestRunAgainstService(t *testing.T) {
	Convey("Given a running in-memory service", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.JWTSecret = "seed-secret"
		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(ctx), ShouldBeNil)
		srv := httptest.NewServer(svc.Handler())
		defer func() {
			srv.Close()
			_ = svc.Stop(ctx)
		}()

		Convey("When the seed run completes", func() {
			stats, err := Run(ctx, &Config{
				BaseURL: srv.URL,
				Secret:  "seed-secret",
				Issuer:  cfg.JWTIssuer,
				Demons:  20,
				Players: 8,
				Records: 60,
				Workers: 4,
				Timeout: 5 * time.Second,
				Seed:    7,
			})

			Convey("Then every step succeeded and the checks passed", func() {
				So(err, ShouldBeNil)
				So(stats.DemonsPlaced, ShouldEqual, 20)
				So(stats.PlayersCreated, ShouldEqual, 8)
				So(stats.RecordsApproved, ShouldEqual, 60)
				So(stats.RecordsFailed, ShouldEqual, 0)
				So(stats.RankedPlayers, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the secret does not match", func() {
			_, err := Run(ctx, &Config{BaseURL: srv.URL, Secret: "wrong", Issuer: cfg.JWTIssuer, Demons: 1, Timeout: time.Second})

			Convey("Then the run stops at the first write", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "401")
			})
		})

		Convey("When no secret is given", func() {
			_, err := Run(ctx, &Config{BaseURL: srv.URL})
			So(err, ShouldNotBeNil)
		})
	})
}
