package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/demonlist/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.DefaultPageSize, convey.ShouldEqual, 50)
			convey.So(cfg.MaxPageSize, convey.ShouldEqual, 100)
			convey.So(cfg.Curve, convey.ShouldEqual, "exponential")
			convey.So(cfg.DedupeTTL, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with inconsistent settings", t, func() {
		cases := map[string]func(c *config.Config){
			"empty addr":          func(c *config.Config) { c.Addr = " " },
			"zero page size":      func(c *config.Config) { c.DefaultPageSize = 0 },
			"max below default":   func(c *config.Config) { c.MaxPageSize = 10 },
			"main past extended":  func(c *config.Config) { c.MainListSize = 200 },
			"negative list":       func(c *config.Config) { c.ExtendedListSize = -1 },
			"no queue":            func(c *config.Config) { c.EventQueueSize = 0 },
			"no workers":          func(c *config.Config) { c.WorkerCount = 0 },
			"no attempts":         func(c *config.Config) { c.DeliveryAttempts = 0 },
			"bad ratio":           func(c *config.Config) { c.OTelSampleRatio = 2 },
			"unknown driver":      func(c *config.Config) { c.StorageDriver = "mongo" },
			"sqlite without path": func(c *config.Config) { c.StorageDriver = config.DriverSQLite },
		}
		for name, mutate := range cases {
			convey.Convey("When "+name, func() {
				cfg := config.New()
				mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
