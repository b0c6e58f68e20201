package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/demonlist/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnv()
		convey.Reset(clearConfigEnv)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.DeliveryAttempts, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			setenv("DEMONLIST_ADDR", ":8080")
			setenv("DEMONLIST_QUEUE_SIZE", "4096")
			setenv("DEMONLIST_WORKER_COUNT", "8")
			setenv("DEMONLIST_DEDUPE_TTL", "90m")
			setenv("DEMONLIST_DELIVERY_MAX_ATTEMPTS", "5")
			setenv("DEMONLIST_CURVE_DECAY", "0.1")
			setenv("DEMONLIST_JWT_SECRET", "s3cret")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 4096)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.DedupeTTL, convey.ShouldEqual, 90*time.Minute)
				convey.So(cfg.DeliveryAttempts, convey.ShouldEqual, 5)
				convey.So(cfg.CurveDecay, convey.ShouldEqual, 0.1)
				convey.So(cfg.JWTSecret, convey.ShouldEqual, "s3cret")
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			path := writeConfig(t, `
# storage
storage_driver: sqlite
storage_dsn: /tmp/demonlist.db
addr: ":9090"
worker_count: 4
curve: linear
main_list_size: 50
extended_list_size: 100
`)
			setenv(config.EnvFile, path)
			setenv("DEMONLIST_WORKER_COUNT", "16")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env vars win over the file and the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.StorageDSN, convey.ShouldEqual, "/tmp/demonlist.db")
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.Curve, convey.ShouldEqual, "linear")
				convey.So(cfg.MainListSize, convey.ShouldEqual, 50)
				convey.So(cfg.MaxPageSize, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			setenv(config.EnvFile, writeConfig(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			setenv(config.EnvFile, "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			setenv("DEMONLIST_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When the loaded values fail validation", func() {
			setenv("DEMONLIST_STORAGE_DRIVER", "postgres")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "storage_dsn")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// clearConfigEnv runs before every leaf; goconvey replays the outer block
// for each one, so env set in a leaf never reaches the next.
func clearConfigEnv() {
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, config.EnvPrefix) {
			_ = os.Unsetenv(key)
		}
	}
}

func setenv(key, value string) {
	_ = os.Setenv(key, value)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demonlist.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
