package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/vitalsync/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Server.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store.Driver, convey.ShouldEqual, "memory")
			convey.So(cfg.Sync.Overlap, convey.ShouldEqual, 12*time.Hour)
			convey.So(cfg.Sync.FallbackDays, convey.ShouldEqual, 7)
			convey.So(cfg.Sync.MaxFallbackDays, convey.ShouldEqual, 90)
			convey.So(cfg.Model.MinWindowsToTrain, convey.ShouldEqual, 10)
			convey.So(cfg.Model.MinNewWindows, convey.ShouldEqual, 50)
			convey.So(cfg.Model.Cooldown, convey.ShouldEqual, 12*time.Hour)
			convey.So(cfg.Model.Contamination, convey.ShouldEqual, 0.05)
			convey.So(cfg.Model.WindowWidth, convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Server.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Fitness.Timeout, convey.ShouldEqual, 30*time.Second)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("VITALSYNC_SERVER__ADDR", ":8080")
			_ = os.Setenv("VITALSYNC_SYNC__OVERLAP", "6h")
			_ = os.Setenv("VITALSYNC_SYNC__WORKER_COUNT", "16")
			_ = os.Setenv("VITALSYNC_MODEL__MIN_NEW_WINDOWS", "25")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Server.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Sync.Overlap, convey.ShouldEqual, 6*time.Hour)
				convey.So(cfg.Sync.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.Model.MinNewWindows, convey.ShouldEqual, 25)
				convey.So(cfg.Model.MinWindowsToTrain, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeConfigFile(t, `
server:
  addr: ":9090"
sync:
  fallback_days: 3
  timezone: "Asia/Kolkata"
model:
  cooldown: "6h"
`)
			_ = os.Setenv("VITALSYNC_CONFIG", path)
			_ = os.Setenv("VITALSYNC_SERVER__ADDR", ":8081")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env should win over the file and the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Server.Addr, convey.ShouldEqual, ":8081")
				convey.So(cfg.Sync.FallbackDays, convey.ShouldEqual, 3)
				convey.So(cfg.Sync.Timezone, convey.ShouldEqual, "Asia/Kolkata")
				convey.So(cfg.Model.Cooldown, convey.ShouldEqual, 6*time.Hour)
				convey.So(cfg.Sync.Overlap, convey.ShouldEqual, 12*time.Hour)

				loc, err := cfg.Location()
				convey.So(err, convey.ShouldBeNil)
				convey.So(loc.String(), convey.ShouldEqual, "Asia/Kolkata")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			path := writeConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("VITALSYNC_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("VITALSYNC_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the postgres driver has no DSN", func() {
			_ = os.Setenv("VITALSYNC_STORE__DRIVER", "postgres")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "store.dsn")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the look-back cap is below the default look-back", func() {
			_ = os.Setenv("VITALSYNC_SYNC__MAX_FALLBACK_DAYS", "3")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "max_fallback_days")
			})
		})

		convey.Convey("When the timezone is unknown", func() {
			_ = os.Setenv("VITALSYNC_SYNC__TIMEZONE", "Mars/Olympus")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vitalsync.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"VITALSYNC_CONFIG",
		"VITALSYNC_SERVER__ADDR",
		"VITALSYNC_SYNC__OVERLAP",
		"VITALSYNC_SYNC__WORKER_COUNT",
		"VITALSYNC_SYNC__TIMEZONE",
		"VITALSYNC_SYNC__MAX_FALLBACK_DAYS",
		"VITALSYNC_MODEL__MIN_NEW_WINDOWS",
		"VITALSYNC_STORE__DRIVER",
	} {
		_ = os.Unsetenv(key)
	}
}
