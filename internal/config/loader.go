package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "VITALSYNC_"
	envConfig = "VITALSYNC_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if VITALSYNC_CONFIG is set
//  3. env (prefix VITALSYNC_, "__" separates sections: VITALSYNC_SYNC__OVERLAP)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		if s == envConfig {
			return ""
		}
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return fmt.Errorf("%w: server.addr must not be empty", ErrInvalidConfig)
	case c.Store.Driver != "memory" && c.Store.Driver != "postgres":
		return fmt.Errorf("%w: store.driver must be memory or postgres, got %q", ErrInvalidConfig, c.Store.Driver)
	case c.Store.Driver == "postgres" && c.Store.DSN == "":
		return fmt.Errorf("%w: store.dsn is required for postgres", ErrInvalidConfig)
	case c.Sync.Overlap < 0:
		return fmt.Errorf("%w: sync.overlap must not be negative", ErrInvalidConfig)
	case c.Sync.FallbackDays < 0:
		return fmt.Errorf("%w: sync.fallback_days must not be negative", ErrInvalidConfig)
	case c.Sync.MaxFallbackDays < c.Sync.FallbackDays:
		return fmt.Errorf("%w: sync.max_fallback_days must be at least sync.fallback_days", ErrInvalidConfig)
	case c.Sync.WorkerCount <= 0:
		return fmt.Errorf("%w: sync.worker_count must be positive", ErrInvalidConfig)
	case c.Sync.QueueSize <= 0:
		return fmt.Errorf("%w: sync.queue_size must be positive", ErrInvalidConfig)
	case c.Model.WindowWidth <= 0:
		return fmt.Errorf("%w: model.window_width must be positive", ErrInvalidConfig)
	case c.Model.Contamination <= 0 || c.Model.Contamination >= 0.5:
		return fmt.Errorf("%w: model.contamination must be in (0, 0.5)", ErrInvalidConfig)
	case c.Model.MinWindowsToTrain < 2:
		return fmt.Errorf("%w: model.min_windows_to_train must be at least 2", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: sync.timezone: %w", ErrInvalidConfig, err)
	}
	return nil
}
