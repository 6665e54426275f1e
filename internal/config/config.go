// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"runtime"
	"time"
	_ "time/tzdata"
)

// Config contains process configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	Redis   RedisConfig   `koanf:"redis"`
	Fitness FitnessConfig `koanf:"fitness"`
	Sync    SyncConfig    `koanf:"sync"`
	Model   ModelConfig   `koanf:"model"`
	Tracing TracingConfig `koanf:"tracing"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig controls verbosity, encoding and optional file rotation.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// StoreConfig selects the persistent store.
type StoreConfig struct {
	// Driver is "memory" or "postgres".
	Driver          string        `koanf:"driver"`
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// RedisConfig configures the optional Redis cache. An empty Addr disables it.
type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	VerdictTTL  time.Duration `koanf:"verdict_ttl"`
	LockTTL     time.Duration `koanf:"lock_ttl"`
	TrainingTTL time.Duration `koanf:"training_ttl"`
}

// FitnessConfig configures the remote fitness API client.
type FitnessConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// SyncConfig configures the sync loop, scheduler and worker pool.
type SyncConfig struct {
	// Overlap is the trailing re-scan applied before the watermark.
	Overlap time.Duration `koanf:"overlap"`
	// FallbackDays is the look-back used when a user has never synced.
	FallbackDays int `koanf:"fallback_days"`
	// MaxFallbackDays caps the look-back a caller may request.
	MaxFallbackDays int `koanf:"max_fallback_days"`
	// Timezone names the IANA zone used for verdict day boundaries.
	Timezone string `koanf:"timezone"`
	// ScheduleInterval enqueues every user periodically; zero disables the scheduler.
	ScheduleInterval time.Duration `koanf:"schedule_interval"`
	WorkerCount      int           `koanf:"worker_count"`
	QueueSize        int           `koanf:"queue_size"`
}

// ModelConfig configures training, retrain gating and scoring.
type ModelConfig struct {
	Dir               string        `koanf:"dir"`
	WindowWidth       time.Duration `koanf:"window_width"`
	MinWindowsToTrain int           `koanf:"min_windows_to_train"`
	MinNewWindows     int           `koanf:"min_new_windows"`
	Cooldown          time.Duration `koanf:"cooldown"`
	Contamination     float64       `koanf:"contamination"`
	MinScoreWindows   int           `koanf:"min_score_windows"`
	AlertPercent      float64       `koanf:"alert_percent"`
}

// TracingConfig configures OpenTelemetry export. An empty Endpoint disables it.
type TracingConfig struct {
	ServiceName  string  `koanf:"service_name"`
	Endpoint     string  `koanf:"endpoint"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":9080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Store: StoreConfig{
			Driver:          "memory",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			VerdictTTL:  10 * time.Minute,
			LockTTL:     10 * time.Minute,
			TrainingTTL: 15 * time.Minute,
		},
		Fitness: FitnessConfig{
			BaseURL: "https://www.googleapis.com/fitness/v1/users/me",
			Timeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			Overlap:         12 * time.Hour,
			FallbackDays:    7,
			MaxFallbackDays: 90,
			Timezone:        "UTC",
			WorkerCount:     runtime.NumCPU(),
			QueueSize:       1024,
		},
		Model: ModelConfig{
			Dir:               "./data/models",
			WindowWidth:       5 * time.Minute,
			MinWindowsToTrain: 10,
			MinNewWindows:     50,
			Cooldown:          12 * time.Hour,
			Contamination:     0.05,
			MinScoreWindows:   3,
			AlertPercent:      20,
		},
		Tracing: TracingConfig{
			ServiceName:  "vitalsync",
			SamplingRate: 1.0,
		},
	}
}

// Location resolves the configured verdict timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Sync.Timezone)
}
