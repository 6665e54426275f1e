package seedwindows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vitalsync/internal/adapters/repository"
	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/pkg/logger"
)

// Defaults.
const (
	DefaultWindows = 20
)

// Run creates the user if needed and commits generated windows. The user's
// sync watermark is left untouched.
func Run(ctx context.Context, store repository.Store, cfg Config) (Result, error) {
	log := logger.Get().Named("seed-windows")
	if cfg.Windows <= 0 {
		cfg.Windows = DefaultWindows
	}
	if cfg.End.IsZero() {
		cfg.End = time.Now()
	}
	if cfg.UserID == "" {
		cfg.UserID = uuid.NewString()
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	res := Result{UserID: cfg.UserID}
	err := store.CreateUser(ctx, model.User{ID: cfg.UserID, Email: cfg.Email})
	switch {
	case err == nil:
		res.CreatedUser = true
	case errors.Is(err, repository.ErrUserExists):
	default:
		return Result{}, fmt.Errorf("create user: %w", err)
	}

	gen := NewGenerator(cfg.Seed)
	readings, anomalies := gen.Generate(cfg.UserID, cfg.End, cfg.Windows, cfg.AnomalyWindows)
	committed, err := store.Commit(ctx, model.Batch{UserID: cfg.UserID, Readings: readings}, time.Time{})
	if err != nil {
		return Result{}, fmt.Errorf("commit windows: %w", err)
	}

	res.Windows = cfg.Windows
	res.Anomalies = anomalies
	res.Readings = committed.Readings
	res.Duplicates = committed.Duplicates
	if len(readings) > 0 {
		res.From = readings[0].Timestamp
		res.To = readings[len(readings)-1].Timestamp
	}
	base := gen.Baseline()
	log.Info(ctx, "seeded resting windows",
		logger.String("user_id", res.UserID),
		logger.Bool("created_user", res.CreatedUser),
		logger.Int("windows", res.Windows),
		logger.Int("anomalies", res.Anomalies),
		logger.Int("readings", res.Readings),
		logger.Int("duplicates", res.Duplicates),
		logger.Float64("base_hr", model.Round(base.HeartRate, 1)),
		logger.Time("from", res.From),
		logger.Time("to", res.To))
	return res, nil
}
