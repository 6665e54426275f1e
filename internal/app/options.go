package service

import (
	"time"

	"github.com/okian/vitalsync/internal/domain/retrain"
	"github.com/okian/vitalsync/internal/domain/scoring"
	"github.com/okian/vitalsync/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCache attaches the shared verdict cache, training flag and sync lock.
func WithCache(c VerdictCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithWorkerCount sets the number of sync workers.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithQueueSize sets the sync job queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithSyncOverlap sets the trailing re-scan before the watermark.
func WithSyncOverlap(d time.Duration) Option {
	return func(s *Service) {
		s.syncOpts = append(s.syncOpts, WithOverlap(d))
	}
}

// WithFallbackDays sets the look-back used for users that never synced.
func WithFallbackDays(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fallbackDays = n
		}
	}
}

// WithMaxFallbackDays caps the look-back a caller may request.
func WithMaxFallbackDays(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFallbackDays = n
		}
	}
}

// WithLocation sets the zone used for verdict day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithScheduleInterval enables the periodic scheduler.
func WithScheduleInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.scheduleInterval = d
		}
	}
}

// WithRetrainPolicy replaces the retrain gate.
func WithRetrainPolicy(p retrain.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithTrainerOptions forwards options to the trainer.
func WithTrainerOptions(opts ...scoring.TrainerOption) Option {
	return func(s *Service) {
		s.trainerOpts = append(s.trainerOpts, opts...)
	}
}

// WithScorerOptions forwards options to the day scorer.
func WithScorerOptions(opts ...scoring.ScorerOption) Option {
	return func(s *Service) {
		s.scorerOpts = append(s.scorerOpts, opts...)
	}
}

// WithWindowWidth sets the aggregation window.
func WithWindowWidth(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.windowWidth = d
		}
	}
}

// WithClock overrides the time source for sync, retrain gating and training.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
			s.syncOpts = append(s.syncOpts, WithSyncClock(now))
			s.trainerOpts = append(s.trainerOpts, scoring.WithClock(now))
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}
