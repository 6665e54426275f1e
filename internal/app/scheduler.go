package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/pkg/logger"
	"github.com/okian/vitalsync/pkg/metrics"
)

// UserLister lists users eligible for a scheduled sync.
type UserLister interface {
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Enqueuer accepts sync jobs.
type Enqueuer interface {
	EnqueueSync(ctx context.Context, userID string, fallbackDays int, reason string) (string, error)
}

// Scheduler periodically enqueues a sync for every user with a token.
type Scheduler struct {
	users    UserLister
	enqueuer Enqueuer
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
	log      logger.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(users UserLister, enqueuer Enqueuer, interval time.Duration) *Scheduler {
	return &Scheduler{
		users:    users,
		enqueuer: enqueuer,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		log:      logger.Get().Named("scheduler"),
	}
}

// Start runs the ticker loop in the background.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
}

// Tick enqueues one sync per user and returns how many were accepted.
func (s *Scheduler) Tick(ctx context.Context) int {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.log.Error(ctx, "list users", logger.Error(err))
		metrics.RecordErrorByComponent("scheduler", "list_users")
		return 0
	}
	metrics.UpdateTrackedUsers(len(users))

	queued := 0
	for _, u := range users {
		_, err := s.enqueuer.EnqueueSync(ctx, u.ID, 0, ReasonSchedule)
		switch {
		case err == nil:
			queued++
		case errors.Is(err, ErrUserBusy):
		case errors.Is(err, ErrQueueFull):
			s.log.Warn(ctx, "sync queue full, deferring remaining users",
				logger.Int("queued", queued), logger.Int("users", len(users)))
			return queued
		default:
			s.log.Warn(ctx, "enqueue scheduled sync", logger.String("user_id", u.ID), logger.Error(err))
		}
	}
	s.log.Debug(ctx, "scheduled syncs", logger.Int("queued", queued), logger.Int("users", len(users)))
	return queued
}
