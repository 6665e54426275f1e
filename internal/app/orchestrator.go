package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/vitalsync/internal/adapters/fitness"
	"github.com/okian/vitalsync/internal/adapters/repository"
	"github.com/okian/vitalsync/internal/domain/activity"
	"github.com/okian/vitalsync/internal/domain/dedupe"
	"github.com/okian/vitalsync/internal/domain/metric"
	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/pkg/logger"
	"github.com/okian/vitalsync/pkg/metrics"
	"github.com/okian/vitalsync/pkg/tracing"
)

// Default sync parameters.
const (
	DefaultOverlap      = 12 * time.Hour
	DefaultFallbackDays = 7
	day                 = 24 * time.Hour
)

// Remote is the fitness provider as seen by the sync loop.
type Remote interface {
	FetchMetricSeries(ctx context.Context, token, dataType string, startMillis, endMillis int64) ([]metric.Point, error)
	FetchActivitySegments(ctx context.Context, token string, startMillis, endMillis int64) ([]model.ActivitySegment, error)
	FetchSleepSessions(ctx context.Context, token, startISO, endISO string) ([]fitness.Session, error)
}

// Credentials identify the user on the provider side.
type Credentials struct {
	ID          string
	AccessToken string
}

// Result is the staged outcome of one sync pass. Nothing in it is persisted yet.
type Result struct {
	RunID      string
	Batch      model.Batch
	Watermark  time.Time
	From       time.Time
	Days       int
	Duplicates int
	// Skipped counts metric/day fetches dropped on non-auth remote failures.
	Skipped int
}

// Syncer pulls provider data for one user and stages new rows.
type Syncer struct {
	remote  Remote
	store   repository.Store
	overlap time.Duration
	now     func() time.Time
	log     logger.Logger
}

// SyncerOption applies a configuration option to the Syncer.
type SyncerOption func(*Syncer)

// WithOverlap sets how far before the watermark a pass re-scans.
func WithOverlap(d time.Duration) SyncerOption {
	return func(s *Syncer) {
		if d >= 0 {
			s.overlap = d
		}
	}
}

// WithSyncClock overrides the time source.
func WithSyncClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSyncer creates a Syncer.
func NewSyncer(remote Remote, store repository.Store, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		remote:  remote,
		store:   store,
		overlap: DefaultOverlap,
		now:     time.Now,
		log:     logger.Get().Named("sync"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync walks UTC days from the resume point to today and stages every reading
// and sleep interval not already stored. The resume point is watermark minus
// the overlap, or fallbackDays ago when watermark is nil.
// An auth failure aborts the pass; other remote failures skip that metric/day.
func (s *Syncer) Sync(ctx context.Context, user Credentials, watermark *time.Time, fallbackDays int) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "sync.user", attribute.String("user_id", user.ID))
	defer span.End()

	if user.AccessToken == "" {
		return Result{}, ErrNoToken
	}
	if fallbackDays <= 0 {
		fallbackDays = DefaultFallbackDays
	}

	now := model.NormalizeTime(s.now())
	var from time.Time
	if watermark != nil {
		from = watermark.Add(-s.overlap)
	} else {
		from = now.AddDate(0, 0, -fallbackDays)
	}
	from = model.NormalizeTime(from)

	res := Result{
		RunID: uuid.NewString(),
		Batch: model.Batch{UserID: user.ID},
		From:  from,
	}
	cache := dedupe.NewDayCache()
	lastDay := model.DayStart(now, time.UTC)
	for d := model.DayStart(from, time.UTC); !d.After(lastDay); d = d.Add(day) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := s.syncDay(ctx, user, d, cache, &res); err != nil {
			tracing.RecordError(span, err)
			return Result{}, err
		}
		res.Days++
	}
	res.Watermark = now

	span.SetAttributes(attribute.Int("days", res.Days), attribute.Int("staged", res.Batch.Len()))
	s.log.Info(ctx, "sync pass staged",
		logger.String("user_id", user.ID),
		logger.String("run_id", res.RunID),
		logger.Time("from", from),
		logger.Int("days", res.Days),
		logger.Int("readings", len(res.Batch.Readings)),
		logger.Int("sleep", len(res.Batch.Sleep)),
		logger.Int("duplicates", res.Duplicates),
		logger.Int("skipped", res.Skipped))
	return res, nil
}

func (s *Syncer) syncDay(ctx context.Context, user Credentials, start time.Time, cache *dedupe.DayCache, res *Result) error {
	end := start.Add(day)
	startMs, endMs := start.UnixMilli(), end.UnixMilli()

	segs, err := s.remote.FetchActivitySegments(ctx, user.AccessToken, startMs, endMs)
	if err != nil {
		if errors.Is(err, fitness.ErrUnauthorized) {
			return err
		}
		res.Skipped++
		s.log.Warn(ctx, "activity segments unavailable, assuming resting",
			logger.String("user_id", user.ID), logger.Time("day", start), logger.Error(err))
	}
	idx := activity.NewIndex(segs)

	for _, d := range metric.Descriptors() {
		points, err := s.remote.FetchMetricSeries(ctx, user.AccessToken, d.DataType, startMs, endMs)
		if err != nil {
			if errors.Is(err, fitness.ErrUnauthorized) {
				return err
			}
			res.Skipped++
			s.log.Warn(ctx, "metric fetch skipped",
				logger.String("user_id", user.ID),
				logger.String("metric", d.Kind.String()),
				logger.Time("day", start),
				logger.Error(err))
			continue
		}
		if d.Shape == metric.ShapeInterval {
			if err := s.seedSleep(ctx, user.ID, start, cache); err != nil {
				return err
			}
			for _, p := range points {
				iv, ok := metric.ParseSleepStage(user.ID, p)
				if !ok {
					continue
				}
				s.stageSleep(ctx, iv, cache, res)
			}
			continue
		}

		if !cache.Seeded(user.ID, d.Kind, start) {
			stored, err := s.store.ReadingTimestamps(ctx, user.ID, d.Kind, start, end)
			if err != nil {
				return fmt.Errorf("prefetch %s: %w", d.Kind, err)
			}
			cache.SeedReadings(ctx, user.ID, d.Kind, start, stored)
		}
		for _, p := range points {
			r, ok := d.ParseReading(user.ID, p)
			if !ok {
				continue
			}
			if cache.SeenAndRecordReading(ctx, user.ID, d.Kind, r.Timestamp) {
				res.Duplicates++
				metrics.RecordDuplicateSkipped(d.Kind.String())
				continue
			}
			r.Activity = idx.Lookup(r.Timestamp)
			res.Batch.Readings = append(res.Batch.Readings, r)
		}
	}

	sessions, err := s.remote.FetchSleepSessions(ctx, user.AccessToken,
		start.Format(time.RFC3339), end.Format(time.RFC3339))
	if err != nil {
		if errors.Is(err, fitness.ErrUnauthorized) {
			return err
		}
		res.Skipped++
		s.log.Warn(ctx, "sleep sessions skipped",
			logger.String("user_id", user.ID), logger.Time("day", start), logger.Error(err))
		return nil
	}
	if err := s.seedSleep(ctx, user.ID, start, cache); err != nil {
		return err
	}
	for _, ss := range sessions {
		iv := model.NewSleepInterval(user.ID, ss.Start, ss.End)
		if !iv.End.After(iv.Start) {
			continue
		}
		s.stageSleep(ctx, iv, cache, res)
	}
	return nil
}

func (s *Syncer) seedSleep(ctx context.Context, userID string, start time.Time, cache *dedupe.DayCache) error {
	if cache.Seeded(userID, model.Sleep, start) {
		return nil
	}
	stored, err := s.store.SleepIntervals(ctx, userID, start, start.Add(day))
	if err != nil {
		return fmt.Errorf("prefetch sleep: %w", err)
	}
	cache.SeedSleep(ctx, userID, start, stored)
	return nil
}

func (s *Syncer) stageSleep(ctx context.Context, iv model.SleepInterval, cache *dedupe.DayCache, res *Result) {
	if cache.SeenAndRecordSleep(ctx, iv.UserID, iv.Start, iv.End) {
		res.Duplicates++
		metrics.RecordDuplicateSkipped(model.Sleep.String())
		return
	}
	res.Batch.Sleep = append(res.Batch.Sleep, iv)
}
