// Package service wires the sync orchestrator, storage, training and scoring
// into the operations exposed by the API and CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/vitalsync/internal/adapters/mq/queue"
	"github.com/okian/vitalsync/internal/adapters/mq/worker"
	"github.com/okian/vitalsync/internal/adapters/repository"
	"github.com/okian/vitalsync/internal/domain/dedupe"
	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/internal/domain/retrain"
	"github.com/okian/vitalsync/internal/domain/scoring"
	"github.com/okian/vitalsync/internal/domain/window"
	"github.com/okian/vitalsync/pkg/logger"
	"github.com/okian/vitalsync/pkg/metrics"
	"github.com/okian/vitalsync/pkg/tracing"
)

// Model readiness states.
const (
	ModelCollectingBaseline = "collecting_baseline"
	ModelTraining           = "training"
	ModelTrained            = "trained"
)

// Job reasons.
const (
	ReasonManual   = "manual"
	ReasonSchedule = "schedule"
)

const (
	dateLayout      = "2006-01-02"
	defaultQueue    = 1024
	defaultWorkers  = 4
	defaultMaxDays  = 90
	inflightPrefix  = "sync:"
	shutdownTimeout = 10 * time.Second
)

// epoch bounds full-history reads.
var epoch = time.Unix(0, 0).UTC()

// VerdictCache is the shared state used across instances. Implemented by the
// Redis cache adapter.
type VerdictCache interface {
	GetVerdict(ctx context.Context, userID, date string) (scoring.Verdict, bool, error)
	PutVerdict(ctx context.Context, userID string, v scoring.Verdict) error
	InvalidateVerdicts(ctx context.Context, userID string) error
	SetTraining(ctx context.Context, userID string) error
	ClearTraining(ctx context.Context, userID string) error
	IsTraining(ctx context.Context, userID string) (bool, error)
	AcquireSyncLock(ctx context.Context, userID string) (func(context.Context) error, bool, error)
}

// RetrainReport describes the gate outcome after a sync.
type RetrainReport struct {
	Retrained  bool   `json:"retrained"`
	Reason     string `json:"reason"`
	Windows    int    `json:"windows"`
	NewWindows int    `json:"new_windows"`
	Error      string `json:"error,omitempty"`
}

// SyncReport is the committed outcome of one sync.
type SyncReport struct {
	RunID      string         `json:"run_id"`
	UserID     string         `json:"user_id"`
	From       time.Time      `json:"from"`
	Watermark  time.Time      `json:"watermark"`
	Days       int            `json:"days"`
	Readings   int            `json:"readings_added"`
	Sleep      int            `json:"sleep_added"`
	Duplicates int            `json:"duplicates"`
	Skipped    int            `json:"skipped"`
	PerMetric  map[string]int `json:"per_metric"`
	Retrain    *RetrainReport `json:"retrain,omitempty"`
}

// Added returns the number of rows the sync wrote.
func (r SyncReport) Added() int { return r.Readings + r.Sleep }

// ModelStatus is the readiness probe result.
type ModelStatus struct {
	UserID     string               `json:"user_id"`
	Status     string               `json:"status"`
	Windows    int                  `json:"windows"`
	MinWindows int                  `json:"min_windows"`
	Metadata   *model.ModelMetadata `json:"metadata,omitempty"`
}

// Service runs syncs, training and scoring for all users.
type Service struct {
	store      repository.Store
	artifacts  scoring.ArtifactStore
	syncer     *Syncer
	trainer    *scoring.Trainer
	scorer     *scoring.DayScorer
	aggregator *window.Aggregator
	policy     retrain.Policy
	cache      VerdictCache

	inflight dedupe.Deduper
	pending  sync.Map // queued job ID -> user ID
	training sync.Map

	remote           Remote
	syncOpts         []SyncerOption
	trainerOpts      []scoring.TrainerOption
	scorerOpts       []scoring.ScorerOption
	windowWidth      time.Duration
	fallbackDays     int
	maxFallbackDays  int
	loc              *time.Location
	workerCount      int
	queueSize        int
	scheduleInterval time.Duration
	now              func() time.Time

	mu        sync.Mutex
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	scheduler *Scheduler
	started   atomic.Bool

	log logger.Logger
}

// New creates a Service.
func New(store repository.Store, remote Remote, artifacts scoring.ArtifactStore, opts ...Option) *Service {
	s := &Service{
		store:           store,
		artifacts:       artifacts,
		remote:          remote,
		policy:          retrain.NewPolicy(),
		inflight:        dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0)),
		windowWidth:     window.DefaultWidth,
		fallbackDays:    DefaultFallbackDays,
		maxFallbackDays: defaultMaxDays,
		loc:             time.UTC,
		workerCount:     defaultWorkers,
		queueSize:       defaultQueue,
		now:             time.Now,
		log:             logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.syncer = NewSyncer(remote, store, s.syncOpts...)
	s.trainer = scoring.NewTrainer(artifacts, append([]scoring.TrainerOption{
		scoring.WithMinWindows(s.policy.MinWindowsToTrain),
	}, s.trainerOpts...)...)
	s.scorer = scoring.NewDayScorer(artifacts, s.scorerOpts...)
	s.aggregator = window.NewAggregator(window.WithWidth(s.windowWidth))
	return s
}

// Start launches the worker pool and, when configured, the scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.Load() {
		return nil
	}
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize), queue.WithBufferSize(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(ctx)
	if s.scheduleInterval > 0 {
		s.scheduler = NewScheduler(s.store, s, s.scheduleInterval)
		s.scheduler.Start(ctx)
	}
	s.started.Store(true)
	s.log.Info(ctx, "service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Duration("schedule_interval", s.scheduleInterval))
	return nil
}

// Stop drains the worker pool and stops the scheduler.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started.Load() {
		return nil
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := s.pool.Shutdown(ctx)
	s.releasePending(ctx)
	s.started.Store(false)
	return err
}

// releasePending frees the in-flight keys of jobs the pool never ran.
func (s *Service) releasePending(ctx context.Context) {
	dropped := 0
	s.pending.Range(func(k, v any) bool {
		if _, ok := s.pending.LoadAndDelete(k); ok {
			s.inflight.Unrecord(ctx, inflightPrefix+v.(string))
			dropped++
		}
		return true
	})
	if dropped > 0 {
		s.log.Warn(ctx, "dropped queued sync jobs on stop", logger.Int("jobs", dropped))
	}
}

// EnqueueSync schedules a background sync. A user with a sync already queued
// or running is rejected with ErrUserBusy.
func (s *Service) EnqueueSync(ctx context.Context, userID string, fallbackDays int, reason string) (string, error) {
	if !s.started.Load() {
		return "", ErrNotStarted
	}
	if err := s.checkFallback(fallbackDays); err != nil {
		return "", err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return "", err
	}
	key := inflightPrefix + userID
	if s.inflight.SeenAndRecord(ctx, key) {
		return "", ErrUserBusy
	}
	job := model.SyncJob{
		ID:           uuid.NewString(),
		UserID:       userID,
		FallbackDays: fallbackDays,
		Reason:       reason,
	}
	s.pending.Store(job.ID, userID)
	if !s.queue.Enqueue(ctx, job) {
		s.pending.Delete(job.ID)
		s.inflight.Unrecord(ctx, key)
		return "", ErrQueueFull
	}
	s.log.Debug(ctx, "sync enqueued",
		logger.String("user_id", userID), logger.String("job_id", job.ID), logger.String("reason", reason))
	return job.ID, nil
}

// ProcessSync runs a queued sync job.
// Jobs released by Stop are skipped.
func (s *Service) ProcessSync(ctx context.Context, job model.SyncJob) error {
	if _, ok := s.pending.LoadAndDelete(job.ID); !ok {
		s.log.Warn(ctx, "skipping released sync job",
			logger.String("job_id", job.ID), logger.String("user_id", job.UserID))
		return nil
	}
	defer s.inflight.Unrecord(ctx, inflightPrefix+job.UserID)
	_, err := s.runSync(ctx, job.UserID, job.FallbackDays)
	if errors.Is(err, ErrUserBusy) {
		return nil
	}
	return err
}

// SyncUser runs a sync for one user in the caller's goroutine.
func (s *Service) SyncUser(ctx context.Context, userID string, fallbackDays int) (SyncReport, error) {
	if err := s.checkFallback(fallbackDays); err != nil {
		return SyncReport{}, err
	}
	key := inflightPrefix + userID
	if s.inflight.SeenAndRecord(ctx, key) {
		return SyncReport{}, ErrUserBusy
	}
	defer s.inflight.Unrecord(ctx, key)
	return s.runSync(ctx, userID, fallbackDays)
}

func (s *Service) runSync(ctx context.Context, userID string, fallbackDays int) (SyncReport, error) {
	ctx, span := tracing.StartSpan(ctx, "service.sync", attribute.String("user_id", userID))
	defer span.End()
	start := time.Now()

	report, err := s.syncAndCommit(ctx, userID, fallbackDays)
	metrics.RecordSyncLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		tracing.RecordError(span, err)
		outcome := "error"
		if errors.Is(err, ErrUserBusy) {
			outcome = "busy"
		}
		metrics.RecordSyncRun(outcome)
		s.log.Warn(ctx, "sync failed", logger.String("user_id", userID), logger.Error(err))
		return SyncReport{}, err
	}
	metrics.RecordSyncRun("ok")
	return report, nil
}

func (s *Service) syncAndCommit(ctx context.Context, userID string, fallbackDays int) (SyncReport, error) {
	if s.cache != nil {
		release, ok, err := s.cache.AcquireSyncLock(ctx, userID)
		if err != nil {
			return SyncReport{}, fmt.Errorf("acquire sync lock: %w", err)
		}
		if !ok {
			return SyncReport{}, ErrUserBusy
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn(ctx, "release sync lock", logger.String("user_id", userID), logger.Error(err))
			}
		}()
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return SyncReport{}, err
	}
	if fallbackDays <= 0 {
		fallbackDays = s.fallbackDays
	}
	res, err := s.syncer.Sync(ctx, Credentials{ID: user.ID, AccessToken: user.AccessToken}, user.LastSyncedAt, fallbackDays)
	if err != nil {
		return SyncReport{}, err
	}

	committed, err := s.store.Commit(ctx, res.Batch, res.Watermark)
	if err != nil {
		return SyncReport{}, fmt.Errorf("commit: %w", err)
	}

	report := SyncReport{
		RunID:      res.RunID,
		UserID:     userID,
		From:       res.From,
		Watermark:  res.Watermark,
		Days:       res.Days,
		Readings:   committed.Readings,
		Sleep:      committed.Sleep,
		Duplicates: res.Duplicates + committed.Duplicates,
		Skipped:    res.Skipped,
		PerMetric:  make(map[string]int, len(committed.PerMetric)),
	}
	for k, n := range committed.PerMetric {
		report.PerMetric[k.String()] = n
		metrics.RecordReadingsAdded(k.String(), n)
	}
	metrics.RecordSleepAdded(committed.Sleep)

	s.log.Info(ctx, "sync committed",
		logger.String("user_id", userID),
		logger.String("run_id", res.RunID),
		logger.Int("readings", committed.Readings),
		logger.Int("sleep", committed.Sleep),
		logger.Int("duplicates", report.Duplicates))

	if committed.Added() == 0 {
		return report, nil
	}
	s.invalidate(ctx, userID)
	report.Retrain = s.maybeRetrain(ctx, userID)
	return report, nil
}

// maybeRetrain consults the gate and trains when it allows. Failures are
// reported but never undo the committed sync.
func (s *Service) maybeRetrain(ctx context.Context, userID string) *RetrainReport {
	windows, err := s.history(ctx, userID)
	if err != nil {
		s.log.Error(ctx, "load windows for retrain", logger.String("user_id", userID), logger.Error(err))
		return &RetrainReport{Error: err.Error()}
	}
	meta, err := scoring.Metadata(ctx, s.artifacts, userID)
	if err != nil {
		// Unreadable artifacts are replaced by a fresh model.
		s.log.Warn(ctx, "read model metadata", logger.String("user_id", userID), logger.Error(err))
		meta = nil
	}
	d := s.policy.Decide(meta, len(windows), s.now())
	rep := &RetrainReport{Reason: d.Reason, Windows: len(windows), NewWindows: d.NewWindows}
	s.log.Debug(ctx, "retrain decision",
		logger.String("user_id", userID),
		logger.Bool("retrain", d.Retrain),
		logger.String("reason", d.Reason),
		logger.Int("windows", len(windows)))
	if !d.Retrain {
		return rep
	}
	if _, err := s.trainLocked(ctx, userID, windows); err != nil {
		rep.Error = err.Error()
		return rep
	}
	rep.Retrained = true
	return rep
}

// Train fits a model on the user's full history regardless of the retrain gate.
// Fewer than the minimum windows still fails with scoring.ErrInsufficientWindows.
func (s *Service) Train(ctx context.Context, userID string) (model.ModelMetadata, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return model.ModelMetadata{}, err
	}
	windows, err := s.history(ctx, userID)
	if err != nil {
		return model.ModelMetadata{}, err
	}
	return s.trainLocked(ctx, userID, windows)
}

func (s *Service) trainLocked(ctx context.Context, userID string, windows []model.WindowedVector) (model.ModelMetadata, error) {
	if _, busy := s.training.LoadOrStore(userID, struct{}{}); busy {
		return model.ModelMetadata{}, ErrUserBusy
	}
	defer s.training.Delete(userID)

	if s.cache != nil {
		if err := s.cache.SetTraining(ctx, userID); err != nil {
			s.log.Warn(ctx, "set training flag", logger.String("user_id", userID), logger.Error(err))
		}
		defer func() {
			if err := s.cache.ClearTraining(context.WithoutCancel(ctx), userID); err != nil {
				s.log.Warn(ctx, "clear training flag", logger.String("user_id", userID), logger.Error(err))
			}
		}()
	}

	meta, err := s.trainer.Train(ctx, userID, windows)
	if err != nil {
		return model.ModelMetadata{}, err
	}
	s.invalidate(ctx, userID)
	return meta, nil
}

// Anomaly scores one calendar day, given as YYYY-MM-DD in the configured zone.
func (s *Service) Anomaly(ctx context.Context, userID, date string) (scoring.Verdict, error) {
	day, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return scoring.Verdict{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return scoring.Verdict{}, err
	}

	if s.cache != nil {
		v, ok, err := s.cache.GetVerdict(ctx, userID, date)
		if err != nil {
			s.log.Warn(ctx, "verdict cache read", logger.String("user_id", userID), logger.Error(err))
		}
		if ok {
			return v, nil
		}
	}

	from := model.DayStart(day, s.loc)
	to := from.AddDate(0, 0, 1)
	readings, err := s.store.Readings(ctx, userID, s.aggregator.TrackedKinds(), from, to)
	if err != nil {
		return scoring.Verdict{}, err
	}
	v, err := s.scorer.Score(ctx, scoring.Input{
		UserID:          userID,
		Date:            date,
		RestingReadings: s.aggregator.CountResting(readings),
		Windows:         s.aggregator.Aggregate(readings),
	})
	if err != nil {
		return scoring.Verdict{}, err
	}

	if s.cache != nil {
		if err := s.cache.PutVerdict(ctx, userID, v); err != nil {
			s.log.Warn(ctx, "verdict cache write", logger.String("user_id", userID), logger.Error(err))
		}
	}
	return v, nil
}

// ModelStatus reports whether the user's model is trained, training or still
// collecting its baseline.
func (s *Service) ModelStatus(ctx context.Context, userID string) (ModelStatus, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return ModelStatus{}, err
	}
	windows, err := s.history(ctx, userID)
	if err != nil {
		return ModelStatus{}, err
	}
	st := ModelStatus{
		UserID:     userID,
		Status:     ModelCollectingBaseline,
		Windows:    len(windows),
		MinWindows: s.trainer.MinWindows(),
	}
	if s.isTraining(ctx, userID) {
		st.Status = ModelTraining
		return st, nil
	}
	meta, err := scoring.Metadata(ctx, s.artifacts, userID)
	if err != nil {
		return ModelStatus{}, err
	}
	if meta != nil {
		st.Status = ModelTrained
		st.Metadata = meta
	}
	return st, nil
}

// Stats returns the store summary.
func (s *Service) Stats(ctx context.Context) (repository.Stats, error) {
	return s.store.Stats(ctx)
}

// QueueLen returns pending jobs, zero before Start.
func (s *Service) QueueLen(ctx context.Context) int {
	if !s.started.Load() {
		return 0
	}
	return s.queue.Len(ctx)
}

func (s *Service) isTraining(ctx context.Context, userID string) bool {
	if _, ok := s.training.Load(userID); ok {
		return true
	}
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.IsTraining(ctx, userID)
	if err != nil {
		s.log.Warn(ctx, "training flag read", logger.String("user_id", userID), logger.Error(err))
		return false
	}
	return ok
}

func (s *Service) history(ctx context.Context, userID string) ([]model.WindowedVector, error) {
	to := s.now().UTC().AddDate(0, 0, 1)
	readings, err := s.store.Readings(ctx, userID, s.aggregator.TrackedKinds(), epoch, to)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return s.aggregator.Aggregate(readings), nil
}

func (s *Service) checkFallback(days int) error {
	if days > s.maxFallbackDays {
		return fmt.Errorf("%w: %d > %d", ErrFallbackTooLarge, days, s.maxFallbackDays)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateVerdicts(ctx, userID); err != nil {
		s.log.Warn(ctx, "invalidate verdicts", logger.String("user_id", userID), logger.Error(err))
	}
}
