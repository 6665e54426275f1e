package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/pkg/metrics"
)

type readingKey struct {
	kind model.MetricKind
	ts   int64
}

type sleepKey struct {
	start int64
	end   int64
}

// userData holds one user's rows. Readings are unique on (kind, timestamp)
// and sleep intervals on (start, end).
type userData struct {
	user     model.User
	readings map[readingKey]model.Reading
	sleep    map[sleepKey]model.SleepInterval
}

// MemoryStore is an in-memory Store for local runs and tests.
type MemoryStore struct {
	mu               sync.RWMutex
	users            map[string]*userData
	snapshotInterval time.Duration

	// snapshot is the last published Stats
	snapshot atomic.Pointer[Stats]

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs an empty store and starts its snapshot loop.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		users:            make(map[string]*userData),
		snapshotInterval: 5 * time.Second,
		stopChan:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.publishSnapshot()
	s.startPeriodicSnapshots(ctx)
	return s
}

// startPeriodicSnapshots rebuilds the stats snapshot at the configured interval.
func (s *MemoryStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishSnapshot()
			}
		}
	}()
}

func (s *MemoryStore) publishSnapshot() {
	st := Stats{PerMetric: make(map[string]int), TakenAt: time.Now().UTC()}
	s.mu.RLock()
	for _, u := range s.users {
		if u.user.AccessToken != "" {
			st.Users++
		}
		for k := range u.readings {
			st.PerMetric[k.kind.String()]++
		}
		st.Readings += len(u.readings)
		st.SleepIntervals += len(u.sleep)
	}
	s.mu.RUnlock()
	s.snapshot.Store(&st)
	metrics.UpdateTrackedUsers(st.Users)
}

// Close stops the snapshot goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Stats returns the last published snapshot.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	if st := s.snapshot.Load(); st != nil {
		return *st, nil
	}
	return Stats{PerMetric: map[string]int{}}, nil
}

// Refresh republishes the stats snapshot immediately.
func (s *MemoryStore) Refresh() { s.publishSnapshot() }

func (s *MemoryStore) data(id string) *userData {
	u, ok := s.users[id]
	if !ok {
		u = &userData{
			user:     model.User{ID: id},
			readings: make(map[readingKey]model.Reading),
			sleep:    make(map[sleepKey]model.SleepInterval),
		}
		s.users[id] = u
	}
	return u
}

// ListUsers implements Store.
func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		if u.user.AccessToken == "" {
			continue
		}
		out = append(out, copyUser(u.user))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetUser implements Store.
func (s *MemoryStore) GetUser(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return copyUser(u.user), nil
}

// CreateUser implements Store.
func (s *MemoryStore) CreateUser(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrUserExists
	}
	s.data(u.ID).user = copyUser(u)
	return nil
}

// SetAccessToken implements Store.
func (s *MemoryStore) SetAccessToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.user.AccessToken = token
	return nil
}

// ReadingTimestamps implements Store.
func (s *MemoryStore) ReadingTimestamps(_ context.Context, userID string, kind model.MetricKind, from, to time.Time) ([]time.Time, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds())) }()
	if err := checkRange(from, to); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	var out []time.Time
	for k, r := range u.readings {
		if k.kind == kind && inRange(r.Timestamp, from, to) {
			out = append(out, r.Timestamp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// SleepIntervals implements Store.
func (s *MemoryStore) SleepIntervals(_ context.Context, userID string, from, to time.Time) ([]model.SleepInterval, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	var out []model.SleepInterval
	for _, iv := range u.sleep {
		if iv.Start.Before(to) && iv.End.After(from) {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Readings implements Store.
func (s *MemoryStore) Readings(_ context.Context, userID string, kinds []model.MetricKind, from, to time.Time) ([]model.Reading, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds())) }()
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	want := make(map[model.MetricKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	var out []model.Reading
	for k, r := range u.readings {
		if (len(want) == 0 || want[k.kind]) && inRange(r.Timestamp, from, to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Metric < out[j].Metric
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Commit implements Store.
func (s *MemoryStore) Commit(_ context.Context, batch model.Batch, watermark time.Time) (CommitResult, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryCommitLatency(float64(time.Since(start).Milliseconds())) }()

	res := CommitResult{PerMetric: make(map[model.MetricKind]int)}
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.data(batch.UserID)
	for _, r := range batch.Readings {
		r.UserID = batch.UserID
		r.Timestamp = model.NormalizeTime(r.Timestamp)
		k := readingKey{kind: r.Metric, ts: r.Timestamp.Unix()}
		if _, dup := u.readings[k]; dup {
			res.Duplicates++
			continue
		}
		u.readings[k] = r
		res.Readings++
		res.PerMetric[r.Metric]++
	}
	for _, iv := range batch.Sleep {
		iv.UserID = batch.UserID
		k := sleepKey{start: iv.Start.Unix(), end: iv.End.Unix()}
		if _, dup := u.sleep[k]; dup {
			res.Duplicates++
			continue
		}
		u.sleep[k] = iv
		res.Sleep++
	}
	if !watermark.IsZero() {
		wm := model.NormalizeTime(watermark)
		u.user.LastSyncedAt = &wm
	}
	return res, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func copyUser(u model.User) model.User {
	if u.LastSyncedAt != nil {
		wm := *u.LastSyncedAt
		u.LastSyncedAt = &wm
	}
	return u
}
