package dedupe

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
)

// DayCache holds the timestamps and sleep pairs already stored or staged
// during one sync pass. Sets are kept per (user, metric) so that writes staged
// on an earlier day stay visible when a later day overlaps them; seeding is
// tracked per day so each (user, metric, day) is prefetched once.
type DayCache struct {
	mu     sync.Mutex
	sets   map[scope]Deduper
	seeded map[dayScope]struct{}
}

type scope struct {
	userID string
	metric model.MetricKind
}

type dayScope struct {
	scope
	day int64
}

// NewDayCache returns an empty cache.
func NewDayCache() *DayCache {
	return &DayCache{
		sets:   make(map[scope]Deduper),
		seeded: make(map[dayScope]struct{}),
	}
}

func (c *DayCache) set(s scope) Deduper {
	d, ok := c.sets[s]
	if !ok {
		d = NewInMemoryDeduper(WithMaxSize(0))
		c.sets[s] = d
	}
	return d
}

// Seeded reports whether (user, metric, day) was already prefetched.
func (c *DayCache) Seeded(userID string, metric model.MetricKind, day time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seeded[dayScope{scope{userID, metric}, day.Unix()}]
	return ok
}

// SeedReadings loads stored timestamps for (user, metric, day).
func (c *DayCache) SeedReadings(ctx context.Context, userID string, metric model.MetricKind, day time.Time, stored []time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := scope{userID, metric}
	c.seeded[dayScope{s, day.Unix()}] = struct{}{}
	d := c.set(s)
	for _, ts := range stored {
		d.SeenAndRecord(ctx, readingKey(ts))
	}
}

// SeenAndRecordReading reports whether ts is known for (user, metric) and
// records it if not.
func (c *DayCache) SeenAndRecordReading(ctx context.Context, userID string, metric model.MetricKind, ts time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set(scope{userID, metric}).SeenAndRecord(ctx, readingKey(ts))
}

// SeedSleep loads stored (start, end) pairs overlapping day.
func (c *DayCache) SeedSleep(ctx context.Context, userID string, day time.Time, stored []model.SleepInterval) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := scope{userID, model.Sleep}
	c.seeded[dayScope{s, day.Unix()}] = struct{}{}
	d := c.set(s)
	for _, si := range stored {
		d.SeenAndRecord(ctx, sleepKey(si.Start, si.End))
	}
}

// SeenAndRecordSleep reports whether the (start, end) pair is known and records it if not.
func (c *DayCache) SeenAndRecordSleep(ctx context.Context, userID string, start, end time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set(scope{userID, model.Sleep}).SeenAndRecord(ctx, sleepKey(start, end))
}

// Size returns the number of keys held for (user, metric).
func (c *DayCache) Size(userID string, metric model.MetricKind) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.sets[scope{userID, metric}]; ok {
		return d.Size()
	}
	return 0
}

func readingKey(ts time.Time) string {
	return strconv.FormatInt(model.NormalizeTime(ts).Unix(), 10)
}

func sleepKey(start, end time.Time) string {
	return strconv.FormatInt(model.NormalizeTime(start).Unix(), 10) + "-" +
		strconv.FormatInt(model.NormalizeTime(end).Unix(), 10)
}
