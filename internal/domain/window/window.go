// Package window resamples resting readings into fixed-width feature vectors.
package window

import (
	"sort"
	"time"

	"github.com/okian/vitalsync/internal/domain/metric"
	"github.com/okian/vitalsync/internal/domain/model"
)

// DefaultWidth is the bucket width of a resting window.
const DefaultWidth = 5 * time.Minute

// Aggregator buckets readings into windows.
type Aggregator struct {
	width    time.Duration
	features []metric.Feature
	byKind   [model.MetricKindCount][]int // feature indexes fed by each kind
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithWidth sets the bucket width.
func WithWidth(width time.Duration) Option {
	return func(a *Aggregator) {
		if width > 0 {
			a.width = width
		}
	}
}

// NewAggregator creates an aggregator over the tracked anomaly features.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{width: DefaultWidth}
	for _, opt := range opts {
		opt(a)
	}
	for _, d := range metric.Descriptors() {
		for _, f := range d.Features {
			a.byKind[d.Kind] = append(a.byKind[d.Kind], len(a.features))
			a.features = append(a.features, f)
		}
	}
	return a
}

// Width returns the bucket width.
func (a *Aggregator) Width() time.Duration {
	return a.width
}

// Aggregate reduces resting readings into complete vectors ordered by window start.
// Readings with other activity labels or untracked kinds are ignored; windows
// missing any feature are dropped.
func (a *Aggregator) Aggregate(readings []model.Reading) []model.WindowedVector {
	buckets := make(map[int64][][]float64)
	for _, r := range readings {
		if r.Activity != model.ActivityResting || !r.Metric.Valid() {
			continue
		}
		idx := a.byKind[r.Metric]
		if len(idx) == 0 {
			continue
		}
		key := r.Timestamp.UTC().Truncate(a.width).Unix()
		cols, ok := buckets[key]
		if !ok {
			cols = make([][]float64, len(a.features))
			buckets[key] = cols
		}
		for _, i := range idx {
			cols[i] = append(cols[i], a.features[i].Extract(r))
		}
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]model.WindowedVector, 0, len(keys))
	vals := make([]float64, len(a.features))
	for _, k := range keys {
		cols := buckets[k]
		complete := true
		for i, f := range a.features {
			if len(cols[i]) == 0 {
				complete = false
				break
			}
			vals[i] = f.Reduce(cols[i])
		}
		if !complete {
			continue
		}
		out = append(out, model.WindowedVector{
			Start:     time.Unix(k, 0).UTC(),
			HeartRate: vals[0],
			SpO2:      vals[1],
			Systolic:  vals[2],
			Diastolic: vals[3],
		})
	}
	return out
}

// CountResting returns how many readings of tracked kinds are resting.
func (a *Aggregator) CountResting(readings []model.Reading) int {
	n := 0
	for _, r := range readings {
		if r.Activity == model.ActivityResting && r.Metric.Valid() && len(a.byKind[r.Metric]) > 0 {
			n++
		}
	}
	return n
}

// TrackedKinds returns the metric kinds that feed windows.
func (a *Aggregator) TrackedKinds() []model.MetricKind {
	var out []model.MetricKind
	for _, k := range model.MetricKinds() {
		if len(a.byKind[k]) > 0 {
			out = append(out, k)
		}
	}
	return out
}
