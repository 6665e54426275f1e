package service

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/vitalsync/internal/domain/model"
)

// Summary series names that do not match a metric kind.
const (
	SeriesSystolic   = "systolic_bp"
	SeriesDiastolic  = "diastolic_bp"
	SeriesSleepHours = "sleep_hours"
)

// ReadingView is the API shape of a stored reading.
type ReadingView struct {
	Metric    string    `json:"metric"`
	Timestamp time.Time `json:"timestamp"`
	Value     *float64  `json:"value,omitempty"`
	Systolic  *int      `json:"systolic,omitempty"`
	Diastolic *int      `json:"diastolic,omitempty"`
	Activity  string    `json:"activity"`
}

// Summary aggregates one series over the requested range.
type Summary struct {
	Series string  `json:"series"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// History is a range read of a user's stored data.
type History struct {
	UserID    string                `json:"user_id"`
	From      time.Time             `json:"from"`
	To        time.Time             `json:"to"`
	Readings  []ReadingView         `json:"readings"`
	Sleep     []model.SleepInterval `json:"sleep,omitempty"`
	Summaries []Summary             `json:"summaries"`
}

// History returns stored readings of kinds in [from, to) with per-series
// summaries. An empty kinds list means every kind. Sleep intervals are
// included when kinds is empty or names model.Sleep.
func (s *Service) History(ctx context.Context, userID string, kinds []model.MetricKind, from, to time.Time) (History, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return History{}, err
	}
	readings, err := s.store.Readings(ctx, userID, kinds, from, to)
	if err != nil {
		return History{}, err
	}

	h := History{
		UserID:   userID,
		From:     from.UTC(),
		To:       to.UTC(),
		Readings: make([]ReadingView, 0, len(readings)),
	}
	series := make(map[string][]float64)
	for _, r := range readings {
		v := ReadingView{Metric: r.Metric.String(), Timestamp: r.Timestamp, Activity: r.Activity}
		if r.Metric == model.BloodPressure {
			sys, dia := r.Systolic, r.Diastolic
			v.Systolic, v.Diastolic = &sys, &dia
			series[SeriesSystolic] = append(series[SeriesSystolic], float64(sys))
			series[SeriesDiastolic] = append(series[SeriesDiastolic], float64(dia))
		} else {
			val := r.Value
			v.Value = &val
			series[r.Metric.String()] = append(series[r.Metric.String()], val)
		}
		h.Readings = append(h.Readings, v)
	}

	if wantsSleep(kinds) {
		sleep, err := s.store.SleepIntervals(ctx, userID, from, to)
		if err != nil {
			return History{}, err
		}
		h.Sleep = sleep
		for _, iv := range sleep {
			series[SeriesSleepHours] = append(series[SeriesSleepHours], iv.DurationHours)
		}
	}

	h.Summaries = summarize(series)
	return h, nil
}

func wantsSleep(kinds []model.MetricKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == model.Sleep {
			return true
		}
	}
	return false
}

func summarize(series map[string][]float64) []Summary {
	out := make([]Summary, 0, len(series))
	for name, vals := range series {
		if len(vals) == 0 {
			continue
		}
		out = append(out, Summary{
			Series: name,
			Count:  len(vals),
			Mean:   model.Round(stat.Mean(vals, nil), 2),
			Min:    floats.Min(vals),
			Max:    floats.Max(vals),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Series < out[j].Series })
	return out
}
