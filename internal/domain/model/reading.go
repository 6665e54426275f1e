package model

import (
	"math"
	"time"
)

// ActivityResting is the label assumed when no activity segment covers a timestamp.
const ActivityResting = "resting"

// Reading is one stored biometric sample.
type Reading struct {
	UserID    string
	Metric    MetricKind
	Timestamp time.Time // UTC, whole seconds
	Value     float64   // unused for blood pressure
	Systolic  int       // blood pressure only
	Diastolic int       // blood pressure only
	Activity  string
}

// SleepInterval is one stored sleep period.
type SleepInterval struct {
	UserID        string    `json:"-"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	DurationHours float64   `json:"duration_hours"`
}

// NewSleepInterval normalizes bounds to whole UTC seconds and derives the duration.
func NewSleepInterval(userID string, start, end time.Time) SleepInterval {
	start = NormalizeTime(start)
	end = NormalizeTime(end)
	return SleepInterval{
		UserID:        userID,
		Start:         start,
		End:           end,
		DurationHours: Round(end.Sub(start).Hours(), 2),
	}
}

// ActivitySegment is a day-scoped activity period from the provider.
type ActivitySegment struct {
	Start time.Time
	End   time.Time
	Label string
}

// User is the subset of the user record the pipeline needs.
type User struct {
	ID           string
	Email        string
	AccessToken  string
	LastSyncedAt *time.Time
}

// Batch holds writes staged by one sync pass.
type Batch struct {
	UserID   string
	Readings []Reading
	Sleep    []SleepInterval
}

// Len returns the number of staged rows.
func (b *Batch) Len() int {
	return len(b.Readings) + len(b.Sleep)
}

// NormalizeTime converts t to UTC and truncates sub-second precision.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// DayStart returns midnight of t's day in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
