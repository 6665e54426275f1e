// Package activity tags timestamps with the provider's activity segments.
package activity

import (
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
)

// Unknown is the label of codes missing from the table.
const Unknown = "unknown"

// labels maps provider activity codes to names.
var labels = map[int64]string{
	0:   "in_vehicle",
	1:   "biking",
	2:   "on_foot",
	3:   "still",
	7:   "walking",
	8:   "running",
	9:   "aerobics",
	10:  "badminton",
	16:  "strength_training",
	72:  "sleeping",
	97:  "tilting",
	100: Unknown,
	102: "light_sleep",
	109: "deep_sleep",
}

// Label returns the activity name of a provider code.
func Label(code int64) string {
	if l, ok := labels[code]; ok {
		return l
	}
	return Unknown
}

// Index answers "what was the user doing at T" for one day.
type Index struct {
	segments []model.ActivitySegment
}

// NewIndex builds an index over segments in the order given.
func NewIndex(segments []model.ActivitySegment) *Index {
	return &Index{segments: segments}
}

// Lookup returns the label of the first segment with start <= t <= end,
// or model.ActivityResting when none matches.
func (i *Index) Lookup(t time.Time) string {
	if i == nil {
		return model.ActivityResting
	}
	for _, s := range i.segments {
		if !t.Before(s.Start) && !t.After(s.End) {
			return s.Label
		}
	}
	return model.ActivityResting
}

// Len returns the number of indexed segments.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.segments)
}
