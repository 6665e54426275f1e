// Package metric decodes raw provider points into typed readings.
//
// Every metric kind is described by one Descriptor carrying its provider data
// type, its parser and, for anomaly features, its window reducers.
package metric

import (
	"sort"
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
)

// Value is one entry of a raw point's value list.
type Value struct {
	FP  *float64
	Int *int64
}

// Point is one raw provider sample.
type Point struct {
	StartNanos int64
	EndNanos   int64
	Values     []Value
}

// Start returns the point start as whole UTC seconds.
func (p Point) Start() time.Time {
	return model.NormalizeTime(time.Unix(0, p.StartNanos))
}

// End returns the point end as whole UTC seconds.
func (p Point) End() time.Time {
	return model.NormalizeTime(time.Unix(0, p.EndNanos))
}

// Shape tells the orchestrator which store path a kind takes.
type Shape uint8

// Shapes.
const (
	ShapeScalar   Shape = iota // one numeric value
	ShapePair                  // systolic/diastolic
	ShapeInterval              // sleep stage -> SleepInterval
)

// Descriptor describes one metric kind.
type Descriptor struct {
	Kind     model.MetricKind
	DataType string
	Shape    Shape
	Features []Feature
	parse    func(userID string, p Point) (model.Reading, bool)
}

// ParseReading decodes p into a Reading. Interval kinds never yield readings.
func (d Descriptor) ParseReading(userID string, p Point) (model.Reading, bool) {
	if d.parse == nil {
		return model.Reading{}, false
	}
	r, ok := d.parse(userID, p)
	if !ok {
		return model.Reading{}, false
	}
	r.UserID = userID
	r.Metric = d.Kind
	r.Timestamp = p.Start()
	return r, true
}

// Sleep stage codes retained as meaningful sleep.
const (
	SleepStageLight = 4
	SleepStageDeep  = 5
	SleepStageREM   = 6
)

var descriptors = [model.MetricKindCount]Descriptor{
	model.HeartRate: {
		Kind:     model.HeartRate,
		DataType: "com.google.heart_rate.bpm",
		Shape:    ShapeScalar,
		parse:    parseNumeric,
		Features: []Feature{{Name: model.FeatureHeartRate, Reduce: Mean, Extract: scalar}},
	},
	model.SpO2: {
		Kind:     model.SpO2,
		DataType: "com.google.oxygen_saturation",
		Shape:    ShapeScalar,
		parse:    parseNumeric,
		Features: []Feature{{Name: model.FeatureSpO2, Reduce: Min, Extract: scalar}},
	},
	model.BloodPressure: {
		Kind:     model.BloodPressure,
		DataType: "com.google.blood_pressure",
		Shape:    ShapePair,
		parse:    parseBloodPressure,
		Features: []Feature{
			{Name: model.FeatureSystolicBP, Reduce: Max, Extract: systolic},
			{Name: model.FeatureDiastolicBP, Reduce: Max, Extract: diastolic},
		},
	},
	model.Sleep: {
		Kind:     model.Sleep,
		DataType: "com.google.sleep.segment",
		Shape:    ShapeInterval,
	},
	model.Steps: {
		Kind:     model.Steps,
		DataType: "com.google.step_count.delta",
		Shape:    ShapeScalar,
		parse:    parseNumeric,
	},
	model.Distance: {
		Kind:     model.Distance,
		DataType: "com.google.distance.delta",
		Shape:    ShapeScalar,
		parse:    parseDistance,
	},
	model.Stress: {
		Kind:     model.Stress,
		DataType: "com.google.stress_level",
		Shape:    ShapeScalar,
		parse:    parseNumeric,
	},
	model.Calories: {
		Kind:     model.Calories,
		DataType: "com.google.calories.expended",
		Shape:    ShapeScalar,
		parse:    parseNumeric,
	},
}

// Describe returns the descriptor of k.
func Describe(k model.MetricKind) (Descriptor, bool) {
	if !k.Valid() {
		return Descriptor{}, false
	}
	return descriptors[k], true
}

// Descriptors returns every synced kind in sync order.
func Descriptors() []Descriptor {
	kinds := model.MetricKinds()
	out := make([]Descriptor, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, descriptors[k])
	}
	return out
}

// ParseReading decodes p for kind k.
func ParseReading(k model.MetricKind, userID string, p Point) (model.Reading, bool) {
	d, ok := Describe(k)
	if !ok {
		return model.Reading{}, false
	}
	return d.ParseReading(userID, p)
}

// ParseSleepStage decodes a sleep stage point. Only light, deep and REM stages
// with a positive duration are kept.
func ParseSleepStage(userID string, p Point) (model.SleepInterval, bool) {
	if len(p.Values) == 0 || p.Values[0].Int == nil {
		return model.SleepInterval{}, false
	}
	switch *p.Values[0].Int {
	case SleepStageLight, SleepStageDeep, SleepStageREM:
	default:
		return model.SleepInterval{}, false
	}
	if p.EndNanos-p.StartNanos <= 0 {
		return model.SleepInterval{}, false
	}
	si := model.NewSleepInterval(userID, p.Start(), p.End())
	if !si.End.After(si.Start) {
		return model.SleepInterval{}, false
	}
	return si, true
}

// firstNumber returns the first value entry, preferring the float field.
func firstNumber(p Point) (float64, bool) {
	if len(p.Values) == 0 {
		return 0, false
	}
	v := p.Values[0]
	switch {
	case v.FP != nil:
		return *v.FP, true
	case v.Int != nil:
		return float64(*v.Int), true
	}
	return 0, false
}

func parseNumeric(_ string, p Point) (model.Reading, bool) {
	v, ok := firstNumber(p)
	if !ok {
		return model.Reading{}, false
	}
	return model.Reading{Value: v}, true
}

// parseDistance converts meters to kilometers and drops non-positive samples.
func parseDistance(_ string, p Point) (model.Reading, bool) {
	v, ok := firstNumber(p)
	if !ok || v <= 0 {
		return model.Reading{}, false
	}
	return model.Reading{Value: model.Round(v/1000, 2)}, true
}

// parseBloodPressure assigns the larger float to systolic; the feed carries no
// field that distinguishes the two.
func parseBloodPressure(_ string, p Point) (model.Reading, bool) {
	vals := make([]float64, 0, len(p.Values))
	for _, v := range p.Values {
		if v.FP != nil {
			vals = append(vals, *v.FP)
		}
	}
	if len(vals) < 2 {
		return model.Reading{}, false
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))
	return model.Reading{
		Systolic:  int(vals[0]),
		Diastolic: int(vals[len(vals)-1]),
	}, true
}
