package metric

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/vitalsync/internal/domain/model"
)

// Reducer collapses the samples of one window into a single value.
type Reducer func(vals []float64) float64

// Feature is one column of a windowed vector.
type Feature struct {
	Name    string
	Reduce  Reducer
	Extract func(model.Reading) float64
}

// Features returns the anomaly features in vector order.
func Features() []Feature {
	var out []Feature
	for _, d := range Descriptors() {
		out = append(out, d.Features...)
	}
	return out
}

// Reducers.
var (
	// Mean is the arithmetic mean.
	Mean Reducer = func(vals []float64) float64 { return stat.Mean(vals, nil) }
	// Min keeps the worst (lowest) reading; used for SpO2.
	Min Reducer = floats.Min
	// Max keeps the highest reading; used for blood pressure.
	Max Reducer = floats.Max
)

func scalar(r model.Reading) float64    { return r.Value }
func systolic(r model.Reading) float64  { return float64(r.Systolic) }
func diastolic(r model.Reading) float64 { return float64(r.Diastolic) }
