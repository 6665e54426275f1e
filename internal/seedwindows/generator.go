// Package seedwindows writes synthetic resting vitals so a user's model can be
// trained without a provider account.
package seedwindows

import (
	"math/rand"
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
)

const windowWidth = 5 * time.Minute

// Physiological clamps.
const (
	hrMin, hrMax   = 45, 150
	spo2Min        = 85
	spo2Max        = 100
	sysMin, sysMax = 90, 200
	diaMin, diaMax = 55, 130
)

// Anomaly kinds injected into chosen windows.
const (
	anomalyHRSpike = iota
	anomalySpO2Drop
	anomalyBPSpike
	anomalyKinds
)

// Baseline is a user's resting centre.
type Baseline struct {
	HeartRate float64
	SpO2      float64
	Systolic  float64
	Diastolic float64
}

// Generator draws resting readings around a random baseline.
type Generator struct {
	rng  *rand.Rand
	base Baseline
}

// NewGenerator picks a baseline from seed.
func NewGenerator(seed int64) *Generator {
	rng := rand.New(rand.NewSource(seed))
	return &Generator{
		rng: rng,
		base: Baseline{
			HeartRate: uniform(rng, 65, 75),
			SpO2:      uniform(rng, 97, 99),
			Systolic:  uniform(rng, 115, 125),
			Diastolic: uniform(rng, 75, 85),
		},
	}
}

// Baseline returns the drawn centre.
func (g *Generator) Baseline() Baseline { return g.base }

// Generate returns n windows ending at end (aligned down to the window width),
// three readings per window sharing one timestamp, plus the number of windows
// that received an injected anomaly.
func (g *Generator) Generate(userID string, end time.Time, n, anomalies int) ([]model.Reading, int) {
	end = model.NormalizeTime(end).Truncate(windowWidth)
	if anomalies > n {
		anomalies = n
	}
	if anomalies < 0 {
		anomalies = 0
	}
	spiked := make(map[int]struct{}, anomalies)
	for _, i := range g.rng.Perm(n)[:anomalies] {
		spiked[i] = struct{}{}
	}

	out := make([]model.Reading, 0, n*3)
	for i := n - 1; i >= 0; i-- {
		ts := end.Add(-time.Duration(i) * windowWidth)
		hr := g.rng.NormFloat64()*3 + g.base.HeartRate
		spo2 := g.rng.NormFloat64()*0.6 + g.base.SpO2
		sys := g.rng.NormFloat64()*8 + g.base.Systolic
		dia := g.rng.NormFloat64()*6 + g.base.Diastolic

		if _, ok := spiked[i]; ok {
			switch g.rng.Intn(anomalyKinds) {
			case anomalyHRSpike:
				hr += uniform(g.rng, 25, 45)
			case anomalySpO2Drop:
				spo2 -= uniform(g.rng, 4, 8)
			case anomalyBPSpike:
				sys += uniform(g.rng, 25, 50)
				dia += uniform(g.rng, 15, 30)
			}
		}

		out = append(out,
			model.Reading{
				UserID: userID, Metric: model.HeartRate, Timestamp: ts,
				Value: model.Round(clamp(hr, hrMin, hrMax), 1), Activity: model.ActivityResting,
			},
			model.Reading{
				UserID: userID, Metric: model.SpO2, Timestamp: ts,
				Value: model.Round(clamp(spo2, spo2Min, spo2Max), 1), Activity: model.ActivityResting,
			},
			model.Reading{
				UserID: userID, Metric: model.BloodPressure, Timestamp: ts,
				Systolic:  int(clamp(sys, sysMin, sysMax)),
				Diastolic: int(clamp(dia, diaMin, diaMax)),
				Activity:  model.ActivityResting,
			},
		)
	}
	return out, anomalies
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
