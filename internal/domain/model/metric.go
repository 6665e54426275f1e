// Package model contains domain models passed between layers.
package model

import "strings"

// MetricKind enumerates the biometric series synced from the fitness provider.
type MetricKind uint8

// Metric kinds. Values are stable; they index per-kind tables.
const (
	MetricUnknown MetricKind = iota
	HeartRate
	SpO2
	BloodPressure
	Sleep
	Steps
	Distance
	Stress
	Calories

	metricKindCount
)

// MetricKindCount is the size of tables indexed by MetricKind.
const MetricKindCount = int(metricKindCount)

var metricNames = [metricKindCount]string{
	MetricUnknown: "unknown",
	HeartRate:     "heart_rate",
	SpO2:          "spo2",
	BloodPressure: "blood_pressure",
	Sleep:         "sleep",
	Steps:         "steps",
	Distance:      "distance",
	Stress:        "stress",
	Calories:      "calories",
}

// String returns the storage name of the metric kind.
func (k MetricKind) String() string {
	if k >= metricKindCount {
		return metricNames[MetricUnknown]
	}
	return metricNames[k]
}

// Valid reports whether k names a real metric.
func (k MetricKind) Valid() bool {
	return k > MetricUnknown && k < metricKindCount
}

// ParseMetricKind maps a storage name back to its kind.
func ParseMetricKind(s string) (MetricKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k := HeartRate; k < metricKindCount; k++ {
		if metricNames[k] == s {
			return k, true
		}
	}
	return MetricUnknown, false
}

// MetricKinds returns every valid kind in sync order.
func MetricKinds() []MetricKind {
	out := make([]MetricKind, 0, MetricKindCount-1)
	for k := HeartRate; k < metricKindCount; k++ {
		out = append(out, k)
	}
	return out
}
