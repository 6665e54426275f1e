package model

import "time"

// Feature names of a windowed vector, in vector order.
const (
	FeatureHeartRate   = "heart_rate"
	FeatureSpO2        = "spo2"
	FeatureSystolicBP  = "systolic_bp"
	FeatureDiastolicBP = "diastolic_bp"
)

// FeatureNames lists the tracked anomaly features in vector order.
var FeatureNames = []string{FeatureHeartRate, FeatureSpO2, FeatureSystolicBP, FeatureDiastolicBP}

// FeatureLabels maps feature names to display labels.
var FeatureLabels = map[string]string{
	FeatureHeartRate:   "Heart Rate",
	FeatureSpO2:        "SpO2",
	FeatureSystolicBP:  "Systolic BP",
	FeatureDiastolicBP: "Diastolic BP",
}

// WindowedVector is one complete fixed-width resting window.
type WindowedVector struct {
	Start     time.Time
	HeartRate float64
	SpO2      float64
	Systolic  float64
	Diastolic float64
}

// Values returns the features in FeatureNames order.
func (w WindowedVector) Values() []float64 {
	return []float64{w.HeartRate, w.SpO2, w.Systolic, w.Diastolic}
}

// ModelMetadata describes the artifacts of the last training run.
type ModelMetadata struct {
	LastTrained  time.Time `json:"last_trained"`
	WindowCount  int       `json:"n_windows"`
	Metrics      []string  `json:"metrics"`
	ModelVersion string    `json:"model_version"`
}
