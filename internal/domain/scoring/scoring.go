// Package scoring trains the per-user outlier model over windowed resting vitals and
// scores a day's windows against it.
package scoring

import (
	"context"
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
)

// ModelVersion tags artifacts produced by this package.
const ModelVersion = "v2_windowed"

// Verdict statuses.
const (
	StatusNoData       = "no_data"
	StatusInsufficient = "insufficient"
	StatusNotTrained   = "not_trained"
	StatusOK           = "ok"
	StatusAlert        = "alert"
)

// Artifacts is the persisted bundle of one training run.
type Artifacts struct {
	Scaler   *Scaler             `json:"scaler"`
	Model    *Envelope           `json:"model"`
	Metadata model.ModelMetadata `json:"metadata"`
}

// ArtifactStore persists serialized artifacts keyed by user.
// Get returns an error matching ErrNoArtifacts when nothing is stored.
type ArtifactStore interface {
	Put(ctx context.Context, userID string, blob []byte) error
	Get(ctx context.Context, userID string) ([]byte, error)
}

// Input is one day of windows to score.
type Input struct {
	UserID string
	Date   string
	// RestingReadings counts the day's resting vitals before windowing.
	RestingReadings int
	Windows         []model.WindowedVector
}

// WindowScore is the per-window outcome.
type WindowScore struct {
	Timestamp   time.Time `json:"timestamp"`
	IsAnomaly   bool      `json:"is_anomaly"`
	HeartRate   float64   `json:"heart_rate"`
	SpO2        float64   `json:"spo2"`
	SystolicBP  float64   `json:"systolic_bp"`
	DiastolicBP float64   `json:"diastolic_bp"`
}

// Verdict is the day-level outcome.
type Verdict struct {
	Date             string        `json:"date"`
	Status           string        `json:"status"`
	TotalRecords     int           `json:"total_records"`
	Anomalies        int           `json:"anomalies"`
	PercentAnomalies float64       `json:"percent_anomalies"`
	TopContributors  []string      `json:"top_contributors"`
	Contributors     []Contributor `json:"contributors,omitempty"`
	Series           []WindowScore `json:"series"`
	ModelVersion     string        `json:"model_version,omitempty"`
	Note             string        `json:"note,omitempty"`
}

// Scorer produces day verdicts.
type Scorer interface {
	Score(ctx context.Context, in Input) (Verdict, error)
}
