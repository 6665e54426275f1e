package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/pkg/logger"
	"github.com/okian/vitalsync/pkg/metrics"
	"github.com/okian/vitalsync/pkg/tracing"
)

// Default scoring parameters.
const (
	DefaultMinScoreWindows = 3
	DefaultAlertPercent    = 20.0
	DefaultTopN            = 2
)

// DayScorer scores a day's windows against stored artifacts.
type DayScorer struct {
	store        ArtifactStore
	minWindows   int
	alertPercent float64
	topN         int
	log          logger.Logger
}

// NewDayScorer creates a DayScorer reading artifacts from store.
func NewDayScorer(store ArtifactStore, opts ...ScorerOption) *DayScorer {
	s := &DayScorer{
		store:        store,
		minWindows:   DefaultMinScoreWindows,
		alertPercent: DefaultAlertPercent,
		topN:         DefaultTopN,
		log:          logger.Get().Named("scorer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StatusFor maps an anomaly percentage to ok or alert.
func (s *DayScorer) StatusFor(percent float64) string {
	return statusFor(percent, s.alertPercent)
}

// StatusFor maps an anomaly percentage to ok or alert at the default threshold.
func StatusFor(percent float64) string {
	return statusFor(percent, DefaultAlertPercent)
}

func statusFor(percent, threshold float64) string {
	if percent > threshold {
		return StatusAlert
	}
	return StatusOK
}

// Score implements Scorer.
func (s *DayScorer) Score(ctx context.Context, in Input) (Verdict, error) {
	ctx, span := tracing.StartSpan(ctx, "scoring.score",
		attribute.String("user_id", in.UserID), attribute.String("date", in.Date))
	defer span.End()
	start := time.Now()

	v, err := s.score(ctx, in)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.RecordErrorByComponent("scorer", "score")
		return Verdict{}, err
	}
	span.SetAttributes(attribute.String("status", v.Status))
	metrics.RecordVerdict(v.Status, float64(time.Since(start).Milliseconds()))
	s.log.Debug(ctx, "day scored",
		logger.String("user_id", in.UserID),
		logger.String("date", in.Date),
		logger.String("status", v.Status),
		logger.Int("windows", v.TotalRecords),
		logger.Int("anomalies", v.Anomalies))
	return v, nil
}

func (s *DayScorer) score(ctx context.Context, in Input) (Verdict, error) {
	v := Verdict{Date: in.Date, TotalRecords: len(in.Windows), TopContributors: []string{}, Series: []WindowScore{}}
	if in.RestingReadings == 0 && len(in.Windows) == 0 {
		v.Status = StatusNoData
		v.Note = "No resting vitals recorded for this day"
		return v, nil
	}
	if len(in.Windows) < s.minWindows {
		v.Status = StatusInsufficient
		v.Note = fmt.Sprintf("Need at least %d complete windows, have %d", s.minWindows, len(in.Windows))
		return v, nil
	}

	a, err := Load(ctx, s.store, in.UserID)
	if errors.Is(err, ErrNoArtifacts) {
		v.Status = StatusNotTrained
		v.Note = "Collecting baseline; model not trained yet"
		return v, nil
	}
	if err != nil {
		return Verdict{}, fmt.Errorf("load artifacts: %w", err)
	}

	for _, w := range in.Windows {
		x, err := a.Scaler.Transform(w.Values())
		if err != nil {
			return Verdict{}, fmt.Errorf("scale window %s: %w", w.Start.Format(time.RFC3339), err)
		}
		flag, _, err := a.Model.Predict(x)
		if err != nil {
			return Verdict{}, fmt.Errorf("predict window %s: %w", w.Start.Format(time.RFC3339), err)
		}
		if flag {
			v.Anomalies++
		}
		v.Series = append(v.Series, WindowScore{
			Timestamp:   w.Start,
			IsAnomaly:   flag,
			HeartRate:   model.Round(w.HeartRate, 2),
			SpO2:        model.Round(w.SpO2, 2),
			SystolicBP:  model.Round(w.Systolic, 2),
			DiastolicBP: model.Round(w.Diastolic, 2),
		})
	}

	v.PercentAnomalies = model.Round(float64(v.Anomalies)/float64(len(in.Windows))*100, 2)
	v.Status = s.StatusFor(v.PercentAnomalies)
	v.Contributors = TopContributors(in.Windows, s.topN)
	v.TopContributors = Labels(v.Contributors)
	v.ModelVersion = a.Metadata.ModelVersion
	if v.Status == StatusAlert {
		v.Note = fmt.Sprintf("%.2f%% of resting windows are anomalous", v.PercentAnomalies)
	}
	return v, nil
}
