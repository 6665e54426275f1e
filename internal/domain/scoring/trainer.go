package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/vitalsync/internal/domain/model"
	"github.com/okian/vitalsync/pkg/logger"
	"github.com/okian/vitalsync/pkg/metrics"
	"github.com/okian/vitalsync/pkg/tracing"
)

// Default training parameters.
const (
	DefaultMinWindowsToTrain = 10
	DefaultContamination     = 0.05
)

// Trainer fits and persists per-user artifacts.
type Trainer struct {
	store         ArtifactStore
	minWindows    int
	contamination float64
	now           func() time.Time
	log           logger.Logger
}

// NewTrainer creates a Trainer backed by store.
func NewTrainer(store ArtifactStore, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		store:         store,
		minWindows:    DefaultMinWindowsToTrain,
		contamination: DefaultContamination,
		now:           time.Now,
		log:           logger.Get().Named("trainer"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MinWindows returns the training floor.
func (t *Trainer) MinWindows() int { return t.minWindows }

// Train fits scaler and model over the user's full window history and
// replaces the stored artifacts.
func (t *Trainer) Train(ctx context.Context, userID string, windows []model.WindowedVector) (model.ModelMetadata, error) {
	ctx, span := tracing.StartSpan(ctx, "scoring.train",
		attribute.String("user_id", userID), attribute.Int("windows", len(windows)))
	defer span.End()
	start := time.Now()

	meta, err := t.train(ctx, userID, windows)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		tracing.RecordError(span, err)
		outcome := "error"
		if errors.Is(err, ErrInsufficientWindows) {
			outcome = "insufficient"
		}
		metrics.RecordTraining(outcome, elapsed)
		t.log.Warn(ctx, "training skipped",
			logger.String("user_id", userID), logger.Int("windows", len(windows)), logger.Error(err))
		return model.ModelMetadata{}, err
	}
	metrics.RecordTraining("ok", elapsed)
	t.log.Info(ctx, "model trained",
		logger.String("user_id", userID), logger.Int("windows", meta.WindowCount), logger.Float64("ms", elapsed))
	return meta, nil
}

func (t *Trainer) train(ctx context.Context, userID string, windows []model.WindowedVector) (model.ModelMetadata, error) {
	if len(windows) < t.minWindows {
		return model.ModelMetadata{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientWindows, len(windows), t.minWindows)
	}
	rows := make([][]float64, len(windows))
	for i, w := range windows {
		rows[i] = w.Values()
	}
	scaler, err := FitScaler(rows)
	if err != nil {
		return model.ModelMetadata{}, err
	}
	scaled, err := scaler.TransformAll(rows)
	if err != nil {
		return model.ModelMetadata{}, err
	}
	env, err := FitEnvelope(scaled, t.contamination)
	if err != nil {
		return model.ModelMetadata{}, err
	}

	meta := model.ModelMetadata{
		LastTrained:  t.now().UTC(),
		WindowCount:  len(windows),
		Metrics:      append([]string(nil), model.FeatureNames...),
		ModelVersion: ModelVersion,
	}
	blob, err := json.Marshal(Artifacts{Scaler: scaler, Model: env, Metadata: meta})
	if err != nil {
		return model.ModelMetadata{}, fmt.Errorf("encode artifacts: %w", err)
	}
	if err := t.store.Put(ctx, userID, blob); err != nil {
		return model.ModelMetadata{}, fmt.Errorf("store artifacts: %w", err)
	}
	return meta, nil
}

// Load reads and decodes the user's artifacts.
func Load(ctx context.Context, store ArtifactStore, userID string) (*Artifacts, error) {
	blob, err := store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	var a Artifacts
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArtifacts, err)
	}
	if a.Scaler == nil || a.Model == nil {
		return nil, ErrCorruptArtifacts
	}
	return &a, nil
}

// Metadata returns the stored model metadata, or nil when no model exists.
func Metadata(ctx context.Context, store ArtifactStore, userID string) (*model.ModelMetadata, error) {
	a, err := Load(ctx, store, userID)
	if errors.Is(err, ErrNoArtifacts) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a.Metadata, nil
}
