// Package retrain decides when a personalized model is stale.
package retrain

import (
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
)

// Defaults.
const (
	DefaultMinWindowsToTrain = 10
	DefaultMinNewWindows     = 50
	DefaultCooldown          = 12 * time.Hour
)

// Reasons attached to decisions.
const (
	ReasonFirstModel   = "first_model"
	ReasonStale        = "stale"
	ReasonTooFewWindow = "too_few_windows"
	ReasonCooldown     = "cooldown"
	ReasonTooFewNew    = "too_few_new_windows"
)

// Decision is the outcome of Decide.
type Decision struct {
	Retrain    bool
	Reason     string
	NewWindows int
	Elapsed    time.Duration
}

// Policy holds the gating thresholds.
type Policy struct {
	MinWindowsToTrain int
	MinNewWindows     int
	Cooldown          time.Duration
}

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithMinWindowsToTrain sets the minimum history needed for any training.
func WithMinWindowsToTrain(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.MinWindowsToTrain = n
		}
	}
}

// WithMinNewWindows sets how many windows must accrue between trainings.
func WithMinNewWindows(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.MinNewWindows = n
		}
	}
}

// WithCooldown sets the minimum time between trainings.
func WithCooldown(d time.Duration) Option {
	return func(p *Policy) {
		if d >= 0 {
			p.Cooldown = d
		}
	}
}

// NewPolicy returns a policy with default thresholds.
func NewPolicy(opts ...Option) Policy {
	p := Policy{
		MinWindowsToTrain: DefaultMinWindowsToTrain,
		MinNewWindows:     DefaultMinNewWindows,
		Cooldown:          DefaultCooldown,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Decide reports whether a model should be (re)trained given the current
// window count. A nil meta means no model has been trained yet. Retraining an
// existing model requires both the cooldown and the new-window threshold.
func (p Policy) Decide(meta *model.ModelMetadata, windows int, now time.Time) Decision {
	if windows < p.MinWindowsToTrain {
		return Decision{Reason: ReasonTooFewWindow}
	}
	if meta == nil {
		return Decision{Retrain: true, Reason: ReasonFirstModel, NewWindows: windows}
	}

	d := Decision{
		NewWindows: windows - meta.WindowCount,
		Elapsed:    now.Sub(meta.LastTrained),
	}
	switch {
	case d.Elapsed < p.Cooldown:
		d.Reason = ReasonCooldown
	case d.NewWindows < p.MinNewWindows:
		d.Reason = ReasonTooFewNew
	default:
		d.Retrain = true
		d.Reason = ReasonStale
	}
	return d
}
