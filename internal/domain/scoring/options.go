package scoring

import "time"

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithMinWindows sets the minimum window count required to train.
func WithMinWindows(n int) TrainerOption {
	return func(t *Trainer) {
		if n > 0 {
			t.minWindows = n
		}
	}
}

// WithContamination sets the expected outlier fraction of training data.
func WithContamination(c float64) TrainerOption {
	return func(t *Trainer) {
		if c > 0 && c < 0.5 {
			t.contamination = c
		}
	}
}

// WithClock overrides the time source used for metadata.
func WithClock(now func() time.Time) TrainerOption {
	return func(t *Trainer) {
		if now != nil {
			t.now = now
		}
	}
}

// ScorerOption configures a DayScorer.
type ScorerOption func(*DayScorer)

// WithMinScoreWindows sets how many windows a day needs to be scored.
func WithMinScoreWindows(n int) ScorerOption {
	return func(s *DayScorer) {
		if n > 0 {
			s.minWindows = n
		}
	}
}

// WithAlertPercent sets the anomaly percentage above which a day alerts.
func WithAlertPercent(p float64) ScorerOption {
	return func(s *DayScorer) {
		if p > 0 {
			s.alertPercent = p
		}
	}
}

// WithTopN sets how many contributors are reported.
func WithTopN(n int) ScorerOption {
	return func(s *DayScorer) {
		if n > 0 {
			s.topN = n
		}
	}
}
