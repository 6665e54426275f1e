package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrNoArtifacts         = errors.New("no model artifacts")
	ErrInsufficientWindows = errors.New("insufficient windows to train")
	ErrDimensionMismatch   = errors.New("feature dimension mismatch")
	ErrDegenerate          = errors.New("degenerate covariance")
	ErrCorruptArtifacts    = errors.New("corrupt model artifacts")
)
