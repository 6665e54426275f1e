package scoring

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes each feature to zero mean and unit variance.
// A feature with zero variance keeps scale 1 so it maps to zero.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler learns per-feature mean and population standard deviation.
func FitScaler(rows [][]float64) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("fit scaler: %w", ErrInsufficientWindows)
	}
	dim := len(rows[0])
	s := &Scaler{Mean: make([]float64, dim), Scale: make([]float64, dim)}
	col := make([]float64, len(rows))
	for j := 0; j < dim; j++ {
		for i, r := range rows {
			if len(r) != dim {
				return nil, fmt.Errorf("fit scaler row %d: %w", i, ErrDimensionMismatch)
			}
			col[i] = r[j]
		}
		s.Mean[j] = stat.Mean(col, nil)
		std := math.Sqrt(stat.Moment(2, col, nil))
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Scale[j] = std
	}
	return s, nil
}

// Transform returns the standardized copy of x.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, ErrDimensionMismatch
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformAll standardizes every row.
func (s *Scaler) TransformAll(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		t, err := s.Transform(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}
