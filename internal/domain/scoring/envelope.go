package scoring

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// covarianceShrinkage pulls the covariance toward identity so constant or
// collinear features keep the matrix invertible.
const covarianceShrinkage = 0.1

// Envelope is an unsupervised outlier model: squared Mahalanobis distance to
// the training centroid, thresholded so that the expected outlier fraction of
// the training windows falls outside.
type Envelope struct {
	Location      []float64 `json:"location"`
	Precision     []float64 `json:"precision"` // row-major dim x dim
	Threshold     float64   `json:"threshold"`
	Contamination float64   `json:"contamination"`
}

// FitEnvelope fits the model over already scaled rows.
func FitEnvelope(rows [][]float64, contamination float64) (*Envelope, error) {
	n := len(rows)
	if n < 2 {
		return nil, fmt.Errorf("fit envelope: %w", ErrInsufficientWindows)
	}
	dim := len(rows[0])
	data := mat.NewDense(n, dim, nil)
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("fit envelope row %d: %w", i, ErrDimensionMismatch)
		}
		data.SetRow(i, r)
	}

	loc := make([]float64, dim)
	for j := 0; j < dim; j++ {
		loc[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}

	cov := mat.NewSymDense(dim, nil)
	stat.CovarianceMatrix(cov, data, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			v := (1 - covarianceShrinkage) * cov.At(i, j)
			if i == j {
				v += covarianceShrinkage
			}
			cov.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, ErrDegenerate
	}
	var prec mat.Dense
	if err := prec.Inverse(cov); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDegenerate, err)
	}

	e := &Envelope{
		Location:      loc,
		Precision:     make([]float64, 0, dim*dim),
		Contamination: contamination,
	}
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			e.Precision = append(e.Precision, prec.At(i, j))
		}
	}

	dists := make([]float64, n)
	for i, r := range rows {
		d, err := e.Distance(r)
		if err != nil {
			return nil, err
		}
		dists[i] = d
	}
	sort.Float64s(dists)
	e.Threshold = stat.Quantile(1-contamination, stat.Empirical, dists, nil)
	return e, nil
}

// Distance returns the squared Mahalanobis distance of a scaled row.
func (e *Envelope) Distance(x []float64) (float64, error) {
	dim := len(e.Location)
	if len(x) != dim || len(e.Precision) != dim*dim {
		return 0, ErrDimensionMismatch
	}
	diff := make([]float64, dim)
	for j := range x {
		diff[j] = x[j] - e.Location[j]
	}
	v := mat.NewVecDense(dim, diff)
	return mat.Inner(v, mat.NewDense(dim, dim, e.Precision), v), nil
}

// Predict reports whether a scaled row is an outlier, with its distance.
func (e *Envelope) Predict(x []float64) (bool, float64, error) {
	d, err := e.Distance(x)
	if err != nil {
		return false, 0, err
	}
	return d > e.Threshold, d, nil
}
