package scoring

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/okian/vitalsync/internal/domain/model"
)

// Contributor is one feature's share of a day's deviation.
type Contributor struct {
	Feature  string  `json:"feature"`
	Label    string  `json:"label"`
	MeanAbsZ float64 `json:"mean_abs_z"`
}

// TopContributors ranks features by mean |z| over the given windows, z taken
// against the windows' own mean and population std. A constant feature scores 0.
// Ties keep vector order.
func TopContributors(windows []model.WindowedVector, n int) []Contributor {
	if len(windows) == 0 || n <= 0 {
		return nil
	}
	all := make([]Contributor, len(model.FeatureNames))
	col := make([]float64, len(windows))
	for j, name := range model.FeatureNames {
		for i, w := range windows {
			col[i] = w.Values()[j]
		}
		mean := stat.Mean(col, nil)
		std := math.Sqrt(stat.Moment(2, col, nil))
		score := 0.0
		if std > 0 {
			for _, v := range col {
				score += math.Abs((v - mean) / std)
			}
			score /= float64(len(col))
		}
		all[j] = Contributor{Feature: name, Label: model.FeatureLabels[name], MeanAbsZ: model.Round(score, 4)}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].MeanAbsZ > all[b].MeanAbsZ })
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// Labels returns the display labels of cs.
func Labels(cs []Contributor) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Label)
	}
	return out
}
