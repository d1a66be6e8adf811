package ta

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Pearson computes the Pearson correlation of two equal-length series,
// skipping index pairs where either side is NaN. Returns 0 when fewer
// than two valid pairs remain or either side has zero variance.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return 0
	}
	corr := stat.Correlation(xs, ys, nil)
	if math.IsNaN(corr) {
		return 0
	}
	return corr
}

// PctChangeSeries computes period-over-period percent returns.
// The first element is NaN, matching the alignment of the price series.
func PctChangeSeries(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out[i] = (values[i] - values[i-1]) / values[i-1]
	}
	return out
}
