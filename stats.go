package treelstm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// pearson returns the correlation coefficient of x and y, NaN when either is
// constant or empty.
func pearson(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) || constant(x) || constant(y) {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// spearman is the Pearson correlation of the ranks, ties sharing their
// average rank.
func spearman(x, y []float64) float64 {
	return pearson(ranks(x), ranks(y))
}

func meanSquaredError(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return math.NaN()
	}
	d := make([]float64, len(x))
	floats.SubTo(d, x, y)
	floats.Mul(d, d)
	return stat.Mean(d, nil)
}

func constant(x []float64) bool {
	return floats.Min(x) == floats.Max(x)
}

// ranks numbers x from 1 in ascending order.
func ranks(x []float64) []float64 {
	sorted := make([]float64, len(x))
	copy(sorted, x)
	idx := make([]int, len(x))
	floats.Argsort(sorted, idx)
	r := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[i] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			r[idx[k]] = avg
		}
		i = j + 1
	}
	return r
}
