package treelstm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_pearson(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{name: "perfect", x: []float64{1, 2, 3}, y: []float64{2, 4, 6}, want: 1},
		{name: "inverse", x: []float64{1, 2, 3}, y: []float64{3, 2, 1}, want: -1},
		{name: "partial", x: []float64{1, 2, 3, 4}, y: []float64{1, 3, 2, 4}, want: 0.8},
		{name: "constant", x: []float64{1, 1, 1}, y: []float64{1, 2, 3}, want: math.NaN()},
		{name: "empty", want: math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pearson(tt.x, tt.y)
			if math.IsNaN(tt.want) {
				assert.True(t, math.IsNaN(got))
				return
			}
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func Test_spearman(t *testing.T) {
	// monotonic but not linear
	assert.InDelta(t, 1, spearman([]float64{1, 2, 3, 4}, []float64{1, 8, 27, 64}), 1e-9)
	assert.InDelta(t, -1, spearman([]float64{1, 2, 3}, []float64{10, 5, 0}), 1e-9)
}

func Test_ranks(t *testing.T) {
	assert.Equal(t, []float64{1, 3, 2}, ranks([]float64{10, 30, 20}))
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, ranks([]float64{1, 2, 2, 3}))
}

func Test_meanSquaredError(t *testing.T) {
	assert.InDelta(t, 2.5, meanSquaredError([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.True(t, math.IsNaN(meanSquaredError(nil, nil)))
}

func Test_spearman_ties(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{name: "tied pair", x: []float64{1, 2, 2, 3}, y: []float64{1, 2, 3, 4}, want: 0.9486832980505138},
		{name: "constant ranks", x: []float64{5, 5, 5}, y: []float64{1, 2, 3}, want: math.NaN()},
		{name: "empty", want: math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := spearman(tt.x, tt.y)
			if math.IsNaN(tt.want) {
				assert.True(t, math.IsNaN(got))
				return
			}
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
