package treelstm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 1e-5

func TestEmbeddingForward(t *testing.T) {
	tests := []struct {
		name    string
		table   []float32
		ix      int32
		C       int
		wantOut []float32
	}{
		{
			name:    "row0",
			table:   []float32{0, 1, 2, 3, 4, 5},
			ix:      0,
			C:       2,
			wantOut: []float32{0, 1},
		},
		{
			name:    "row2",
			table:   []float32{0, 1, 2, 3, 4, 5},
			ix:      2,
			C:       2,
			wantOut: []float32{4, 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]float32, tt.C)
			embeddingForward(out, tt.table, tt.ix, tt.C)
			assert.Equal(t, tt.wantOut, out)
		})
	}
}

func TestEmbeddingBackward(t *testing.T) {
	dtable := []float32{1, 1, 1, 1, 1, 1}
	embeddingBackward(dtable, []float32{2, 3}, 1, 2)
	embeddingBackward(dtable, []float32{2, 3}, 1, 2)
	assert.Equal(t, []float32{1, 1, 5, 7, 1, 1}, dtable)
}

func TestMatvecForward(t *testing.T) {
	type args struct {
		inp    []float32
		weight []float32
		bias   []float32
		C      int
		OC     int
	}
	tests := []struct {
		name    string
		args    args
		wantOut []float32
	}{
		{
			name: "simple",
			args: args{
				weight: []float32{ // OC (3) * C(2)
					1, 2,
					3, 4,
					5, 6,
				},
				inp:  []float32{1, 2},
				bias: []float32{1, 2, 3},
				C:    2,
				OC:   3,
			},
			wantOut: []float32{6, 13, 20},
		},
		{
			name: "nobias",
			args: args{
				weight: []float32{1, 2, 3, 4, 5, 6},
				inp:    []float32{1, 2},
				C:      2,
				OC:     3,
			},
			wantOut: []float32{5, 11, 17},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]float32, tt.args.OC)
			matvecForward(out, tt.args.inp, tt.args.weight, tt.args.bias, tt.args.C, tt.args.OC)
			assert.Equal(t, tt.wantOut, out)
		})
	}
}

func TestMatvecBackward(t *testing.T) {
	weight := []float32{1, 2, 3, 4, 5, 6}
	inp := []float32{1, 2}
	dout := []float32{1, 0, 2}
	dinp := make([]float32, 2)
	dweight := make([]float32, 6)
	dbias := make([]float32, 3)
	matvecBackward(dinp, dweight, dbias, dout, inp, weight, 2, 3)
	assert.Equal(t, []float32{11, 14}, dinp)
	assert.Equal(t, []float32{1, 2, 0, 0, 2, 4}, dweight)
	assert.Equal(t, []float32{1, 0, 2}, dbias)

	// nil gradients are skipped
	assert.NotPanics(t, func() {
		matvecBackward(nil, dweight, nil, dout, inp, weight, 2, 3)
	})
}

func TestResidualBackward(t *testing.T) {
	dinp1 := []float32{1, 1}
	dinp2 := []float32{0, 0}
	residualBackward(dinp1, dinp2, []float32{2, 3}, 2)
	assert.Equal(t, []float32{3, 4}, dinp1)
	assert.Equal(t, []float32{2, 3}, dinp2)
}

func TestMulBackward(t *testing.T) {
	dinp1 := make([]float32, 2)
	dinp2 := make([]float32, 2)
	mulBackward(dinp1, dinp2, []float32{2, 3}, []float32{4, 5}, []float32{1, 2}, 2)
	assert.Equal(t, []float32{4, 10}, dinp1)
	assert.Equal(t, []float32{2, 6}, dinp2)
}

func TestSigmoidTanh(t *testing.T) {
	out := make([]float32, 3)
	sigmoidForward(out, []float32{0, 100, -100}, 3)
	assert.InDeltaSlice(t, []float32{0.5, 1, 0}, out, delta)

	dinp := make([]float32, 1)
	sigmoidBackward(dinp, []float32{0.5}, []float32{1}, 1)
	assert.InDelta(t, 0.25, dinp[0], delta)

	tanhForward(out, []float32{0, 100, -100}, 3)
	assert.InDeltaSlice(t, []float32{0, 1, -1}, out, delta)
	dinp[0] = 0
	tanhBackward(dinp, []float32{0}, []float32{2}, 1)
	assert.InDelta(t, 2, dinp[0], delta)
}

func TestAbsBackward(t *testing.T) {
	dinp := make([]float32, 3)
	absBackward(dinp, []float32{-2, 0, 3}, []float32{1, 1, 1}, 3)
	assert.Equal(t, []float32{-1, 0, 1}, dinp)
}

func TestSoftmaxForward(t *testing.T) {
	tests := []struct {
		name   string
		logits []float32
		want   []float32
	}{
		{name: "uniform", logits: []float32{1, 1, 1, 1}, want: []float32{0.25, 0.25, 0.25, 0.25}},
		{name: "large", logits: []float32{1000, 1000}, want: []float32{0.5, 0.5}},
		{name: "skewed", logits: []float32{0, float32(math.Log(3))}, want: []float32{0.25, 0.75}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probs := make([]float32, len(tt.logits))
			softmaxForward(probs, tt.logits, len(tt.logits))
			assert.InDeltaSlice(t, tt.want, probs, delta)
		})
	}
}

func TestLogSoftmax(t *testing.T) {
	logits := []float32{1, 2, 3}
	out := make([]float32, 3)
	logSoftmaxForward(out, logits, 3)
	var total float64
	for _, v := range out {
		total += math.Exp(float64(v))
	}
	assert.InDelta(t, 1, total, delta)

	// gradient of sum(out) is 1 - V·softmax
	dinp := make([]float32, 3)
	logSoftmaxBackward(dinp, out, []float32{1, 1, 1}, 3)
	for i := range dinp {
		assert.InDelta(t, 1-3*math.Exp(float64(out[i])), dinp[i], delta)
	}
}

func TestCrossEntropyForward(t *testing.T) {
	probs := make([]float32, 4)
	loss := crossEntropyForward(probs, []float32{0, 0, 0, 0}, 2, 4)
	assert.InDelta(t, math.Log(4), loss, delta)
	assert.InDeltaSlice(t, []float32{0.25, 0.25, 0.25, 0.25}, probs, delta)
}

func TestCrossentropySoftmaxBackward(t *testing.T) {
	dlogits := make([]float32, 4)
	crossentropySoftmaxBackward(dlogits, 2, []float32{0.25, 0.25, 0.25, 0.25}, 1, 4)
	assert.InDeltaSlice(t, []float32{0.5, -1.5, 0.5, 0.5}, dlogits, delta)
}

func TestKLDiv(t *testing.T) {
	target := []float32{0, 0.4, 0.6}
	logp := []float32{float32(math.Log(0.2)), float32(math.Log(0.4)), float32(math.Log(0.4))}
	want := (0.6 * (math.Log(0.6) - math.Log(0.4))) / 3
	assert.InDelta(t, want, klDivForward(logp, target, 3), delta)

	// identical distributions have zero divergence
	same := []float32{float32(math.Log(0.5)), float32(math.Log(0.5))}
	assert.InDelta(t, 0, klDivForward(same, []float32{0.5, 0.5}, 2), delta)

	dlogp := make([]float32, 3)
	klDivBackward(dlogp, target, 3, 3)
	assert.InDeltaSlice(t, []float32{0, -0.4, -0.6}, dlogp, delta)
}

func TestArgmax(t *testing.T) {
	require.Equal(t, 0, argmax([]float32{1}))
	assert.Equal(t, 2, argmax([]float32{1, 2, 3, 0}))
	assert.Equal(t, 0, argmax([]float32{3, 3, 1}))
}
