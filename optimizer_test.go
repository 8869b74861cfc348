package treelstm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdam_Update(t *testing.T) {
	var p ParameterTensors
	w := p.alloc(2)
	frozen := p.alloc(2)
	p.Init()
	copy(w.data, []float32{1, -1})
	copy(frozen.data, []float32{3, 3})
	frozen.frozen = true

	opt := NewAdam(&p, 0.1, 0)
	copy(w.grad, []float32{0.5, -2})
	copy(frozen.grad, []float32{1, 1})
	opt.Update()

	// the first bias-corrected step moves each weight by lr against the gradient sign
	assert.InDeltaSlice(t, []float32{0.9, -0.9}, w.data, 1e-5)
	assert.Equal(t, []float32{3, 3}, frozen.data)
	assert.Equal(t, 1, opt.T)

	opt.ZeroGrad()
	assert.Equal(t, []float32{0, 0, 0, 0}, p.Grads)
}

func TestAdam_WeightDecay(t *testing.T) {
	var p ParameterTensors
	w := p.alloc(1)
	p.Init()
	w.data[0] = 2
	opt := NewAdam(&p, 0.01, 0.5)
	opt.Update()
	// with no gradient the decay term alone drives the update
	assert.InDelta(t, 1.99, w.data[0], 1e-5)
	assert.InDelta(t, 0.1, opt.MMemory[0], 1e-6)
}

func TestMultiStepLR(t *testing.T) {
	var p ParameterTensors
	p.alloc(1)
	p.Init()
	opt := NewAdam(&p, 0.008, 0)
	sched := NewMultiStepLR(opt, []int{2, 4}, 0.5)

	want := []float32{0.008, 0.008, 0.004, 0.004, 0.002, 0.002}
	for epoch, lr := range want {
		sched.Step()
		require.Equal(t, epoch, sched.LastEpoch)
		assert.InDelta(t, lr, opt.LR, 1e-8, "epoch %d", epoch)
	}
}

func TestAdam_bias(t *testing.T) {
	var p ParameterTensors
	w := p.alloc(1)
	p.Init()
	opt := NewAdam(&p, 1, 0)
	for step := 0; step < 3; step++ {
		w.grad[0] = 1
		opt.Update()
	}
	assert.InDelta(t, -3, w.data[0], 1e-4)
	assert.InDelta(t, 1-math.Pow(0.9, 3), opt.MMemory[0], 1e-6)
}
