package treelstm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_tensor_index(t1 *testing.T) {
	type args struct {
		idx []int
	}
	type testCase struct {
		name       string
		dims       []int
		args       args
		wantData   []float32
		wantDims   []int
		wantOffset int
	}
	tests := []testCase{
		{
			name:       "row1",
			dims:       []int{2, 2},
			args:       args{idx: []int{1}},
			wantData:   []float32{3, 4},
			wantDims:   []int{2},
			wantOffset: 2,
		},
		{
			name:       "row0",
			dims:       []int{2, 2},
			args:       args{idx: []int{0}},
			wantData:   []float32{1, 2},
			wantDims:   []int{2},
			wantOffset: 0,
		},
		{
			name:       "3d",
			dims:       []int{2, 2, 3},
			args:       args{idx: []int{1, 0}},
			wantData:   []float32{7, 8, 9},
			wantDims:   []int{3},
			wantOffset: 6,
		},
		{
			name:       "scalar",
			dims:       []int{2, 2},
			args:       args{idx: []int{1, 1}},
			wantData:   []float32{4},
			wantDims:   []int{},
			wantOffset: 3,
		},
	}
	for _, tt := range tests {
		t1.Run(tt.name, func(t1 *testing.T) {
			var p ParameterTensors
			tn := p.alloc(tt.dims...)
			p.Init()
			for i := range p.Memory {
				p.Memory[i] = float32(i + 1)
			}
			got := tn.index(tt.args.idx...)
			assert.Equal(t1, tt.wantData, got.data)
			assert.Equal(t1, tt.wantDims, got.dims)
			assert.Equal(t1, tt.wantOffset, got.offset)
			assert.Len(t1, got.grad, len(tt.wantData))
		})
	}
}

func Test_tensor_index_panics(t *testing.T) {
	var p ParameterTensors
	tn := p.alloc(2, 2)
	p.Init()
	assert.Panics(t, func() { tn.index(2) })
	assert.Panics(t, func() { tn.index(0, 0, 0) })
}

func TestParameterTensors_init(t *testing.T) {
	var p ParameterTensors
	a := p.alloc(2, 3)
	b := p.alloc(4)
	c := p.alloc(1, 1)
	p.Init()

	require.Equal(t, 11, p.Len())
	assert.Len(t, p.Grads, 11)
	assert.Equal(t, 0, a.offset)
	assert.Equal(t, 6, b.offset)
	assert.Equal(t, 10, c.offset)

	b.data[0] = 5
	b.grad[3] = 7
	assert.Equal(t, float32(5), p.Memory[6])
	assert.Equal(t, float32(7), p.Grads[9])

	// views must not grow into their neighbours
	assert.Equal(t, 4, cap(b.data))
}

func TestParameterTensors_NumTrainable(t *testing.T) {
	var p ParameterTensors
	a := p.alloc(3, 2)
	p.alloc(5)
	p.Init()
	assert.Equal(t, 11, p.NumTrainable())
	a.frozen = true
	assert.Equal(t, 5, p.NumTrainable())
}

func TestParameterTensors_ZeroGrad(t *testing.T) {
	var p ParameterTensors
	p.alloc(4)
	p.Init()
	for i := range p.Grads {
		p.Grads[i] = 1
	}
	p.ZeroGrad()
	assert.Equal(t, []float32{0, 0, 0, 0}, p.Grads)
}

func Test_initUniform(t *testing.T) {
	var p ParameterTensors
	tn := p.alloc(10, 10)
	p.Init()
	initUniform(tn, 4, rand.New(rand.NewSource(1)))
	var nonZero int
	for _, v := range tn.data {
		assert.LessOrEqual(t, Abs(v), float32(0.5))
		if v != 0 {
			nonZero++
		}
	}
	assert.Greater(t, nonZero, 90)
}
