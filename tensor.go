package treelstm

import (
	"math"
	"math/rand"
)

// tensor is a view into the flat parameter memory of a model. data and grad
// alias ParameterTensors.Memory and ParameterTensors.Grads respectively.
type tensor struct {
	data   []float32
	grad   []float32
	dims   []int
	offset int
	frozen bool
}

func (t *tensor) size() int {
	size := 1
	for _, dim := range t.dims {
		size *= dim
	}
	return size
}

// index returns the sub-tensor addressed by the leading indices, e.g. a row of
// a (rows, cols) matrix.
func (t *tensor) index(idx ...int) *tensor {
	if len(idx) > len(t.dims) {
		panic("Too many indices for tensor dimensions")
	}
	for i, dim := range idx {
		if dim < 0 || dim >= t.dims[i] {
			panic("Index out of bounds")
		}
	}
	newDims := t.dims[len(idx):]
	sub := 1
	for _, d := range newDims {
		sub *= d
	}
	linearIndex := 0
	stride := t.size()
	for i, dim := range idx {
		stride /= t.dims[i]
		linearIndex += dim * stride
	}
	end := linearIndex + sub
	return &tensor{
		data:   t.data[linearIndex:end],
		grad:   t.grad[linearIndex:end],
		dims:   newDims,
		offset: t.offset + linearIndex,
		frozen: t.frozen,
	}
}

// ParameterTensors holds every trainable weight of a model in one flat slab so
// that the optimizer and checkpoint code can treat the model as []float32.
type ParameterTensors struct {
	Memory  []float32
	Grads   []float32
	tensors []*tensor
}

// alloc registers a tensor of the given shape. The tensor is only usable after
// Init has laid out the memory.
func (p *ParameterTensors) alloc(dims ...int) *tensor {
	t := &tensor{dims: dims}
	p.tensors = append(p.tensors, t)
	return t
}

// Init lays out Memory and Grads and points every registered tensor at its
// slice of them.
func (p *ParameterTensors) Init() {
	var total int
	for _, t := range p.tensors {
		total += t.size()
	}
	p.Memory = make([]float32, total)
	p.Grads = make([]float32, total)
	memPtr, gradPtr := p.Memory, p.Grads
	for _, t := range p.tensors {
		s := t.size()
		t.offset = total - len(memPtr)
		t.data = memPtr[:s:s]
		t.grad = gradPtr[:s:s]
		memPtr = memPtr[s:]
		gradPtr = gradPtr[s:]
	}
	if len(memPtr) != 0 {
		panic("something went real bad here")
	}
}

func (p *ParameterTensors) Len() int {
	return len(p.Memory)
}

// NumTrainable counts the parameters the optimizer will update.
func (p *ParameterTensors) NumTrainable() int {
	var n int
	for _, t := range p.tensors {
		if !t.frozen {
			n += t.size()
		}
	}
	return n
}

func (p *ParameterTensors) ZeroGrad() {
	for i := range p.Grads {
		p.Grads[i] = 0
	}
}

// initUniform fills t with U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
func initUniform(t *tensor, fanIn int, rng *rand.Rand) {
	bound := float32(1.0 / math.Sqrt(float64(fanIn)))
	for i := range t.data {
		t.data[i] = (rng.Float32()*2 - 1) * bound
	}
}

func initNormal(t *tensor, rng *rand.Rand) {
	for i := range t.data {
		t.data[i] = float32(rng.NormFloat64())
	}
}
