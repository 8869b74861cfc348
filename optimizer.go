package treelstm

// Adam updates the trainable tensors of a ParameterTensors. Weight decay is an
// L2 term added to the gradient before the moment estimates, not decoupled.
type Adam struct {
	LR          float32
	Beta1       float32
	Beta2       float32
	Eps         float32
	WeightDecay float32
	T           int       // number of updates taken
	MMemory     []float32 // first moment estimates
	VMemory     []float32 // second moment estimates
	params      *ParameterTensors
}

func NewAdam(params *ParameterTensors, lr, weightDecay float32) *Adam {
	return &Adam{
		LR:          lr,
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: weightDecay,
		MMemory:     make([]float32, params.Len()),
		VMemory:     make([]float32, params.Len()),
		params:      params,
	}
}

func (opt *Adam) ZeroGrad() {
	opt.params.ZeroGrad()
}

// Update applies one step using the gradients accumulated since ZeroGrad.
func (opt *Adam) Update() {
	opt.T++
	beta1, beta2 := opt.Beta1, opt.Beta2
	bias1 := 1.0 - Pow(beta1, float32(opt.T))
	bias2 := 1.0 - Pow(beta2, float32(opt.T))
	memory, grads := opt.params.Memory, opt.params.Grads
	for _, t := range opt.params.tensors {
		if t.frozen {
			continue
		}
		for i := t.offset; i < t.offset+t.size(); i++ {
			parameter := memory[i]
			gradient := grads[i] + opt.WeightDecay*parameter
			m := beta1*opt.MMemory[i] + (1.0-beta1)*gradient
			v := beta2*opt.VMemory[i] + (1.0-beta2)*gradient*gradient
			mHat := m / bias1
			vHat := v / bias2
			opt.MMemory[i] = m
			opt.VMemory[i] = v
			memory[i] -= opt.LR * mHat / (Sqrt(vHat) + opt.Eps)
		}
	}
}

// MultiStepLR multiplies the optimizer's base rate by Gamma once for every
// milestone epoch that has been reached.
type MultiStepLR struct {
	Milestones []int
	Gamma      float32
	BaseLR     float32
	LastEpoch  int
	opt        *Adam
}

func NewMultiStepLR(opt *Adam, milestones []int, gamma float32) *MultiStepLR {
	return &MultiStepLR{
		Milestones: milestones,
		Gamma:      gamma,
		BaseLR:     opt.LR,
		LastEpoch:  -1,
		opt:        opt,
	}
}

// Step advances to the next epoch and sets the optimizer's rate for it. It is
// called at the start of each epoch, so the first call configures epoch 0.
func (s *MultiStepLR) Step() {
	s.LastEpoch++
	s.opt.LR = s.rateAt(s.LastEpoch)
}

func (s *MultiStepLR) rateAt(epoch int) float32 {
	lr := s.BaseLR
	for _, m := range s.Milestones {
		if m <= epoch {
			lr *= s.Gamma
		}
	}
	return lr
}
