package treelstm

import (
	"fmt"
	"math/rand"

	log "github.com/sirupsen/logrus"
)

// GradientCheck is the outcome of comparing the backpropagated gradient of one
// parameter tensor with central finite differences.
type GradientCheck struct {
	Tensor   int
	Dims     []int
	Checked  int
	MaxDiff  float32
	Analytic []float32
	Numeric  []float32
	OK       bool
}

// CheckGradients differentiates task's loss on ex both ways for up to
// samples entries of every trainable tensor. Frozen tensors are skipped.
// Parameters are left as they were found.
func CheckGradients(task *Task, ex Example, eps, tol float32, samples int, rng *rand.Rand) ([]GradientCheck, error) {
	params := task.Model.Parameters()
	params.ZeroGrad()
	loss, err := task.Loss(ex)
	if err != nil {
		return nil, err
	}
	Backward(loss)
	analytic := make([]float32, len(params.Grads))
	copy(analytic, params.Grads)
	params.ZeroGrad()

	lossAt := func(i int, value float32) (float64, error) {
		saved := params.Memory[i]
		params.Memory[i] = value
		defer func() { params.Memory[i] = saved }()
		l, err := task.Loss(ex)
		if err != nil {
			return 0, err
		}
		return float64(l.Value()), nil
	}

	var checks []GradientCheck
	for ti, t := range params.tensors {
		if t.frozen {
			continue
		}
		idx := make([]int, t.size())
		for i := range idx {
			idx[i] = t.offset + i
		}
		if samples > 0 && len(idx) > samples {
			rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
			idx = idx[:samples]
		}
		gc := GradientCheck{Tensor: ti, Dims: t.dims, Checked: len(idx)}
		for _, i := range idx {
			p := params.Memory[i]
			plus, err := lossAt(i, p+eps)
			if err != nil {
				return nil, err
			}
			minus, err := lossAt(i, p-eps)
			if err != nil {
				return nil, err
			}
			gc.Analytic = append(gc.Analytic, analytic[i])
			gc.Numeric = append(gc.Numeric, float32((plus-minus)/(2*float64(eps))))
		}
		gc.MaxDiff, gc.OK = checkTensor(gc.Analytic, gc.Numeric, tol)
		checks = append(checks, gc)
	}
	return checks, nil
}

// checkTensor compares a and b elementwise with a tolerance relative to the
// larger magnitude, floored at 1.
func checkTensor(a, b []float32, tol float32) (float32, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var maxDiff float32
	ok := true
	for i := range a {
		diff := Abs(a[i] - b[i])
		scale := float32(1)
		if m := Abs(a[i]); m > scale {
			scale = m
		}
		if m := Abs(b[i]); m > scale {
			scale = m
		}
		if diff > maxDiff {
			maxDiff = diff
		}
		if diff > tol*scale {
			ok = false
		}
	}
	return maxDiff, ok
}

// LogGradientChecks reports every check to logger and returns whether all
// of them passed.
func LogGradientChecks(logger log.FieldLogger, checks []GradientCheck) bool {
	allok := true
	for _, gc := range checks {
		entry := logger.WithFields(log.Fields{
			"tensor":   gc.Tensor,
			"dims":     fmt.Sprint(gc.Dims),
			"checked":  gc.Checked,
			"max_diff": gc.MaxDiff,
		})
		if gc.OK {
			entry.Info("TENSOR OK")
			continue
		}
		allok = false
		for i := range gc.Analytic {
			if i >= 5 {
				break
			}
			entry.Warnf("  backprop %f numeric %f", gc.Analytic[i], gc.Numeric[i])
		}
		entry.Warn("TENSOR NOT OK")
	}
	return allok
}
