package treelstm

import (
	"fmt"
	"math"
)

// Criterion turns a model output and its example into a scalar loss node.
type Criterion interface {
	Forward(output *Node, ex Example) (*Node, error)
}

// CrossEntropyLoss expects class logits and an integer label.
type CrossEntropyLoss struct{}

func (CrossEntropyLoss) Forward(logits *Node, ex Example) (*Node, error) {
	V := logits.Len()
	if ex.Label < 0 || ex.Label >= V {
		return nil, fmt.Errorf("%w: label %d with %d classes", ErrLabelRange, ex.Label, V)
	}
	probs := make([]float32, V)
	out := newNode(1, logits)
	out.Data[0] = crossEntropyForward(probs, logits.Data, ex.Label, V)
	out.backward = func() {
		crossentropySoftmaxBackward(logits.Grad, out.Grad[0], probs, ex.Label, V)
	}
	return out, nil
}

// KLDivLoss expects log-probabilities and compares them with the sparse target
// distribution of the example's real-valued score.
type KLDivLoss struct {
	NumClass int
}

func (k KLDivLoss) Forward(logp *Node, ex Example) (*Node, error) {
	target, err := LabelToTarget(ex.Score, k.NumClass)
	if err != nil {
		return nil, err
	}
	V := logp.Len()
	out := newNode(1, logp)
	out.Data[0] = klDivForward(logp.Data, target, V)
	out.backward = func() {
		klDivBackward(logp.Grad, target, out.Grad[0], V)
	}
	return out, nil
}

// LabelToTarget spreads a score in [1, numClass] over its two neighbouring
// grades, e.g. 3.6 with 5 classes is [0 0 0.4 0.6 0].
func LabelToTarget(score float32, numClass int) ([]float32, error) {
	if numClass <= 0 || score < 1 || score > float32(numClass) || IsNaN(score) {
		return nil, fmt.Errorf("%w: score %v with %d classes", ErrLabelRange, score, numClass)
	}
	target := make([]float32, numClass)
	floor := int(math.Floor(float64(score)))
	ceil := int(math.Ceil(float64(score)))
	if floor == ceil {
		target[floor-1] = 1
		return target, nil
	}
	target[floor-1] = float32(ceil) - score
	target[ceil-1] = score - float32(floor)
	return target, nil
}
