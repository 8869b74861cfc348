package treelstm

import "math/rand"

// ChildSumTreeLSTM composes a node's state from its word embedding and the
// summed hidden states of its children (Tai et al. 2015).
type ChildSumTreeLSTM struct {
	InputSize  int
	HiddenSize int
	WIou       *tensor // (3H, I) input gates i, o and candidate u
	UIou       *tensor // (3H, H)
	BIou       *tensor // (3H)
	WF         *tensor // (H, I) forget gate, one per child
	UF         *tensor // (H, H)
	BF         *tensor // (H)
}

func newChildSumTreeLSTM(params *ParameterTensors, inputSize, hiddenSize int) *ChildSumTreeLSTM {
	H, I := hiddenSize, inputSize
	return &ChildSumTreeLSTM{
		InputSize:  I,
		HiddenSize: H,
		WIou:       params.alloc(3*H, I),
		UIou:       params.alloc(3*H, H),
		BIou:       params.alloc(3 * H),
		WF:         params.alloc(H, I),
		UF:         params.alloc(H, H),
		BF:         params.alloc(H),
	}
}

func (m *ChildSumTreeLSTM) init(rng *rand.Rand) {
	initUniform(m.WIou, m.InputSize, rng)
	initUniform(m.UIou, m.HiddenSize, rng)
	initUniform(m.BIou, m.InputSize, rng)
	initUniform(m.WF, m.InputSize, rng)
	initUniform(m.UF, m.HiddenSize, rng)
	initUniform(m.BF, m.InputSize, rng)
}

type treeState struct {
	c *Node
	h *Node
}

// forward encodes tree bottom-up and returns the root state.
func (m *ChildSumTreeLSTM) forward(tree *Tree, embed func(word int32) *Node) treeState {
	children := make([]treeState, len(tree.Children))
	for i, child := range tree.Children {
		children[i] = m.forward(child, embed)
	}
	return m.nodeForward(embed(tree.Word), children)
}

func (m *ChildSumTreeLSTM) nodeForward(x *Node, children []treeState) treeState {
	H := m.HiddenSize
	hs := make([]*Node, len(children))
	for i, ch := range children {
		hs[i] = ch.h
	}
	hSum := sum(H, hs...)
	iou := add(affine(m.WIou, m.BIou, x), affine(m.UIou, nil, hSum))
	i := sigmoid(slice(iou, 0, H))
	o := sigmoid(slice(iou, H, 2*H))
	u := tanh(slice(iou, 2*H, 3*H))
	c := mul(i, u)
	if len(children) > 0 {
		fx := affine(m.WF, m.BF, x)
		for _, ch := range children {
			f := sigmoid(add(fx, affine(m.UF, nil, ch.h)))
			c = add(c, mul(f, ch.c))
		}
	}
	h := mul(o, tanh(c))
	return treeState{c: c, h: h}
}
