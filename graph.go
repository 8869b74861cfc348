package treelstm

// Node is a value in the computation graph built by a forward pass. One graph
// is built per example; parameter gradients are accumulated straight into the
// model's ParameterTensors.Grads when Backward walks it.
type Node struct {
	Data     []float32
	Grad     []float32
	parents  []*Node
	backward func()
}

func newNode(n int, parents ...*Node) *Node {
	return &Node{
		Data:    make([]float32, n),
		Grad:    make([]float32, n),
		parents: parents,
	}
}

// Constant wraps data as a leaf with no gradient flowing anywhere.
func Constant(data []float32) *Node {
	return &Node{Data: data, Grad: make([]float32, len(data))}
}

// Value returns the first element, which is the loss for scalar nodes.
func (n *Node) Value() float32 {
	return n.Data[0]
}

func (n *Node) Len() int {
	return len(n.Data)
}

func add(a, b *Node) *Node {
	N := a.Len()
	out := newNode(N, a, b)
	residualForward(out.Data, a.Data, b.Data, N)
	out.backward = func() {
		residualBackward(a.Grad, b.Grad, out.Grad, N)
	}
	return out
}

func sub(a, b *Node) *Node {
	N := a.Len()
	out := newNode(N, a, b)
	for i := 0; i < N; i++ {
		out.Data[i] = a.Data[i] - b.Data[i]
	}
	out.backward = func() {
		for i := 0; i < N; i++ {
			a.Grad[i] += out.Grad[i]
			b.Grad[i] -= out.Grad[i]
		}
	}
	return out
}

func mul(a, b *Node) *Node {
	N := a.Len()
	out := newNode(N, a, b)
	mulForward(out.Data, a.Data, b.Data, N)
	out.backward = func() {
		mulBackward(a.Grad, b.Grad, a.Data, b.Data, out.Grad, N)
	}
	return out
}

func abs(a *Node) *Node {
	N := a.Len()
	out := newNode(N, a)
	absForward(out.Data, a.Data, N)
	out.backward = func() {
		absBackward(a.Grad, a.Data, out.Grad, N)
	}
	return out
}

func sigmoid(a *Node) *Node {
	N := a.Len()
	out := newNode(N, a)
	sigmoidForward(out.Data, a.Data, N)
	out.backward = func() {
		sigmoidBackward(a.Grad, out.Data, out.Grad, N)
	}
	return out
}

func tanh(a *Node) *Node {
	N := a.Len()
	out := newNode(N, a)
	tanhForward(out.Data, a.Data, N)
	out.backward = func() {
		tanhBackward(a.Grad, out.Data, out.Grad, N)
	}
	return out
}

// sum adds any number of equally sized nodes. With no inputs the result is n zeros.
func sum(n int, nodes ...*Node) *Node {
	out := newNode(n, nodes...)
	for _, node := range nodes {
		for i := 0; i < n; i++ {
			out.Data[i] += node.Data[i]
		}
	}
	out.backward = func() {
		for _, node := range nodes {
			for i := 0; i < n; i++ {
				node.Grad[i] += out.Grad[i]
			}
		}
	}
	return out
}

// slice returns a[from:to] as its own node.
func slice(a *Node, from, to int) *Node {
	N := to - from
	out := newNode(N, a)
	copy(out.Data, a.Data[from:to])
	out.backward = func() {
		for i := 0; i < N; i++ {
			a.Grad[from+i] += out.Grad[i]
		}
	}
	return out
}

func concat(nodes ...*Node) *Node {
	var N int
	for _, node := range nodes {
		N += node.Len()
	}
	out := newNode(N, nodes...)
	var off int
	for _, node := range nodes {
		copy(out.Data[off:], node.Data)
		off += node.Len()
	}
	out.backward = func() {
		var off int
		for _, node := range nodes {
			for i := range node.Grad {
				node.Grad[i] += out.Grad[off+i]
			}
			off += node.Len()
		}
	}
	return out
}

// affine computes w·x + b for a (OC, C) weight view. b may be nil.
func affine(w, b *tensor, x *Node) *Node {
	OC, C := w.dims[0], w.dims[1]
	out := newNode(OC, x)
	var bias, dbias []float32
	if b != nil {
		bias, dbias = b.data, b.grad
	}
	matvecForward(out.Data, x.Data, w.data, bias, C, OC)
	out.backward = func() {
		matvecBackward(x.Grad, w.grad, dbias, out.Grad, x.Data, w.data, C, OC)
	}
	return out
}

// embedding looks up row ix of a (V, C) table.
func embedding(table *tensor, ix int32) *Node {
	C := table.dims[1]
	out := newNode(C)
	embeddingForward(out.Data, table.data, ix, C)
	out.backward = func() {
		embeddingBackward(table.grad, out.Grad, ix, C)
	}
	return out
}

func logSoftmax(a *Node) *Node {
	V := a.Len()
	out := newNode(V, a)
	logSoftmaxForward(out.Data, a.Data, V)
	out.backward = func() {
		logSoftmaxBackward(a.Grad, out.Data, out.Grad, V)
	}
	return out
}

// Backward runs reverse-mode differentiation from a scalar root. Gradients of
// parameters are added to, not overwritten, so repeated calls accumulate.
func Backward(root *Node) {
	var topo []*Node
	visited := make(map[*Node]bool)
	var build func(n *Node)
	build = func(n *Node) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, p := range n.parents {
			build(p)
		}
		topo = append(topo, n)
	}
	build(root)
	for i := range root.Grad {
		root.Grad[i] = 1.0
	}
	for i := len(topo) - 1; i >= 0; i-- {
		if topo[i].backward != nil {
			topo[i].backward()
		}
	}
}
