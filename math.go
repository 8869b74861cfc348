package treelstm

import (
	"math"
)

// embeddingForward copies row ix of the (V, C) table into out.
func embeddingForward(out []float32, table []float32, ix int32, C int) {
	start := int(ix) * C
	copy(out, table[start:start+C])
}

// embeddingBackward accumulates dout into row ix of dtable.
func embeddingBackward(dtable, dout []float32, ix int32, C int) {
	start := int(ix) * C
	for i := 0; i < C; i++ {
		dtable[start+i] += dout[i]
	}
}

// matvecForward computes out = weight·inp + bias where weight is (OC, C) row
// major. bias may be nil.
func matvecForward(out, inp, weight, bias []float32, C, OC int) {
	for o := 0; o < OC; o++ {
		var val float64
		if bias != nil {
			val = float64(bias[o])
		}
		wrow := weight[o*C : o*C+C]
		for i := 0; i < C; i++ {
			val += float64(inp[i]) * float64(wrow[i])
		}
		out[o] = float32(val)
	}
}

// matvecBackward accumulates the gradients of matvecForward into dinp, dweight
// and dbias. Any of the three may be nil.
func matvecBackward(dinp, dweight, dbias, dout, inp, weight []float32, C, OC int) {
	if dinp != nil {
		for o := 0; o < OC; o++ {
			wrow := weight[o*C : o*C+C]
			d := dout[o]
			for i := 0; i < C; i++ {
				dinp[i] += wrow[i] * d
			}
		}
	}
	for o := 0; o < OC; o++ {
		d := dout[o]
		if dbias != nil {
			dbias[o] += d
		}
		if dweight != nil {
			dwrow := dweight[o*C : o*C+C]
			for i := 0; i < C; i++ {
				dwrow[i] += inp[i] * d
			}
		}
	}
}

func residualForward(out, inp1, inp2 []float32, N int) {
	for i := 0; i < N; i++ {
		out[i] = inp1[i] + inp2[i]
	}
}

func residualBackward(dinp1, dinp2, dout []float32, N int) {
	for i := 0; i < N; i++ {
		dinp1[i] += dout[i]
		dinp2[i] += dout[i]
	}
}

func mulForward(out, inp1, inp2 []float32, N int) {
	for i := 0; i < N; i++ {
		out[i] = inp1[i] * inp2[i]
	}
}

func mulBackward(dinp1, dinp2, inp1, inp2, dout []float32, N int) {
	for i := 0; i < N; i++ {
		dinp1[i] += inp2[i] * dout[i]
		dinp2[i] += inp1[i] * dout[i]
	}
}

func sigmoidForward(out, inp []float32, N int) {
	for i := 0; i < N; i++ {
		out[i] = Sigmoid(inp[i])
	}
}

// sigmoidBackward uses the forward output: σ'(x) = σ(x)(1-σ(x)).
func sigmoidBackward(dinp, out, dout []float32, N int) {
	for i := 0; i < N; i++ {
		dinp[i] += out[i] * (1 - out[i]) * dout[i]
	}
}

func tanhForward(out, inp []float32, N int) {
	for i := 0; i < N; i++ {
		out[i] = Tanh(inp[i])
	}
}

func tanhBackward(dinp, out, dout []float32, N int) {
	for i := 0; i < N; i++ {
		dinp[i] += (1 - out[i]*out[i]) * dout[i]
	}
}

func absForward(out, inp []float32, N int) {
	for i := 0; i < N; i++ {
		out[i] = Abs(inp[i])
	}
}

// absBackward uses a zero subgradient at 0.
func absBackward(dinp, inp, dout []float32, N int) {
	for i := 0; i < N; i++ {
		switch {
		case inp[i] > 0:
			dinp[i] += dout[i]
		case inp[i] < 0:
			dinp[i] -= dout[i]
		}
	}
}

// softmaxForward writes the normalised exponentials of logits into probs.
func softmaxForward(probs, logits []float32, V int) {
	maxval := float32(math.Inf(-1))
	for i := 0; i < V; i++ {
		if logits[i] > maxval {
			maxval = logits[i]
		}
	}
	sum := 0.0
	for i := 0; i < V; i++ {
		probs[i] = float32(math.Exp(float64(logits[i] - maxval)))
		sum += float64(probs[i])
	}
	for i := 0; i < V; i++ {
		probs[i] /= float32(sum)
	}
}

func logSoftmaxForward(out, logits []float32, V int) {
	maxval := math.Inf(-1)
	for i := 0; i < V; i++ {
		if float64(logits[i]) > maxval {
			maxval = float64(logits[i])
		}
	}
	sum := 0.0
	for i := 0; i < V; i++ {
		sum += math.Exp(float64(logits[i]) - maxval)
	}
	logsum := maxval + math.Log(sum)
	for i := 0; i < V; i++ {
		out[i] = float32(float64(logits[i]) - logsum)
	}
}

// logSoftmaxBackward: dx_i = dy_i - softmax_i * Σ_j dy_j.
func logSoftmaxBackward(dinp, out, dout []float32, V int) {
	var total float32
	for i := 0; i < V; i++ {
		total += dout[i]
	}
	for i := 0; i < V; i++ {
		dinp[i] += dout[i] - Exp(out[i])*total
	}
}

// crossEntropyForward returns -log softmax(logits)[target] and leaves the
// softmax in probs for the backward pass.
func crossEntropyForward(probs, logits []float32, target, V int) float32 {
	softmaxForward(probs, logits, V)
	return float32(-math.Log(float64(probs[target])))
}

func crossentropySoftmaxBackward(dlogits []float32, dloss float32, probs []float32, target, V int) {
	for i := 0; i < V; i++ {
		var indicator float32
		if i == target {
			indicator = 1.0
		}
		dlogits[i] += (probs[i] - indicator) * dloss
	}
}

// klDivForward is the element-mean of target·(log target - logp). Zero targets
// contribute nothing.
func klDivForward(logp, target []float32, V int) float32 {
	var sum float64
	for i := 0; i < V; i++ {
		if target[i] > 0 {
			sum += float64(target[i]) * (math.Log(float64(target[i])) - float64(logp[i]))
		}
	}
	return float32(sum / float64(V))
}

func klDivBackward(dlogp, target []float32, dloss float32, V int) {
	scale := dloss / float32(V)
	for i := 0; i < V; i++ {
		dlogp[i] -= target[i] * scale
	}
}

func argmax(values []float32) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
