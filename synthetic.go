package treelstm

import (
	"fmt"
	"math/rand"
)

const (
	syntheticMaxDepth    = 3
	syntheticMaxChildren = 3
)

// SyntheticFolds generates random trees for smoke-testing a configuration
// without real data. TREC labels are the root word modulo numClass, so the
// task is learnable. SICK scores grow with the share of words the two trees
// have in common.
func SyntheticFolds(task string, numFolds, foldSize, vocabSize, numClass int, rng *rand.Rand) (Folds, error) {
	if vocabSize <= 0 || numClass <= 0 || numFolds <= 0 || foldSize < 0 {
		return nil, fmt.Errorf("%w: synthetic folds need positive sizes", ErrInvalidConfig)
	}
	folds := make(Folds, numFolds)
	for f := range folds {
		fold := make(Fold, foldSize)
		for i := range fold {
			switch task {
			case TaskTREC:
				tree := randomTree(rng, vocabSize, syntheticMaxDepth)
				fold[i] = Example{Tree: tree, Label: int(tree.Word) % numClass}
			case TaskSICK:
				left := randomTree(rng, vocabSize, syntheticMaxDepth)
				right := randomTree(rng, vocabSize, syntheticMaxDepth)
				score := 1 + float32(numClass-1)*overlap(left, right)
				fold[i] = Example{Left: left, Right: right, Score: score}
			default:
				return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
			}
		}
		folds[f] = fold
	}
	return folds, nil
}

func randomTree(rng *rand.Rand, vocabSize, depth int) *Tree {
	t := &Tree{Word: int32(rng.Intn(vocabSize))}
	if depth <= 1 {
		return t
	}
	for n := rng.Intn(syntheticMaxChildren + 1); n > 0; n-- {
		t.Children = append(t.Children, randomTree(rng, vocabSize, depth-1))
	}
	return t
}

func (t *Tree) words(into map[int32]bool) {
	into[t.Word] = true
	for _, c := range t.Children {
		c.words(into)
	}
}

// overlap is the Jaccard index of the two trees' word sets.
func overlap(a, b *Tree) float32 {
	wa, wb := map[int32]bool{}, map[int32]bool{}
	a.words(wa)
	b.words(wb)
	var inter int
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float32(inter) / float32(union)
}
