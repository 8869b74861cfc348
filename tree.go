package treelstm

import (
	"fmt"
)

// Tree is a pre-built syntax tree. Word indexes the embedding table.
type Tree struct {
	Word     int32
	Children []*Tree
}

// Size counts the nodes in the tree.
func (t *Tree) Size() int {
	n := 1
	for _, c := range t.Children {
		n += c.Size()
	}
	return n
}

func (t *Tree) Depth() int {
	var d int
	for _, c := range t.Children {
		if cd := c.Depth(); cd > d {
			d = cd
		}
	}
	return d + 1
}

// validate checks every word is a row of a vocabSize embedding table.
func (t *Tree) validate(vocabSize int) error {
	if t == nil {
		return fmt.Errorf("%w: nil tree", ErrInvalidExample)
	}
	if t.Word < 0 || int(t.Word) >= vocabSize {
		return fmt.Errorf("%w: word %d outside vocabulary of %d", ErrInvalidExample, t.Word, vocabSize)
	}
	for _, c := range t.Children {
		if err := c.validate(vocabSize); err != nil {
			return err
		}
	}
	return nil
}

// Example is one training item. TREC examples set Tree and Label; SICK
// examples set Left, Right and Score.
type Example struct {
	Tree  *Tree
	Label int

	Left  *Tree
	Right *Tree
	Score float32
}

// Fold is one pre-split partition of a dataset.
type Fold []Example

type Folds []Fold
