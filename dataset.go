package treelstm

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Split pools the first numFolds-1 folds for training and holds out the last
// fold for evaluation. Folds between the two are left unused.
func Split(folds Folds, numFolds int) (train, eval Fold, err error) {
	if numFolds < 2 {
		return nil, nil, fmt.Errorf("%w: num_folds must be >= 2, got %d", ErrInvalidConfig, numFolds)
	}
	if len(folds) < numFolds {
		return nil, nil, fmt.Errorf("%w: num_folds is %d but only %d folds given", ErrInvalidConfig, numFolds, len(folds))
	}
	for i := 0; i < numFolds-1; i++ {
		train = append(train, folds[i]...)
	}
	eval = folds[len(folds)-1]
	return train, eval, nil
}

type jsonTree struct {
	Word     json.RawMessage `json:"word"`
	Children []*jsonTree     `json:"children"`
}

type jsonExample struct {
	Tree  *jsonTree `json:"tree"`
	Label *int      `json:"label"`
	Left  *jsonTree `json:"left"`
	Right *jsonTree `json:"right"`
	Score *float32  `json:"score"`
}

// LoadFold reads a JSON-lines file of pre-built examples. Words may be
// integer indices or token strings; strings need vocab.
func LoadFold(filename string, vocab *Vocab) (Fold, error) {
	f, err := Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fold, err := loadFoldFromReader(f, vocab)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return fold, nil
}

func LoadFolds(filenames []string, vocab *Vocab) (Folds, error) {
	folds := make(Folds, 0, len(filenames))
	for _, name := range filenames {
		fold, err := LoadFold(name, vocab)
		if err != nil {
			return nil, err
		}
		folds = append(folds, fold)
	}
	return folds, nil
}

func loadFoldFromReader(r io.Reader, vocab *Vocab) (Fold, error) {
	var fold Fold
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var je jsonExample
		if err := json.Unmarshal([]byte(line), &je); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		ex, err := je.example(vocab)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		fold = append(fold, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return fold, nil
}

func (je jsonExample) example(vocab *Vocab) (Example, error) {
	switch {
	case je.Tree != nil:
		if je.Label == nil {
			return Example{}, fmt.Errorf("%w: tree without label", ErrInvalidExample)
		}
		tree, err := je.Tree.build(vocab)
		if err != nil {
			return Example{}, err
		}
		return Example{Tree: tree, Label: *je.Label}, nil
	case je.Left != nil && je.Right != nil:
		if je.Score == nil {
			return Example{}, fmt.Errorf("%w: tree pair without score", ErrInvalidExample)
		}
		left, err := je.Left.build(vocab)
		if err != nil {
			return Example{}, err
		}
		right, err := je.Right.build(vocab)
		if err != nil {
			return Example{}, err
		}
		return Example{Left: left, Right: right, Score: *je.Score}, nil
	default:
		return Example{}, fmt.Errorf("%w: need \"tree\" or \"left\" and \"right\"", ErrInvalidExample)
	}
}

func (jt *jsonTree) build(vocab *Vocab) (*Tree, error) {
	if jt == nil {
		return nil, fmt.Errorf("%w: null tree", ErrInvalidExample)
	}
	word, err := jt.word(vocab)
	if err != nil {
		return nil, err
	}
	t := &Tree{Word: word}
	for _, c := range jt.Children {
		child, err := c.build(vocab)
		if err != nil {
			return nil, err
		}
		t.Children = append(t.Children, child)
	}
	return t, nil
}

func (jt *jsonTree) word(vocab *Vocab) (int32, error) {
	var idx int32
	if err := json.Unmarshal(jt.Word, &idx); err == nil {
		return idx, nil
	}
	var tok string
	if err := json.Unmarshal(jt.Word, &tok); err != nil {
		return 0, fmt.Errorf("%w: word must be an index or a token, got %s", ErrInvalidExample, string(jt.Word))
	}
	if vocab == nil || !vocab.init {
		return 0, errors.New("token words need a vocabulary")
	}
	return vocab.Index(tok), nil
}
