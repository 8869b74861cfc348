package treelstm

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// UnknownToken is the vocabulary entry words outside the table map to.
const UnknownToken = "<unk>"

// Vocab maps tokens to rows of the embedding table.
type Vocab struct {
	tokenTable []string
	index      map[string]int32
	unk        int32
	init       bool
}

// NewVocab reads a one-token-per-line file. The line number is the index.
func NewVocab(filename string) (Vocab, error) {
	f, err := Open(filename)
	if err != nil {
		return Vocab{}, err
	}
	defer f.Close()
	return readVocab(f)
}

func readVocab(r io.Reader) (Vocab, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tok := strings.TrimRight(scanner.Text(), "\r")
		if tok == "" {
			continue
		}
		tokens = append(tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return Vocab{}, err
	}
	if len(tokens) == 0 {
		return Vocab{}, errors.New("empty vocabulary")
	}
	return newVocab(tokens), nil
}

// newVocab indexes tokens in order, appending UnknownToken if it is missing.
// Duplicate tokens keep their first index.
func newVocab(tokens []string) Vocab {
	v := Vocab{
		tokenTable: make([]string, 0, len(tokens)+1),
		index:      make(map[string]int32, len(tokens)+1),
		init:       true,
	}
	for _, tok := range tokens {
		if _, ok := v.index[tok]; ok {
			continue
		}
		v.index[tok] = int32(len(v.tokenTable))
		v.tokenTable = append(v.tokenTable, tok)
	}
	unk, ok := v.index[UnknownToken]
	if !ok {
		unk = int32(len(v.tokenTable))
		v.index[UnknownToken] = unk
		v.tokenTable = append(v.tokenTable, UnknownToken)
	}
	v.unk = unk
	return v
}

func (v Vocab) Size() int {
	return len(v.tokenTable)
}

// Index returns the row for tok, or the unknown row.
func (v Vocab) Index(tok string) int32 {
	if i, ok := v.index[tok]; ok {
		return i
	}
	return v.unk
}

