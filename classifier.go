package treelstm

import (
	"context"
	"fmt"
	"math/rand"
)

// Classifier predicts a class for a single tree from its root hidden state.
type Classifier struct {
	config  ModelConfig
	Params  ParameterTensors
	Embed   *tensor // (V, I)
	Encoder *ChildSumTreeLSTM
	OutW    *tensor // (numClass, H)
	OutB    *tensor // (numClass)
}

func NewClassifier(cfg ModelConfig, glove [][]float32, rng *rand.Rand) (*Classifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Classifier{config: cfg}
	c.Embed = embeddingTable(&c.Params, cfg)
	c.Encoder = newChildSumTreeLSTM(&c.Params, cfg.InputSize, cfg.HiddenSize)
	c.OutW = c.Params.alloc(cfg.NumClass, cfg.HiddenSize)
	c.OutB = c.Params.alloc(cfg.NumClass)
	c.Params.Init()
	if err := initEmbedding(c.Embed, cfg, glove, rng); err != nil {
		return nil, err
	}
	c.Encoder.init(rng)
	initUniform(c.OutW, cfg.HiddenSize, rng)
	initUniform(c.OutB, cfg.HiddenSize, rng)
	return c, nil
}

func (c *Classifier) Parameters() *ParameterTensors {
	return &c.Params
}

func (c *Classifier) Config() ModelConfig {
	return c.config
}

func (c *Classifier) String() string {
	var s string
	s += "[Classifier]\n"
	s += fmt.Sprintf("input_size: %d\n", c.config.InputSize)
	s += fmt.Sprintf("hidden_size: %d\n", c.config.HiddenSize)
	s += fmt.Sprintf("num_class: %d\n", c.config.NumClass)
	s += fmt.Sprintf("vocab_size: %d\n", c.config.VocabSize)
	s += fmt.Sprintf("num_parameters: %d (trainable %d)\n", c.Params.Len(), c.Params.NumTrainable())
	return s
}

// Forward returns the class logits for ex.Tree.
func (c *Classifier) Forward(ex Example) (*Node, error) {
	if err := ex.Tree.validate(c.config.VocabSize); err != nil {
		return nil, err
	}
	root := c.Encoder.forward(ex.Tree, c.embed)
	return affine(c.OutW, c.OutB, root.h), nil
}

func (c *Classifier) embed(word int32) *Node {
	return embedding(c.Embed, word)
}

func (c *Classifier) Predict(tree *Tree) (int, error) {
	logits, err := c.Forward(Example{Tree: tree})
	if err != nil {
		return 0, err
	}
	return argmax(logits.Data), nil
}

// EvaluateDataset counts the examples whose predicted class equals the label.
func (c *Classifier) EvaluateDataset(ctx context.Context, fold Fold) (Metrics, error) {
	hits := make([]bool, len(fold))
	err := forEachExample(ctx, fold, func(i int) error {
		pred, err := c.Predict(fold[i].Tree)
		if err != nil {
			return fmt.Errorf("example %d: %w", i, err)
		}
		hits[i] = pred == fold[i].Label
		return nil
	})
	if err != nil {
		return Metrics{}, err
	}
	m := Metrics{Task: TaskTREC, Total: len(fold)}
	for _, hit := range hits {
		if hit {
			m.Correct++
		}
	}
	return m, nil
}
