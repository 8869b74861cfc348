package treelstm

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"
)

const (
	TaskTREC = "TREC"
	TaskSICK = "SICK"
)

// DefaultSimilarityHiddenDim is the width of the similarity classifier's
// hidden layer.
const DefaultSimilarityHiddenDim = 50

type ModelConfig struct {
	InputSize        int  `json:"input_size"`
	HiddenSize       int  `json:"hidden_size"`
	HiddenDim        int  `json:"hidden_dim"`
	NumClass         int  `json:"num_class"`
	VocabSize        int  `json:"vocab_size"`
	FreezeEmbeddings bool `json:"freeze_embeddings"`
}

func (c ModelConfig) validate() error {
	if c.InputSize <= 0 || c.HiddenSize <= 0 || c.NumClass <= 0 || c.VocabSize <= 0 {
		return fmt.Errorf("%w: sizes must be positive: %+v", ErrInvalidConfig, c)
	}
	return nil
}

// Model is a tree network that can be trained by Train.
type Model interface {
	// Forward builds the graph for one example and returns its output node:
	// logits for a Classifier, log-probabilities for a SimilarityClassifier.
	Forward(ex Example) (*Node, error)
	EvaluateDataset(ctx context.Context, fold Fold) (Metrics, error)
	Parameters() *ParameterTensors
	Config() ModelConfig
}

// Metrics is the result of evaluating a model on a fold.
type Metrics struct {
	Task     string  `json:"task"`
	Correct  int     `json:"correct,omitempty"`
	Total    int     `json:"total"`
	Pearson  float64 `json:"pearson,omitempty"`
	MSE      float64 `json:"mse,omitempty"`
	Spearman float64 `json:"spearman,omitempty"`
}

func (m Metrics) Accuracy() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Correct) / float64(m.Total)
}

// String renders the line written to the eval log.
func (m Metrics) String() string {
	if m.Task == TaskSICK {
		return fmt.Sprintf("pearson: %s, mse: %s, spearman: %s",
			formatFloat(m.Pearson), formatFloat(m.MSE), formatFloat(m.Spearman))
	}
	return fmt.Sprintf("%d / %d = %.3f", m.Correct, m.Total, m.Accuracy())
}

// Task pairs a model with the criterion it is trained against.
type Task struct {
	Name      string
	Model     Model
	Criterion Criterion
}

// NewTask instantiates the model and loss function for a task name. glove, if
// non-nil, must be VocabSize rows of InputSize and freezes the embeddings.
func NewTask(name string, cfg ModelConfig, glove [][]float32, rng *rand.Rand) (*Task, error) {
	if glove != nil {
		cfg.FreezeEmbeddings = true
	}
	switch name {
	case TaskTREC:
		model, err := NewClassifier(cfg, glove, rng)
		if err != nil {
			return nil, err
		}
		return &Task{Name: name, Model: model, Criterion: CrossEntropyLoss{}}, nil
	case TaskSICK:
		if cfg.HiddenDim == 0 {
			cfg.HiddenDim = DefaultSimilarityHiddenDim
		}
		model, err := NewSimilarityClassifier(cfg, glove, rng)
		if err != nil {
			return nil, err
		}
		return &Task{Name: name, Model: model, Criterion: KLDivLoss{NumClass: cfg.NumClass}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
}

// Loss runs the model forward on ex and applies the criterion.
func (t *Task) Loss(ex Example) (*Node, error) {
	output, err := t.Model.Forward(ex)
	if err != nil {
		return nil, err
	}
	return t.Criterion.Forward(output, ex)
}

// embeddingTable allocates the (V, I) word table.
func embeddingTable(params *ParameterTensors, cfg ModelConfig) *tensor {
	return params.alloc(cfg.VocabSize, cfg.InputSize)
}

func initEmbedding(table *tensor, cfg ModelConfig, glove [][]float32, rng *rand.Rand) error {
	if glove == nil {
		initNormal(table, rng)
	} else {
		if len(glove) != cfg.VocabSize {
			return fmt.Errorf("%w: glove has %d rows, vocabulary has %d", ErrInvalidConfig, len(glove), cfg.VocabSize)
		}
		for i, row := range glove {
			if len(row) != cfg.InputSize {
				return fmt.Errorf("%w: glove row %d has width %d, want %d", ErrInvalidConfig, i, len(row), cfg.InputSize)
			}
			copy(table.index(i).data, row)
		}
	}
	table.frozen = cfg.FreezeEmbeddings
	return nil
}

func evalWorkers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// forEachExample calls fn for every index of fold on a bounded pool of
// goroutines. fn must only write to its own index of any shared output.
func forEachExample(ctx context.Context, fold Fold, fn func(i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(evalWorkers())
	for i := range fold {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	return g.Wait()
}
