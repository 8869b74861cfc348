package treelstm

import (
	"context"
	"fmt"
	"math/rand"
)

// SimilarityClassifier scores the relatedness of two trees as a distribution
// over NumClass ordinal grades.
type SimilarityClassifier struct {
	config  ModelConfig
	Params  ParameterTensors
	Embed   *tensor // (V, I)
	Encoder *ChildSumTreeLSTM
	WH      *tensor // (hiddenDim, 2H)
	BH      *tensor // (hiddenDim)
	WP      *tensor // (numClass, hiddenDim)
	BP      *tensor // (numClass)
}

func NewSimilarityClassifier(cfg ModelConfig, glove [][]float32, rng *rand.Rand) (*SimilarityClassifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.HiddenDim <= 0 {
		return nil, fmt.Errorf("%w: hidden_dim must be positive", ErrInvalidConfig)
	}
	s := &SimilarityClassifier{config: cfg}
	s.Embed = embeddingTable(&s.Params, cfg)
	s.Encoder = newChildSumTreeLSTM(&s.Params, cfg.InputSize, cfg.HiddenSize)
	s.WH = s.Params.alloc(cfg.HiddenDim, 2*cfg.HiddenSize)
	s.BH = s.Params.alloc(cfg.HiddenDim)
	s.WP = s.Params.alloc(cfg.NumClass, cfg.HiddenDim)
	s.BP = s.Params.alloc(cfg.NumClass)
	s.Params.Init()
	if err := initEmbedding(s.Embed, cfg, glove, rng); err != nil {
		return nil, err
	}
	s.Encoder.init(rng)
	initUniform(s.WH, 2*cfg.HiddenSize, rng)
	initUniform(s.BH, 2*cfg.HiddenSize, rng)
	initUniform(s.WP, cfg.HiddenDim, rng)
	initUniform(s.BP, cfg.HiddenDim, rng)
	return s, nil
}

func (s *SimilarityClassifier) Parameters() *ParameterTensors {
	return &s.Params
}

func (s *SimilarityClassifier) Config() ModelConfig {
	return s.config
}

func (s *SimilarityClassifier) String() string {
	var str string
	str += "[SimilarityClassifier]\n"
	str += fmt.Sprintf("input_size: %d\n", s.config.InputSize)
	str += fmt.Sprintf("hidden_size: %d\n", s.config.HiddenSize)
	str += fmt.Sprintf("hidden_dim: %d\n", s.config.HiddenDim)
	str += fmt.Sprintf("num_class: %d\n", s.config.NumClass)
	str += fmt.Sprintf("vocab_size: %d\n", s.config.VocabSize)
	str += fmt.Sprintf("num_parameters: %d (trainable %d)\n", s.Params.Len(), s.Params.NumTrainable())
	return str
}

func (s *SimilarityClassifier) embed(word int32) *Node {
	return embedding(s.Embed, word)
}

// Forward returns log-probabilities over the grades for (ex.Left, ex.Right).
func (s *SimilarityClassifier) Forward(ex Example) (*Node, error) {
	if err := ex.Left.validate(s.config.VocabSize); err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	if err := ex.Right.validate(s.config.VocabSize); err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}
	lh := s.Encoder.forward(ex.Left, s.embed).h
	rh := s.Encoder.forward(ex.Right, s.embed).h
	mult := mul(lh, rh)
	dist := abs(sub(lh, rh))
	hidden := sigmoid(affine(s.WH, s.BH, concat(mult, dist)))
	return logSoftmax(affine(s.WP, s.BP, hidden)), nil
}

// PredictScore returns the expected grade Σ p_i·i over grades 1..NumClass.
func (s *SimilarityClassifier) PredictScore(left, right *Tree) (float32, error) {
	logp, err := s.Forward(Example{Left: left, Right: right})
	if err != nil {
		return 0, err
	}
	var score float32
	for i, lp := range logp.Data {
		score += Exp(lp) * float32(i+1)
	}
	return score, nil
}

// EvaluateDataset correlates predicted and gold scores.
func (s *SimilarityClassifier) EvaluateDataset(ctx context.Context, fold Fold) (Metrics, error) {
	preds := make([]float64, len(fold))
	gold := make([]float64, len(fold))
	err := forEachExample(ctx, fold, func(i int) error {
		score, err := s.PredictScore(fold[i].Left, fold[i].Right)
		if err != nil {
			return fmt.Errorf("example %d: %w", i, err)
		}
		preds[i] = float64(score)
		gold[i] = float64(fold[i].Score)
		return nil
	})
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		Task:     TaskSICK,
		Total:    len(fold),
		Pearson:  pearson(preds, gold),
		MSE:      meanSquaredError(preds, gold),
		Spearman: spearman(preds, gold),
	}, nil
}
