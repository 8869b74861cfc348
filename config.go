package treelstm

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// TrainConfig holds the hyperparameters of one training run. Its config
// string names every log and checkpoint the run produces.
type TrainConfig struct {
	Task                 string  `mapstructure:"task" yaml:"task"`
	Phase                string  `mapstructure:"phase" yaml:"phase"`
	NumClass             int     `mapstructure:"num_class" yaml:"num_class"`
	NumWords             int     `mapstructure:"num_words" yaml:"num_words"`
	LogsDir              string  `mapstructure:"logs_dir" yaml:"logs_dir"`
	ModelsDir            string  `mapstructure:"models_dir" yaml:"models_dir"`
	Seed                 int64   `mapstructure:"seed" yaml:"seed"`
	NumFolds             int     `mapstructure:"num_folds" yaml:"num_folds"`
	Epochs               int     `mapstructure:"epochs" yaml:"epochs"`
	BatchSize            int     `mapstructure:"batch_size" yaml:"batch_size"`
	InputSize            int     `mapstructure:"input_size" yaml:"input_size"`
	HiddenSize           int     `mapstructure:"hidden_size" yaml:"hidden_size"`
	LR                   float64 `mapstructure:"lr" yaml:"lr"`
	LRMilestones         []int   `mapstructure:"lr_milestones" yaml:"lr_milestones,omitempty"`
	WeightDecay          float64 `mapstructure:"weight_decay" yaml:"weight_decay"`
	LogIterationInterval int     `mapstructure:"log_iteration_interval" yaml:"log_iteration_interval"`

	// Glove is an optional pre-built (NumWords, InputSize) embedding matrix.
	// Supplying it freezes the embeddings.
	Glove [][]float32 `mapstructure:"-" yaml:"-"`
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		NumFolds:             10,
		Epochs:               20,
		BatchSize:            25,
		InputSize:            100,
		HiddenSize:           50,
		LR:                   0.008,
		WeightDecay:          1e-4,
		LogIterationInterval: 500,
	}
}

func (c TrainConfig) Validate() error {
	var problems []string
	if c.Task != TaskTREC && c.Task != TaskSICK {
		return fmt.Errorf("%w: %q", ErrUnknownTask, c.Task)
	}
	if c.NumClass <= 0 {
		problems = append(problems, "num_class must be > 0")
	}
	if c.NumWords <= 0 {
		problems = append(problems, "num_words must be > 0")
	}
	if c.LogsDir == "" {
		problems = append(problems, "logs_dir is required")
	}
	if c.ModelsDir == "" {
		problems = append(problems, "models_dir is required")
	}
	if c.NumFolds < 2 {
		problems = append(problems, "num_folds must be >= 2")
	}
	if c.Epochs < 0 {
		problems = append(problems, "epochs must be >= 0")
	}
	if c.BatchSize <= 0 {
		problems = append(problems, "batch_size must be > 0")
	}
	if c.InputSize <= 0 || c.HiddenSize <= 0 {
		problems = append(problems, "input_size and hidden_size must be > 0")
	}
	if c.LR <= 0 {
		problems = append(problems, "lr must be > 0")
	}
	if c.WeightDecay < 0 {
		problems = append(problems, "weight_decay must be >= 0")
	}
	if c.LogIterationInterval <= 0 {
		problems = append(problems, "log_iteration_interval must be > 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ConfigString is the run key, e.g.
// TREC_train_batchsize25_input100_hidden50_lr0.008_ms5,10_wc0.0001_glove_seed1
func (c TrainConfig) ConfigString() string {
	var ms string
	if len(c.LRMilestones) > 0 {
		parts := make([]string, len(c.LRMilestones))
		for i, m := range c.LRMilestones {
			parts[i] = strconv.Itoa(m)
		}
		ms = "_ms" + strings.Join(parts, ",")
	}
	var glove string
	if c.Glove != nil {
		glove = "_glove"
	}
	return fmt.Sprintf("%s_%s_batchsize%d_input%d_hidden%d_lr%s%s_wc%s%s_seed%d",
		c.Task, c.Phase, c.BatchSize, c.InputSize, c.HiddenSize, formatFloat(c.LR),
		ms, formatFloat(c.WeightDecay), glove, c.Seed)
}

func (c TrainConfig) TrainLogPath() string {
	return filepath.Join(c.LogsDir, fmt.Sprintf("train_%s.txt", c.ConfigString()))
}

func (c TrainConfig) EvalLogPath() string {
	return filepath.Join(c.LogsDir, fmt.Sprintf("eval_%s.txt", c.ConfigString()))
}

func (c TrainConfig) CheckpointPath(epoch int) string {
	return filepath.Join(c.ModelsDir, fmt.Sprintf("%s_epoch%d.ckpt", c.ConfigString(), epoch))
}

func (c TrainConfig) ManifestPath() string {
	return filepath.Join(c.ModelsDir, c.ConfigString()+".yaml")
}

func (c TrainConfig) modelConfig() ModelConfig {
	return ModelConfig{
		InputSize:        c.InputSize,
		HiddenSize:       c.HiddenSize,
		HiddenDim:        DefaultSimilarityHiddenDim,
		NumClass:         c.NumClass,
		VocabSize:        c.NumWords,
		FreezeEmbeddings: c.Glove != nil,
	}
}

// formatFloat prints f as the shortest decimal that round-trips, keeping a
// trailing ".0" on integral values and switching to exponent form below 1e-4
// or from 1e16, so 0.008 -> "0.008", 1e-4 -> "0.0001", 1e-5 -> "1e-05".
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == 0:
		return "0.0"
	}
	a := math.Abs(f)
	if a >= 1e-4 && a < 1e16 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatFloat(f, 'e', -1, 64)
}
