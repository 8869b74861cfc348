package treelstm

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is everything the CLI reads from flags, the environment and an
// optional config file.
type Config struct {
	Train    TrainConfig  `mapstructure:"train"`
	Data     DataConfig   `mapstructure:"data"`
	Logger   LoggerConfig `mapstructure:"logger"`
	RunStore string       `mapstructure:"run_store"`
}

type DataConfig struct {
	Folds    []string `mapstructure:"folds"`
	Vocab    string   `mapstructure:"vocab"`
	CacheDir string   `mapstructure:"cache_dir"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const envPrefix = "TREELSTM"

func setDefaults(v *viper.Viper) {
	d := DefaultTrainConfig()
	v.SetDefault("train.task", "")
	v.SetDefault("train.phase", "train")
	v.SetDefault("train.num_class", 0)
	v.SetDefault("train.num_words", 0)
	v.SetDefault("train.logs_dir", "logs")
	v.SetDefault("train.models_dir", "models")
	v.SetDefault("train.seed", 0)
	v.SetDefault("train.num_folds", d.NumFolds)
	v.SetDefault("train.epochs", d.Epochs)
	v.SetDefault("train.batch_size", d.BatchSize)
	v.SetDefault("train.input_size", d.InputSize)
	v.SetDefault("train.hidden_size", d.HiddenSize)
	v.SetDefault("train.lr", d.LR)
	v.SetDefault("train.lr_milestones", []int{})
	v.SetDefault("train.weight_decay", d.WeightDecay)
	v.SetDefault("train.log_iteration_interval", d.LogIterationInterval)
	v.SetDefault("data.folds", []string{})
	v.SetDefault("data.vocab", "")
	v.SetDefault("data.cache_dir", "")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("run_store", "")
}

// LoadConfig resolves configuration from, in increasing priority, defaults,
// the file at path (if any), TREELSTM_* environment variables and any flags
// already bound to v.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Train.LRMilestones) == 0 {
		cfg.Train.LRMilestones = nil
	}
	return &cfg, nil
}
