package treelstm

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// defaultCacheFolder is where fetched fold files land when no
// data.cache_dir is configured.
const defaultCacheFolder = ".cache/treelstm"

func cacheDir(cfg *Config) (string, error) {
	if cfg.Data.CacheDir != "" {
		return cfg.Data.CacheDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, defaultCacheFolder), nil
}

// NewRootCommand builds the treelstm CLI. Every command resolves its
// configuration through its own viper instance.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "treelstm",
		Short: "Train and evaluate Child-Sum TreeLSTM models",
		Long: `treelstm trains Child-Sum TreeLSTM models on pre-built dependency trees,
either for question classification (TREC) or sentence relatedness (SICK).
Every run writes append-only train and eval logs, a checkpoint per epoch
and a YAML manifest, and can record its epochs in a SQLite run ledger.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	_ = v.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("logger.format", rootCmd.PersistentFlags().Lookup("log-format"))

	load := func() (*Config, error) {
		cfg, err := LoadConfig(v, configPath)
		if err != nil {
			return nil, err
		}
		InitLogger(cfg.Logger)
		return cfg, nil
	}

	rootCmd.AddCommand(
		newTrainCmd(v, load),
		newEvaluateCmd(load),
		newFetchCmd(load),
		newVersionCmd(),
	)
	return rootCmd
}

func newTrainCmd(v *viper.Viper, load func() (*Config, error)) *cobra.Command {
	var resume string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on a set of folds",
		Long: `Train pools the first num_folds-1 fold files for training and evaluates
on the last one after every epoch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			var vocab *Vocab
			if cfg.Data.Vocab != "" {
				vv, err := NewVocab(cfg.Data.Vocab)
				if err != nil {
					return fmt.Errorf("failed to load vocabulary: %w", err)
				}
				vocab = &vv
				if cfg.Train.NumWords == 0 {
					cfg.Train.NumWords = vv.Size()
				}
			}
			folds, err := LoadFolds(cfg.Data.Folds, vocab)
			if err != nil {
				return fmt.Errorf("failed to load folds: %w", err)
			}

			opts := []TrainOption{WithLogger(log.StandardLogger())}
			if cfg.RunStore != "" {
				store, err := OpenRunStore(cfg.RunStore)
				if err != nil {
					return fmt.Errorf("failed to open run store: %w", err)
				}
				defer store.Close()
				opts = append(opts, WithRunStore(store))
			}
			if resume != "" {
				opts = append(opts, WithResume(resume))
			}

			res, err := Train(cmd.Context(), cfg.Train, folds, opts...)
			if err != nil {
				log.WithError(err).Error("training failed")
				return err
			}
			log.WithFields(log.Fields{
				"run_id": res.RunID,
				"epochs": len(res.Epochs),
			}).Info("training finished")
			return nil
		},
	}

	d := DefaultTrainConfig()
	f := cmd.Flags()
	f.String("task", "", "task to train: TREC or SICK")
	f.String("phase", "train", "phase name used in the config string")
	f.Int("num-class", 0, "number of output classes")
	f.Int("num-words", 0, "vocabulary size (defaults to the size of --vocab)")
	f.String("logs-dir", "logs", "directory for train and eval logs")
	f.String("models-dir", "models", "directory for checkpoints and manifests")
	f.Int64("seed", 0, "random seed")
	f.Int("num-folds", d.NumFolds, "number of folds; the last given fold is held out")
	f.Int("epochs", d.Epochs, "number of epochs")
	f.Int("batch-size", d.BatchSize, "examples per optimizer step")
	f.Int("input-size", d.InputSize, "embedding width")
	f.Int("hidden-size", d.HiddenSize, "TreeLSTM hidden width")
	f.Float64("lr", d.LR, "learning rate")
	f.IntSlice("lr-milestones", nil, "epochs at which the learning rate halves")
	f.Float64("weight-decay", d.WeightDecay, "L2 weight decay")
	f.Int("log-interval", d.LogIterationInterval, "examples between train log lines")
	f.StringSlice("folds", nil, "fold files in order")
	f.String("vocab", "", "vocabulary file, one token per line")
	f.String("run-store", "", "SQLite run ledger path")
	f.StringVar(&resume, "resume", "", "checkpoint to resume from")

	for key, flag := range map[string]string{
		"train.task":                   "task",
		"train.phase":                  "phase",
		"train.num_class":              "num-class",
		"train.num_words":              "num-words",
		"train.logs_dir":               "logs-dir",
		"train.models_dir":             "models-dir",
		"train.seed":                   "seed",
		"train.num_folds":              "num-folds",
		"train.epochs":                 "epochs",
		"train.batch_size":             "batch-size",
		"train.input_size":             "input-size",
		"train.hidden_size":            "hidden-size",
		"train.lr":                     "lr",
		"train.lr_milestones":          "lr-milestones",
		"train.weight_decay":           "weight-decay",
		"train.log_iteration_interval": "log-interval",
		"data.folds":                   "folds",
		"data.vocab":                   "vocab",
		"run_store":                    "run-store",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

func newEvaluateCmd(load func() (*Config, error)) *cobra.Command {
	var checkpoint, foldPath, vocabPath string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a checkpoint on a fold file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := load(); err != nil {
				return err
			}
			ck, err := LoadCheckpoint(checkpoint)
			if err != nil {
				return err
			}
			task, err := ck.Restore(rand.New(rand.NewSource(0)))
			if err != nil {
				return err
			}
			var vocab *Vocab
			if vocabPath != "" {
				vv, err := NewVocab(vocabPath)
				if err != nil {
					return fmt.Errorf("failed to load vocabulary: %w", err)
				}
				vocab = &vv
			}
			fold, err := LoadFold(foldPath, vocab)
			if err != nil {
				return err
			}
			metrics, err := task.Model.EvaluateDataset(cmd.Context(), fold)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"run_id": ck.RunID.String(),
				"config": ck.ConfigString,
				"epoch":  ck.Epoch,
			}).Info("evaluated checkpoint")
			fmt.Fprintln(cmd.OutOrStdout(), metrics.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint file")
	cmd.Flags().StringVar(&foldPath, "fold", "", "fold file to evaluate on")
	cmd.Flags().StringVar(&vocabPath, "vocab", "", "vocabulary file for token words")
	_ = cmd.MarkFlagRequired("checkpoint")
	_ = cmd.MarkFlagRequired("fold")
	return cmd
}

func newFetchCmd(load func() (*Config, error)) *cobra.Command {
	var urls []string
	var dest string
	var force bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download pre-built fold and vocabulary files",
		Long:  `Fetch downloads each URL into the cache directory, skipping files that are already present.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if dest == "" {
				if dest, err = cacheDir(cfg); err != nil {
					return err
				}
			}
			urls = append(urls, args...)
			for _, url := range urls {
				out := filepath.Join(dest, filepath.Base(url))
				if _, err := os.Stat(out); err == nil && !force {
					log.WithField("dest", out).Info("already present, skipping")
					continue
				}
				if err := downloadFile(cmd.Context(), log.StandardLogger(), out, url); err != nil {
					return fmt.Errorf("failed to download %s: %w", url, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&urls, "url", nil, "file URL to download")
	cmd.Flags().StringVar(&dest, "dest", "", "destination directory (defaults to the cache directory)")
	cmd.Flags().BoolVar(&force, "force", false, "download even if the file exists")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
