package main

import (
	"context"
	"flag"
	"math/rand"
	"os"

	"github.com/joshcarp/treelstm"
	log "github.com/sirupsen/logrus"
)

func main() {
	task := flag.String("task", treelstm.TaskTREC, "TREC or SICK")
	dir := flag.String("dir", "demo", "output directory for logs and checkpoints")
	flag.Parse()

	cfg := treelstm.DefaultTrainConfig()
	cfg.Task = *task
	cfg.Phase = "demo"
	cfg.NumClass = 5
	cfg.NumWords = 20
	cfg.NumFolds = 3
	cfg.Epochs = 5
	cfg.InputSize = 10
	cfg.HiddenSize = 8
	cfg.BatchSize = 10
	cfg.LogIterationInterval = 50
	cfg.LRMilestones = []int{3}
	cfg.LogsDir = *dir + "/logs"
	cfg.ModelsDir = *dir + "/models"

	folds, err := treelstm.SyntheticFolds(cfg.Task, cfg.NumFolds, 100, cfg.NumWords, cfg.NumClass, rand.New(rand.NewSource(42)))
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("train dataset num_folds: %d", len(folds))
	res, err := treelstm.Train(context.Background(), cfg, folds)
	if err != nil {
		log.Fatal(err)
	}
	for _, e := range res.Epochs {
		log.Infof("epoch %d: lr %g loss %f %s", e.Epoch, e.LR, e.TrainLoss, e.Metrics)
	}
	if len(res.Epochs) == 0 {
		os.Exit(1)
	}
}
