package main

import (
	"flag"
	"math/rand"
	"os"

	"github.com/joshcarp/treelstm"
	log "github.com/sirupsen/logrus"
)

func main() {
	task := flag.String("task", treelstm.TaskTREC, "TREC or SICK")
	examples := flag.Int("examples", 5, "number of random examples to check")
	samples := flag.Int("samples", 20, "entries checked per parameter tensor")
	eps := flag.Float64("eps", 1e-2, "finite difference step")
	tol := flag.Float64("tol", 2e-2, "relative tolerance")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	cfg := treelstm.ModelConfig{InputSize: 6, HiddenSize: 5, HiddenDim: 4, NumClass: 5, VocabSize: 12}
	t, err := treelstm.NewTask(*task, cfg, nil, rng)
	if err != nil {
		log.Fatal(err)
	}
	folds, err := treelstm.SyntheticFolds(*task, 1, *examples, cfg.VocabSize, cfg.NumClass, rng)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("checking %s with %d parameters", *task, t.Model.Parameters().Len())

	allok := true
	for i, ex := range folds[0] {
		checks, err := treelstm.CheckGradients(t, ex, float32(*eps), float32(*tol), *samples, rng)
		if err != nil {
			log.Fatal(err)
		}
		ok := treelstm.LogGradientChecks(log.WithField("example", i), checks)
		allok = allok && ok
	}
	log.Infof("overall okay: %v", allok)
	if !allok {
		os.Exit(1)
	}
}
