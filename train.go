package treelstm

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ctimeLayout matches the C library's ctime(3) rendering used in train logs.
const ctimeLayout = "Mon Jan _2 15:04:05 2006"

// lrGamma is the factor MultiStepLR applies at each milestone.
const lrGamma = 0.5

type TrainOption func(*trainOptions)

type trainOptions struct {
	logger log.FieldLogger
	store  *RunStore
	resume string
	runID  uuid.UUID
	now    func() time.Time
}

func WithLogger(l log.FieldLogger) TrainOption {
	return func(o *trainOptions) { o.logger = l }
}

// WithRunStore records the run and every epoch in s.
func WithRunStore(s *RunStore) TrainOption {
	return func(o *trainOptions) { o.store = s }
}

// WithResume continues training after the epoch stored in the checkpoint at
// path. The checkpoint must come from a run with the same config string.
func WithResume(path string) TrainOption {
	return func(o *trainOptions) { o.resume = path }
}

func WithRunID(id uuid.UUID) TrainOption {
	return func(o *trainOptions) { o.runID = id }
}

// WithNow is useful for tests.
func WithNow(now func() time.Time) TrainOption {
	return func(o *trainOptions) { o.now = now }
}

type EpochResult struct {
	Epoch      int
	LR         float32
	TrainLoss  float64 // mean loss over the epoch's examples
	Metrics    Metrics
	Checkpoint string
}

type Result struct {
	RunID        string
	ConfigString string
	TrainSize    int
	EvalSize     int
	Epochs       []EpochResult
}

// run is the state of one call to Train.
type run struct {
	cfg          TrainConfig
	configString string
	runID        uuid.UUID
	logger       log.FieldLogger
	store        *RunStore
	now          func() time.Time
	rng          *rand.Rand
	task         *Task
	opt          *Adam
	sched        *MultiStepLR
	train        Fold
	eval         Fold
}

// Train fits a model for cfg.Task on folds. Each epoch streams the shuffled
// training pool one example at a time, steps the optimizer every BatchSize
// examples, then evaluates on the held-out fold and writes a checkpoint.
func Train(ctx context.Context, cfg TrainConfig, folds Folds, opts ...TrainOption) (*Result, error) {
	o := trainOptions{logger: log.StandardLogger(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &run{
		cfg:          cfg,
		configString: cfg.ConfigString(),
		runID:        o.runID,
		store:        o.store,
		now:          o.now,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
	}
	r.logger = o.logger.WithField("run", r.configString)
	r.logger.Infof("[INFO] %s", r.configString)

	task, err := NewTask(cfg.Task, cfg.modelConfig(), cfg.Glove, r.rng)
	if err != nil {
		return nil, err
	}
	r.task = task
	r.logger.Debugf("model:\n%v", task.Model)
	r.opt = NewAdam(task.Model.Parameters(), float32(cfg.LR), float32(cfg.WeightDecay))

	start := 0
	if o.resume != "" {
		ck, err := LoadCheckpoint(o.resume)
		if err != nil {
			return nil, err
		}
		if ck.ConfigString != r.configString {
			return nil, fmt.Errorf("%w: checkpoint is for %s, not %s", ErrInvalidConfig, ck.ConfigString, r.configString)
		}
		if err := ck.applyTo(task); err != nil {
			return nil, err
		}
		ck.restoreOptimizer(r.opt)
		if r.runID == uuid.Nil {
			r.runID = ck.RunID
		}
		start = ck.Epoch + 1
		r.logger.WithField("checkpoint", o.resume).Infof("resuming at epoch %d", start)
	}
	if r.runID == uuid.Nil {
		r.runID = uuid.New()
	}
	r.logger = r.logger.WithField("run_id", r.runID.String())

	if len(cfg.LRMilestones) > 0 {
		r.sched = NewMultiStepLR(r.opt, cfg.LRMilestones, lrGamma)
	}
	r.train, r.eval, err = Split(folds, cfg.NumFolds)
	if err != nil {
		return nil, err
	}
	r.logger.Infof("train dataset size: %d", len(r.train))
	r.logger.Infof("test dataset size: %d", len(r.eval))

	if err := r.begin(ctx, o.resume); err != nil {
		return nil, err
	}

	// Replay the scheduler and shuffles of completed epochs so a resumed run
	// sees the same example order as an uninterrupted one.
	for epoch := 0; epoch < start && epoch < cfg.Epochs; epoch++ {
		if r.sched != nil {
			r.sched.Step()
		}
		r.shuffle()
	}

	res := &Result{
		RunID:        r.runID.String(),
		ConfigString: r.configString,
		TrainSize:    len(r.train),
		EvalSize:     len(r.eval),
	}
	for epoch := start; epoch < cfg.Epochs; epoch++ {
		er, err := r.epoch(ctx, epoch)
		if err != nil {
			return res, err
		}
		res.Epochs = append(res.Epochs, er)
	}
	if r.store != nil {
		if err := r.store.FinishRun(ctx, r.runID.String(), r.now()); err != nil {
			return res, fmt.Errorf("finish run: %w", err)
		}
	}
	return res, nil
}

func (r *run) begin(ctx context.Context, resumedFrom string) error {
	m := Manifest{
		RunID:        r.runID.String(),
		ConfigString: r.configString,
		StartedAt:    r.now().UTC(),
		ResumedFrom:  resumedFrom,
		TrainSize:    len(r.train),
		EvalSize:     len(r.eval),
		Glove:        r.cfg.Glove != nil,
		Config:       r.cfg,
	}
	if resumedFrom != "" {
		if prev, err := ReadManifest(r.cfg.ManifestPath()); err == nil && prev.RunID == m.RunID {
			m.StartedAt = prev.StartedAt
		}
	}
	if err := WriteManifest(r.cfg.ManifestPath(), m); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if r.store != nil {
		err := r.store.BeginRun(ctx, RunRecord{
			ID:           r.runID.String(),
			ConfigString: r.configString,
			Task:         r.cfg.Task,
			StartedAt:    m.StartedAt,
		})
		if err != nil {
			return fmt.Errorf("begin run: %w", err)
		}
	}
	return nil
}

func (r *run) shuffle() {
	r.rng.Shuffle(len(r.train), func(i, j int) {
		r.train[i], r.train[j] = r.train[j], r.train[i]
	})
}

func (r *run) epoch(ctx context.Context, epoch int) (EpochResult, error) {
	if r.sched != nil {
		r.sched.Step()
	}
	r.shuffle()
	r.opt.ZeroGrad()
	logger := r.logger.WithFields(log.Fields{"epoch": epoch, "lr": r.opt.LR})
	logger.Debug("epoch start")

	var logLoss, totalLoss float64
	interval := r.cfg.LogIterationInterval
	for iteration := 1; iteration <= len(r.train); iteration++ {
		if err := ctx.Err(); err != nil {
			return EpochResult{}, err
		}
		loss, err := r.task.Loss(r.train[iteration-1])
		if err != nil {
			return EpochResult{}, fmt.Errorf("epoch %d iteration %d: %w", epoch, iteration, err)
		}
		Backward(loss)
		if iteration%r.cfg.BatchSize == 0 {
			r.opt.Update()
			r.opt.ZeroGrad()
		}
		value := float64(loss.Value())
		totalLoss += value
		logLoss += value / float64(interval)
		if iteration%interval == 0 {
			line := fmt.Sprintf("%s %d %s", r.now().Format(ctimeLayout), iteration, formatFloat(logLoss))
			if err := addLog(logger, r.cfg.TrainLogPath(), line); err != nil {
				return EpochResult{}, fmt.Errorf("write train log: %w", err)
			}
			logLoss = 0
		}
	}

	metrics, err := r.task.Model.EvaluateDataset(ctx, r.eval)
	if err != nil {
		return EpochResult{}, fmt.Errorf("evaluate epoch %d: %w", epoch, err)
	}
	if err := addLog(logger, r.cfg.EvalLogPath(), metrics.String()); err != nil {
		return EpochResult{}, fmt.Errorf("write eval log: %w", err)
	}

	path := r.cfg.CheckpointPath(epoch)
	if err := SaveCheckpoint(path, newCheckpoint(r.task, r.opt, epoch, r.configString, r.runID)); err != nil {
		return EpochResult{}, fmt.Errorf("save checkpoint: %w", err)
	}

	er := EpochResult{
		Epoch:      epoch,
		LR:         r.opt.LR,
		Metrics:    metrics,
		Checkpoint: path,
	}
	if len(r.train) > 0 {
		er.TrainLoss = totalLoss / float64(len(r.train))
	}
	if r.store != nil {
		err := r.store.RecordEpoch(ctx, EpochRecord{
			RunID:      r.runID.String(),
			Epoch:      epoch,
			LR:         float64(er.LR),
			TrainLoss:  er.TrainLoss,
			Metrics:    metrics,
			Checkpoint: path,
			RecordedAt: r.now(),
		})
		if err != nil {
			return er, fmt.Errorf("record epoch: %w", err)
		}
	}
	return er, nil
}
