package treelstm

import (
	"context"
	"database/sql"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

// RunStore is a SQLite ledger of training runs and their per-epoch results.
type RunStore struct {
	db *sql.DB
}

type RunRecord struct {
	ID           string
	ConfigString string
	Task         string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

type EpochRecord struct {
	RunID      string
	Epoch      int
	LR         float64
	TrainLoss  float64
	Metrics    Metrics
	Checkpoint string
	RecordedAt time.Time
}

func OpenRunStore(path string) (*RunStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &RunStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *RunStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *RunStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  config_string TEXT NOT NULL,
  task TEXT NOT NULL,
  started_at DATETIME NOT NULL,
  finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS epochs (
  run_id TEXT NOT NULL,
  epoch INTEGER NOT NULL,
  lr REAL NOT NULL,
  train_loss REAL NOT NULL,
  correct INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL DEFAULT 0,
  pearson REAL,
  mse REAL,
  spearman REAL,
  checkpoint TEXT NOT NULL DEFAULT '',
  recorded_at DATETIME NOT NULL,
  PRIMARY KEY (run_id, epoch)
);
`)
	return err
}

func (s *RunStore) BeginRun(ctx context.Context, r RunRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs(run_id, config_string, task, started_at)
VALUES(?, ?, ?, ?)
ON CONFLICT(run_id) DO NOTHING;
`, r.ID, r.ConfigString, r.Task, r.StartedAt.UTC())
	return err
}

func (s *RunStore) FinishRun(ctx context.Context, id string, at time.Time) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "UPDATE runs SET finished_at=? WHERE run_id=?;", at.UTC(), id)
	return err
}

// RecordEpoch stores one epoch; recording the same epoch again replaces it,
// which happens when a run is resumed from an earlier checkpoint.
func (s *RunStore) RecordEpoch(ctx context.Context, e EpochRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO epochs(run_id, epoch, lr, train_loss, correct, total, pearson, mse, spearman, checkpoint, recorded_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, epoch) DO UPDATE SET
  lr=excluded.lr,
  train_loss=excluded.train_loss,
  correct=excluded.correct,
  total=excluded.total,
  pearson=excluded.pearson,
  mse=excluded.mse,
  spearman=excluded.spearman,
  checkpoint=excluded.checkpoint,
  recorded_at=excluded.recorded_at;
`, e.RunID, e.Epoch, e.LR, e.TrainLoss, e.Metrics.Correct, e.Metrics.Total,
		nullFloat(e.Metrics.Pearson), nullFloat(e.Metrics.MSE), nullFloat(e.Metrics.Spearman),
		e.Checkpoint, e.RecordedAt.UTC())
	return err
}

func (s *RunStore) GetRun(ctx context.Context, id string) (RunRecord, bool, error) {
	if s.db == nil {
		return RunRecord{}, false, nil
	}
	var r RunRecord
	err := s.db.QueryRowContext(ctx, `
SELECT run_id, config_string, task, started_at, finished_at FROM runs WHERE run_id=?;
`, id).Scan(&r.ID, &r.ConfigString, &r.Task, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, err
	}
	return r, true, nil
}

func (s *RunStore) ListEpochs(ctx context.Context, runID string) ([]EpochRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT r.task, e.run_id, e.epoch, e.lr, e.train_loss, e.correct, e.total, e.pearson, e.mse, e.spearman, e.checkpoint, e.recorded_at
FROM epochs e JOIN runs r ON r.run_id = e.run_id
WHERE e.run_id=? ORDER BY e.epoch;
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EpochRecord
	for rows.Next() {
		var e EpochRecord
		var pearson, mse, spearman sql.NullFloat64
		if err := rows.Scan(&e.Metrics.Task, &e.RunID, &e.Epoch, &e.LR, &e.TrainLoss, &e.Metrics.Correct, &e.Metrics.Total,
			&pearson, &mse, &spearman, &e.Checkpoint, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Metrics.Pearson = floatOrNaN(pearson)
		e.Metrics.MSE = floatOrNaN(mse)
		e.Metrics.Spearman = floatOrNaN(spearman)
		out = append(out, e)
	}
	return out, rows.Err()
}

// nullFloat stores NaN, which SQLite cannot represent, as NULL.
func nullFloat(f float64) sql.NullFloat64 {
	if math.IsNaN(f) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func floatOrNaN(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}
