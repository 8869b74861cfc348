package treelstm

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := OpenRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunStore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	_, found, err := s.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.BeginRun(ctx, RunRecord{ID: "r1", ConfigString: "cfg", Task: TaskSICK, StartedAt: started}))
	// beginning again keeps the original row
	require.NoError(t, s.BeginRun(ctx, RunRecord{ID: "r1", ConfigString: "other", Task: TaskSICK, StartedAt: started}))

	run, found, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "cfg", run.ConfigString)
	assert.True(t, started.Equal(run.StartedAt))
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, s.RecordEpoch(ctx, EpochRecord{
		RunID: "r1", Epoch: 1, LR: 0.004, TrainLoss: 0.7,
		Metrics:    Metrics{Task: TaskSICK, Total: 3, Pearson: math.NaN(), MSE: 1.5, Spearman: 0.5},
		Checkpoint: "b.ckpt", RecordedAt: started,
	}))
	require.NoError(t, s.RecordEpoch(ctx, EpochRecord{
		RunID: "r1", Epoch: 0, LR: 0.008, TrainLoss: 0.9,
		Metrics:    Metrics{Task: TaskSICK, Total: 3, Pearson: 0.1, MSE: 2, Spearman: 0.2},
		Checkpoint: "a.ckpt", RecordedAt: started,
	}))
	// recording an epoch again replaces it
	require.NoError(t, s.RecordEpoch(ctx, EpochRecord{
		RunID: "r1", Epoch: 0, LR: 0.008, TrainLoss: 0.8,
		Metrics:    Metrics{Task: TaskSICK, Total: 3, Pearson: 0.3, MSE: 2, Spearman: 0.2},
		Checkpoint: "a2.ckpt", RecordedAt: started,
	}))

	epochs, err := s.ListEpochs(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, epochs, 2)
	assert.Equal(t, 0, epochs[0].Epoch)
	assert.Equal(t, 0.8, epochs[0].TrainLoss)
	assert.Equal(t, 0.3, epochs[0].Metrics.Pearson)
	assert.Equal(t, "a2.ckpt", epochs[0].Checkpoint)
	assert.Equal(t, TaskSICK, epochs[0].Metrics.Task)
	assert.Equal(t, 1, epochs[1].Epoch)
	assert.True(t, math.IsNaN(epochs[1].Metrics.Pearson), "NULL pearson reads back as NaN")
	assert.Equal(t, 1.5, epochs[1].Metrics.MSE)

	finished := started.Add(time.Hour)
	require.NoError(t, s.FinishRun(ctx, "r1", finished))
	run, _, err = s.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, run.FinishedAt)
	assert.True(t, finished.Equal(*run.FinishedAt))
}

func TestRunStore_closed(t *testing.T) {
	var s RunStore
	assert.NoError(t, s.Close())
	assert.NoError(t, s.BeginRun(context.Background(), RunRecord{ID: "x"}))
	epochs, err := s.ListEpochs(context.Background(), "x")
	assert.NoError(t, err)
	assert.Nil(t, epochs)
}
