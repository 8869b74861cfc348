package treelstm

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedTask(t *testing.T, name string) (*Task, *Adam) {
	t.Helper()
	cfg := testModelConfig
	cfg.HiddenDim = 4
	rng := rand.New(rand.NewSource(5))
	task, err := NewTask(name, cfg, nil, rng)
	require.NoError(t, err)
	folds, err := SyntheticFolds(name, 1, 4, cfg.VocabSize, cfg.NumClass, rng)
	require.NoError(t, err)
	opt := NewAdam(task.Model.Parameters(), 0.01, 1e-4)
	for _, ex := range folds[0] {
		loss, err := task.Loss(ex)
		require.NoError(t, err)
		Backward(loss)
	}
	opt.Update()
	opt.ZeroGrad()
	return task, opt
}

func TestCheckpoint_roundTrip(t *testing.T) {
	for _, name := range []string{TaskTREC, TaskSICK} {
		t.Run(name, func(t *testing.T) {
			task, opt := trainedTask(t, name)
			runID := uuid.New()
			path := filepath.Join(t.TempDir(), "models", "run_epoch2.ckpt")
			require.NoError(t, SaveCheckpoint(path, newCheckpoint(task, opt, 2, "run", runID)))
			_, err := os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err))

			ck, err := LoadCheckpoint(path)
			require.NoError(t, err)
			assert.Equal(t, runID, ck.RunID)
			assert.Equal(t, name, ck.Task)
			assert.Equal(t, "run", ck.ConfigString)
			assert.Equal(t, 2, ck.Epoch)
			assert.Equal(t, task.Model.Config(), ck.Model)
			assert.Equal(t, task.Model.Parameters().Memory, ck.Params)
			require.NotNil(t, ck.Optimizer)
			assert.Equal(t, 1, ck.Optimizer.T)
			assert.Equal(t, opt.MMemory, ck.Optimizer.M)
			assert.Equal(t, opt.VMemory, ck.Optimizer.V)

			restored, err := ck.Restore(rand.New(rand.NewSource(99)))
			require.NoError(t, err)
			assert.Equal(t, task.Model.Parameters().Memory, restored.Model.Parameters().Memory)

			restoredOpt := NewAdam(restored.Model.Parameters(), 0.01, 1e-4)
			ck.restoreOptimizer(restoredOpt)
			assert.Equal(t, opt.T, restoredOpt.T)
			assert.Equal(t, opt.MMemory, restoredOpt.MMemory)
		})
	}
}

func TestCheckpoint_withoutOptimizer(t *testing.T) {
	task, _ := trainedTask(t, TaskTREC)
	var buf bytes.Buffer
	require.NoError(t, writeCheckpoint(&buf, newCheckpoint(task, nil, 0, "x", uuid.Nil)))
	ck, err := readCheckpoint(&buf, int64(buf.Len()))
	require.NoError(t, err)
	assert.Nil(t, ck.Optimizer)
	assert.Equal(t, uuid.Nil, ck.RunID)
}

func TestReadCheckpoint_errors(t *testing.T) {
	task, opt := trainedTask(t, TaskTREC)
	var buf bytes.Buffer
	require.NoError(t, writeCheckpoint(&buf, newCheckpoint(task, opt, 0, "x", uuid.New())))
	good := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "magic", data: append([]byte{1, 2, 3, 4}, good[4:]...)},
		{name: "truncated", data: good[:len(good)-8]},
		{name: "header only", data: good[:headerLen*4]},
		{name: "huge params", data: withHeaderSlot(good, 4, math.MaxInt32)},
		{name: "huge config", data: withHeaderSlot(good, 5, math.MaxInt32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readCheckpoint(bytes.NewReader(tt.data), int64(len(tt.data)))
			assert.ErrorIs(t, err, ErrBadCheckpoint)
		})
	}
}

func withHeaderSlot(data []byte, slot int, v int32) []byte {
	out := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(out[slot*4:], uint32(v))
	return out
}

func TestCheckpoint_applyToMismatch(t *testing.T) {
	task, opt := trainedTask(t, TaskTREC)
	ck := newCheckpoint(task, opt, 0, "x", uuid.New())

	other, err := NewTask(TaskTREC, ModelConfig{InputSize: 2, HiddenSize: 2, NumClass: 5, VocabSize: 10}, nil, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.ErrorIs(t, ck.applyTo(other), ErrBadCheckpoint)

	sick, err := NewTask(TaskSICK, task.Model.Config(), nil, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.ErrorIs(t, ck.applyTo(sick), ErrBadCheckpoint)
}

func TestLoadCheckpoint_missing(t *testing.T) {
	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "nope.ckpt"))
	assert.Error(t, err)
}
