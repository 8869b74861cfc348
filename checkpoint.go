package treelstm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	checkpointMagic   int32 = 20260101
	checkpointVersion int32 = 1
	headerLen               = 256
)

var taskCodes = map[string]int32{TaskTREC: 1, TaskSICK: 2}

// Checkpoint is everything needed to resume or evaluate a run after an epoch.
type Checkpoint struct {
	RunID        uuid.UUID
	Task         string
	ConfigString string
	Epoch        int
	Model        ModelConfig
	Params       []float32
	Optimizer    *AdamState
}

type AdamState struct {
	T int
	M []float32
	V []float32
}

func newCheckpoint(task *Task, opt *Adam, epoch int, configString string, runID uuid.UUID) *Checkpoint {
	ck := &Checkpoint{
		RunID:        runID,
		Task:         task.Name,
		ConfigString: configString,
		Epoch:        epoch,
		Model:        task.Model.Config(),
		Params:       task.Model.Parameters().Memory,
	}
	if opt != nil {
		ck.Optimizer = &AdamState{T: opt.T, M: opt.MMemory, V: opt.VMemory}
	}
	return ck
}

// SaveCheckpoint writes ck to path through a temporary file so a crash never
// leaves a truncated checkpoint behind.
func SaveCheckpoint(path string, ck *Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", tmp, err)
	}
	w := bufio.NewWriter(f)
	if err := writeCheckpoint(w, ck); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func writeCheckpoint(w io.Writer, ck *Checkpoint) error {
	code, ok := taskCodes[ck.Task]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, ck.Task)
	}
	header := make([]int32, headerLen)
	header[0] = checkpointMagic
	header[1] = checkpointVersion
	header[2] = int32(ck.Epoch)
	header[4] = int32(len(ck.Params))
	header[5] = int32(len(ck.ConfigString))
	header[6] = code
	header[7] = int32(ck.Model.InputSize)
	header[8] = int32(ck.Model.HiddenSize)
	header[9] = int32(ck.Model.HiddenDim)
	header[10] = int32(ck.Model.NumClass)
	header[11] = int32(ck.Model.VocabSize)
	if ck.Model.FreezeEmbeddings {
		header[12] = 1
	}
	if ck.Optimizer != nil {
		header[3] = int32(ck.Optimizer.T)
		header[13] = 1
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("error writing checkpoint header: %v", err)
	}
	if _, err := io.WriteString(w, ck.ConfigString); err != nil {
		return err
	}
	if _, err := w.Write(ck.RunID[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, ck.Params); err != nil {
		return fmt.Errorf("error writing parameters: %v", err)
	}
	if ck.Optimizer != nil {
		if len(ck.Optimizer.M) != len(ck.Params) || len(ck.Optimizer.V) != len(ck.Params) {
			return fmt.Errorf("%w: optimizer state does not match parameters", ErrBadCheckpoint)
		}
		if err := binary.Write(w, binary.LittleEndian, ck.Optimizer.M); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, ck.Optimizer.V); err != nil {
			return err
		}
	}
	return nil
}

func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("Error opening checkpoint file: %v", err)
	}
	defer f.Close()
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return readCheckpoint(bufio.NewReader(f), st.Size())
}

// readCheckpoint decodes a checkpoint of size bytes from r.
func readCheckpoint(r io.Reader, size int64) (*Checkpoint, error) {
	header := make([]int32, headerLen)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrBadCheckpoint, err)
	}
	if header[0] != checkpointMagic || header[1] != checkpointVersion {
		return nil, fmt.Errorf("%w: bad magic or version", ErrBadCheckpoint)
	}
	ck := &Checkpoint{
		Epoch: int(header[2]),
		Model: ModelConfig{
			InputSize:        int(header[7]),
			HiddenSize:       int(header[8]),
			HiddenDim:        int(header[9]),
			NumClass:         int(header[10]),
			VocabSize:        int(header[11]),
			FreezeEmbeddings: header[12] == 1,
		},
	}
	for name, code := range taskCodes {
		if code == header[6] {
			ck.Task = name
		}
	}
	if ck.Task == "" {
		return nil, fmt.Errorf("%w: unknown task code %d", ErrBadCheckpoint, header[6])
	}
	if header[4] < 0 || header[5] < 0 {
		return nil, fmt.Errorf("%w: negative lengths", ErrBadCheckpoint)
	}
	slabs := int64(1)
	if header[13] == 1 {
		slabs = 3
	}
	want := int64(headerLen*4) + int64(header[5]) + int64(len(uuid.UUID{})) + 4*slabs*int64(header[4])
	if want > size {
		return nil, fmt.Errorf("%w: header needs %d bytes, file has %d", ErrBadCheckpoint, want, size)
	}
	configBytes := make([]byte, header[5])
	if _, err := io.ReadFull(r, configBytes); err != nil {
		return nil, fmt.Errorf("%w: reading config string: %v", ErrBadCheckpoint, err)
	}
	ck.ConfigString = string(configBytes)
	if _, err := io.ReadFull(r, ck.RunID[:]); err != nil {
		return nil, fmt.Errorf("%w: reading run id: %v", ErrBadCheckpoint, err)
	}
	ck.Params = make([]float32, header[4])
	if err := binary.Read(r, binary.LittleEndian, ck.Params); err != nil {
		return nil, fmt.Errorf("%w: reading parameters: %v", ErrBadCheckpoint, err)
	}
	if header[13] == 1 {
		st := &AdamState{
			T: int(header[3]),
			M: make([]float32, header[4]),
			V: make([]float32, header[4]),
		}
		if err := binary.Read(r, binary.LittleEndian, st.M); err != nil {
			return nil, fmt.Errorf("%w: reading optimizer state: %v", ErrBadCheckpoint, err)
		}
		if err := binary.Read(r, binary.LittleEndian, st.V); err != nil {
			return nil, fmt.Errorf("%w: reading optimizer state: %v", ErrBadCheckpoint, err)
		}
		ck.Optimizer = st
	}
	return ck, nil
}

// Restore rebuilds the task the checkpoint was taken from. rng only seeds
// the throwaway initial weights that the stored parameters then replace.
func (ck *Checkpoint) Restore(rng *rand.Rand) (*Task, error) {
	task, err := NewTask(ck.Task, ck.Model, nil, rng)
	if err != nil {
		return nil, err
	}
	if err := ck.applyTo(task); err != nil {
		return nil, err
	}
	return task, nil
}

// applyTo copies the stored parameters into an already built task.
func (ck *Checkpoint) applyTo(task *Task) error {
	if task.Name != ck.Task {
		return fmt.Errorf("%w: checkpoint is for task %s, not %s", ErrBadCheckpoint, ck.Task, task.Name)
	}
	if cfg := task.Model.Config(); cfg != ck.Model {
		return fmt.Errorf("%w: model config %+v does not match %+v", ErrBadCheckpoint, ck.Model, cfg)
	}
	params := task.Model.Parameters()
	if params.Len() != len(ck.Params) {
		return fmt.Errorf("%w: %d parameters stored, model has %d", ErrBadCheckpoint, len(ck.Params), params.Len())
	}
	copy(params.Memory, ck.Params)
	return nil
}

func (ck *Checkpoint) restoreOptimizer(opt *Adam) {
	if ck.Optimizer == nil {
		return
	}
	opt.T = ck.Optimizer.T
	copy(opt.MMemory, ck.Optimizer.M)
	copy(opt.VMemory, ck.Optimizer.V)
}
