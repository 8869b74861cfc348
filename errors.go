package treelstm

import "errors"

var (
	ErrUnknownTask    = errors.New("unknown task")
	ErrInvalidConfig  = errors.New("invalid config")
	ErrInvalidExample = errors.New("invalid example")
	ErrLabelRange     = errors.New("label out of range")
	ErrBadCheckpoint  = errors.New("bad checkpoint file")
)
