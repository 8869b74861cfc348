package treelstm

import (
	"io"
	"os"
)

// Open returns a reader for a local checkpoint, fold or vocabulary file.
func Open(name string) (io.ReadCloser, error) {
	return os.Open(name)
}
