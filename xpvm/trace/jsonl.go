package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
)

// JSONLWriter writes steps as JSON Lines. Safe for concurrent use.
type JSONLWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	buf    *bufio.Writer
	closer io.Closer // set only when we own the file
	closed bool
}

var ErrWriterClosed = errors.New("jsonl trace writer is closed")

// NewJSONLWriter wraps w. Close flushes but does not close w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return newJSONLWriter(w, nil, 64*1024)
}

// NewJSONLWriterFile creates (or truncates) path. "-" means stdout.
func NewJSONLWriterFile(path string) (*JSONLWriter, error) {
	if path == "-" {
		return newJSONLWriter(os.Stdout, nil, 4*1024), nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return newJSONLWriter(f, f, 64*1024), nil
}

func newJSONLWriter(w io.Writer, closer io.Closer, size int) *JSONLWriter {
	buf := bufio.NewWriterSize(w, size)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc, buf: buf, closer: closer}
}

func (w *JSONLWriter) WriteStep(step *Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.enc.Encode(step)
}

func (w *JSONLWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.buf.Flush()
}

func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		if w.closer != nil {
			_ = w.closer.Close()
		}
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
