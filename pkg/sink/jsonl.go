package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// JSONLSink appends record batches to a JSON Lines file, one record per line.
// Deliveries from concurrent workers are serialized by a mutex so lines are
// never interleaved.
type JSONLSink[T any] struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewJSONLSink creates a JSONL sink writing to the given path.
// An empty path generates a unique sink_<uuid>.jsonl file in the working
// directory.
func NewJSONLSink[T any](path string) (*JSONLSink[T], error) {
	if path == "" {
		path = fmt.Sprintf("sink_%s.jsonl", uuid.New())
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &JSONLSink[T]{file: f, path: path}, nil
}

// Deliver appends the batch to the file.
func (s *JSONLSink[T]) Deliver(ctx context.Context, batch []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := json.NewEncoder(s.file)
	for i, record := range batch {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return nil
}

// Path returns the file path the sink writes to.
func (s *JSONLSink[T]) Path() string { return s.path }

// Name identifies the sink.
func (s *JSONLSink[T]) Name() string { return "jsonl" }

// Close closes the underlying file.
func (s *JSONLSink[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
