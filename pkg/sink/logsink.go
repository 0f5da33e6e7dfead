package sink

import (
	"context"

	"github.com/datapost-io/datapost/pkg/log"
)

// LogSink writes each batch to the logger instead of a real destination.
// Intended for development and smoke testing.
type LogSink[T any] struct {
	logger log.Logger
}

// NewLogSink creates a log sink. A nil logger discards output.
func NewLogSink[T any](logger log.Logger) *LogSink[T] {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &LogSink[T]{logger: logger}
}

// Deliver logs the batch.
func (s *LogSink[T]) Deliver(ctx context.Context, batch []T) error {
	for _, record := range batch {
		s.logger.Info("record", log.Any("data", record))
	}
	return nil
}

// Name identifies the sink.
func (s *LogSink[T]) Name() string { return "log" }

// Close is a no-op.
func (s *LogSink[T]) Close() error { return nil }
