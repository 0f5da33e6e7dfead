package sink

import (
	"context"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// FanoutSink delivers every batch to several sinks. A failure in one sink
// does not prevent delivery to the others; all failures are combined into a
// single returned error.
type FanoutSink[T any] struct {
	sinks []Sink[T]
}

// NewFanoutSink creates a fanout over the given sinks.
func NewFanoutSink[T any](sinks ...Sink[T]) *FanoutSink[T] {
	return &FanoutSink[T]{sinks: sinks}
}

// Deliver writes the batch to every sink.
func (s *FanoutSink[T]) Deliver(ctx context.Context, batch []T) error {
	var result *multierror.Error
	for _, dst := range s.sinks {
		if err := dst.Deliver(ctx, batch); err != nil {
			result = multierror.Append(result, &DeliveryError{
				Sink:    dst.Name(),
				Records: len(batch),
				Err:     err,
			})
		}
	}
	return result.ErrorOrNil()
}

// Name identifies the sink as the list of fanned-out sink names.
func (s *FanoutSink[T]) Name() string {
	names := make([]string, len(s.sinks))
	for i, dst := range s.sinks {
		names[i] = dst.Name()
	}
	return "fanout(" + strings.Join(names, ",") + ")"
}

// Close closes every sink, combining failures.
func (s *FanoutSink[T]) Close() error {
	var result *multierror.Error
	for _, dst := range s.sinks {
		if err := dst.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
