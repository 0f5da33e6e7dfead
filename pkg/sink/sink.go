package sink

import (
	"context"
	"fmt"
)

// Sink is the downstream destination for record batches.
// Implementations handle serialization, transport, and authentication; the
// streaming layer only requires that a batch either succeeds or reports a
// delivery failure.
type Sink[T any] interface {
	// Deliver writes one batch of records to the destination.
	// Returns nil on success, error on failure. Retries, if desired, are
	// the implementation's concern.
	Deliver(ctx context.Context, batch []T) error

	// Name identifies the sink for metrics and logging.
	Name() string

	// Close releases any resources held by the sink.
	Close() error
}

// DeliveryError reports a failed batch delivery. The failure is isolated to
// its batch; it never aborts other in-flight or future deliveries.
type DeliveryError struct {
	// Sink is the name of the sink that failed.
	Sink string

	// Records is the number of records in the failed batch.
	Records int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("sink %s: delivering %d records: %v", e.Sink, e.Records, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}
