package stream

import "time"

// Emitter receives delivery lifecycle events. Implementations must be safe
// for concurrent use; events are emitted from worker goroutines.
type Emitter interface {
	// OnDeliverSuccess is called after a batch is accepted by the sink.
	OnDeliverSuccess(records int, duration time.Duration)

	// OnDeliverError is called when a delivery fails. The failure is
	// isolated to its batch; other deliveries continue.
	OnDeliverError(err error, records int)

	// OnBatchDropped is called when batches are discarded by a drop-based
	// overflow policy.
	OnBatchDropped(batches int)
}

// nopEmitter discards all events.
type nopEmitter struct{}

func (nopEmitter) OnDeliverSuccess(records int, duration time.Duration) {}
func (nopEmitter) OnDeliverError(err error, records int)                {}
func (nopEmitter) OnBatchDropped(batches int)                           {}
