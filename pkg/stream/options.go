package stream

import (
	"fmt"
	"time"

	"github.com/datapost-io/datapost/pkg/log"
)

// OverflowPolicy controls what happens when a full batch cannot be handed to
// the worker pool because the pending-batch queue is at capacity.
type OverflowPolicy int

const (
	// Block suspends the producer until a worker frees space. The default.
	Block OverflowPolicy = iota

	// DropNewest discards the incoming batch. The producer never blocks;
	// the caller opts into data loss under sustained overload.
	DropNewest

	// DropOldest evicts the oldest pending batch to admit the new one.
	DropOldest
)

// String returns a human-readable representation of the policy.
func (p OverflowPolicy) String() string {
	switch p {
	case Block:
		return "Block"
	case DropNewest:
		return "DropNewest"
	case DropOldest:
		return "DropOldest"
	default:
		return "Unknown"
	}
}

// Option configures optional behavior of a Stream.
type Option func(*options)

type options struct {
	batchSize  int
	maxWait    time.Duration
	workers    int
	pendingCap int
	overflow   OverflowPolicy
	logger     log.Logger
	emitter    Emitter
}

func defaultOptions() options {
	return options{
		batchSize:  10,
		maxWait:    5 * time.Second,
		workers:    4,
		pendingCap: 0, // derived from workers when unset
		overflow:   Block,
		logger:     log.NewNoop(),
		emitter:    nopEmitter{},
	}
}

func (o *options) validate() error {
	if o.batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, o.batchSize)
	}
	if o.maxWait <= 0 {
		return fmt.Errorf("%w: max wait must be positive, got %v", ErrInvalidConfig, o.maxWait)
	}
	if o.workers <= 0 {
		return fmt.Errorf("%w: worker concurrency must be positive, got %d", ErrInvalidConfig, o.workers)
	}
	return nil
}

// WithBatchSize sets how many records accumulate before a flush is triggered.
// Default 10.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithMaxWait sets how long a non-empty batch may wait before being flushed
// even if not full. Default 5s.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) {
		o.maxWait = d
	}
}

// WithWorkerConcurrency sets the number of delivery workers, bounding how
// many flushes may be in flight at once. Default 4.
func WithWorkerConcurrency(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithPendingCapacity bounds the queue of batches waiting for a worker.
// Zero or less means twice the worker concurrency.
func WithPendingCapacity(n int) Option {
	return func(o *options) {
		o.pendingCap = n
	}
}

// WithOverflowPolicy sets the backpressure behavior when the pending-batch
// queue is full. Default Block.
func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(o *options) {
		o.overflow = p
	}
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEmitter sets the delivery event emitter, e.g. for metrics.
func WithEmitter(emitter Emitter) Option {
	return func(o *options) {
		if emitter != nil {
			o.emitter = emitter
		}
	}
}
