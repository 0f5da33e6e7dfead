package queue

import "errors"

// Queue errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrFull is returned when a non-blocking or timed put finds no space.
	ErrFull = errors.New("queue: full")

	// ErrEmpty is returned when a non-blocking or timed get finds no item.
	ErrEmpty = errors.New("queue: empty")

	// ErrShutDown is returned for puts on a shut-down queue, and for gets
	// once a shut-down queue has drained.
	ErrShutDown = errors.New("queue: shut down")

	// ErrNegativeTimeout is returned when a timed operation is given a
	// negative timeout.
	ErrNegativeTimeout = errors.New("queue: negative timeout")

	// ErrTaskMismatch is returned when TaskDone is called more times than
	// there were items put.
	ErrTaskMismatch = errors.New("queue: task done called too many times")
)
