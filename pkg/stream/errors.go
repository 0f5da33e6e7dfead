package stream

import "errors"

// Stream errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrStreamClosed is returned by Enqueue once the stream has been
	// closed. Records are never silently accepted after close.
	ErrStreamClosed = errors.New("stream: closed")

	// ErrInvalidConfig is returned when a construction parameter fails
	// validation.
	ErrInvalidConfig = errors.New("stream: invalid configuration")
)
