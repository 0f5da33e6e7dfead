package sink

import (
	"context"
	"time"

	"github.com/avast/retry-go"
)

// RetryConfig controls the retry behavior of a RetrySink.
type RetryConfig struct {
	// Attempts is the total number of delivery attempts. Default 3.
	Attempts uint

	// Delay is the initial delay between attempts, doubled on each retry.
	// Default 500ms.
	Delay time.Duration
}

// RetrySink decorates another sink with capped exponential-backoff retries.
// The streaming layer itself never retries; callers that want redelivery
// wrap their sink in a RetrySink.
type RetrySink[T any] struct {
	inner Sink[T]
	cfg   RetryConfig
}

// NewRetrySink wraps inner with retry behavior.
func NewRetrySink[T any](inner Sink[T], cfg RetryConfig) *RetrySink[T] {
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 500 * time.Millisecond
	}
	return &RetrySink[T]{inner: inner, cfg: cfg}
}

// Deliver attempts delivery until it succeeds, the attempts are exhausted, or
// the context is canceled.
func (s *RetrySink[T]) Deliver(ctx context.Context, batch []T) error {
	return retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return s.inner.Deliver(ctx, batch)
		},
		retry.Attempts(s.cfg.Attempts),
		retry.Delay(s.cfg.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// Name identifies the sink, including the wrapped sink's name.
func (s *RetrySink[T]) Name() string { return s.inner.Name() + "+retry" }

// Close closes the wrapped sink.
func (s *RetrySink[T]) Close() error {
	return s.inner.Close()
}
