package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datapost-io/datapost/pkg/log"
	"github.com/datapost-io/datapost/pkg/queue"
	"github.com/datapost-io/datapost/pkg/sink"
)

// Stream decouples record production from sink delivery. Records accumulate
// in an in-memory batch; a flush is triggered when the batch reaches the
// configured size or when the configured maximum wait has elapsed since the
// last flush, whichever comes first. Flushes are dispatched to a bounded pool
// of delivery workers so a slow sink never blocks producers.
type Stream[T any] struct {
	id   string
	dst  sink.Sink[T]
	opts options

	mu        sync.Mutex
	batch     []T
	lastFlush time.Time
	closed    bool

	pending   *queue.Queue[[]T]
	workersWg sync.WaitGroup

	timerStop chan struct{}
	timerWg   sync.WaitGroup

	closeOnce sync.Once
}

// New creates a running stream delivering to dst.
func New[T any](dst sink.Sink[T], opts ...Option) (*Stream[T], error) {
	if dst == nil {
		return nil, errors.New("stream: nil sink")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.pendingCap <= 0 {
		o.pendingCap = 2 * o.workers
	}

	s := &Stream[T]{
		id:        uuid.New().String(),
		dst:       dst,
		opts:      o,
		batch:     make([]T, 0, o.batchSize),
		lastFlush: time.Now(),
		pending:   queue.New[[]T](o.pendingCap),
		timerStop: make(chan struct{}),
	}

	for i := 0; i < o.workers; i++ {
		s.workersWg.Add(1)
		go s.worker()
	}

	s.timerWg.Add(1)
	go s.timerLoop()

	s.opts.logger.Info("stream opened",
		log.String("stream_id", s.id),
		log.String("sink", dst.Name()),
		log.Int("batch_size", o.batchSize),
		log.Duration("max_wait", o.maxWait),
		log.Int("workers", o.workers),
	)
	return s, nil
}

// ID returns the unique identifier assigned to this stream.
// It is included in all log output for correlation.
func (s *Stream[T]) ID() string { return s.id }

// Enqueue appends one record to the current batch. The record is delivered
// later, when the batch fills or the maximum wait elapses. Returns
// ErrStreamClosed once the stream has been closed.
func (s *Stream[T]) Enqueue(record T) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	s.batch = append(s.batch, record)
	var full []T
	if len(s.batch) >= s.opts.batchSize {
		full = s.swapLocked()
	}
	s.mu.Unlock()

	// Hand off outside the mutex so pool admission never blocks other
	// producers or the timer.
	if full != nil {
		s.submit(full)
	}
	return nil
}

// Close stops the timer, flushes any remaining records, and blocks until all
// submitted deliveries complete. Idempotent.
func (s *Stream[T]) Close() error {
	s.shutdown(true)
	return nil
}

// CloseNoWait stops the timer, flushes any remaining records, discards
// batches that no worker has started yet, and returns without waiting.
// Deliveries already in progress run to completion. Idempotent.
func (s *Stream[T]) CloseNoWait() error {
	s.shutdown(false)
	return nil
}

func (s *Stream[T]) shutdown(wait bool) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		// Join the timer before the final flush so no timer-triggered
		// flush races shutdown.
		close(s.timerStop)
		s.timerWg.Wait()

		s.mu.Lock()
		var remainder []T
		if len(s.batch) > 0 {
			remainder = s.swapLocked()
		}
		s.mu.Unlock()
		if remainder != nil {
			s.submit(remainder)
		}

		if wait {
			s.pending.Shutdown(false)
			s.workersWg.Wait()
			s.opts.logger.Info("stream closed", log.String("stream_id", s.id))
			return
		}

		// Not-yet-started batches are discarded; running deliveries
		// finish on their own and the workers exit afterwards.
		s.pending.Shutdown(true)
		s.opts.logger.Info("stream closed without drain", log.String("stream_id", s.id))
	})
}

// swapLocked atomically replaces the accumulation buffer with an empty one
// and returns the full batch, transferring ownership to the caller. The
// last-flush marker is reset only here.
func (s *Stream[T]) swapLocked() []T {
	batch := s.batch
	s.batch = make([]T, 0, s.opts.batchSize)
	s.lastFlush = time.Now()
	return batch
}

// submit hands a batch to the worker pool according to the overflow policy.
func (s *Stream[T]) submit(batch []T) {
	var err error
	switch s.opts.overflow {
	case DropNewest:
		var dropped bool
		dropped, err = s.pending.PutDropNewest(batch)
		if dropped {
			s.opts.emitter.OnBatchDropped(1)
			s.opts.logger.Warn("batch dropped: pending queue full",
				log.String("stream_id", s.id),
				log.Int("records", len(batch)),
			)
		}
	case DropOldest:
		var evicted int
		evicted, err = s.pending.PutDropOldest(batch)
		if evicted > 0 {
			s.opts.emitter.OnBatchDropped(evicted)
			s.opts.logger.Warn("oldest pending batches evicted",
				log.String("stream_id", s.id),
				log.Int("evicted", evicted),
			)
		}
	default:
		err = s.pending.Put(batch)
	}

	if err != nil {
		// Only possible when the pending queue is already shut down.
		s.opts.emitter.OnBatchDropped(1)
		s.opts.logger.Error("batch lost: worker pool shut down",
			log.String("stream_id", s.id),
			log.Int("records", len(batch)),
			log.Err(err),
		)
	}
}

// timerLoop flushes a non-empty batch once maxWait has elapsed since the last
// flush. The tick is a fixed tenth of maxWait, bounding flush-latency jitter
// without busy-polling.
func (s *Stream[T]) timerLoop() {
	defer s.timerWg.Done()
	ticker := time.NewTicker(s.opts.maxWait / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			var full []T
			if len(s.batch) > 0 && time.Since(s.lastFlush) >= s.opts.maxWait {
				full = s.swapLocked()
			}
			s.mu.Unlock()
			if full != nil {
				s.submit(full)
			}
		case <-s.timerStop:
			return
		}
	}
}

// worker takes ownership of one batch at a time and delivers it. Exits when
// the pending queue shuts down and, in graceful mode, has drained.
func (s *Stream[T]) worker() {
	defer s.workersWg.Done()
	for {
		batch, err := s.pending.Get()
		if err != nil {
			return
		}
		s.deliver(batch)
	}
}

// deliver performs one sink write. A failure is reported and isolated to its
// batch; it never affects other in-flight or pending batches.
func (s *Stream[T]) deliver(batch []T) {
	start := time.Now()
	if err := s.dst.Deliver(context.Background(), batch); err != nil {
		derr := &sink.DeliveryError{Sink: s.dst.Name(), Records: len(batch), Err: err}
		s.opts.emitter.OnDeliverError(derr, len(batch))
		s.opts.logger.Error("delivery failed",
			log.String("stream_id", s.id),
			log.Int("records", len(batch)),
			log.Err(derr),
		)
		return
	}
	s.opts.emitter.OnDeliverSuccess(len(batch), time.Since(start))
	s.opts.logger.Debug("batch delivered",
		log.String("stream_id", s.id),
		log.Int("records", len(batch)),
		log.Duration("took", time.Since(start)),
	)
}
