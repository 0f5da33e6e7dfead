package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapost-io/datapost/pkg/sink"
)

// captureSink records delivered batches and can be made to fail or block.
type captureSink struct {
	mu      sync.Mutex
	batches [][]int

	failOn  func(batch []int) error
	blockCh chan struct{} // when set, Deliver blocks until the channel closes
}

func (s *captureSink) Deliver(ctx context.Context, batch []int) error {
	if s.blockCh != nil {
		<-s.blockCh
	}
	if s.failOn != nil {
		if err := s.failOn(batch); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]int, len(batch))
	copy(copied, batch)
	s.batches = append(s.batches, copied)
	return nil
}

func (s *captureSink) Name() string { return "capture" }
func (s *captureSink) Close() error { return nil }

func (s *captureSink) delivered() [][]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]int, len(s.batches))
	copy(out, s.batches)
	return out
}

func (s *captureSink) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

// captureEmitter counts delivery events.
type captureEmitter struct {
	mu        sync.Mutex
	successes int
	failures  int
	dropped   int
	lastErr   error
}

func (e *captureEmitter) OnDeliverSuccess(records int, duration time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.successes++
}

func (e *captureEmitter) OnDeliverError(err error, records int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures++
	e.lastErr = err
}

func (e *captureEmitter) OnBatchDropped(batches int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropped += batches
}

func (e *captureEmitter) counts() (successes, failures, dropped int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.successes, e.failures, e.dropped
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestNew_InvalidConfig(t *testing.T) {
	snk := &captureSink{}

	tests := []struct {
		name string
		opts []Option
	}{
		{"zero batch size", []Option{WithBatchSize(0)}},
		{"negative batch size", []Option{WithBatchSize(-1)}},
		{"zero max wait", []Option{WithMaxWait(0)}},
		{"zero workers", []Option{WithWorkerConcurrency(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New[int](snk, tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := New[int](sink.Sink[int](nil))
	require.Error(t, err)
}

func TestSizeTriggeredFlush(t *testing.T) {
	snk := &captureSink{}
	s, err := New[int](snk,
		WithBatchSize(5),
		WithMaxWait(time.Hour), // timer must play no part
	)
	require.NoError(t, err)
	defer s.Close()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Enqueue(i))
	}

	require.True(t, waitFor(t, time.Second, func() bool {
		return len(snk.delivered()) == 1
	}), "expected exactly one delivery")

	assert.Equal(t, []int{1, 2, 3, 4, 5}, snk.delivered()[0])
}

func TestTimeTriggeredFlush(t *testing.T) {
	const maxWait = 200 * time.Millisecond

	snk := &captureSink{}
	s, err := New[int](snk,
		WithBatchSize(100),
		WithMaxWait(maxWait),
	)
	require.NoError(t, err)
	defer s.Close()

	start := time.Now()
	require.NoError(t, s.Enqueue(42))

	require.True(t, waitFor(t, 2*time.Second, func() bool {
		return len(snk.delivered()) == 1
	}), "expected one timer-triggered delivery")
	elapsed := time.Since(start)

	assert.Equal(t, []int{42}, snk.delivered()[0])
	assert.GreaterOrEqual(t, elapsed, maxWait-20*time.Millisecond,
		"flush fired before max wait elapsed")
}

func TestDeliveryFailureIsolation(t *testing.T) {
	failErr := errors.New("boom")
	snk := &captureSink{
		failOn: func(batch []int) error {
			if len(batch) > 0 && batch[0] < 0 {
				return failErr
			}
			return nil
		},
	}
	emitter := &captureEmitter{}
	s, err := New[int](snk,
		WithBatchSize(2),
		WithMaxWait(time.Hour),
		WithWorkerConcurrency(2),
		WithEmitter(emitter),
	)
	require.NoError(t, err)

	// First batch fails, second succeeds.
	require.NoError(t, s.Enqueue(-1))
	require.NoError(t, s.Enqueue(-2))
	require.NoError(t, s.Enqueue(1))
	require.NoError(t, s.Enqueue(2))
	require.NoError(t, s.Close())

	successes, failures, _ := emitter.counts()
	assert.Equal(t, 1, failures, "failed batch must be reported once")
	assert.Equal(t, 1, successes, "other batch must be unaffected")
	require.Len(t, snk.delivered(), 1)
	assert.Equal(t, []int{1, 2}, snk.delivered()[0])

	var derr *sink.DeliveryError
	require.ErrorAs(t, emitter.lastErr, &derr)
	assert.Equal(t, "capture", derr.Sink)
	assert.Equal(t, 2, derr.Records)
	assert.ErrorIs(t, derr, failErr)
}

func TestClose_FlushesRemainder(t *testing.T) {
	const total = 23

	snk := &captureSink{}
	s, err := New[int](snk,
		WithBatchSize(10),
		WithMaxWait(time.Hour),
		WithWorkerConcurrency(1), // single worker keeps batch order observable
	)
	require.NoError(t, err)

	for i := 0; i < total; i++ {
		require.NoError(t, s.Enqueue(i))
	}
	require.NoError(t, s.Close())

	assert.Equal(t, total, snk.recordCount(), "no record may be lost on close")

	var all []int
	for _, b := range snk.delivered() {
		all = append(all, b...)
	}
	for i := 0; i < total; i++ {
		assert.Equal(t, i, all[i], "per-batch order must be preserved")
	}
}

func TestClose_Idempotent(t *testing.T) {
	snk := &captureSink{}
	s, err := New[int](snk)
	require.NoError(t, err)

	require.NoError(t, s.Enqueue(1))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.NoError(t, s.CloseNoWait())

	assert.Equal(t, 1, snk.recordCount())
}

func TestEnqueueAfterClose(t *testing.T) {
	snk := &captureSink{}
	s, err := New[int](snk)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Enqueue(1)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestOverflow_DropNewest(t *testing.T) {
	release := make(chan struct{})
	snk := &captureSink{blockCh: release}
	emitter := &captureEmitter{}

	s, err := New[int](snk,
		WithBatchSize(1),
		WithMaxWait(time.Hour),
		WithWorkerConcurrency(1),
		WithPendingCapacity(1),
		WithOverflowPolicy(DropNewest),
		WithEmitter(emitter),
	)
	require.NoError(t, err)

	// Batch 1 occupies the worker, batch 2 fills the pending queue,
	// batches 3 and 4 have nowhere to go.
	require.NoError(t, s.Enqueue(1))
	// Give the worker a moment to pick up batch 1 so occupancy is stable.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Enqueue(2))
	require.NoError(t, s.Enqueue(3))
	require.NoError(t, s.Enqueue(4))

	close(release)
	require.NoError(t, s.Close())

	successes, _, dropped := emitter.counts()
	assert.Equal(t, 4, successes+dropped, "every batch accounted for")
	assert.Greater(t, dropped, 0, "at least one batch must have been dropped")
	assert.Equal(t, snk.recordCount(), successes)
}

func TestOverflow_DropOldest(t *testing.T) {
	release := make(chan struct{})
	snk := &captureSink{blockCh: release}
	emitter := &captureEmitter{}

	s, err := New[int](snk,
		WithBatchSize(1),
		WithMaxWait(time.Hour),
		WithWorkerConcurrency(1),
		WithPendingCapacity(1),
		WithOverflowPolicy(DropOldest),
		WithEmitter(emitter),
	)
	require.NoError(t, err)

	require.NoError(t, s.Enqueue(1))
	time.Sleep(50 * time.Millisecond) // worker picks up batch 1 and blocks
	require.NoError(t, s.Enqueue(2))  // pending
	require.NoError(t, s.Enqueue(3))  // evicts batch 2

	close(release)
	require.NoError(t, s.Close())

	_, _, dropped := emitter.counts()
	assert.Greater(t, dropped, 0, "eviction must be reported")

	// The newest batch survives.
	found := false
	for _, b := range snk.delivered() {
		if len(b) == 1 && b[0] == 3 {
			found = true
		}
	}
	assert.True(t, found, "newest batch must have been delivered, got %v", snk.delivered())
}

func TestCloseNoWait_DiscardsPending(t *testing.T) {
	release := make(chan struct{})
	snk := &captureSink{blockCh: release}

	s, err := New[int](snk,
		WithBatchSize(1),
		WithMaxWait(time.Hour),
		WithWorkerConcurrency(1),
		WithPendingCapacity(4),
	)
	require.NoError(t, err)

	require.NoError(t, s.Enqueue(1))
	time.Sleep(50 * time.Millisecond) // worker starts batch 1 and blocks
	require.NoError(t, s.Enqueue(2))
	require.NoError(t, s.Enqueue(3))

	start := time.Now()
	require.NoError(t, s.CloseNoWait())
	assert.Less(t, time.Since(start), 500*time.Millisecond,
		"CloseNoWait must not wait for the blocked delivery")

	close(release)

	// The already-started delivery runs to completion; the rest are gone.
	require.True(t, waitFor(t, time.Second, func() bool {
		return snk.recordCount() == 1
	}), "exactly the in-flight batch must be delivered, got %v", snk.delivered())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, snk.recordCount())
}

func TestConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 100

	snk := &captureSink{}
	s, err := New[int](snk,
		WithBatchSize(7),
		WithMaxWait(100*time.Millisecond),
		WithWorkerConcurrency(4),
	)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := s.Enqueue(p*perProducer + i); err != nil {
					t.Errorf("Enqueue error: %v", err)
					return
				}
			}
		}(p)
	}
	wg.Wait()
	require.NoError(t, s.Close())

	assert.Equal(t, producers*perProducer, snk.recordCount())
}

func TestOverflowPolicy_String(t *testing.T) {
	tests := []struct {
		policy OverflowPolicy
		want   string
	}{
		{Block, "Block"},
		{DropNewest, "DropNewest"},
		{DropOldest, "DropOldest"},
		{OverflowPolicy(99), "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.policy.String())
	}
}
