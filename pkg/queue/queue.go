package queue

import (
	"sync"
	"time"
)

// State is the lifecycle state of a queue.
// Transitions are monotonic: Open -> ShuttingDown -> Closed.
type State int

const (
	// Open accepts puts and gets.
	Open State = iota

	// ShuttingDown rejects new puts but still drains remaining items to gets.
	ShuttingDown

	// Closed rejects puts and gets; all waiters have been released.
	Closed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Open:
		return "Open"
	case ShuttingDown:
		return "ShuttingDown"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Queue is a thread-safe FIFO buffer between producers and consumers.
//
// A capacity greater than zero bounds the number of resident items; zero or
// negative capacity means unbounded. Producers choose an admission policy per
// call: block, fail fast, wait with a timeout, or one of the two drop-based
// backpressure variants. Shutdown releases every blocked waiter and, in
// graceful mode, lets consumers drain what is already buffered.
type Queue[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	allDone  *sync.Cond

	items      []T
	capacity   int
	state      State
	unfinished int
}

// New creates a queue with the given capacity.
// A capacity of zero or less means the queue is unbounded.
func New[T any](capacity int) *Queue[T] {
	q := &Queue[T]{capacity: capacity}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	q.allDone = sync.NewCond(&q.mu)
	return q
}

// Put appends an item to the tail, blocking while the queue is at capacity.
// Returns ErrShutDown if the queue shuts down before space frees.
func (q *Queue[T]) Put(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.putLocked(item, true, time.Time{})
}

// PutNoWait appends an item without blocking.
// Returns ErrFull if the queue is at capacity.
func (q *Queue[T]) PutNoWait(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.putLocked(item, false, time.Time{})
}

// PutTimeout appends an item, blocking up to timeout while the queue is at
// capacity. Returns ErrFull if the timeout elapses first and
// ErrNegativeTimeout if timeout is negative.
func (q *Queue[T]) PutTimeout(item T, timeout time.Duration) error {
	if timeout < 0 {
		return ErrNegativeTimeout
	}
	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.putLocked(item, true, deadline)
}

// PutDropNewest appends an item unless the queue is at capacity, in which
// case the incoming item is discarded. Returns dropped=true when the item was
// discarded. The caller opts into data loss; no error is reported for a drop.
func (q *Queue[T]) PutDropNewest(item T) (dropped bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != Open {
		return false, ErrShutDown
	}
	if q.isFull() {
		return true, nil
	}
	q.appendLocked(item)
	return false, nil
}

// PutDropOldest evicts items from the head until space frees, then appends
// the item. Returns the number of evicted items. The caller opts into data
// loss; no error is reported for evictions.
func (q *Queue[T]) PutDropOldest(item T) (evicted int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != Open {
		return 0, ErrShutDown
	}
	for q.isFull() {
		q.removeHeadLocked()
		q.taskDoneLocked()
		evicted++
	}
	q.appendLocked(item)
	return evicted, nil
}

// Get removes and returns the head item, blocking while the queue is empty.
// A gracefully shut-down queue still drains its remaining items; ErrShutDown
// is returned only once the queue is both shut down and empty.
func (q *Queue[T]) Get() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.getLocked(true, time.Time{})
}

// GetNoWait removes and returns the head item without blocking.
// Returns ErrEmpty if no item is buffered.
func (q *Queue[T]) GetNoWait() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.getLocked(false, time.Time{})
}

// GetTimeout removes and returns the head item, blocking up to timeout while
// the queue is empty. Returns ErrEmpty if the timeout elapses first and
// ErrNegativeTimeout if timeout is negative.
func (q *Queue[T]) GetTimeout(timeout time.Duration) (T, error) {
	if timeout < 0 {
		var zero T
		return zero, ErrNegativeTimeout
	}
	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.getLocked(true, deadline)
}

// Shutdown transitions the queue out of the Open state and wakes every
// blocked waiter. With immediate=false, buffered items remain retrievable via
// Get and the queue closes once drained. With immediate=true, buffered items
// are discarded, their outstanding work is marked done, and Join waiters are
// released. Shutdown is idempotent; a graceful shutdown can be escalated to
// an immediate one.
func (q *Queue[T]) Shutdown(immediate bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == Closed {
		return
	}
	if immediate {
		q.state = Closed
		for range q.items {
			q.taskDoneLocked()
		}
		q.items = nil
	} else if len(q.items) == 0 {
		q.state = Closed
	} else {
		q.state = ShuttingDown
	}
	// Wake all waiters on both conditions so no thread is left blocked.
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// TaskDone records that a previously gotten item has been fully processed.
// Returns ErrTaskMismatch if called more times than items were put.
func (q *Queue[T]) TaskDone() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished <= 0 {
		return ErrTaskMismatch
	}
	q.taskDoneLocked()
	return nil
}

// Join blocks until every item ever put has been marked done via TaskDone,
// or until an immediate shutdown discards the outstanding work.
func (q *Queue[T]) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.unfinished > 0 {
		q.allDone.Wait()
	}
}

// Len returns the number of items currently buffered.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the configured capacity. Zero or less means unbounded.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// State returns the current lifecycle state.
func (q *Queue[T]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// putLocked implements the admission loop. The predicate is re-checked after
// every wake to stay correct across spurious wakeups and concurrent shutdown.
func (q *Queue[T]) putLocked(item T, wait bool, deadline time.Time) error {
	for {
		if q.state != Open {
			return ErrShutDown
		}
		if !q.isFull() {
			break
		}
		if !wait {
			return ErrFull
		}
		if deadline.IsZero() {
			q.notFull.Wait()
			continue
		}
		if time.Until(deadline) <= 0 {
			return ErrFull
		}
		q.waitDeadline(q.notFull, deadline)
	}
	q.appendLocked(item)
	return nil
}

// getLocked implements the removal loop, symmetric to putLocked. Items
// buffered at shutdown are still served while the state is ShuttingDown.
func (q *Queue[T]) getLocked(wait bool, deadline time.Time) (T, error) {
	var zero T
	for {
		if len(q.items) > 0 {
			break
		}
		if q.state != Open {
			return zero, ErrShutDown
		}
		if !wait {
			return zero, ErrEmpty
		}
		if deadline.IsZero() {
			q.notEmpty.Wait()
			continue
		}
		if time.Until(deadline) <= 0 {
			return zero, ErrEmpty
		}
		q.waitDeadline(q.notEmpty, deadline)
	}
	item := q.removeHeadLocked()
	q.notFull.Signal()
	if q.state == ShuttingDown && len(q.items) == 0 {
		// Last item drained; release any remaining get waiters.
		q.state = Closed
		q.notEmpty.Broadcast()
	}
	return item, nil
}

// waitDeadline blocks on c until it is signaled or the deadline passes.
// Must be called with the queue mutex held; the mutex is held again on
// return. Callers re-check their predicate afterwards, as with any condition
// wait. The deadline is measured against the monotonic clock carried by
// time.Time values from time.Now.
func (q *Queue[T]) waitDeadline(c *sync.Cond, deadline time.Time) {
	timer := time.AfterFunc(time.Until(deadline), c.Broadcast)
	c.Wait()
	timer.Stop()
}

func (q *Queue[T]) isFull() bool {
	return q.capacity > 0 && len(q.items) >= q.capacity
}

func (q *Queue[T]) appendLocked(item T) {
	q.items = append(q.items, item)
	q.unfinished++
	q.notEmpty.Signal()
}

func (q *Queue[T]) removeHeadLocked() T {
	item := q.items[0]
	var zero T
	q.items[0] = zero // release the reference
	q.items = q.items[1:]
	return item
}

func (q *Queue[T]) taskDoneLocked() {
	if q.unfinished > 0 {
		q.unfinished--
		if q.unfinished == 0 {
			q.allDone.Broadcast()
		}
	}
}
