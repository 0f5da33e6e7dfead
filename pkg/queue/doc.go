// Package queue provides a bounded, thread-safe FIFO buffer with explicit
// backpressure and shutdown semantics.
//
// The queue is the general-purpose primitive underneath the datapost
// streaming pipeline: producers put records, consumers get them, and the
// admission policy is chosen per call. It is implemented as a classic
// monitor: one mutex, a "space available" condition and an "item available"
// condition, with every wait re-checking its predicate after waking.
//
// # Admission policies
//
//   - [Queue.Put] blocks until space frees or the queue shuts down.
//   - [Queue.PutNoWait] fails fast with [ErrFull].
//   - [Queue.PutTimeout] waits up to a deadline.
//   - [Queue.PutDropNewest] and [Queue.PutDropOldest] trade data loss for
//     never blocking, for bursty producers that must not stall.
//
// # Shutdown
//
// Shutdown(false) stops new puts but lets consumers drain what is buffered;
// the queue closes itself once the last item is taken. Shutdown(true)
// discards buffered items and releases every waiter immediately, including
// goroutines blocked in [Queue.Join].
package queue
