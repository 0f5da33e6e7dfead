// Package stream provides the batch flush pipeline between record producers
// and a delivery sink.
//
// A [Stream] accumulates enqueued records into an in-memory batch guarded by
// a mutex. A flush is triggered when the batch reaches the configured size or
// when a non-empty batch has waited longer than the configured maximum,
// whichever comes first. At flush time the accumulation buffer is swapped for
// an empty one while holding the lock, then handed to a bounded worker pool
// with the lock released, so slow sink I/O never blocks producers.
//
//	s, err := stream.New[Point](snk,
//		stream.WithBatchSize(100),
//		stream.WithMaxWait(time.Second),
//	)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	for _, p := range points {
//		if err := s.Enqueue(p); err != nil {
//			return err
//		}
//	}
//
// Close flushes the remainder and waits for in-flight deliveries;
// CloseNoWait discards batches no worker has started yet.
package stream
