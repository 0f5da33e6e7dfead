// Package sink defines the destination abstraction for record batches and
// provides the built-in implementations.
//
// A [Sink] accepts a batch of records and either succeeds or reports a
// delivery failure; retries, authentication, and wire format are entirely the
// sink's concern. Built-in sinks:
//
//   - [HTTPSink]: JSON batch upload to the ingestion service
//   - [KafkaSink]: one Kafka message per record via segmentio/kafka-go
//   - [PGSink]: Postgres bulk insert via COPY
//   - [JSONLSink]: local JSON Lines file
//   - [LogSink]: log output, for development
//   - [RetrySink]: retry decorator for any sink
//   - [FanoutSink]: delivers to several sinks at once
package sink
