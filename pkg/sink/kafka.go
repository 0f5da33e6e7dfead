package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of kafka.Writer the sink depends on.
// Tests inject a fake.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEncoder converts a record into a Kafka message.
type KafkaEncoder[T any] func(record T) (kafka.Message, error)

// KafkaConfig holds the connection settings for a KafkaSink.
type KafkaConfig struct {
	Broker string
	Topic  string
}

// KafkaSink delivers record batches to a Kafka topic, one message per record,
// written in a single WriteMessages call so the batch stays atomic from the
// producer's point of view.
type KafkaSink[T any] struct {
	writer KafkaWriter
	encode KafkaEncoder[T]
}

// NewKafkaSink creates a Kafka sink connected to the configured broker.
// A nil encoder marshals records as JSON message values with no key.
func NewKafkaSink[T any](cfg KafkaConfig, encode KafkaEncoder[T]) *KafkaSink[T] {
	writer := &kafka.Writer{
		Addr:  kafka.TCP(cfg.Broker),
		Topic: cfg.Topic,
	}
	return NewKafkaSinkWithWriter(writer, encode)
}

// NewKafkaSinkWithWriter creates a Kafka sink around an existing writer.
func NewKafkaSinkWithWriter[T any](writer KafkaWriter, encode KafkaEncoder[T]) *KafkaSink[T] {
	if encode == nil {
		encode = jsonEncoder[T]
	}
	return &KafkaSink[T]{writer: writer, encode: encode}
}

func jsonEncoder[T any](record T) (kafka.Message, error) {
	b, err := json.Marshal(record)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Value: b}, nil
}

// Deliver writes the batch to the topic.
func (s *KafkaSink[T]) Deliver(ctx context.Context, batch []T) error {
	if len(batch) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, len(batch))
	for i, record := range batch {
		msg, err := s.encode(record)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		msgs[i] = msg
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write messages: %w", err)
	}
	return nil
}

// Name identifies the sink.
func (s *KafkaSink[T]) Name() string { return "kafka" }

// Close closes the underlying writer.
func (s *KafkaSink[T]) Close() error {
	return s.writer.Close()
}
