// Package datapost provides a buffered streaming client for shipping JSON
// records to the datapost ingestion service.
//
// Example usage:
//
//	cfg := datapost.DefaultConfig()
//	cfg.APIKey = "your-api-key"
//	cfg.SourceID = "orders"
//	s, err := datapost.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//	s.Enqueue(json.RawMessage(`{"order_id": 42}`))
package datapost

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/datapost-io/datapost/pkg/log"
	"github.com/datapost-io/datapost/pkg/sink"
	"github.com/datapost-io/datapost/pkg/stream"
)

// DefaultServiceURL is the default endpoint for the ingestion service.
const DefaultServiceURL = "https://api.datapost.io"

// Stream is a buffered record stream. See the stream package for the full
// API, including Close, CloseNoWait, and tuning options.
type Stream = stream.Stream[json.RawMessage]

// Config holds the settings for a stream to the ingestion service.
// Use DefaultConfig() to get a Config with sensible defaults; at minimum,
// set APIKey and SourceID before calling Open.
type Config struct {
	// ServiceURL is the base URL of the ingestion service.
	ServiceURL string

	// APIKey authenticates requests to the service.
	APIKey string

	// SourceID identifies the data source the records belong to.
	SourceID string

	// HTTPTimeout bounds each delivery request.
	HTTPTimeout time.Duration

	// RetryAttempts is the total number of delivery attempts per batch.
	// Values above 1 enable capped exponential-backoff retries.
	RetryAttempts int

	// Logger for delivery progress and failures. Nil discards.
	Logger log.Logger
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ServiceURL:    DefaultServiceURL,
		HTTPTimeout:   15 * time.Second,
		RetryAttempts: 3,
	}
}

// Open creates a stream that batches records and delivers them to the
// ingestion service. Additional stream options (batch size, flush interval,
// worker count, overflow policy) may be passed through opts.
func Open(cfg Config, opts ...stream.Option) (*Stream, error) {
	if cfg.ServiceURL == "" {
		cfg.ServiceURL = DefaultServiceURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoop()
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	var dst sink.Sink[json.RawMessage] = sink.NewHTTPSink[json.RawMessage](sink.HTTPConfig{
		ServiceURL: cfg.ServiceURL,
		APIKey:     cfg.APIKey,
		SourceID:   cfg.SourceID,
	}, client, logger)

	if cfg.RetryAttempts > 1 {
		dst = sink.NewRetrySink(dst, sink.RetryConfig{Attempts: uint(cfg.RetryAttempts)})
	}

	return stream.New(dst, append([]stream.Option{stream.WithLogger(logger)}, opts...)...)
}
