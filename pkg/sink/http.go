package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"github.com/datapost-io/datapost/pkg/log"
)

const recordsEndpoint = "/v1/ingest/records"

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface; tests inject a fake.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPConfig holds the connection settings for an HTTPSink.
type HTTPConfig struct {
	// ServiceURL is the base URL of the ingestion service.
	ServiceURL string

	// APIKey is the bearer token for authentication.
	APIKey string

	// SourceID identifies the data source the records belong to.
	SourceID string
}

// HTTPSink delivers record batches to the ingestion service as a single JSON
// POST per batch.
type HTTPSink[T any] struct {
	cfg    HTTPConfig
	client HTTPClient
	logger log.Logger
}

// ingestRequest is the wire format for a batch upload.
type ingestRequest[T any] struct {
	SourceID string `json:"dataSourceRid"`
	Records  []T    `json:"records"`
}

// NewHTTPSink creates an HTTP sink. A nil client defaults to
// http.DefaultClient; a nil logger discards output.
func NewHTTPSink[T any](cfg HTTPConfig, client HTTPClient, logger log.Logger) *HTTPSink[T] {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.NewNoop()
	}
	return &HTTPSink[T]{cfg: cfg, client: client, logger: logger}
}

// Deliver POSTs the batch to the ingestion endpoint.
func (s *HTTPSink[T]) Deliver(ctx context.Context, batch []T) error {
	if len(batch) == 0 {
		return nil
	}

	payload, err := json.Marshal(ingestRequest[T]{
		SourceID: s.cfg.SourceID,
		Records:  batch,
	})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	url := s.cfg.ServiceURL + recordsEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agent-OSArch", runtime.GOOS+"/"+runtime.GOARCH)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	s.logger.Debug("batch delivered",
		log.String("sink", s.Name()),
		log.Int("records", len(batch)),
	)
	return nil
}

// Name identifies the sink.
func (s *HTTPSink[T]) Name() string { return "http" }

// Close is a no-op; the HTTP client is owned by the caller.
func (s *HTTPSink[T]) Close() error { return nil }
