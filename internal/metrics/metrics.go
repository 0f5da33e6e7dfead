package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datapost-io/datapost/pkg/log"
)

// Metrics holds the Prometheus metrics exported by the datapost CLI.
// It implements stream.Emitter so it can be plugged into a Stream directly.
type Metrics struct {
	RecordsDelivered prometheus.Counter
	BatchesDelivered prometheus.Counter
	DeliveryErrors   prometheus.Counter
	BatchesDropped   prometheus.Counter
	FlushLatency     prometheus.Histogram

	registry *prometheus.Registry
}

// New creates and registers all datapost metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		RecordsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datapost_records_delivered_total",
			Help: "Total records successfully delivered to the sink",
		}),
		BatchesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datapost_batches_delivered_total",
			Help: "Total batches successfully delivered to the sink",
		}),
		DeliveryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datapost_delivery_errors_total",
			Help: "Total failed batch deliveries",
		}),
		BatchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datapost_batches_dropped_total",
			Help: "Total batches discarded by a drop-based overflow policy",
		}),
		FlushLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "datapost_flush_latency_seconds",
			Help:    "Sink delivery latency per batch",
			Buckets: prometheus.DefBuckets,
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RecordsDelivered,
		m.BatchesDelivered,
		m.DeliveryErrors,
		m.BatchesDropped,
		m.FlushLatency,
	)
	return m
}

// OnDeliverSuccess implements stream.Emitter.
func (m *Metrics) OnDeliverSuccess(records int, duration time.Duration) {
	m.RecordsDelivered.Add(float64(records))
	m.BatchesDelivered.Inc()
	m.FlushLatency.Observe(duration.Seconds())
}

// OnDeliverError implements stream.Emitter.
func (m *Metrics) OnDeliverError(err error, records int) {
	m.DeliveryErrors.Inc()
}

// OnBatchDropped implements stream.Emitter.
func (m *Metrics) OnBatchDropped(batches int) {
	m.BatchesDropped.Add(float64(batches))
}

// Serve exposes the metrics on addr until the context is canceled.
// Runs in its own goroutine; errors other than server closure are logged.
func (m *Metrics) Serve(ctx context.Context, addr string, logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics listening", log.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", log.Err(err))
		}
	}()
}
