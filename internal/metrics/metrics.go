// Package metrics exposes Prometheus instrumentation for the engine, the
// catalog source, and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattracker_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sattracker_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	batchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sattracker_batch_duration_seconds",
			Help:    "Wall-clock duration of one position batch.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	batchSamples = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattracker_batch_samples",
			Help: "Number of samples produced by the latest batch.",
		},
	)

	entriesSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattracker_entries_skipped_total",
			Help: "Catalog entries skipped during batches, by cause.",
		},
		[]string{"cause"},
	)

	elementCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattracker_element_cache_size",
			Help: "Number of identities in the element cache.",
		},
	)

	batchesSaturatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sattracker_batches_saturated_total",
			Help: "Batches whose wall-clock time exceeded the tick interval.",
		},
	)

	catalogFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattracker_catalog_fetches_total",
			Help: "Catalog refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattracker_stream_clients",
			Help: "Currently connected stream clients.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sattracker_stream_messages_total",
			Help: "Data messages written to stream clients.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sattracker_stream_bytes_total",
			Help: "Bytes written to stream clients, keepalives included.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		batchDurationSeconds,
		batchSamples,
		entriesSkippedTotal,
		elementCacheSize,
		batchesSaturatedTotal,
		catalogFetchesTotal,
		streamClients,
		streamMessagesTotal,
		streamBytesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordBatch records the duration and yield of one batch and the current
// element cache size.
func RecordBatch(duration time.Duration, samples, cacheSize int) {
	batchDurationSeconds.Observe(duration.Seconds())
	batchSamples.Set(float64(samples))
	elementCacheSize.Set(float64(cacheSize))
}

// RecordSkips adds per-cause skip counts from one batch.
func RecordSkips(parse, propagation, transform int) {
	if parse > 0 {
		entriesSkippedTotal.WithLabelValues("parse").Add(float64(parse))
	}
	if propagation > 0 {
		entriesSkippedTotal.WithLabelValues("propagation").Add(float64(propagation))
	}
	if transform > 0 {
		entriesSkippedTotal.WithLabelValues("transform").Add(float64(transform))
	}
}

// RecordSaturation marks one saturated batch.
func RecordSaturation() {
	batchesSaturatedTotal.Inc()
}

// RecordCatalogFetch counts one catalog refresh attempt.
func RecordCatalogFetch(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	catalogFetchesTotal.WithLabelValues(outcome).Inc()
}

// StreamClientConnected adjusts the connected stream client gauge.
func StreamClientConnected(delta int) {
	streamClients.Add(float64(delta))
}

// IncStreamMessages counts one data message written to a stream client.
func IncStreamMessages() {
	streamMessagesTotal.Inc()
}

// AddStreamBytes counts bytes written to a stream client.
func AddStreamBytes(n int64) {
	streamBytesTotal.Add(float64(n))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so streaming handlers keep working behind the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}
