// Package metrics provides Prometheus metrics for the quote system.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QuoteFetchesTotal is a counter of upstream fetch attempts per source.
	QuoteFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_fetches_total",
			Help: "Total number of upstream fetch attempts per source",
		},
		[]string{"source", "status"},
	)

	// QuoteFetchDuration is a histogram of upstream fetch durations.
	QuoteFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_fetch_duration_seconds",
			Help:    "Duration of upstream fetch calls per source",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// QuotesResolvedTotal is a counter of resolved quotes per commodity and source.
	QuotesResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotes_resolved_total",
			Help: "Total number of quotes resolved, by commodity and winning source",
		},
		[]string{"commodity", "source"},
	)

	// FallbackQuotesTotal is a counter of quotes served from the static fallback table.
	FallbackQuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_quotes_total",
			Help: "Total number of quotes served from the static fallback table",
		},
		[]string{"commodity"},
	)

	// DegradedFetchesTotal is a counter of fetches that fell back to substitute data.
	DegradedFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "degraded_fetches_total",
			Help: "Total number of fetches that returned substitute data after a live failure",
		},
		[]string{"source"},
	)

	// ChainDuration is a histogram of full fallback chain runs.
	ChainDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chain_duration_seconds",
			Help:    "Duration of full fallback chain runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SourceLastFetch is a gauge of the last successful fetch timestamp per source.
	SourceLastFetch = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_last_fetch_timestamp",
			Help: "Unix timestamp of last successful fetch from source",
		},
		[]string{"source"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)

	// WebSocketConnections is a gauge of currently connected WebSocket clients.
	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Number of currently connected WebSocket clients",
		},
	)

	// StoreWritesTotal is a counter of quote history writes.
	StoreWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_writes_total",
			Help: "Total number of quote history writes",
		},
		[]string{"status"},
	)
)

// Init initializes Prometheus metrics registry.
func Init() {
	// Register all metrics
	prometheus.MustRegister(
		QuoteFetchesTotal,
		QuoteFetchDuration,
		QuotesResolvedTotal,
		FallbackQuotesTotal,
		DegradedFetchesTotal,
		ChainDuration,
		SourceLastFetch,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WebSocketConnections,
		StoreWritesTotal,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      http.DefaultServeMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordQuoteFetch records an upstream fetch attempt.
func RecordQuoteFetch(source, status string, duration time.Duration) {
	QuoteFetchesTotal.WithLabelValues(source, status).Inc()
	QuoteFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	if status == "success" {
		SourceLastFetch.WithLabelValues(source).SetToCurrentTime()
	}
}

// RecordResolvedQuote records a quote resolved by the fallback chain.
func RecordResolvedQuote(commodity, source string) {
	QuotesResolvedTotal.WithLabelValues(commodity, source).Inc()
}

// RecordFallbackQuote records a quote served from the static fallback table.
func RecordFallbackQuote(commodity string) {
	FallbackQuotesTotal.WithLabelValues(commodity).Inc()
}

// RecordDegradedFetch records a fetch that substituted canned data.
func RecordDegradedFetch(source string) {
	DegradedFetchesTotal.WithLabelValues(source).Inc()
}

// RecordChainRun records a full fallback chain run.
func RecordChainRun(duration time.Duration) {
	ChainDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordWebSocketConnect records a new WebSocket client connection.
func RecordWebSocketConnect() {
	WebSocketConnections.Inc()
}

// RecordWebSocketDisconnect records a WebSocket client disconnect.
func RecordWebSocketDisconnect() {
	WebSocketConnections.Dec()
}

// RecordStoreWrite records a quote history write.
func RecordStoreWrite(status string) {
	StoreWritesTotal.WithLabelValues(status).Inc()
}
