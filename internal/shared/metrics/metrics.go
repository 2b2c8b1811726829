package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Pipeline operation metrics
	PipelineOperationsTotal *prometheus.CounterVec
	PipelineProcessingTime  *prometheus.HistogramVec
	PipelineFallbackTiers   *prometheus.CounterVec
	PipelineDownloadBytes   prometheus.Counter

	// Job metrics
	JobsTotal   *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
	ActiveJobs  prometheus.Gauge

	// WebSocket metrics
	WebSocketConnections prometheus.Gauge
}

// New creates and registers all metrics
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path", "status"},
		),

		PipelineOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_operations_total",
				Help: "Total number of video pipeline operations",
			},
			[]string{"operation", "status"},
		),
		PipelineProcessingTime: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_processing_seconds",
				Help:    "Video pipeline operation duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"operation"},
		),
		PipelineFallbackTiers: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_fallback_tiers_total",
				Help: "Fallback tiers attempted after a primary strategy failed",
			},
			[]string{"operation"},
		),
		PipelineDownloadBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_download_bytes_total",
				Help: "Bytes downloaded from remote media references",
			},
		),

		JobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobs_total",
				Help: "Total number of async pipeline jobs",
			},
			[]string{"operation", "status"},
		),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "job_duration_seconds",
				Help:    "Async job processing duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"operation", "status"},
		),
		ActiveJobs: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_jobs",
				Help: "Number of currently processing jobs",
			},
		),

		WebSocketConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "websocket_connections",
				Help: "Current number of WebSocket connections",
			},
		),
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration, size int64) {
	labels := []string{method, path, strconv.Itoa(status)}
	m.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
	m.HTTPRequestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(labels...).Observe(float64(size))
}
