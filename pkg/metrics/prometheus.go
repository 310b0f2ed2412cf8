// Package metrics provides Prometheus metrics for the attrition prediction service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Prediction client
	predictions       *prometheus.CounterVec
	predictionErrors  *prometheus.CounterVec
	predictionLatency prometheus.Histogram
	encodeErrors      *prometheus.CounterVec

	// Batch evaluation
	evaluations        *prometheus.CounterVec
	evaluationRows     *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	lastEvaluation     *prometheus.GaugeVec

	// Worker pool
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	workerCount   prometheus.Gauge
	jobLatency    prometheus.Histogram

	// History store
	historyWrites *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "attrition",
		subsystem:        "predictor",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one block per metric
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "predictions_total",
		Help:        "Predictions returned by the classifier, by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.predictionErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "prediction_errors_total",
		Help:        "Failed prediction requests, by failure kind",
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.predictionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "prediction_latency_milliseconds",
		Help:        "Round trip time of a single prediction request",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.encodeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "encode_errors_total",
		Help:        "Category selections that matched no table label, by field",
		ConstLabels: m.constLabels,
	}, []string{"field"})

	m.evaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "evaluation",
		Name:        "runs_total",
		Help:        "Batch evaluations by final status",
		ConstLabels: m.constLabels,
	}, []string{"status"})

	m.evaluationRows = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "evaluation",
		Name:        "rows_total",
		Help:        "Dataset rows handled by batch evaluations, by result",
		ConstLabels: m.constLabels,
	}, []string{"result"})

	m.evaluationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "evaluation",
		Name:        "duration_milliseconds",
		Help:        "Wall time of a complete batch evaluation",
		Buckets:     prometheus.ExponentialBuckets(10, 4, 10),
		ConstLabels: m.constLabels,
	})

	m.lastEvaluation = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "evaluation",
		Name:        "last_score",
		Help:        "Metrics of the most recent successful evaluation",
		ConstLabels: m.constLabels,
	}, []string{"metric"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "queue",
		Name:        "size",
		Help:        "Prediction jobs waiting for a worker",
		ConstLabels: m.constLabels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "queue",
		Name:        "capacity",
		Help:        "Maximum number of queued prediction jobs",
		ConstLabels: m.constLabels,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "worker",
		Name:        "count",
		Help:        "Prediction workers running",
		ConstLabels: m.constLabels,
	})

	m.jobLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "worker",
		Name:        "job_latency_milliseconds",
		Help:        "Time a worker spends on one prediction job",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.historyWrites = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "history",
		Name:        "writes_total",
		Help:        "Evaluation runs written to the history store, by result",
		ConstLabels: m.constLabels,
	}, []string{"result"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "errors_total",
		Help:        "HTTP error responses by endpoint, method and error type",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "memory_bytes",
		Help:        "Heap bytes allocated",
		ConstLabels: m.constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "goroutines",
		Help:        "Goroutines alive",
		ConstLabels: m.constLabels,
	})
}

// RecordPrediction counts a classifier answer and its latency.
func RecordPrediction(outcome string, latencyMs float64) {
	globalManager.predictions.WithLabelValues(outcome).Inc()
	globalManager.predictionLatency.Observe(latencyMs)
}

// RecordPredictionError counts a failed prediction request.
func RecordPredictionError(kind string) {
	globalManager.predictionErrors.WithLabelValues(kind).Inc()
}

// RecordEncodeError counts a rejected category selection.
func RecordEncodeError(field string) {
	globalManager.encodeErrors.WithLabelValues(field).Inc()
}

// RecordEvaluation counts a finished batch evaluation.
func RecordEvaluation(status string, durationMs float64) {
	globalManager.evaluations.WithLabelValues(status).Inc()
	globalManager.evaluationDuration.Observe(durationMs)
}

// RecordEvaluationRows adds scored and skipped row counts.
func RecordEvaluationRows(scored, skipped int) {
	globalManager.evaluationRows.WithLabelValues("scored").Add(float64(scored))
	globalManager.evaluationRows.WithLabelValues("skipped").Add(float64(skipped))
}

// UpdateLastEvaluation publishes the metrics of the latest successful evaluation.
func UpdateLastEvaluation(accuracy, precision, recall, f1 float64) {
	globalManager.lastEvaluation.WithLabelValues("accuracy").Set(accuracy)
	globalManager.lastEvaluation.WithLabelValues("precision").Set(precision)
	globalManager.lastEvaluation.WithLabelValues("recall").Set(recall)
	globalManager.lastEvaluation.WithLabelValues("f1").Set(f1)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordJobLatency records how long a worker spent on one job.
func RecordJobLatency(latencyMs float64) {
	globalManager.jobLatency.Observe(latencyMs)
}

// RecordHistoryWrite counts a history store write.
func RecordHistoryWrite(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	globalManager.historyWrites.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError counts an error response.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
