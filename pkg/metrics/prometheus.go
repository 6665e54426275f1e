// Package metrics provides Prometheus metrics for the vitalsync service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the vitalsync service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Sync pipeline
	syncRuns          *prometheus.CounterVec
	syncLatency       prometheus.Histogram
	readingsAdded     *prometheus.CounterVec
	duplicatesSkipped *prometheus.CounterVec
	sleepAdded        prometheus.Counter
	trackedUsers      prometheus.Gauge

	// Remote fitness API
	remoteCalls   *prometheus.CounterVec
	remoteLatency *prometheus.HistogramVec

	// Model lifecycle
	trainings       *prometheus.CounterVec
	trainingLatency prometheus.Histogram
	verdicts        *prometheus.CounterVec
	scoringLatency  prometheus.Histogram

	// Cache
	cacheLookups *prometheus.CounterVec

	// Repository
	repositoryQueryLatency  prometheus.Histogram
	repositoryCommitLatency prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vitalsync",
		subsystem:        "pipeline",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.syncRuns = m.counterVec("sync_runs_total", "Total number of user syncs by outcome", "outcome")
	m.syncLatency = m.histogram("sync_latency_milliseconds", "Duration of a full user sync in milliseconds")
	m.readingsAdded = m.counterVec("readings_added_total", "Readings staged for insert by metric", "metric")
	m.duplicatesSkipped = m.counterVec("duplicates_skipped_total", "Remote points skipped as already stored", "metric")
	m.sleepAdded = m.counter("sleep_intervals_added_total", "Sleep intervals staged for insert")
	m.trackedUsers = m.gauge("tracked_users", "Number of users known to the scheduler")

	m.remoteCalls = m.counterVec("remote_calls_total", "Remote fitness API calls by endpoint and outcome", "endpoint", "outcome")
	m.remoteLatency = m.histogramVec("remote_latency_milliseconds", "Remote fitness API latency in milliseconds", "endpoint")

	m.trainings = m.counterVec("trainings_total", "Model training attempts by outcome", "outcome")
	m.trainingLatency = m.histogram("training_latency_milliseconds", "Model training duration in milliseconds")
	m.verdicts = m.counterVec("verdicts_total", "Day verdicts produced by status", "status")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Day scoring latency in milliseconds")

	m.cacheLookups = m.counterVec("cache_lookups_total", "Cache lookups by cache and result", "cache", "result")

	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Repository range query latency")
	m.repositoryCommitLatency = m.histogram("repository_commit_latency_milliseconds", "Repository commit latency")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_seconds", "HTTP request duration in seconds",
		"endpoint", "method", "status_code")

	m.queueSize = m.gauge("queue_size", "Current size of the sync job queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the sync job queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of enqueued jobs")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of dequeued jobs")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds")

	m.workerCount = m.gauge("worker_count", "Configured number of sync workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers running a job")
	m.workerIdleCount = m.gauge("worker_idle_count", "Number of idle workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Job processing latency")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of failed jobs")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")
}

// Sync Metrics Functions.

// RecordSyncRun increments the sync run counter for an outcome (ok, unauthorized, failed).
func RecordSyncRun(outcome string) {
	globalManager.syncRuns.WithLabelValues(outcome).Inc()
}

// RecordSyncLatency records a full sync duration in milliseconds.
func RecordSyncLatency(latencyMs float64) {
	globalManager.syncLatency.Observe(latencyMs)
}

// RecordReadingsAdded adds n staged readings for a metric.
func RecordReadingsAdded(metric string, n int) {
	globalManager.readingsAdded.WithLabelValues(metric).Add(float64(n))
}

// RecordDuplicateSkipped increments the duplicate counter for a metric.
func RecordDuplicateSkipped(metric string) {
	globalManager.duplicatesSkipped.WithLabelValues(metric).Inc()
}

// RecordSleepAdded adds n staged sleep intervals.
func RecordSleepAdded(n int) {
	globalManager.sleepAdded.Add(float64(n))
}

// UpdateTrackedUsers sets the number of users known to the scheduler.
func UpdateTrackedUsers(count int) {
	globalManager.trackedUsers.Set(float64(count))
}

// Remote Metrics Functions.

// RecordRemoteCall records one remote API call.
func RecordRemoteCall(endpoint, outcome string, latencyMs float64) {
	globalManager.remoteCalls.WithLabelValues(endpoint, outcome).Inc()
	globalManager.remoteLatency.WithLabelValues(endpoint).Observe(latencyMs)
}

// Model Metrics Functions.

// RecordTraining records a training attempt.
func RecordTraining(outcome string, latencyMs float64) {
	globalManager.trainings.WithLabelValues(outcome).Inc()
	globalManager.trainingLatency.Observe(latencyMs)
}

// RecordVerdict records a produced day verdict.
func RecordVerdict(status string, latencyMs float64) {
	globalManager.verdicts.WithLabelValues(status).Inc()
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.cacheLookups.WithLabelValues(cache, result).Inc()
}

// Repository Metrics Functions.

// RecordRepositoryQueryLatency records repository query operation latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordRepositoryCommitLatency records repository commit latency.
func RecordRepositoryCommitLatency(latencyMs float64) {
	globalManager.repositoryCommitLatency.Observe(latencyMs)
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records job processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error for an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom registry the global manager registers on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
