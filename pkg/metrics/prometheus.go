// Package metrics provides Prometheus metrics for the kata sync service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Provider traffic
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	failovers        *prometheus.CounterVec
	gateWait         *prometheus.HistogramVec

	// Sync pipeline
	syncs             *prometheus.CounterVec
	syncDuration      prometheus.Histogram
	degradedFragments *prometheus.CounterVec
	skillLevels       *prometheus.CounterVec
	statsMismatch     prometheus.Counter

	// Background sync queue
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueRejected     *prometheus.CounterVec
	syncJobsDuplicate prometheus.Counter
	workerCount       prometheus.Gauge
	workerBusy        prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // isolated from default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "kata",
		subsystem:        "sync",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) initializeMetrics() {
	m.providerRequests = m.counterVec("provider_requests_total",
		"Outbound provider requests by provider, operation and outcome", "provider", "op", "outcome")
	m.providerLatency = m.histogramVec("provider_latency_milliseconds",
		"Provider request latency in milliseconds", m.histogramBuckets, "provider", "op")
	m.failovers = m.counterVec("failovers_total",
		"Times a request advanced past a provider after a transient failure", "provider", "op", "reason")
	m.gateWait = m.histogramVec("rate_gate_wait_milliseconds",
		"Time spent waiting for a provider rate gate", m.histogramBuckets, "provider")

	m.syncs = m.counterVec("syncs_total", "Comprehensive syncs by outcome", "outcome")
	m.syncDuration = m.histogram("sync_duration_milliseconds",
		"End-to-end comprehensive sync duration in milliseconds", m.histogramBuckets)
	m.degradedFragments = m.counterVec("degraded_fragments_total",
		"Best-effort fragments that failed and were dropped from a sync", "fragment")
	m.skillLevels = m.counterVec("skill_levels_total", "Skill levels computed by completed syncs", "level")
	m.statsMismatch = m.counter("solved_totals_mismatch_total",
		"Syncs whose total solved count disagrees with the per-difficulty sum")

	m.queueSize = m.gauge("queue_size", "Current number of queued background sync jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued background sync jobs")
	m.queueRejected = m.counterVec("queue_rejected_total", "Sync jobs rejected by the queue", "reason")
	m.syncJobsDuplicate = m.counter("sync_jobs_duplicate_total",
		"Sync requests ignored because the same username is already in flight")
	m.workerCount = m.gauge("worker_count", "Number of background sync workers")
	m.workerBusy = m.gauge("worker_busy", "Number of background sync workers processing a job")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets, "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total",
		"HTTP error responses by endpoint and error type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordProviderRequest counts a provider call and observes its latency.
func RecordProviderRequest(provider, op, outcome string, latency time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.providerRequests.WithLabelValues(provider, op, outcome).Inc()
	globalManager.providerLatency.WithLabelValues(provider, op).Observe(float64(latency.Milliseconds()))
}

// RecordFailover counts a transient failure that moved on to the next provider.
func RecordFailover(provider, op, reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.failovers.WithLabelValues(provider, op, reason).Inc()
}

// RecordGateWait observes how long a caller waited on a provider's rate gate.
func RecordGateWait(provider string, wait time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.gateWait.WithLabelValues(provider).Observe(float64(wait.Milliseconds()))
}

// RecordSync counts a comprehensive sync and observes its duration.
func RecordSync(outcome string, duration time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.syncs.WithLabelValues(outcome).Inc()
	globalManager.syncDuration.Observe(float64(duration.Milliseconds()))
}

// RecordDegraded counts a dropped best-effort fragment.
func RecordDegraded(fragment string) {
	if !globalManager.enabled {
		return
	}
	globalManager.degradedFragments.WithLabelValues(fragment).Inc()
}

// RecordSkillLevel counts a computed skill level.
func RecordSkillLevel(level string) {
	if !globalManager.enabled {
		return
	}
	globalManager.skillLevels.WithLabelValues(level).Inc()
}

// RecordStatsMismatch counts a solved-totals disagreement.
func RecordStatsMismatch() {
	if !globalManager.enabled {
		return
	}
	globalManager.statsMismatch.Inc()
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a job the queue refused.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// RecordSyncJobDuplicate counts a sync request for a username already in flight.
func RecordSyncJobDuplicate() {
	globalManager.syncJobsDuplicate.Inc()
}

// UpdateWorkerCount sets the number of background workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerBusy adjusts the busy worker gauge by delta.
func AddWorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint records an error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry that backs the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
