// Package metrics provides Prometheus metrics for the demonlist service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Ordering store
	orderingMutations *prometheus.CounterVec
	orderingLatency   *prometheus.HistogramVec
	entriesTotal      prometheus.Gauge

	// Record workflow
	recordTransitions *prometheus.CounterVec
	recordsSubmitted  prometheus.Counter

	// Scoring
	scoreComputations *prometheus.CounterVec
	scoreLatency      prometheus.Histogram
	playersTotal      prometheus.Gauge

	// Cache coherence
	cacheLookups      *prometheus.CounterVec
	generationBumps   *prometheus.CounterVec
	preconditionFails prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Notification pipeline
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueRejected          *prometheus.CounterVec
	notificationsDelivered prometheus.Counter
	notificationsFailed    prometheus.Counter
	notificationsDuplicate prometheus.Counter
	notificationsRetried   prometheus.Counter
	workerCount            prometheus.Gauge

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager. Collectors are registered on the
// configured registry (prometheus.DefaultRegisterer unless overridden).
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "demonlist",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.orderingMutations = m.counterVec("ordering_mutations_total",
		"Ordering store mutations by operation and result", "op", "result")
	m.orderingLatency = m.histogramVec("ordering_mutation_duration_milliseconds",
		"Ordering store mutation latency including the storage transaction", "op")
	m.entriesTotal = m.gauge("entries_total", "Number of entries on the list")

	m.recordTransitions = m.counterVec("record_transitions_total",
		"Record status transitions", "from", "to")
	m.recordsSubmitted = m.counter("records_submitted_total", "Records accepted for review")

	m.scoreComputations = m.counterVec("score_computations_total",
		"Score aggregator computations by kind", "kind")
	m.scoreLatency = m.histogram("score_computation_duration_milliseconds",
		"Time spent computing a score or a full ranking")
	m.playersTotal = m.gauge("players_total", "Number of registered players")

	m.cacheLookups = m.counterVec("cache_lookups_total",
		"Conditional request outcomes by resource", "resource", "result")
	m.generationBumps = m.counterVec("generation_bumps_total",
		"Generation counter increments by resource class kind", "class")
	m.preconditionFails = m.counter("precondition_failures_total",
		"If-Match mismatches on mutating requests")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status code", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = m.gauge("notification_queue_size", "Pending notifications")
	m.queueCapacity = m.gauge("notification_queue_capacity", "Notification queue capacity")
	m.queueEnqueued = m.counter("notification_enqueued_total", "Notifications enqueued")
	m.queueRejected = m.counterVec("notification_rejected_total",
		"Notifications dropped before enqueue by reason", "reason")
	m.notificationsDelivered = m.counter("notifications_delivered_total", "Notifications delivered")
	m.notificationsFailed = m.counter("notifications_failed_total", "Notification deliveries that failed")
	m.notificationsDuplicate = m.counter("notifications_duplicate_total", "Notifications skipped as already delivered")
	m.notificationsRetried = m.counter("notifications_redelivered_total", "Failed notifications put back for another attempt")
	m.workerCount = m.gauge("notification_workers", "Notification delivery workers")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and kind", "component", "kind")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordOrderingMutation records one ordering mutation outcome and its latency.
func RecordOrderingMutation(op, result string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.orderingMutations.WithLabelValues(op, result).Inc()
	globalManager.orderingLatency.WithLabelValues(op).Observe(latencyMs)
}

// UpdateEntriesTotal sets the number of listed entries.
func UpdateEntriesTotal(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.entriesTotal.Set(float64(count))
}

// RecordRecordTransition counts a record moving between two statuses.
func RecordRecordTransition(from, to string) {
	if !globalManager.enabled {
		return
	}
	globalManager.recordTransitions.WithLabelValues(from, to).Inc()
}

// RecordRecordSubmitted counts an accepted submission.
func RecordRecordSubmitted() {
	if !globalManager.enabled {
		return
	}
	globalManager.recordsSubmitted.Inc()
}

// RecordScoreComputation records a score ("player") or ranking ("ranking") computation.
func RecordScoreComputation(kind string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.scoreComputations.WithLabelValues(kind).Inc()
	globalManager.scoreLatency.Observe(latencyMs)
}

// UpdatePlayersTotal sets the number of registered players.
func UpdatePlayersTotal(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.playersTotal.Set(float64(count))
}

// RecordCacheLookup records a conditional request outcome ("hit" or "miss").
func RecordCacheLookup(resource, result string) {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheLookups.WithLabelValues(resource, result).Inc()
}

// RecordGenerationBump counts a generation counter increment.
func RecordGenerationBump(class string) {
	if !globalManager.enabled {
		return
	}
	globalManager.generationBumps.WithLabelValues(class).Inc()
}

// RecordPreconditionFailed counts an If-Match mismatch.
func RecordPreconditionFailed() {
	if !globalManager.enabled {
		return
	}
	globalManager.preconditionFails.Inc()
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateQueueSize sets the current notification queue size.
func UpdateQueueSize(size int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the notification queue capacity.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted notification.
func RecordQueueEnqueue() {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueued.Inc()
}

// RecordQueueRejected counts a notification dropped at enqueue time.
func RecordQueueRejected(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// RecordNotificationDelivered counts a successful delivery.
func RecordNotificationDelivered() {
	if !globalManager.enabled {
		return
	}
	globalManager.notificationsDelivered.Inc()
}

// RecordNotificationFailed counts a failed delivery.
func RecordNotificationFailed() {
	if !globalManager.enabled {
		return
	}
	globalManager.notificationsFailed.Inc()
}

// RecordNotificationDuplicate counts a delivery skipped by deduplication.
func RecordNotificationDuplicate() {
	if !globalManager.enabled {
		return
	}
	globalManager.notificationsDuplicate.Inc()
}

// RecordNotificationRedelivered counts a failed event requeued for another
// attempt.
func RecordNotificationRedelivered() {
	if !globalManager.enabled {
		return
	}
	globalManager.notificationsRetried.Inc()
}

// UpdateWorkerCount sets the number of notification workers.
func UpdateWorkerCount(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.workerCount.Set(float64(count))
}

// RecordErrorByComponent counts an error surfaced by a component.
func RecordErrorByComponent(component, kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
