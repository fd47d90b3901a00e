// Package metrics provides Prometheus metrics for the deathlog service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the deathlog service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Event window
	eventsIngested *prometheus.CounterVec
	eventsDropped  *prometheus.CounterVec
	windowEvents   prometheus.Gauge
	windowPruned   prometheus.Counter

	// Attribution and recording
	deathsRecorded prometheus.Counter
	attributions   *prometheus.CounterVec
	sinkErrors     *prometheus.CounterVec

	// History store
	storeRecords   prometheus.Gauge
	storeCapacity  prometheus.Gauge
	storeEvictions prometheus.Counter

	// Persistence
	persistErrors   prometheus.Counter
	persistDuration prometheus.Histogram

	// Inbound queue
	queueSize       prometheus.Gauge
	queueCapacity   prometheus.Gauge
	queueRejections *prometheus.CounterVec
	dispatched      *prometheus.CounterVec
	duplicates      prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
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
		namespace:        "deathlog",
		subsystem:        "recorder",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.eventsIngested = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_ingested_total",
		Help:      "Damage events accepted into the window, by kind",
	}, []string{"kind"})

	m.eventsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_dropped_total",
		Help:      "Inbound damage events filtered at ingest, by reason",
	}, []string{"reason"})

	m.windowEvents = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "window_events",
		Help:      "Damage events currently held in the correlation window",
	})

	m.windowPruned = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "window_pruned_total",
		Help:      "Damage events aged out of the correlation window",
	})

	m.deathsRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "deaths_recorded_total",
		Help:      "Death records appended to the history",
	})

	m.attributions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attributions_total",
		Help:      "Killer attributions by selection method (overkill, latest, none)",
	}, []string{"method"})

	m.sinkErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_errors_total",
		Help:      "Failed record emissions, by sink",
	}, []string{"sink"})

	m.storeRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_records",
		Help:      "Death records currently held in the history",
	})

	m.storeCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_capacity",
		Help:      "Configured maximum number of death records",
	})

	m.storeEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_evictions_total",
		Help:      "Death records evicted (oldest first) to honor capacity",
	})

	m.persistErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_errors_total",
		Help:      "Failed attempts to persist durable state",
	})

	m.persistDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_duration_milliseconds",
		Help:      "Time spent writing durable state",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500},
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Inbound messages waiting for dispatch",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum number of queued inbound messages",
	})

	m.queueRejections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_rejections_total",
		Help:      "Inbound messages refused by the queue, by reason",
	}, []string{"reason"})

	m.dispatched = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "messages_dispatched_total",
		Help:      "Inbound messages processed, by message kind",
	}, []string{"kind"})

	m.duplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_duplicate_total",
		Help:      "Inbound damage events skipped because their id was already seen",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordEventIngested counts a damage event accepted into the window.
func RecordEventIngested(kind string) {
	globalManager.eventsIngested.WithLabelValues(kind).Inc()
}

// RecordEventDropped counts a damage event filtered at ingest.
func RecordEventDropped(reason string) {
	globalManager.eventsDropped.WithLabelValues(reason).Inc()
}

// UpdateWindowEvents sets the current window length.
func UpdateWindowEvents(n int) {
	globalManager.windowEvents.Set(float64(n))
}

// RecordWindowPruned counts events aged out of the window.
func RecordWindowPruned(n int) {
	if n > 0 {
		globalManager.windowPruned.Add(float64(n))
	}
}

// RecordDeath counts a recorded death.
func RecordDeath() {
	globalManager.deathsRecorded.Inc()
}

// RecordAttribution counts a killer attribution by method.
func RecordAttribution(method string) {
	globalManager.attributions.WithLabelValues(method).Inc()
}

// RecordSinkError counts a failed emission.
func RecordSinkError(sink string) {
	globalManager.sinkErrors.WithLabelValues(sink).Inc()
}

// UpdateStoreRecords sets the number of stored records.
func UpdateStoreRecords(n int) {
	globalManager.storeRecords.Set(float64(n))
}

// UpdateStoreCapacity sets the configured store capacity.
func UpdateStoreCapacity(n int) {
	globalManager.storeCapacity.Set(float64(n))
}

// RecordStoreEvictions counts evicted records.
func RecordStoreEvictions(n int) {
	if n > 0 {
		globalManager.storeEvictions.Add(float64(n))
	}
}

// RecordPersistError counts a failed persistence attempt.
func RecordPersistError() {
	globalManager.persistErrors.Inc()
}

// RecordPersistDuration records the time spent persisting state.
func RecordPersistDuration(ms float64) {
	globalManager.persistDuration.Observe(ms)
}

// UpdateQueueSize sets the number of queued messages.
func UpdateQueueSize(n int) {
	globalManager.queueSize.Set(float64(n))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(n int) {
	globalManager.queueCapacity.Set(float64(n))
}

// RecordQueueRejection counts a refused enqueue.
func RecordQueueRejection(reason string) {
	globalManager.queueRejections.WithLabelValues(reason).Inc()
}

// RecordDispatched counts a processed message.
func RecordDispatched(kind string) {
	globalManager.dispatched.WithLabelValues(kind).Inc()
}

// RecordEventDuplicate counts a skipped duplicate event.
func RecordEventDuplicate() {
	globalManager.duplicates.Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the registry backing the package-level collectors.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
