package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for provisioning runs. A nil *Metrics
// and one created with metrics disabled record nothing.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Provisioning metrics
	entities     *prometheus.CounterVec
	channels     *prometheus.CounterVec
	connections  *prometheus.CounterVec
	templates    *prometheus.CounterVec
	rejectedRows *prometheus.CounterVec

	// Readiness metrics
	readiness       *prometheus.CounterVec
	readinessChecks prometheus.Histogram

	// Remote API metrics
	remoteCalls    *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
	remoteErrors   *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of provisioning runs started",
			},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of provisioning runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of provisioning runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		entities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_total",
				Help:      "Processors and controller services by outcome",
			},
			[]string{"kind", "outcome"},
		),
		channels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channels_total",
				Help:      "Channels by role and outcome",
			},
			[]string{"role", "outcome"},
		),
		connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Links by origin and outcome",
			},
			[]string{"origin", "outcome"},
		),
		templates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "template_operations_total",
				Help:      "Template uploads and deletions",
			},
			[]string{"operation"},
		),
		rejectedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejected_rows_total",
				Help:      "Query rows rejected during planning",
			},
			[]string{"shape"},
		),

		readiness: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "service_readiness_total",
				Help:      "Service enablement outcomes",
			},
			[]string{"outcome"},
		),
		readinessChecks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "service_readiness_checks",
				Help:      "Status checks issued per service enablement",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
		),

		remoteCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_calls_total",
				Help:      "Total number of remote API calls",
			},
			[]string{"operation"},
		),
		remoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_call_duration_seconds",
				Help:      "Duration of remote API calls in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		remoteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_errors_total",
				Help:      "Total number of failed remote API calls",
			},
			[]string{"operation"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.entities,
		m.channels,
		m.connections,
		m.templates,
		m.rejectedRows,
		m.readiness,
		m.readinessChecks,
		m.remoteCalls,
		m.remoteDuration,
		m.remoteErrors,
		m.errorsByClass,
		m.errorsByCode,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted() {
	if !m.enabled() {
		return
	}
	m.runsStarted.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Provisioning Metrics

// RecordEntity records the outcome of one processor or service.
func (m *Metrics) RecordEntity(kind, outcome string) {
	if !m.enabled() {
		return
	}
	m.entities.WithLabelValues(kind, outcome).Inc()
}

// RecordChannel records the outcome of one channel.
func (m *Metrics) RecordChannel(role, outcome string) {
	if !m.enabled() {
		return
	}
	m.channels.WithLabelValues(role, outcome).Inc()
}

// RecordConnection records the outcome of one link.
func (m *Metrics) RecordConnection(origin, outcome string) {
	if !m.enabled() {
		return
	}
	m.connections.WithLabelValues(origin, outcome).Inc()
}

// RecordTemplate records one template upload or deletion.
func (m *Metrics) RecordTemplate(operation string) {
	if !m.enabled() {
		return
	}
	m.templates.WithLabelValues(operation).Inc()
}

// RecordRejectedRow records one query row rejected by the planner.
func (m *Metrics) RecordRejectedRow(shape string) {
	if !m.enabled() {
		return
	}
	m.rejectedRows.WithLabelValues(shape).Inc()
}

// RecordReadiness records a service enablement outcome and the number of
// status checks it took.
func (m *Metrics) RecordReadiness(outcome string, checks int) {
	if !m.enabled() {
		return
	}
	m.readiness.WithLabelValues(outcome).Inc()
	m.readinessChecks.Observe(float64(checks))
}

// Remote Metrics

// RecordRemoteCall records one remote API call.
func (m *Metrics) RecordRemoteCall(operation string, duration time.Duration, err error) {
	if !m.enabled() {
		return
	}
	m.remoteCalls.WithLabelValues(operation).Inc()
	m.remoteDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.remoteErrors.WithLabelValues(operation).Inc()
	}
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if !m.enabled() {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Registry returns the private registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if !m.enabled() {
		return nil
	}
	return m.registry
}

// WriteToTextfile writes the collected metrics to path in the Prometheus
// text format, for pickup by a node exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	if !m.enabled() || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
