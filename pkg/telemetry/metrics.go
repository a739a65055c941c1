package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the OpenLaunch lifecycle engine.
// With metrics disabled every recording method is a no-op.
type Metrics struct {
	config MetricsConfig

	// Workflow metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	stepDuration  *prometheus.HistogramVec

	// Error and recovery metrics
	errorsByKind *prometheus.CounterVec
	recoveries   *prometheus.CounterVec

	// Detector metrics
	detectorProbes *prometheus.CounterVec

	// System metrics
	activeRuns prometheus.Gauge

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

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_runs_started_total",
				Help:      "Total number of workflow runs started",
			},
			[]string{"transition"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_runs_completed_total",
				Help:      "Total number of workflow runs completed",
			},
			[]string{"transition", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workflow_run_duration_seconds",
				Help:      "Duration of workflow run execution in seconds",
				Buckets:   buckets,
			},
			[]string{"transition"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workflow_step_duration_seconds",
				Help:      "Duration of individual workflow steps in seconds",
				Buckets:   buckets,
			},
			[]string{"transition", "step"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_errors_total",
				Help:      "Total number of workflow failures by failure kind",
			},
			[]string{"kind"},
		),
		recoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovery_classifications_total",
				Help:      "Total number of recovery classifications by strategy",
			},
			[]string{"strategy", "recovered"},
		),
		detectorProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detector_probes_total",
				Help:      "Total number of state detector probes",
			},
			[]string{"state", "matched"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_workflow_runs",
				Help:      "Number of workflow runs currently executing",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.stepDuration,
		m.errorsByKind,
		m.recoveries,
		m.detectorProbes,
		m.activeRuns,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// Workflow Metrics

// RecordRunStarted increments the started counter and the active gauge.
func (m *Metrics) RecordRunStarted(transition string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(transition).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records the outcome and duration of a finished run.
func (m *Metrics) RecordRunCompleted(transition, status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(transition, status).Inc()
	m.runDuration.WithLabelValues(transition).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// RecordStep records the duration of one workflow step.
func (m *Metrics) RecordStep(transition, step string, duration time.Duration) {
	if m.stepDuration == nil {
		return
	}
	m.stepDuration.WithLabelValues(transition, step).Observe(duration.Seconds())
}

// Error Metrics

// RecordError records a workflow failure by kind.
func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// RecordRecovery records a recovery classification.
func (m *Metrics) RecordRecovery(strategy string, recovered bool) {
	if m.recoveries == nil {
		return
	}
	m.recoveries.WithLabelValues(strategy, strconv.FormatBool(recovered)).Inc()
}

// Detector Metrics

// RecordDetectorProbe records a detector probe and whether it matched.
func (m *Metrics) RecordDetectorProbe(state string, matched bool) {
	if m.detectorProbes == nil {
		return
	}
	m.detectorProbes.WithLabelValues(state, strconv.FormatBool(matched)).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics. It returns
// immediately; the server runs until the process exits.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
