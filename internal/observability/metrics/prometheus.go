package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
)

// PrometheusMetrics records worker and engine activity on a private registry
type PrometheusMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	config   *PrometheusConfig

	jobsTotal              *prometheus.CounterVec
	jobDuration            *prometheus.HistogramVec
	jobsActive             prometheus.Gauge
	rowsProcessed          *prometheus.CounterVec
	rowsSuppressed         *prometheus.CounterVec
	diagnosticsTotal       *prometheus.CounterVec
	storageOperationsTotal *prometheus.CounterVec
	storageDuration        *prometheus.HistogramVec
	queueDepth             *prometheus.GaugeVec
	errorsTotal            *prometheus.CounterVec
}

// PrometheusConfig configures Prometheus metrics
type PrometheusConfig struct {
	Enabled        bool              `json:"enabled" mapstructure:"enabled"`
	Port           int               `json:"port" mapstructure:"port"`
	Path           string            `json:"path" mapstructure:"path"`
	Namespace      string            `json:"namespace" mapstructure:"namespace"`
	Subsystem      string            `json:"subsystem" mapstructure:"subsystem"`
	Labels         map[string]string `json:"labels" mapstructure:"labels"`
	RuntimeMetrics bool              `json:"runtime_metrics" mapstructure:"runtime_metrics"`
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(config *PrometheusConfig, logger *logrus.Logger) (*PrometheusMetrics, error) {
	if config == nil {
		config = getDefaultPrometheusConfig()
	}

	if logger == nil {
		logger = logrus.New()
	}

	pm := &PrometheusMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		config:   config,
	}

	pm.initializeMetrics()

	if err := pm.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return pm, nil
}

// Handler serves the registry in the Prometheus exposition format
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorLog:          pm.logger,
	})
}

// RecordJob counts a finished job and observes its duration
func (pm *PrometheusMetrics) RecordJob(method, status string, duration time.Duration) {
	pm.jobsTotal.WithLabelValues(method, status).Inc()
	pm.jobDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// JobStarted and JobFinished track in-flight jobs
func (pm *PrometheusMetrics) JobStarted() {
	pm.jobsActive.Inc()
}

func (pm *PrometheusMetrics) JobFinished() {
	pm.jobsActive.Dec()
}

// RecordRows counts rows anonymized by a method and rows it had to suppress
func (pm *PrometheusMetrics) RecordRows(method string, processed, suppressed int) {
	pm.rowsProcessed.WithLabelValues(method).Add(float64(processed))
	if suppressed > 0 {
		pm.rowsSuppressed.WithLabelValues(method).Add(float64(suppressed))
	}
}

// RecordDiagnostic counts engine diagnostics by level and stage
func (pm *PrometheusMetrics) RecordDiagnostic(level, stage string) {
	pm.diagnosticsTotal.WithLabelValues(level, stage).Inc()
}

// RecordStorageOperation counts a storage call against a backend
func (pm *PrometheusMetrics) RecordStorageOperation(backend, operation, status string, duration time.Duration) {
	pm.storageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	pm.storageDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// SetQueueDepth reports the number of payloads waiting in a queue
func (pm *PrometheusMetrics) SetQueueDepth(queue string, depth float64) {
	pm.queueDepth.WithLabelValues(queue).Set(depth)
}

// RecordError counts an error by component and code
func (pm *PrometheusMetrics) RecordError(component, code string) {
	if code == "" {
		code = "unknown"
	}
	pm.errorsTotal.WithLabelValues(component, code).Inc()
}

// GetRegistry returns the underlying registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// GetConfig returns the configuration
func (pm *PrometheusMetrics) GetConfig() *PrometheusConfig {
	return pm.config
}

func (pm *PrometheusMetrics) initializeMetrics() {
	namespace := pm.config.Namespace
	subsystem := pm.config.Subsystem
	labels := prometheus.Labels(pm.config.Labels)

	pm.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "jobs_total",
			Help:        "Total number of anonymization jobs by method and final status",
			ConstLabels: labels,
		},
		[]string{"method", "status"},
	)

	pm.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "job_duration_seconds",
			Help:        "Anonymization job duration in seconds",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			ConstLabels: labels,
		},
		[]string{"method"},
	)

	pm.jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "jobs_active",
			Help:        "Number of jobs currently being processed",
			ConstLabels: labels,
		},
	)

	pm.rowsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "rows_processed_total",
			Help:        "Total number of rows anonymized",
			ConstLabels: labels,
		},
		[]string{"method"},
	)

	pm.rowsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "rows_suppressed_total",
			Help:        "Total number of rows suppressed to satisfy k-anonymity or l-diversity",
			ConstLabels: labels,
		},
		[]string{"method"},
	)

	pm.diagnosticsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "diagnostics_total",
			Help:        "Engine diagnostics by level and stage",
			ConstLabels: labels,
		},
		[]string{"level", "stage"},
	)

	pm.storageOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "storage_operations_total",
			Help:        "Total number of storage operations",
			ConstLabels: labels,
		},
		[]string{"backend", "operation", "status"},
	)

	pm.storageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "storage_operation_duration_seconds",
			Help:        "Storage operation duration in seconds",
			Buckets:     []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
			ConstLabels: labels,
		},
		[]string{"backend", "operation"},
	)

	pm.queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "queue_depth",
			Help:        "Payloads waiting in a queue",
			ConstLabels: labels,
		},
		[]string{"queue"},
	)

	pm.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "errors_total",
			Help:        "Total number of errors by component and code",
			ConstLabels: labels,
		},
		[]string{"component", "code"},
	)
}

func (pm *PrometheusMetrics) registerMetrics() error {
	collectorsToRegister := []prometheus.Collector{
		pm.jobsTotal,
		pm.jobDuration,
		pm.jobsActive,
		pm.rowsProcessed,
		pm.rowsSuppressed,
		pm.diagnosticsTotal,
		pm.storageOperationsTotal,
		pm.storageDuration,
		pm.queueDepth,
		pm.errorsTotal,
	}

	if pm.config.RuntimeMetrics {
		collectorsToRegister = append(collectorsToRegister,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	for _, collector := range collectorsToRegister {
		if err := pm.registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

func getDefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Enabled:        true,
		Port:           constants.DefaultMetricsPort,
		Path:           "/metrics",
		Namespace:      constants.AppName,
		Subsystem:      "worker",
		Labels:         make(map[string]string),
		RuntimeMetrics: true,
	}
}
