// Package metrics records deploy and publish counters on a private
// Prometheus registry and writes them in textfile-collector format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wetwire_site"

// Object actions.
const (
	ActionUpload = "upload"
	ActionDelete = "delete"
	ActionSkip   = "skip"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Objects       *prometheus.CounterVec
	BytesUploaded prometheus.Counter
	Errors        *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	Invalidations prometheus.Counter
	LastSuccess   prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Objects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "publish",
				Name:      "objects_total",
				Help:      "Objects handled by the publisher, by action",
			},
			[]string{"action"},
		),
		BytesUploaded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "publish",
				Name:      "uploaded_bytes_total",
				Help:      "Bytes uploaded to the site bucket",
			},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Failed operations, by operation",
			},
			[]string{"operation"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of deploy, publish and invalidation steps",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7min
			},
			[]string{"operation"},
		),
		Invalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cdn",
				Name:      "invalidations_total",
				Help:      "CloudFront invalidations created",
			},
		),
		LastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful command",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Object counts one object handled with action.
func (m *Metrics) Object(action string, bytes int64) {
	if m == nil {
		return
	}
	m.Objects.WithLabelValues(action).Inc()
	if action == ActionUpload && bytes > 0 {
		m.BytesUploaded.Add(float64(bytes))
	}
}

// Error counts one failed operation.
func (m *Metrics) Error(operation string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(operation).Inc()
}

// Invalidation counts one CDN invalidation.
func (m *Metrics) Invalidation() {
	if m == nil {
		return
	}
	m.Invalidations.Inc()
}

// Time observes the time since start for operation.
func (m *Metrics) Time(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Succeeded stamps the last-success gauge.
func (m *Metrics) Succeeded(now time.Time) {
	if m == nil {
		return
	}
	m.LastSuccess.Set(float64(now.Unix()))
}

// WriteFile writes every metric to path in the node-exporter textfile format.
// An empty path is a no-op.
func (m *Metrics) WriteFile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
