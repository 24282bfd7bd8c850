// Package metrics provides Prometheus metrics for the turnover prediction service.
package metrics

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// Settings is the flat form of the options, as read from configuration.
// Zero fields keep the Manager defaults.
type Settings struct {
	Enabled         bool
	Namespace       string
	Subsystem       string
	Prefix          string
	Buckets         []float64
	Labels          map[string]string
	RefreshInterval time.Duration
}

// Options expands s into the equivalent Option list.
func (s Settings) Options() []Option {
	return []Option{
		WithMetricsEnabled(s.Enabled),
		WithNamespace(s.Namespace),
		WithSubsystem(s.Subsystem),
		WithMetricPrefix(s.Prefix),
		WithHistogramBuckets(s.Buckets),
		WithCustomLabels(s.Labels),
		WithRefreshInterval(s.RefreshInterval),
	}
}

// WithNamespace sets the namespace of every metric name.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if ns := strings.TrimSpace(namespace); ns != "" {
			m.namespace = ns
		}
	}
}

// WithSubsystem sets the subsystem of every metric name.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if sub := strings.TrimSpace(subsystem); sub != "" {
			m.subsystem = sub
		}
	}
}

// WithHistogramBuckets sets the latency buckets. Buckets that are not
// strictly increasing are ignored.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) == 0 || !slices.IsSorted(buckets) {
			return
		}
		if len(slices.Compact(slices.Clone(buckets))) != len(buckets) {
			return
		}
		m.histogramBuckets = slices.Clone(buckets)
	}
}

// WithMetricsEnabled turns recording on or off. System gauges are always
// refreshed.
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) {
		m.enabled = enabled
	}
}

// WithRefreshInterval sets how often the system gauges are refreshed.
func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.refreshInterval = interval
		}
	}
}

// WithCustomLabels attaches constant labels to every metric.
func WithCustomLabels(labels map[string]string) Option {
	return func(m *Manager) {
		if len(labels) > 0 {
			m.customLabels = maps.Clone(labels)
		}
	}
}

// WithMetricPrefix prepends prefix to every metric name after the subsystem.
func WithMetricPrefix(prefix string) Option {
	return func(m *Manager) {
		if p := strings.Trim(prefix, "_ "); p != "" {
			m.metricPrefix = p
		}
	}
}

// WithPrometheusRegistry registers the metrics with registry instead of the
// default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
