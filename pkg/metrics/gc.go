package metrics

import (
	"github.com/marmos91/ftlgc/pkg/gc"
)

// NewGCMetrics creates a Prometheus-backed gc.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or no
// implementation has been linked in. Pass the result straight to
// gc.Options; a nil value disables recording.
//
// Example usage:
//
//	metrics.InitRegistry()
//	collector, err := gc.New(table, mapping, ftl, pipeline, gc.Options{
//		Policy:  policy.CAT{},
//		Metrics: metrics.NewGCMetrics(),
//	})
func NewGCMetrics() gc.Metrics {
	if !IsEnabled() || newPrometheusGCMetrics == nil {
		return nil
	}
	return newPrometheusGCMetrics()
}

// newPrometheusGCMetrics is set by pkg/metrics/prometheus.
var newPrometheusGCMetrics func() gc.Metrics

// RegisterGCMetricsConstructor registers the Prometheus GC metrics constructor.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterGCMetricsConstructor(constructor func() gc.Metrics) {
	newPrometheusGCMetrics = constructor
}
