package metrics

import (
	"github.com/marmos91/ftlgc/pkg/snapshot"
)

// NewSnapshotMetrics creates a Prometheus-backed snapshot.Metrics instance
// for the BadgerDB snapshot store.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or no
// implementation has been linked in.
func NewSnapshotMetrics() snapshot.Metrics {
	if !IsEnabled() || newPrometheusSnapshotMetrics == nil {
		return nil
	}
	return newPrometheusSnapshotMetrics()
}

// newPrometheusSnapshotMetrics is set by pkg/metrics/prometheus.
var newPrometheusSnapshotMetrics func() snapshot.Metrics

// RegisterSnapshotMetricsConstructor registers the Prometheus snapshot store
// metrics constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterSnapshotMetricsConstructor(constructor func() snapshot.Metrics) {
	newPrometheusSnapshotMetrics = constructor
}
