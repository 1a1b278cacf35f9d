package metrics

import (
	"github.com/marmos91/ftlgc/pkg/ftl"
)

// NewFTLMetrics creates a Prometheus-backed ftl.Metrics instance.
//
// Returns nil if metrics are not enabled or no implementation is linked in.
func NewFTLMetrics() ftl.Metrics {
	if !IsEnabled() || newPrometheusFTLMetrics == nil {
		return nil
	}
	return newPrometheusFTLMetrics()
}

// newPrometheusFTLMetrics is set by pkg/metrics/prometheus.
var newPrometheusFTLMetrics func() ftl.Metrics

// RegisterFTLMetricsConstructor registers the Prometheus FTL metrics
// constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterFTLMetricsConstructor(constructor func() ftl.Metrics) {
	newPrometheusFTLMetrics = constructor
}
