// Package metrics exposes the Prometheus registry and nil-safe constructors
// for the GC and FTL metrics interfaces.
//
// Metrics are opt-in. Until InitRegistry is called every constructor returns
// nil, and components treat a nil metrics value as "do not record", so a run
// without metrics pays nothing.
//
// The Prometheus implementations live in pkg/metrics/prometheus and register
// their constructors here from init, which keeps this package free of an
// import cycle with the implementation.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates a fresh registry with the Go runtime and process
// collectors and enables metrics. Calling it again replaces the registry;
// metrics built against the old one keep recording into it.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mu.Lock()
	registry = reg
	mu.Unlock()
	return reg
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the active registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Disable drops the active registry. Subsequent constructors return nil.
func Disable() {
	mu.Lock()
	registry = nil
	mu.Unlock()
}
