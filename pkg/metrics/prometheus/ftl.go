package prometheus

import (
	"sync"

	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/ftl"
	"github.com/marmos91/ftlgc/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ftlMetrics is the Prometheus implementation of ftl.Metrics.
type ftlMetrics struct {
	hostWrites *prometheus.CounterVec
	trims      prometheus.Counter
	freeBlocks *prometheus.GaugeVec
	gcRuns     *prometheus.CounterVec
}

var (
	ftlMu    sync.Mutex
	ftlReg   *prometheus.Registry
	ftlCache *ftlMetrics
)

// NewFTLMetrics creates a new Prometheus-backed ftl.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewFTLMetrics() ftl.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	ftlMu.Lock()
	defer ftlMu.Unlock()
	if ftlCache != nil && ftlReg == reg {
		return ftlCache
	}

	ftlCache = &ftlMetrics{
		hostWrites: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftlgc_ftl_host_writes_total",
				Help: "Total number of host slice writes by die",
			},
			[]string{"die"},
		),
		trims: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ftlgc_ftl_trims_total",
				Help: "Total number of logical slices trimmed",
			},
		),
		freeBlocks: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ftlgc_ftl_free_blocks",
				Help: "Number of erased blocks available for allocation",
			},
			[]string{"die"},
		),
		gcRuns: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftlgc_ftl_gc_triggers_total",
				Help: "Total number of times the free pool fell to the GC threshold",
			},
			[]string{"die"},
		),
	}
	ftlReg = reg
	return ftlCache
}

func (m *ftlMetrics) RecordHostWrite(die flash.DieID) {
	if m == nil {
		return
	}
	m.hostWrites.WithLabelValues(dieLabel(die)).Inc()
}

func (m *ftlMetrics) RecordTrim() {
	if m == nil {
		return
	}
	m.trims.Inc()
}

func (m *ftlMetrics) RecordGCTrigger(die flash.DieID) {
	if m == nil {
		return
	}
	m.gcRuns.WithLabelValues(dieLabel(die)).Inc()
}

func (m *ftlMetrics) SetFreeBlocks(die flash.DieID, n int) {
	if m == nil {
		return
	}
	m.freeBlocks.WithLabelValues(dieLabel(die)).Set(float64(n))
}
