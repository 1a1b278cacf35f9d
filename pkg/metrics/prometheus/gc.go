package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/gc"
	"github.com/marmos91/ftlgc/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterGCMetricsConstructor(NewGCMetrics)
	metrics.RegisterFTLMetricsConstructor(NewFTLMetrics)
}

// gcMetrics is the Prometheus implementation of gc.Metrics.
type gcMetrics struct {
	selections        *prometheus.CounterVec
	selectionDuration *prometheus.HistogramVec
	victimInvalid     *prometheus.HistogramVec
	victimScore       *prometheus.HistogramVec
	scanned           *prometheus.HistogramVec
	cycles            *prometheus.CounterVec
	cycleDuration     *prometheus.HistogramVec
	migrated          *prometheus.CounterVec
	fatal             *prometheus.CounterVec
	candidates        *prometheus.GaugeVec
}

// One instance per registry: a second promauto registration of the same
// names would panic, and concurrent runs share the collectors through the
// policy label.
var (
	gcMu    sync.Mutex
	gcReg   *prometheus.Registry
	gcCache *gcMetrics
)

// NewGCMetrics creates a new Prometheus-backed gc.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewGCMetrics() gc.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	gcMu.Lock()
	defer gcMu.Unlock()
	if gcCache != nil && gcReg == reg {
		return gcCache
	}

	gcCache = &gcMetrics{
		selections: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftlgc_gc_victim_selections_total",
				Help: "Total number of victim blocks selected by die and policy",
			},
			[]string{"die", "policy"},
		),
		selectionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "ftlgc_gc_selection_duration_microseconds",
				Help: "Time spent choosing a victim in microseconds",
				Buckets: []float64{
					0.5,  // greedy bucket head
					1,    // 1us
					5,    // 5us
					10,   // 10us
					50,   // 50us
					100,  // 100us - full scan of a small die
					500,  // 500us
					1000, // 1ms - full scan of a large die
					5000, // 5ms
				},
			},
			[]string{"policy"},
		),
		victimInvalid: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftlgc_gc_victim_invalid_slices",
				Help:    "Distribution of invalid slice counts of selected victims",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 .. 2048 pages per block
			},
			[]string{"policy"},
		),
		victimScore: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftlgc_gc_victim_score",
				Help:    "Distribution of scores of selected victims",
				Buckets: prometheus.ExponentialBuckets(1, 4, 16),
			},
			[]string{"policy"},
		),
		scanned: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftlgc_gc_candidates_scanned",
				Help:    "Number of candidates examined per selection",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
			[]string{"policy"},
		),
		cycles: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftlgc_gc_cycles_total",
				Help: "Total number of completed reclamations by die, policy and path",
			},
			[]string{"die", "policy", "path"}, // path: "fast", "migrate"
		),
		cycleDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "ftlgc_gc_cycle_duration_milliseconds",
				Help: "Duration of a reclamation cycle in milliseconds",
				Buckets: []float64{
					0.01, // 10us - fast path
					0.1,  // 100us
					0.5,  // 500us
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms - full block migration
					100,  // 100ms
					500,  // 500ms
				},
			},
			[]string{"policy"},
		),
		migrated: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftlgc_gc_pages_migrated_total",
				Help: "Total number of valid pages relocated by GC",
			},
			[]string{"die", "policy"},
		),
		fatal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftlgc_gc_fatal_errors_total",
				Help: "Total number of fatal GC errors by die and kind",
			},
			[]string{"die", "kind"},
		),
		candidates: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ftlgc_gc_candidates",
				Help: "Number of listed blocks with at least one invalid slice",
			},
			[]string{"die"},
		),
	}
	gcReg = reg
	return gcCache
}

func dieLabel(die flash.DieID) string {
	return strconv.FormatUint(uint64(die), 10)
}

func (m *gcMetrics) ObserveSelection(die flash.DieID, policy string, invalid, score uint32, scanned int, duration time.Duration) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(dieLabel(die), policy).Inc()
	m.selectionDuration.WithLabelValues(policy).Observe(float64(duration.Nanoseconds()) / 1e3)
	m.victimInvalid.WithLabelValues(policy).Observe(float64(invalid))
	m.victimScore.WithLabelValues(policy).Observe(float64(score))
	m.scanned.WithLabelValues(policy).Observe(float64(scanned))
}

func (m *gcMetrics) ObserveCycle(die flash.DieID, policy string, migrated int, fastPath bool, duration time.Duration) {
	if m == nil {
		return
	}
	path := "migrate"
	if fastPath {
		path = "fast"
	}
	m.cycles.WithLabelValues(dieLabel(die), policy, path).Inc()
	m.cycleDuration.WithLabelValues(policy).Observe(float64(duration.Nanoseconds()) / 1e6)
	if migrated > 0 {
		m.migrated.WithLabelValues(dieLabel(die), policy).Add(float64(migrated))
	}
}

func (m *gcMetrics) RecordFatal(die flash.DieID, kind string) {
	if m == nil {
		return
	}
	m.fatal.WithLabelValues(dieLabel(die), kind).Inc()
}

func (m *gcMetrics) SetCandidates(die flash.DieID, n int) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(dieLabel(die)).Set(float64(n))
}
