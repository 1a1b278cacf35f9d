package sim

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/ftl"
	"github.com/marmos91/ftlgc/pkg/gc"
	"github.com/marmos91/ftlgc/pkg/nand"
)

// Report summarizes a completed run.
type Report struct {
	RunID    string         `json:"run_id" yaml:"run_id"`
	Policy   string         `json:"policy" yaml:"policy"`
	Workload string         `json:"workload" yaml:"workload"`
	Geometry flash.Geometry `json:"geometry" yaml:"geometry"`
	Commands uint64         `json:"commands" yaml:"commands"`
	Elapsed  time.Duration  `json:"elapsed" yaml:"elapsed"`

	Stats    ftl.Stats        `json:"stats" yaml:"stats"`
	Wear     flash.EraseStats `json:"wear" yaml:"wear"`
	GC       gc.Stats         `json:"gc" yaml:"gc"`
	Pipeline nand.Stats       `json:"pipeline" yaml:"pipeline"`
	Medium   nand.MediumStats `json:"medium" yaml:"medium"`
	Status   ftl.Status       `json:"status" yaml:"-"`
}

func newReport(r *Run, f *ftl.FTL, pipe *nand.Pipeline, elapsed time.Duration) *Report {
	status := f.Status()
	rep := &Report{
		RunID:    r.id,
		Policy:   r.cfg.Policy,
		Workload: r.cfg.Workload.Kind,
		Geometry: r.cfg.Geometry,
		Commands: r.total.Load(),
		Elapsed:  elapsed,
		Stats:    status.Stats,
		Wear:     status.Wear,
		Pipeline: pipe.Stats(),
		Medium:   pipe.Medium().Stats(),
		Status:   status,
	}
	for _, ds := range status.Dies {
		rep.GC.Cycles += ds.GC.Cycles
		rep.GC.FastPath += ds.GC.FastPath
		rep.GC.PagesMigrated += ds.GC.PagesMigrated
		rep.GC.Erases += ds.GC.Erases
	}
	return rep
}

// WAF returns the write amplification factor of the run.
func (r *Report) WAF() float64 {
	return r.Stats.WAF()
}

// WearSpread returns the difference between the most and least erased
// blocks.
func (r *Report) WearSpread() uint32 {
	return r.Wear.Max - r.Wear.Min
}

// MigratedPerCycle returns the mean number of slices relocated per
// reclamation.
func (r *Report) MigratedPerCycle() float64 {
	if r.GC.Cycles == 0 {
		return 0
	}
	return float64(r.GC.PagesMigrated) / float64(r.GC.Cycles)
}

// Pairs returns the report as key-value rows for display.
func (r *Report) Pairs() [][2]string {
	g := r.Geometry
	return [][2]string{
		{"Run", r.RunID},
		{"Policy", r.Policy},
		{"Workload", r.Workload},
		{"Array", fmt.Sprintf("%d dies x %d blocks x %d pages (%s)",
			g.Dies, g.BlocksPerDie, g.PagesPerBlock,
			humanize.IBytes(uint64(g.TotalSlices())*uint64(g.PageSize)))},
		{"Commands", humanize.Comma(int64(r.Commands))},
		{"Elapsed", r.Elapsed.Round(time.Millisecond).String()},
		{"Host writes", humanize.Comma(int64(r.Stats.HostWrites))},
		{"GC writes", humanize.Comma(int64(r.Stats.GCWrites))},
		{"Trims", humanize.Comma(int64(r.Stats.Trims))},
		{"Reads", humanize.Comma(int64(r.Stats.Reads))},
		{"WAF", fmt.Sprintf("%.3f", r.WAF())},
		{"GC cycles", fmt.Sprintf("%s (%s fast path)",
			humanize.Comma(int64(r.GC.Cycles)), humanize.Comma(int64(r.GC.FastPath)))},
		{"Migrated/cycle", fmt.Sprintf("%.2f", r.MigratedPerCycle())},
		{"Erases", humanize.Comma(int64(r.Stats.Erases))},
		{"Wear", fmt.Sprintf("min %d / mean %.1f / max %d", r.Wear.Min, r.Wear.Mean, r.Wear.Max)},
		{"Retired blocks", humanize.Comma(int64(r.Stats.Retired))},
		{"NAND requests", fmt.Sprintf("%s (%s failed)",
			humanize.Comma(int64(r.Pipeline.Completed)), humanize.Comma(int64(r.Pipeline.Failed)))},
	}
}

// Comparison is a set of reports over the same workload, one per policy.
type Comparison []*Report

// Headers returns the comparison table columns.
func (c Comparison) Headers() []string {
	return []string{"POLICY", "WAF", "GC WRITES", "CYCLES", "FAST PATH", "MIGRATED/CYCLE", "ERASES", "WEAR MIN", "WEAR MAX", "ELAPSED"}
}

// Rows returns one row per report.
func (c Comparison) Rows() [][]string {
	rows := make([][]string, 0, len(c))
	for _, r := range c {
		rows = append(rows, []string{
			r.Policy,
			fmt.Sprintf("%.3f", r.WAF()),
			humanize.Comma(int64(r.Stats.GCWrites)),
			humanize.Comma(int64(r.GC.Cycles)),
			humanize.Comma(int64(r.GC.FastPath)),
			fmt.Sprintf("%.2f", r.MigratedPerCycle()),
			humanize.Comma(int64(r.Stats.Erases)),
			fmt.Sprintf("%d", r.Wear.Min),
			fmt.Sprintf("%d", r.Wear.Max),
			r.Elapsed.Round(time.Millisecond).String(),
		})
	}
	return rows
}

// Best returns the report with the lowest write amplification, or nil for
// an empty comparison.
func (c Comparison) Best() *Report {
	var best *Report
	for _, r := range c {
		if best == nil || r.WAF() < best.WAF() {
			best = r
		}
	}
	return best
}
