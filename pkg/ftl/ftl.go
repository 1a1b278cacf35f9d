// Package ftl is a page-mapped flash translation layer over the simulated
// NAND pipeline. It owns the block table, both mapping directions and the
// per-die free pools, and it drives the garbage collector.
//
// Host writes are striped across dies round-robin. Each die has one open
// block for host data and one for relocated data, so GC never interleaves
// cold relocated slices with fresh host writes. When a die's free pool falls
// to the GC threshold the FTL runs reclamation cycles on that die before it
// opens another host block.
//
// Thread Safety: all exported methods serialize on one mutex. The collector
// calls back into the FTL (AllocateForGC, EraseBlock) only while that mutex
// is held by the caller that entered the collector, so the callbacks take no
// locks of their own.
package ftl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/ftl/mapping"
	"github.com/marmos91/ftlgc/pkg/gc"
)

// Errors returned by FTL operations.
var (
	// ErrOutOfRange is returned for a logical address beyond the host space.
	ErrOutOfRange = errors.New("ftl: logical slice out of range")

	// ErrUnmapped is returned when reading a slice that was never written or
	// has been trimmed.
	ErrUnmapped = errors.New("ftl: logical slice is not mapped")

	// ErrNoSpace is returned when a die has no free block left for host data
	// and garbage collection could not reclaim one.
	ErrNoSpace = errors.New("ftl: no free block available")

	// ErrBlockInUse is returned when retiring a block that still holds
	// valid data or is being written.
	ErrBlockInUse = errors.New("ftl: block holds valid data")
)

// Pipeline is the NAND request path the FTL submits to. The collector uses
// the embedded gc.Pipeline methods for relocation.
type Pipeline interface {
	gc.Pipeline

	// Buffer returns the bytes of an acquired temp buffer.
	Buffer(buf uint32) []byte

	// SubmitErase queues an erase of block on die.
	SubmitErase(slot uint32, die flash.DieID, block flash.BlockID)

	// Read synchronously reads vsa, checking that it holds expect.
	Read(ctx context.Context, expect flash.LSA, vsa flash.VSA) (flash.LSA, error)

	// Wait blocks until every submitted request has completed.
	Wait()
}

// Metrics receives FTL observations. A nil Metrics disables collection.
type Metrics interface {
	RecordHostWrite(die flash.DieID)
	RecordTrim()
	RecordGCTrigger(die flash.DieID)
	SetFreeBlocks(die flash.DieID, n int)
}

// Config holds FTL tunables.
type Config struct {
	// Overprovision is the fraction of physical slices hidden from the host.
	// Default: 0.125
	Overprovision float64 `mapstructure:"overprovision" validate:"gte=0,lt=1" yaml:"overprovision"`

	// GCThreshold is the free block count per die at or below which the FTL
	// reclaims before opening a new host block.
	// Default: 2
	GCThreshold int `mapstructure:"gc_threshold" validate:"gte=1" yaml:"gc_threshold"`

	// MaxGCCycles bounds the reclamations run for one host block. Zero means
	// BlocksPerDie.
	MaxGCCycles int `mapstructure:"max_gc_cycles" validate:"gte=0" yaml:"max_gc_cycles"`

	// MaxEraseCount retires a block once it reaches this many erases. Zero
	// disables wear-out.
	MaxEraseCount uint32 `mapstructure:"max_erase_count" yaml:"max_erase_count"`
}

// DefaultConfig returns the FTL defaults.
func DefaultConfig() Config {
	return Config{
		Overprovision: 0.125,
		GCThreshold:   2,
	}
}

// Options configures New.
type Options struct {
	Config  Config
	GC      gc.Options
	Metrics Metrics
}

// Stats counts FTL activity since creation.
type Stats struct {
	HostWrites uint64 `json:"host_writes" yaml:"host_writes"`
	GCWrites   uint64 `json:"gc_writes" yaml:"gc_writes"`
	Trims      uint64 `json:"trims" yaml:"trims"`
	Reads      uint64 `json:"reads" yaml:"reads"`
	Erases     uint64 `json:"erases" yaml:"erases"`
	GCRuns     uint64 `json:"gc_runs" yaml:"gc_runs"`
	Retired    uint64 `json:"retired" yaml:"retired"`
}

// WAF returns the write amplification factor: flash programs per host write.
func (s Stats) WAF() float64 {
	if s.HostWrites == 0 {
		return 0
	}
	return float64(s.HostWrites+s.GCWrites) / float64(s.HostWrites)
}

// FTL is the flash translation layer.
type FTL struct {
	mu sync.Mutex

	geo       flash.Geometry
	cfg       Config
	table     *flash.BlockTable
	mapping   *mapping.Table
	pipe      Pipeline
	collector *gc.Collector
	metrics   Metrics

	free     [][]flash.BlockID // FIFO of erased blocks per die
	hostOpen []flash.BlockID
	gcOpen   []flash.BlockID
	nextDie  flash.DieID

	stats Stats
}

// New creates an FTL with every block erased and nothing mapped.
func New(geo flash.Geometry, pipe Pipeline, opts Options) (*FTL, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if pipe == nil {
		return nil, fmt.Errorf("ftl: pipeline is required")
	}

	cfg := opts.Config
	if cfg.GCThreshold <= 0 {
		cfg.GCThreshold = DefaultConfig().GCThreshold
	}
	if cfg.MaxGCCycles <= 0 {
		cfg.MaxGCCycles = int(geo.BlocksPerDie)
	}
	if cfg.Overprovision < 0 || cfg.Overprovision >= 1 {
		return nil, fmt.Errorf("ftl: overprovision %.3f must be in [0, 1)", cfg.Overprovision)
	}
	if uint32(cfg.GCThreshold)+2 > geo.BlocksPerDie {
		return nil, fmt.Errorf("ftl: gc threshold %d leaves no room on a %d block die", cfg.GCThreshold, geo.BlocksPerDie)
	}

	logical := uint32(float64(geo.TotalSlices()) * (1 - cfg.Overprovision))
	if logical == 0 {
		return nil, fmt.Errorf("ftl: overprovision %.3f leaves no logical space", cfg.Overprovision)
	}
	tbl, err := mapping.New(logical, geo.TotalSlices())
	if err != nil {
		return nil, err
	}

	f := &FTL{
		geo:      geo,
		cfg:      cfg,
		table:    flash.NewBlockTable(geo),
		mapping:  tbl,
		pipe:     pipe,
		metrics:  opts.Metrics,
		free:     make([][]flash.BlockID, geo.Dies),
		hostOpen: make([]flash.BlockID, geo.Dies),
		gcOpen:   make([]flash.BlockID, geo.Dies),
	}

	f.collector, err = gc.New(f.table, f.mapping, f, pipe, opts.GC)
	if err != nil {
		return nil, err
	}
	f.resetPools()
	return f, nil
}

// resetPools puts every block of every die in its free FIFO.
func (f *FTL) resetPools() {
	for die := flash.DieID(0); die < f.geo.Dies; die++ {
		f.free[die] = f.free[die][:0]
		for block := flash.BlockID(0); block < f.geo.BlocksPerDie; block++ {
			f.free[die] = append(f.free[die], block)
		}
		f.hostOpen[die] = flash.NoBlock
		f.gcOpen[die] = flash.NoBlock
		f.reportFree(die)
	}
	f.nextDie = 0
}

// Geometry returns the array geometry.
func (f *FTL) Geometry() flash.Geometry {
	return f.geo
}

// LogicalSlices returns the size of the host address space.
func (f *FTL) LogicalSlices() uint32 {
	return f.mapping.LogicalSlices()
}

// Collector returns the garbage collector driven by this FTL.
func (f *FTL) Collector() *gc.Collector {
	return f.collector
}

// Stats returns a copy of the activity counters.
func (f *FTL) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Flush waits for every submitted NAND request to complete.
func (f *FTL) Flush() {
	f.pipe.Wait()
}

func (f *FTL) reportFree(die flash.DieID) {
	if f.metrics != nil {
		f.metrics.SetFreeBlocks(die, len(f.free[die]))
	}
}
