package gc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/gc/policy"
	"github.com/marmos91/ftlgc/pkg/gc/victim"
)

// ============================================================================
// Types
// ============================================================================

// Options configures a Collector.
type Options struct {
	// Policy ranks victims. Nil means Greedy.
	Policy policy.Policy

	// Metrics receives selection and cycle observations. May be nil.
	Metrics Metrics

	// Paranoid runs a full registry check after every mutation and turns any
	// inconsistency into a structural fatal error.
	Paranoid bool
}

// Stats accumulates per-die GC activity since the last Reset.
type Stats struct {
	Cycles        uint64 `json:"cycles" yaml:"cycles"`                 // Completed reclamations
	FastPath      uint64 `json:"fast_path" yaml:"fast_path"`           // Reclamations of fully invalid blocks
	PagesMigrated uint64 `json:"pages_migrated" yaml:"pages_migrated"` // Valid slices relocated
	Erases        uint64 `json:"erases" yaml:"erases"`                 // Blocks handed back to the allocator
}

// Collector owns the victim registry, the aging clock and the policy for
// every die, and drives reclamation through the mapping, allocator and
// pipeline collaborators.
//
// Thread Safety:
// Every exported method takes the affected die's mutex. Different dies can be
// collected concurrently.
type Collector struct {
	geo      flash.Geometry
	table    *flash.BlockTable
	registry *victim.Registry
	clock    *Clock
	policy   policy.Policy

	mapping Mapping
	alloc   Allocator
	pipe    Pipeline
	metrics Metrics

	paranoid bool

	locks []sync.Mutex
	stats []Stats
}

// New creates a Collector over table. The registry starts empty; blocks
// already marked Listed in table are not linked.
func New(table *flash.BlockTable, mapping Mapping, alloc Allocator, pipe Pipeline, opts Options) (*Collector, error) {
	if table == nil {
		return nil, errors.New("gc: block table is required")
	}
	if mapping == nil || alloc == nil || pipe == nil {
		return nil, errors.New("gc: mapping, allocator and pipeline are required")
	}

	p := opts.Policy
	if p == nil {
		p = policy.Greedy{}
	}

	geo := table.Geometry()
	return &Collector{
		geo:      geo,
		table:    table,
		registry: victim.New(table),
		clock:    NewClock(geo),
		policy:   p,
		mapping:  mapping,
		alloc:    alloc,
		pipe:     pipe,
		metrics:  opts.Metrics,
		paranoid: opts.Paranoid,
		locks:    make([]sync.Mutex, geo.Dies),
		stats:    make([]Stats, geo.Dies),
	}, nil
}

// Policy returns the active scoring policy.
func (c *Collector) Policy() policy.Policy {
	return c.policy
}

// Geometry returns the array geometry.
func (c *Collector) Geometry() flash.Geometry {
	return c.geo
}

// ============================================================================
// Lifecycle
// ============================================================================

// Reset empties every bucket and zeroes the aging clock and stats.
//
// The block table is not touched. Callers resetting the whole device reset
// the table first so no record is left in the Listed state.
func (c *Collector) Reset() {
	c.lockAll()
	defer c.unlockAll()

	c.registry.Reset()
	c.clock.Reset()
	clear(c.stats)
}

// ClockState returns the die's current tick and a copy of its baselines.
func (c *Collector) ClockState(die flash.DieID) (uint32, []uint32) {
	c.locks[die].Lock()
	defer c.locks[die].Unlock()
	return c.clock.Now(die), c.clock.Baselines(die)
}

// RestoreClock loads a saved tick and baselines for die.
func (c *Collector) RestoreClock(die flash.DieID, tick uint32, baselines []uint32) {
	c.locks[die].Lock()
	defer c.locks[die].Unlock()
	c.clock.Restore(die, tick, baselines)
}

// ============================================================================
// Registry maintenance
// ============================================================================

// NotifyBlockInvalidated records that block now holds invalid slices.
//
// A listed block is moved to the bucket for the new count. An open block
// only has its count updated; it is listed when it fills. Any count above
// zero is a dirtying event: the die's clock advances and, for policies that
// stamp on dirty, the block's baseline moves to the new tick.
func (c *Collector) NotifyBlockInvalidated(die flash.DieID, block flash.BlockID, invalid uint32) error {
	if invalid > c.geo.PagesPerBlock {
		return c.fatal(structural(die, block,
			fmt.Errorf("invalid count %d exceeds %d pages per block", invalid, c.geo.PagesPerBlock)))
	}

	c.locks[die].Lock()
	defer c.locks[die].Unlock()

	rec := c.table.Get(die, block)
	listed := false
	switch rec.State {
	case flash.StateListed:
		if err := c.registry.Detach(die, block); err != nil {
			return c.fatal(structural(die, block, err))
		}
		listed = true
	case flash.StateOpen:
	default:
		return c.fatal(structural(die, block,
			fmt.Errorf("%w: cannot invalidate a %s block", victim.ErrNotListed, rec.State)))
	}

	rec.InvalidSlices = invalid
	if invalid > 0 {
		c.clock.Advance(die)
		if c.policy.StampOnDirty() {
			c.clock.Stamp(die, block)
		}
	}

	if listed {
		if err := c.registry.Insert(die, block, invalid); err != nil {
			return c.fatal(structural(die, block, err))
		}
	}
	return c.verify(die)
}

// List links a block that just filled into the bucket for its current
// invalid count, which may be zero.
func (c *Collector) List(die flash.DieID, block flash.BlockID) error {
	c.locks[die].Lock()
	defer c.locks[die].Unlock()

	if err := c.listLocked(die, block); err != nil {
		return c.fatal(err)
	}
	return c.verify(die)
}

func (c *Collector) listLocked(die flash.DieID, block flash.BlockID) error {
	rec := c.table.Get(die, block)
	if rec.State != flash.StateOpen {
		return structural(die, block, fmt.Errorf("cannot list a %s block", rec.State))
	}
	if err := c.registry.Insert(die, block, rec.InvalidSlices); err != nil {
		return structural(die, block, err)
	}
	return nil
}

// Unlist removes a listed block from the registry and marks it bad, so it
// is never selected or allocated again.
func (c *Collector) Unlist(die flash.DieID, block flash.BlockID) error {
	c.locks[die].Lock()
	defer c.locks[die].Unlock()

	if err := c.registry.Detach(die, block); err != nil {
		return c.fatal(structural(die, block, err))
	}
	c.table.Get(die, block).State = flash.StateBad

	logger.Warn("GC: block retired", logger.KeyDie, die, logger.KeyBlock, block)
	return c.verify(die)
}

// ============================================================================
// Introspection
// ============================================================================

// Candidates returns the number of blocks on die with at least one invalid
// slice.
func (c *Collector) Candidates(die flash.DieID) int {
	c.locks[die].Lock()
	defer c.locks[die].Unlock()
	return c.registry.Candidates(die)
}

// Check verifies the registry invariants for die.
func (c *Collector) Check(die flash.DieID) error {
	c.locks[die].Lock()
	defer c.locks[die].Unlock()
	return c.registry.Check(die)
}

// Age returns the ticks since block's baseline.
func (c *Collector) Age(die flash.DieID, block flash.BlockID) uint32 {
	c.locks[die].Lock()
	defer c.locks[die].Unlock()
	return c.clock.Age(die, block)
}

// Now returns the die's current tick.
func (c *Collector) Now(die flash.DieID) uint32 {
	c.locks[die].Lock()
	defer c.locks[die].Unlock()
	return c.clock.Now(die)
}

// Score evaluates block under the active policy using its current counts.
func (c *Collector) Score(die flash.DieID, block flash.BlockID) uint32 {
	c.locks[die].Lock()
	defer c.locks[die].Unlock()
	rec := c.table.Get(die, block)
	return c.policy.Score(c.candidate(die, block, rec.InvalidSlices))
}

// Stats returns the accumulated stats for die.
func (c *Collector) Stats(die flash.DieID) Stats {
	c.locks[die].Lock()
	defer c.locks[die].Unlock()
	return c.stats[die]
}

// ============================================================================
// Helpers
// ============================================================================

func (c *Collector) candidate(die flash.DieID, block flash.BlockID, invalid uint32) policy.Candidate {
	valid := uint32(0)
	if invalid < c.geo.PagesPerBlock {
		valid = c.geo.PagesPerBlock - invalid
	}
	return policy.Candidate{
		Invalid:       invalid,
		Valid:         valid,
		Age:           c.clock.Age(die, block),
		Wear:          c.table.Get(die, block).EraseCount,
		PagesPerBlock: c.geo.PagesPerBlock,
	}
}

// verify runs the registry check in paranoid mode. Must hold the die lock.
func (c *Collector) verify(die flash.DieID) error {
	if !c.paranoid {
		return nil
	}
	if err := c.registry.Check(die); err != nil {
		return c.fatal(structural(die, flash.NoBlock, err))
	}
	return nil
}

// fatal logs and counts a FatalError on its way out. Other errors pass
// through untouched.
func (c *Collector) fatal(err error) error {
	var fe *FatalError
	if !errors.As(err, &fe) {
		return err
	}
	logger.Error("GC: fatal error",
		logger.KeyDie, fe.Die,
		logger.KeyBlock, fe.Block,
		logger.KeyKind, fe.Kind.String(),
		logger.KeyError, fe.Err)
	if c.metrics != nil {
		c.metrics.RecordFatal(fe.Die, fe.Kind.String())
	}
	return err
}

func (c *Collector) lockAll() {
	for i := range c.locks {
		c.locks[i].Lock()
	}
}

func (c *Collector) unlockAll() {
	for i := len(c.locks) - 1; i >= 0; i-- {
		c.locks[i].Unlock()
	}
}
