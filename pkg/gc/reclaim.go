package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/internal/telemetry"
	"github.com/marmos91/ftlgc/pkg/flash"
)

// CycleStats describes one reclamation.
type CycleStats struct {
	Die      flash.DieID
	Victim   flash.BlockID
	Invalid  uint32        // Invalid slices at selection time
	Score    uint32        // Winning policy score
	Age      uint32        // Victim age at selection time
	Wear     uint32        // Victim erase count before this erase
	Migrated int           // Valid slices relocated
	FastPath bool          // Victim was fully invalid
	Duration time.Duration // Wall time from selection to erase submission
}

// migration holds the resources reserved for relocating one slice.
type migration struct {
	lsa       flash.LSA
	src       flash.VSA
	dst       flash.VSA
	readSlot  uint32
	writeSlot uint32
	buf       uint32
}

// RunGarbageCollection reclaims one block on die.
//
// The victim is chosen by the active policy. A fully invalid victim is erased
// directly. Otherwise every slice still owned by its logical address is read
// into a temp buffer, written to a fresh slice on the same die, and both
// mapping directions are repointed before the block is erased. The victim's
// age baseline is then reset to the current tick.
//
// Requests are only submitted; completion is the pipeline's concern.
//
// If ctx is cancelled before the erase is submitted, the victim goes back
// into the registry with its invalid count raised by the slices already
// moved, and the context error is returned.
func (c *Collector) RunGarbageCollection(ctx context.Context, die flash.DieID) (*CycleStats, error) {
	ctx, span := telemetry.StartGCSpan(ctx, telemetry.SpanGCCycle, die, c.policy.Name())
	defer span.End()

	c.locks[die].Lock()
	defer c.locks[die].Unlock()

	start := time.Now()

	sel, err := c.selectLocked(die)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, c.fatal(err)
	}

	rec := c.table.Get(die, sel.block)
	stats := &CycleStats{
		Die:     die,
		Victim:  sel.block,
		Invalid: sel.invalid,
		Score:   sel.score,
		Age:     sel.age,
		Wear:    rec.EraseCount,
	}
	telemetry.SetAttributes(ctx,
		telemetry.Block(sel.block),
		telemetry.Invalid(sel.invalid),
		telemetry.Score(sel.score))

	if sel.invalid == c.geo.PagesPerBlock {
		stats.FastPath = true
	} else {
		migrated, err := c.migrate(ctx, die, sel.block)
		stats.Migrated = migrated
		if err != nil {
			telemetry.RecordError(ctx, err)
			if IsFatal(err) {
				return stats, c.fatal(err)
			}
			return stats, c.abort(die, sel.block, migrated, err)
		}
	}

	if err := c.alloc.EraseBlock(ctx, die, sel.block); err != nil {
		telemetry.RecordError(ctx, err)
		return stats, c.abort(die, sel.block, stats.Migrated, fmt.Errorf("gc: erase block %d on die %d: %w", sel.block, die, err))
	}
	c.clock.Stamp(die, sel.block)

	stats.Duration = time.Since(start)

	s := &c.stats[die]
	s.Cycles++
	s.Erases++
	s.PagesMigrated += uint64(stats.Migrated)
	if stats.FastPath {
		s.FastPath++
	}

	if c.metrics != nil {
		c.metrics.ObserveCycle(die, c.policy.Name(), stats.Migrated, stats.FastPath, stats.Duration)
	}
	telemetry.SetAttributes(ctx, telemetry.Migrated(stats.Migrated))

	logger.DebugCtx(ctx, "GC: block reclaimed",
		logger.KeyDie, die,
		logger.KeyBlock, sel.block,
		logger.KeyMigrated, stats.Migrated,
		logger.KeyWear, stats.Wear+1,
		logger.KeyTick, c.clock.Now(die))

	if err := c.verify(die); err != nil {
		return stats, err
	}
	return stats, nil
}

// migrate relocates every valid slice of victim. It returns the number of
// slices whose mapping was repointed, even on error.
func (c *Collector) migrate(ctx context.Context, die flash.DieID, victim flash.BlockID) (int, error) {
	migrated := 0
	for page := uint32(0); page < c.geo.PagesPerBlock; page++ {
		src := c.geo.Translate(die, victim, page)

		lsa := c.mapping.VirtualOwner(src)
		if lsa == flash.NoLSA {
			continue
		}
		if c.mapping.LogicalOwner(lsa) != src {
			// stale copy: the logical slice has been rewritten elsewhere
			continue
		}

		m, err := c.reserve(ctx, die, victim, lsa, src)
		if err != nil {
			return migrated, err
		}

		c.pipe.SubmitRead(m.readSlot, m.buf, m.lsa, m.src)
		c.pipe.SubmitWrite(m.writeSlot, m.buf, m.lsa, m.dst)
		c.mapping.Map(m.lsa, m.dst)
		migrated++
	}
	return migrated, nil
}

// reserve acquires everything one relocation needs before anything is
// submitted, so a failure part way leaves nothing in flight.
func (c *Collector) reserve(ctx context.Context, die flash.DieID, victim flash.BlockID, lsa flash.LSA, src flash.VSA) (*migration, error) {
	m := &migration{lsa: lsa, src: src}

	readSlot, err := c.pipe.AcquireSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("gc: acquire request slot: %w", err)
	}
	m.readSlot = readSlot

	buf, err := c.pipe.AcquireBuffer(ctx, die)
	if err != nil {
		c.pipe.ReleaseSlot(readSlot)
		return nil, fmt.Errorf("gc: acquire temp buffer on die %d: %w", die, err)
	}
	m.buf = buf

	writeSlot, err := c.pipe.AcquireSlot(ctx)
	if err != nil {
		c.pipe.ReleaseBuffer(buf)
		c.pipe.ReleaseSlot(readSlot)
		return nil, fmt.Errorf("gc: acquire request slot: %w", err)
	}
	m.writeSlot = writeSlot

	dst, filled, err := c.alloc.AllocateForGC(die, victim)
	if err == nil {
		err = c.checkTarget(die, victim, lsa, dst)
	}
	if err != nil {
		c.release(m)
		if IsFatal(err) {
			return nil, err
		}
		return nil, fmt.Errorf("gc: allocate relocation target on die %d: %w", die, err)
	}
	m.dst = dst

	if filled != flash.NoBlock {
		if err := c.listLocked(die, filled); err != nil {
			c.release(m)
			return nil, err
		}
	}
	return m, nil
}

// release returns the slots and buffer of a relocation that was never
// submitted.
func (c *Collector) release(m *migration) {
	c.pipe.ReleaseSlot(m.writeSlot)
	c.pipe.ReleaseBuffer(m.buf)
	c.pipe.ReleaseSlot(m.readSlot)
}

// checkTarget rejects a relocation target that is unset, off-die, outside
// the array or inside the victim itself.
func (c *Collector) checkTarget(die flash.DieID, victim flash.BlockID, lsa flash.LSA, dst flash.VSA) error {
	switch {
	case dst == flash.NoVSA:
		return mappingCorrupt(die, victim, "relocation target for lsa %d is unset", lsa)
	case !c.geo.Contains(dst):
		return mappingCorrupt(die, victim, "relocation target %d for lsa %d is outside the array", dst, lsa)
	case c.geo.Die(dst) != die:
		return mappingCorrupt(die, victim, "relocation target %d for lsa %d is on die %d", dst, lsa, c.geo.Die(dst))
	case c.geo.Block(dst) == victim:
		return mappingCorrupt(die, victim, "relocation target %d for lsa %d is inside the victim", dst, lsa)
	}
	return nil
}

// abort puts a partly reclaimed victim back into the registry. Slices that
// were already moved now count as invalid in the victim.
func (c *Collector) abort(die flash.DieID, victim flash.BlockID, migrated int, cause error) error {
	rec := c.table.Get(die, victim)
	invalid := rec.InvalidSlices + uint32(migrated)
	if invalid > c.geo.PagesPerBlock {
		invalid = c.geo.PagesPerBlock
	}
	rec.InvalidSlices = invalid

	if err := c.registry.Insert(die, victim, invalid); err != nil {
		return c.fatal(structural(die, victim, err))
	}

	logger.Warn("GC: reclamation aborted",
		logger.KeyDie, die,
		logger.KeyBlock, victim,
		logger.KeyMigrated, migrated,
		logger.KeyError, cause)
	return cause
}
