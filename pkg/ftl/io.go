package ftl

import (
	"context"
	"fmt"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/internal/telemetry"
	"github.com/marmos91/ftlgc/pkg/bufpool"
	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/gc"
)

// Write stores one slice of host data for lsa.
//
// The previous copy, if any, is invalidated before reclamation runs so GC
// never relocates data that is about to become stale. The program request
// is only submitted; call Flush to wait for it.
//
// The request slot and buffer are taken before anything changes, so a
// write that cannot get them leaves the mapping and the open block as they
// were.
func (f *FTL) Write(ctx context.Context, lsa flash.LSA) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanFTLWrite)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.LSA(lsa))

	f.mu.Lock()
	defer f.mu.Unlock()

	if lsa >= f.mapping.LogicalSlices() {
		return fmt.Errorf("%w: %d", ErrOutOfRange, lsa)
	}

	die := f.nextDie
	slot, buf, err := f.reserveWrite(ctx, die)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	submitted := false
	defer func() {
		if !submitted {
			f.pipe.ReleaseBuffer(buf)
			f.pipe.ReleaseSlot(slot)
		}
	}()

	if old := f.mapping.Unmap(lsa); old != flash.NoVSA {
		if err := f.invalidate(old); err != nil {
			telemetry.RecordError(ctx, err)
			return err
		}
	}

	vsa, err := f.allocHost(ctx, die)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	f.nextDie = (die + 1) % f.geo.Dies

	bufpool.Stamp(f.pipe.Buffer(buf), lsa)
	f.pipe.SubmitWrite(slot, buf, lsa, vsa)
	submitted = true
	f.mapping.Map(lsa, vsa)

	if f.geo.Page(vsa) == f.geo.PagesPerBlock-1 {
		block := f.geo.Block(vsa)
		f.hostOpen[die] = flash.NoBlock
		if err := f.collector.List(die, block); err != nil {
			return err
		}
	}

	f.stats.HostWrites++
	if f.metrics != nil {
		f.metrics.RecordHostWrite(die)
	}
	telemetry.SetAttributes(ctx, telemetry.VSA(vsa), telemetry.Die(die))
	return nil
}

// reserveWrite takes the request slot and the die buffer a host program
// needs. Both are held across any reclamation the write triggers.
func (f *FTL) reserveWrite(ctx context.Context, die flash.DieID) (uint32, uint32, error) {
	slot, err := f.pipe.AcquireSlot(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("ftl: acquire request slot: %w", err)
	}
	buf, err := f.pipe.AcquireBuffer(ctx, die)
	if err != nil {
		f.pipe.ReleaseSlot(slot)
		return 0, 0, fmt.Errorf("ftl: acquire buffer on die %d: %w", die, err)
	}
	return slot, buf, nil
}

// Trim discards the data of lsa. Trimming an unmapped slice is a no-op.
func (f *FTL) Trim(ctx context.Context, lsa flash.LSA) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanFTLTrim)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.LSA(lsa))

	f.mu.Lock()
	defer f.mu.Unlock()

	if lsa >= f.mapping.LogicalSlices() {
		return fmt.Errorf("%w: %d", ErrOutOfRange, lsa)
	}
	old := f.mapping.Unmap(lsa)
	if old == flash.NoVSA {
		return nil
	}
	f.stats.Trims++
	if f.metrics != nil {
		f.metrics.RecordTrim()
	}
	return f.invalidate(old)
}

// Read reads lsa back from flash and checks that the data there belongs to
// it. It waits for the read to complete.
func (f *FTL) Read(ctx context.Context, lsa flash.LSA) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if lsa >= f.mapping.LogicalSlices() {
		return fmt.Errorf("%w: %d", ErrOutOfRange, lsa)
	}
	vsa := f.mapping.LogicalOwner(lsa)
	if vsa == flash.NoVSA {
		return fmt.Errorf("%w: %d", ErrUnmapped, lsa)
	}
	if _, err := f.pipe.Read(ctx, lsa, vsa); err != nil {
		return fmt.Errorf("ftl: read lsa %d at vsa %d: %w", lsa, vsa, err)
	}
	f.stats.Reads++
	return nil
}

// invalidate marks the slice at vsa stale in its block's record.
func (f *FTL) invalidate(vsa flash.VSA) error {
	die, block := f.geo.Die(vsa), f.geo.Block(vsa)
	rec := f.table.Get(die, block)
	return f.collector.NotifyBlockInvalidated(die, block, rec.InvalidSlices+1)
}

// allocHost returns the next slice of die's host block, opening a new block
// when needed. Opening a block below the GC threshold reclaims first.
func (f *FTL) allocHost(ctx context.Context, die flash.DieID) (flash.VSA, error) {
	if f.hostOpen[die] == flash.NoBlock {
		if len(f.free[die]) <= f.cfg.GCThreshold {
			if err := f.reclaim(ctx, die); err != nil {
				return flash.NoVSA, err
			}
		}
		// One free block stays in reserve for relocation.
		if len(f.free[die]) <= 1 {
			return flash.NoVSA, fmt.Errorf("%w: die %d has %d free blocks", ErrNoSpace, die, len(f.free[die]))
		}
		f.hostOpen[die] = f.popFree(die)
	}

	block := f.hostOpen[die]
	rec := f.table.Get(die, block)
	vsa := f.geo.Translate(die, block, rec.CurrentPage)
	rec.CurrentPage++
	return vsa, nil
}

// reclaim runs GC cycles on die until the free pool is above the threshold,
// nothing is left to reclaim, or the cycle budget is spent.
func (f *FTL) reclaim(ctx context.Context, die flash.DieID) error {
	if f.metrics != nil {
		f.metrics.RecordGCTrigger(die)
	}
	for i := 0; i < f.cfg.MaxGCCycles && len(f.free[die]) <= f.cfg.GCThreshold; i++ {
		_, err := f.collector.RunGarbageCollection(ctx, die)
		if gc.KindOf(err) == gc.KindExhausted {
			logger.DebugCtx(ctx, "GC: nothing left to reclaim",
				logger.KeyDie, die,
				logger.KeyFree, len(f.free[die]))
			return nil
		}
		if err != nil {
			return err
		}
		f.stats.GCRuns++
	}
	return nil
}

// popFree takes the oldest erased block of die and opens it.
func (f *FTL) popFree(die flash.DieID) flash.BlockID {
	block := f.free[die][0]
	f.free[die] = f.free[die][1:]

	rec := f.table.Get(die, block)
	rec.State = flash.StateOpen
	rec.CurrentPage = 0
	rec.InvalidSlices = 0

	f.reportFree(die)
	return block
}
