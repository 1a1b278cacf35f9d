package ftl

import (
	"context"
	"fmt"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/gc"
)

// CollectGarbage runs one reclamation cycle on die.
func (f *FTL) CollectGarbage(ctx context.Context, die flash.DieID) (*gc.CycleStats, error) {
	if die >= f.geo.Dies {
		return nil, fmt.Errorf("ftl: die %d out of range", die)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	stats, err := f.collector.RunGarbageCollection(ctx, die)
	if err == nil {
		f.stats.GCRuns++
	}
	return stats, err
}

// AllocateForGC hands out the next slice of die's relocation block. It is
// called by the collector with the FTL mutex already held.
func (f *FTL) AllocateForGC(die flash.DieID, exclude flash.BlockID) (flash.VSA, flash.BlockID, error) {
	if f.gcOpen[die] == flash.NoBlock {
		if len(f.free[die]) == 0 {
			return flash.NoVSA, flash.NoBlock, fmt.Errorf("%w: die %d has no block for relocation", ErrNoSpace, die)
		}
		if f.free[die][0] == exclude {
			return flash.NoVSA, flash.NoBlock, fmt.Errorf("ftl: victim block %d on die %d is in the free pool", exclude, die)
		}
		f.gcOpen[die] = f.popFree(die)
	}

	block := f.gcOpen[die]
	rec := f.table.Get(die, block)
	vsa := f.geo.Translate(die, block, rec.CurrentPage)
	rec.CurrentPage++
	f.stats.GCWrites++

	filled := flash.NoBlock
	if rec.CurrentPage == f.geo.PagesPerBlock {
		filled = block
		f.gcOpen[die] = flash.NoBlock
	}
	return vsa, filled, nil
}

// EraseBlock resets the record of block, forgets the slices it held and
// queues the erase. The block goes back to the free pool unless it has worn
// out. It is called by the collector with the FTL mutex already held.
func (f *FTL) EraseBlock(ctx context.Context, die flash.DieID, block flash.BlockID) error {
	slot, err := f.pipe.AcquireSlot(ctx)
	if err != nil {
		return err
	}

	rec := f.table.Get(die, block)
	rec.EraseCount++
	rec.InvalidSlices = 0
	rec.CurrentPage = 0
	for page := uint32(0); page < f.geo.PagesPerBlock; page++ {
		f.mapping.ClearVirtual(f.geo.Translate(die, block, page))
	}
	f.pipe.SubmitErase(slot, die, block)
	f.stats.Erases++

	if f.cfg.MaxEraseCount > 0 && rec.EraseCount >= f.cfg.MaxEraseCount {
		rec.State = flash.StateBad
		f.stats.Retired++
		logger.Warn("FTL: block worn out",
			logger.KeyDie, die,
			logger.KeyBlock, block,
			logger.KeyWear, rec.EraseCount)
		return nil
	}

	rec.State = flash.StateFree
	f.free[die] = append(f.free[die], block)
	f.reportFree(die)
	return nil
}

// Retire takes a block out of service. Only an erased block or a listed
// block with no valid slices can be retired.
func (f *FTL) Retire(die flash.DieID, block flash.BlockID) error {
	if die >= f.geo.Dies || block >= f.geo.BlocksPerDie {
		return fmt.Errorf("ftl: block %d on die %d out of range", block, die)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	rec := f.table.Get(die, block)
	switch rec.State {
	case flash.StateFree:
		for i, b := range f.free[die] {
			if b == block {
				f.free[die] = append(f.free[die][:i], f.free[die][i+1:]...)
				break
			}
		}
		rec.State = flash.StateBad
		f.reportFree(die)
		logger.Warn("FTL: block retired", logger.KeyDie, die, logger.KeyBlock, block)
	case flash.StateListed:
		if valid := f.table.ValidSlices(die, block); valid > 0 {
			return fmt.Errorf("%w: block %d on die %d has %d valid slices", ErrBlockInUse, block, die, valid)
		}
		if err := f.collector.Unlist(die, block); err != nil {
			return err
		}
	case flash.StateBad:
		return nil
	default:
		return fmt.Errorf("%w: block %d on die %d is %s", ErrBlockInUse, block, die, rec.State)
	}

	f.stats.Retired++
	return nil
}
