package ftl

import (
	"fmt"

	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/gc"
)

// DieStatus summarizes one die.
type DieStatus struct {
	Die        flash.DieID `json:"die"`
	Free       int         `json:"free_blocks"`
	Open       int         `json:"open_blocks"`
	Listed     int         `json:"listed_blocks"`
	Bad        int         `json:"bad_blocks"`
	Candidates int         `json:"candidates"`
	Tick       uint32      `json:"tick"`
	GC         gc.Stats    `json:"gc"`
}

// Status is a point-in-time view of the FTL.
type Status struct {
	Policy        string           `json:"policy"`
	LogicalSlices uint32           `json:"logical_slices"`
	Mapped        int              `json:"mapped_slices"`
	Stats         Stats            `json:"stats"`
	Wear          flash.EraseStats `json:"wear"`
	Dies          []DieStatus      `json:"dies"`
}

// Status returns a snapshot of pools, wear and GC activity.
func (f *FTL) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Status{
		Policy:        f.collector.Policy().Name(),
		LogicalSlices: f.mapping.LogicalSlices(),
		Mapped:        f.mapping.Mapped(),
		Stats:         f.stats,
		Wear:          f.table.EraseStats(),
		Dies:          make([]DieStatus, f.geo.Dies),
	}
	for die := flash.DieID(0); die < f.geo.Dies; die++ {
		ds := DieStatus{
			Die:        die,
			Free:       len(f.free[die]),
			Candidates: f.collector.Candidates(die),
			Tick:       f.collector.Now(die),
			GC:         f.collector.Stats(die),
		}
		for _, rec := range f.table.Die(die) {
			switch rec.State {
			case flash.StateOpen:
				ds.Open++
			case flash.StateListed:
				ds.Listed++
			case flash.StateBad:
				ds.Bad++
			}
		}
		s.Dies[die] = ds
	}
	return s
}

// Check verifies the FTL's internal consistency: the registry of every die,
// both mapping directions, and that each block's invalid count matches the
// slices in it that no longer hold current data.
func (f *FTL) Check() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mapping.Check(); err != nil {
		return err
	}
	for die := flash.DieID(0); die < f.geo.Dies; die++ {
		if err := f.collector.Check(die); err != nil {
			return err
		}
		for block := flash.BlockID(0); block < f.geo.BlocksPerDie; block++ {
			rec := f.table.Get(die, block)
			if rec.State != flash.StateOpen && rec.State != flash.StateListed {
				continue
			}
			written := f.geo.PagesPerBlock
			if rec.State == flash.StateOpen {
				written = rec.CurrentPage
			}
			valid := uint32(0)
			for page := uint32(0); page < written; page++ {
				if f.mapping.IsValid(f.geo.Translate(die, block, page)) {
					valid++
				}
			}
			if valid+rec.InvalidSlices != written {
				return fmt.Errorf("ftl: die %d block %d has %d valid and %d invalid of %d written slices",
					die, block, valid, rec.InvalidSlices, written)
			}
		}
	}
	return nil
}

// State is the persistent part of the FTL: wear and aging history.
// Mapping and data are not kept; a restored FTL starts empty.
type State struct {
	Geometry flash.Geometry `json:"geometry"`
	Policy   string         `json:"policy"`
	Dies     []DieState     `json:"dies"`
}

// DieState holds the wear and clock of one die.
type DieState struct {
	EraseCounts []uint32 `json:"erase_counts"`
	Bad         []bool   `json:"bad"`
	Tick        uint32   `json:"tick"`
	Baselines   []uint32 `json:"baselines"`
}

// ExportState captures wear and aging.
func (f *FTL) ExportState() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := State{
		Geometry: f.geo,
		Policy:   f.collector.Policy().Name(),
		Dies:     make([]DieState, f.geo.Dies),
	}
	for die := flash.DieID(0); die < f.geo.Dies; die++ {
		recs := f.table.Die(die)
		ds := DieState{
			EraseCounts: make([]uint32, len(recs)),
			Bad:         make([]bool, len(recs)),
		}
		for i := range recs {
			ds.EraseCounts[i] = recs[i].EraseCount
			ds.Bad[i] = recs[i].State == flash.StateBad
		}
		ds.Tick, ds.Baselines = f.collector.ClockState(die)
		st.Dies[die] = ds
	}
	return st
}

// ImportState applies saved wear and aging to an FTL that has not been
// written yet. The state must come from an array of the same geometry.
func (f *FTL) ImportState(st State) error {
	if st.Geometry != f.geo {
		return fmt.Errorf("ftl: state geometry %+v does not match %+v", st.Geometry, f.geo)
	}
	if len(st.Dies) != int(f.geo.Dies) {
		return fmt.Errorf("ftl: state has %d dies, want %d", len(st.Dies), f.geo.Dies)
	}
	for die, ds := range st.Dies {
		n := int(f.geo.BlocksPerDie)
		if len(ds.EraseCounts) != n || len(ds.Bad) != n || len(ds.Baselines) != n {
			return fmt.Errorf("ftl: state for die %d does not cover %d blocks", die, n)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stats.HostWrites > 0 {
		return fmt.Errorf("ftl: state can only be imported before the first write")
	}

	f.table.Reset()
	f.mapping.Reset()
	f.collector.Reset()
	f.resetPools()
	f.stats = Stats{}

	for die, ds := range st.Dies {
		d := flash.DieID(die)
		kept := f.free[d][:0]
		for block, count := range ds.EraseCounts {
			rec := f.table.Get(d, flash.BlockID(block))
			rec.EraseCount = count
			if ds.Bad[block] {
				rec.State = flash.StateBad
				continue
			}
			kept = append(kept, flash.BlockID(block))
		}
		f.free[d] = kept
		f.collector.RestoreClock(d, ds.Tick, ds.Baselines)
		f.reportFree(d)
	}
	return nil
}
