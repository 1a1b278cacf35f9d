package gc

import (
	"github.com/marmos91/ftlgc/pkg/flash"
)

// Clock is the logical aging clock. Each die has its own tick counter that
// advances once per dirtying event; each block has a baseline tick.
//
// Ticks are uint32 and ages are computed with wrapping subtraction, so a
// wrapped counter still yields correct ages as long as no block is older
// than 2^32 events.
type Clock struct {
	ticks     []uint32
	baselines [][]uint32
}

// NewClock creates a clock for geo with every counter and baseline at zero.
func NewClock(geo flash.Geometry) *Clock {
	c := &Clock{
		ticks:     make([]uint32, geo.Dies),
		baselines: make([][]uint32, geo.Dies),
	}
	for die := range c.baselines {
		c.baselines[die] = make([]uint32, geo.BlocksPerDie)
	}
	return c
}

// Reset zeroes every counter and baseline.
func (c *Clock) Reset() {
	for die := range c.ticks {
		c.ticks[die] = 0
		clear(c.baselines[die])
	}
}

// Advance increments the die's tick and returns the new value.
func (c *Clock) Advance(die flash.DieID) uint32 {
	c.ticks[die]++
	return c.ticks[die]
}

// Now returns the die's current tick.
func (c *Clock) Now(die flash.DieID) uint32 {
	return c.ticks[die]
}

// Stamp sets the block's baseline to the die's current tick.
func (c *Clock) Stamp(die flash.DieID, block flash.BlockID) {
	c.baselines[die][block] = c.ticks[die]
}

// Baseline returns the block's baseline tick.
func (c *Clock) Baseline(die flash.DieID, block flash.BlockID) uint32 {
	return c.baselines[die][block]
}

// Age returns the ticks elapsed since the block's baseline.
func (c *Clock) Age(die flash.DieID, block flash.BlockID) uint32 {
	return c.ticks[die] - c.baselines[die][block]
}

// Restore loads a previously saved tick and baselines for one die.
// Baselines shorter than the die are zero-extended; extra entries are ignored.
func (c *Clock) Restore(die flash.DieID, tick uint32, baselines []uint32) {
	c.ticks[die] = tick
	clear(c.baselines[die])
	copy(c.baselines[die], baselines)
}

// Baselines returns a copy of the die's baselines.
func (c *Clock) Baselines(die flash.DieID) []uint32 {
	out := make([]uint32, len(c.baselines[die]))
	copy(out, c.baselines[die])
	return out
}
