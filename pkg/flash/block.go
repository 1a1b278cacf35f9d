package flash

import (
	"fmt"
)

// BlockState tracks where a block is in its lifecycle.
type BlockState uint8

const (
	// StateFree means the block is erased and sits in the free pool.
	StateFree BlockState = iota

	// StateOpen means the block is the current write target of a die and is
	// not yet a GC candidate.
	StateOpen

	// StateListed means the block is linked into exactly one victim bucket.
	StateListed

	// StateReclaiming means the block was detached as a victim and is being
	// migrated and erased.
	StateReclaiming

	// StateBad means the block was retired and is never allocated again.
	StateBad
)

// String returns a human-readable name for the state.
func (s BlockState) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateOpen:
		return "open"
	case StateListed:
		return "listed"
	case StateReclaiming:
		return "reclaiming"
	case StateBad:
		return "bad"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Block is the metadata record for one erase block.
//
// Next and Prev are the victim-list links. They index into the same die's
// record slice; NoBlock terminates the list.
type Block struct {
	InvalidSlices uint32
	EraseCount    uint32
	CurrentPage   uint32
	Next          BlockID
	Prev          BlockID
	State         BlockState
}

// BlockTable is an arena of block records, one slice per die indexed by
// BlockID. It replaces the firmware's pointer-linked block map: links are
// plain indices, so records can be copied, snapshotted and checked without
// aliasing hazards.
//
// BlockTable does no locking. Callers serialise access per die.
type BlockTable struct {
	geo    Geometry
	blocks [][]Block
}

// NewBlockTable allocates a table for geo with every block free and unlinked.
func NewBlockTable(geo Geometry) *BlockTable {
	t := &BlockTable{
		geo:    geo,
		blocks: make([][]Block, geo.Dies),
	}
	for die := range t.blocks {
		t.blocks[die] = make([]Block, geo.BlocksPerDie)
	}
	t.Reset()
	return t
}

// Geometry returns the geometry the table was built for.
func (t *BlockTable) Geometry() Geometry {
	return t.geo
}

// Reset returns every record to the freshly-erased, unlinked state.
// Erase counts are cleared too.
func (t *BlockTable) Reset() {
	for die := range t.blocks {
		for i := range t.blocks[die] {
			t.blocks[die][i] = Block{Next: NoBlock, Prev: NoBlock, State: StateFree}
		}
	}
}

// Get returns a pointer to the record for (die, block). It panics on an
// out-of-range address, which always indicates a programming error.
func (t *BlockTable) Get(die DieID, block BlockID) *Block {
	return &t.blocks[die][block]
}

// Die returns the record slice of one die.
func (t *BlockTable) Die(die DieID) []Block {
	return t.blocks[die]
}

// ValidSlices returns PagesPerBlock minus the invalid count of the block.
func (t *BlockTable) ValidSlices(die DieID, block BlockID) uint32 {
	b := &t.blocks[die][block]
	if b.InvalidSlices >= t.geo.PagesPerBlock {
		return 0
	}
	return t.geo.PagesPerBlock - b.InvalidSlices
}

// EraseStats summarises wear across the array.
type EraseStats struct {
	Min   uint32  `json:"min" yaml:"min"`
	Max   uint32  `json:"max" yaml:"max"`
	Total uint64  `json:"total" yaml:"total"`
	Mean  float64 `json:"mean" yaml:"mean"`
}

// EraseStats computes wear statistics over every non-bad block.
func (t *BlockTable) EraseStats() EraseStats {
	var s EraseStats
	var n uint64
	first := true
	for die := range t.blocks {
		for i := range t.blocks[die] {
			b := &t.blocks[die][i]
			if b.State == StateBad {
				continue
			}
			if first || b.EraseCount < s.Min {
				s.Min = b.EraseCount
			}
			if first || b.EraseCount > s.Max {
				s.Max = b.EraseCount
			}
			first = false
			s.Total += uint64(b.EraseCount)
			n++
		}
	}
	if n > 0 {
		s.Mean = float64(s.Total) / float64(n)
	}
	return s
}
