// Package flash describes the physical layout of the simulated NAND array and
// the per-block metadata the FTL keeps for it.
//
// Addresses use a die-interleaved virtual layout: consecutive virtual slice
// addresses (VSAs) are striped across dies first, then pages, then blocks:
//
//	vsa = die + Dies*(page + PagesPerBlock*block)
//
// This is a leaf package with no internal dependencies, so the registry, the
// collector and the FTL can all import it without cycles.
package flash

import (
	"fmt"
)

// DieID identifies a physical die (the unit of GC scheduling).
type DieID = uint32

// BlockID identifies an erase block within a die.
type BlockID = uint32

// VSA is a virtual slice address: one page-sized slot on the array.
type VSA = uint32

// LSA is a logical slice address as seen by the host.
type LSA = uint32

// Sentinels for "no such address". All-ones so a zeroed table is never
// mistaken for an empty one.
const (
	NoBlock BlockID = ^BlockID(0)
	NoVSA   VSA     = ^VSA(0)
	NoLSA   LSA     = ^LSA(0)
)

// Geometry holds the dimensions of the flash array.
type Geometry struct {
	// Dies is the number of independently scheduled dies.
	Dies uint32 `mapstructure:"dies" validate:"required,min=1" yaml:"dies"`

	// BlocksPerDie is the number of erase blocks on each die.
	BlocksPerDie uint32 `mapstructure:"blocks_per_die" validate:"required,min=2" yaml:"blocks_per_die"`

	// PagesPerBlock is the number of slices (pages) in a block. It is also
	// the largest possible invalid-slice count.
	PagesPerBlock uint32 `mapstructure:"pages_per_block" validate:"required,min=1" yaml:"pages_per_block"`

	// PageSize is the byte size of one slice.
	PageSize uint32 `mapstructure:"page_size" validate:"required,min=1" yaml:"page_size"`
}

// DefaultGeometry returns a small array suitable for simulation runs.
func DefaultGeometry() Geometry {
	return Geometry{
		Dies:          4,
		BlocksPerDie:  64,
		PagesPerBlock: 128,
		PageSize:      4096,
	}
}

// Validate checks that the geometry is usable and that every address fits in
// 32 bits without colliding with the sentinels.
func (g Geometry) Validate() error {
	if g.Dies == 0 || g.BlocksPerDie == 0 || g.PagesPerBlock == 0 {
		return fmt.Errorf("geometry dimensions must be non-zero: %+v", g)
	}
	total := uint64(g.Dies) * uint64(g.BlocksPerDie) * uint64(g.PagesPerBlock)
	if total >= uint64(NoVSA) {
		return fmt.Errorf("geometry too large: %d slices exceed the address space", total)
	}
	return nil
}

// TotalSlices returns the number of virtual slices on the array.
func (g Geometry) TotalSlices() uint32 {
	return g.Dies * g.BlocksPerDie * g.PagesPerBlock
}

// SlicesPerDie returns the number of virtual slices on one die.
func (g Geometry) SlicesPerDie() uint32 {
	return g.BlocksPerDie * g.PagesPerBlock
}

// Translate maps (die, block, page) to a virtual slice address.
func (g Geometry) Translate(die DieID, block BlockID, page uint32) VSA {
	return die + g.Dies*(page+g.PagesPerBlock*block)
}

// Die returns the die that owns vsa.
func (g Geometry) Die(vsa VSA) DieID {
	return vsa % g.Dies
}

// Block returns the block index of vsa within its die.
func (g Geometry) Block(vsa VSA) BlockID {
	return vsa / (g.Dies * g.PagesPerBlock)
}

// Page returns the page index of vsa within its block.
func (g Geometry) Page(vsa VSA) uint32 {
	return (vsa % (g.Dies * g.PagesPerBlock)) / g.Dies
}

// Contains reports whether vsa is a valid address on this array.
func (g Geometry) Contains(vsa VSA) bool {
	return vsa != NoVSA && vsa < g.TotalSlices()
}
