// Package mapping holds the two slice mapping tables of the FTL: logical to
// virtual (where does this host slice live) and virtual to logical (whose
// data is in this flash slot).
//
// The tables are plain slices indexed by address. They are not safe for
// concurrent use; the FTL serializes every access under its own lock.
package mapping

import (
	"fmt"

	"github.com/marmos91/ftlgc/pkg/flash"
)

// Table is the pair of mapping directions for one array.
type Table struct {
	l2v []flash.VSA
	v2l []flash.LSA
}

// New creates empty tables for logical host slices and virtual slots.
func New(logical, virtual uint32) (*Table, error) {
	if logical == 0 || virtual == 0 {
		return nil, fmt.Errorf("mapping: sizes must be non-zero (logical=%d virtual=%d)", logical, virtual)
	}
	if logical > virtual {
		return nil, fmt.Errorf("mapping: %d logical slices do not fit in %d virtual slices", logical, virtual)
	}

	t := &Table{
		l2v: make([]flash.VSA, logical),
		v2l: make([]flash.LSA, virtual),
	}
	t.Reset()
	return t, nil
}

// Reset unmaps every slice.
func (t *Table) Reset() {
	for i := range t.l2v {
		t.l2v[i] = flash.NoVSA
	}
	for i := range t.v2l {
		t.v2l[i] = flash.NoLSA
	}
}

// LogicalSlices returns the size of the host address space.
func (t *Table) LogicalSlices() uint32 {
	return uint32(len(t.l2v))
}

// VirtualSlices returns the number of flash slots tracked.
func (t *Table) VirtualSlices() uint32 {
	return uint32(len(t.v2l))
}

// VirtualOwner returns the logical slice stored at vsa, or NoLSA.
func (t *Table) VirtualOwner(vsa flash.VSA) flash.LSA {
	if vsa >= uint32(len(t.v2l)) {
		return flash.NoLSA
	}
	return t.v2l[vsa]
}

// LogicalOwner returns the virtual slice holding lsa, or NoVSA.
func (t *Table) LogicalOwner(lsa flash.LSA) flash.VSA {
	if lsa >= uint32(len(t.l2v)) {
		return flash.NoVSA
	}
	return t.l2v[lsa]
}

// Map points lsa at vsa and vsa back at lsa. A reverse entry still naming
// lsa at its previous location is cleared. Both addresses must be in range.
func (t *Table) Map(lsa flash.LSA, vsa flash.VSA) {
	if old := t.l2v[lsa]; old != flash.NoVSA && t.v2l[old] == lsa {
		t.v2l[old] = flash.NoLSA
	}
	t.l2v[lsa] = vsa
	t.v2l[vsa] = lsa
}

// Unmap removes lsa from both directions and returns where it lived, or NoVSA
// if it was not mapped.
func (t *Table) Unmap(lsa flash.LSA) flash.VSA {
	if lsa >= uint32(len(t.l2v)) {
		return flash.NoVSA
	}
	old := t.l2v[lsa]
	t.l2v[lsa] = flash.NoVSA
	if old != flash.NoVSA && t.v2l[old] == lsa {
		t.v2l[old] = flash.NoLSA
	}
	return old
}

// ClearVirtual forgets whatever vsa held. Used when its block is erased.
func (t *Table) ClearVirtual(vsa flash.VSA) {
	if vsa < uint32(len(t.v2l)) {
		t.v2l[vsa] = flash.NoLSA
	}
}

// IsValid reports whether vsa holds the current copy of some logical slice.
func (t *Table) IsValid(vsa flash.VSA) bool {
	lsa := t.VirtualOwner(vsa)
	return lsa != flash.NoLSA && t.l2v[lsa] == vsa
}

// Mapped returns the number of logical slices that currently have a home.
func (t *Table) Mapped() int {
	n := 0
	for _, vsa := range t.l2v {
		if vsa != flash.NoVSA {
			n++
		}
	}
	return n
}

// Check verifies that both directions agree: every mapped logical slice is
// named by its virtual slot.
func (t *Table) Check() error {
	for lsa, vsa := range t.l2v {
		if vsa == flash.NoVSA {
			continue
		}
		if vsa >= uint32(len(t.v2l)) {
			return fmt.Errorf("mapping: lsa %d points outside the array at vsa %d", lsa, vsa)
		}
		if t.v2l[vsa] != flash.LSA(lsa) {
			return fmt.Errorf("mapping: lsa %d maps to vsa %d which names lsa %d", lsa, vsa, t.v2l[vsa])
		}
	}
	return nil
}
