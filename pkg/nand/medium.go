package nand

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/marmos91/ftlgc/pkg/bufpool"
	"github.com/marmos91/ftlgc/pkg/flash"
)

// Medium errors.
var (
	// ErrProgramDirty is returned when a page is programmed twice without an
	// erase in between.
	ErrProgramDirty = errors.New("nand: program of a dirty page")

	// ErrUnprogrammed is returned when reading a page that holds no data.
	ErrUnprogrammed = errors.New("nand: read of an erased page")

	// ErrDataMismatch is returned when the stamp in a page does not name the
	// logical slice the request expected.
	ErrDataMismatch = errors.New("nand: data does not belong to the expected slice")

	// ErrOutOfRange is returned for addresses outside the array.
	ErrOutOfRange = errors.New("nand: address out of range")
)

// erased marks a page with no data.
const erased = flash.NoLSA

// Medium is an in-memory NAND array. Each page keeps only the logical slice
// stamp of the data programmed into it.
//
// Thread Safety: Safe for concurrent use by pipeline workers.
type Medium struct {
	geo flash.Geometry

	mu     sync.Mutex
	stamps []flash.LSA

	reads    atomic.Uint64
	programs atomic.Uint64
	erases   atomic.Uint64
}

// MediumStats counts completed operations.
type MediumStats struct {
	Reads    uint64 `json:"reads" yaml:"reads"`
	Programs uint64 `json:"programs" yaml:"programs"`
	Erases   uint64 `json:"erases" yaml:"erases"`
}

// NewMedium creates a fully erased array.
func NewMedium(geo flash.Geometry) *Medium {
	m := &Medium{
		geo:    geo,
		stamps: make([]flash.LSA, geo.TotalSlices()),
	}
	for i := range m.stamps {
		m.stamps[i] = erased
	}
	return m
}

// Read copies the page at vsa into buf. When expect is not NoLSA the stamp
// must match it.
func (m *Medium) Read(vsa flash.VSA, expect flash.LSA, buf []byte) error {
	if !m.geo.Contains(vsa) {
		return fmt.Errorf("%w: read vsa %d", ErrOutOfRange, vsa)
	}

	m.mu.Lock()
	stamp := m.stamps[vsa]
	m.mu.Unlock()

	if stamp == erased {
		return fmt.Errorf("%w: vsa %d", ErrUnprogrammed, vsa)
	}
	clear(buf)
	bufpool.Stamp(buf, stamp)
	m.reads.Add(1)

	if expect != flash.NoLSA && stamp != expect {
		return fmt.Errorf("%w: vsa %d holds lsa %d, want %d", ErrDataMismatch, vsa, stamp, expect)
	}
	return nil
}

// Program writes buf to the erased page at vsa. The stamp in buf must be lsa.
func (m *Medium) Program(vsa flash.VSA, lsa flash.LSA, buf []byte) error {
	if !m.geo.Contains(vsa) {
		return fmt.Errorf("%w: program vsa %d", ErrOutOfRange, vsa)
	}
	stamp := bufpool.ReadStamp(buf)
	if stamp != lsa {
		return fmt.Errorf("%w: programming lsa %d to vsa %d from a buffer holding lsa %d",
			ErrDataMismatch, lsa, vsa, stamp)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stamps[vsa] != erased {
		return fmt.Errorf("%w: vsa %d holds lsa %d", ErrProgramDirty, vsa, m.stamps[vsa])
	}
	m.stamps[vsa] = stamp
	m.programs.Add(1)
	return nil
}

// Erase clears every page of block on die.
func (m *Medium) Erase(die flash.DieID, block flash.BlockID) error {
	if die >= m.geo.Dies || block >= m.geo.BlocksPerDie {
		return fmt.Errorf("%w: erase die %d block %d", ErrOutOfRange, die, block)
	}

	m.mu.Lock()
	for page := uint32(0); page < m.geo.PagesPerBlock; page++ {
		m.stamps[m.geo.Translate(die, block, page)] = erased
	}
	m.mu.Unlock()

	m.erases.Add(1)
	return nil
}

// Stamp returns the slice stored at vsa, or NoLSA when the page is erased.
func (m *Medium) Stamp(vsa flash.VSA) flash.LSA {
	if !m.geo.Contains(vsa) {
		return flash.NoLSA
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stamps[vsa]
}

// Stats returns operation counters.
func (m *Medium) Stats() MediumStats {
	return MediumStats{
		Reads:    m.reads.Load(),
		Programs: m.programs.Load(),
		Erases:   m.erases.Load(),
	}
}
