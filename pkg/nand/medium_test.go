package nand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ftlgc/pkg/bufpool"
	"github.com/marmos91/ftlgc/pkg/flash"
)

func testGeometry() flash.Geometry {
	return flash.Geometry{Dies: 2, BlocksPerDie: 4, PagesPerBlock: 4, PageSize: 64}
}

func stamped(lsa flash.LSA) []byte {
	buf := make([]byte, 64)
	bufpool.Stamp(buf, lsa)
	return buf
}

func TestMediumProgramRead(t *testing.T) {
	geo := testGeometry()
	m := NewMedium(geo)
	vsa := geo.Translate(1, 2, 3)

	require.NoError(t, m.Program(vsa, 42, stamped(42)))
	assert.Equal(t, flash.LSA(42), m.Stamp(vsa))

	buf := make([]byte, 64)
	require.NoError(t, m.Read(vsa, 42, buf))
	assert.Equal(t, uint32(42), bufpool.ReadStamp(buf))

	require.NoError(t, m.Read(vsa, flash.NoLSA, buf), "NoLSA skips the ownership check")
	assert.Equal(t, MediumStats{Reads: 2, Programs: 1}, m.Stats())
}

func TestMediumErrors(t *testing.T) {
	geo := testGeometry()
	m := NewMedium(geo)
	vsa := geo.Translate(0, 1, 0)
	buf := make([]byte, 64)

	assert.ErrorIs(t, m.Read(vsa, flash.NoLSA, buf), ErrUnprogrammed)
	assert.ErrorIs(t, m.Program(vsa, 7, stamped(8)), ErrDataMismatch)

	require.NoError(t, m.Program(vsa, 7, stamped(7)))
	assert.ErrorIs(t, m.Program(vsa, 9, stamped(9)), ErrProgramDirty)
	assert.ErrorIs(t, m.Read(vsa, 9, buf), ErrDataMismatch)

	assert.ErrorIs(t, m.Read(geo.TotalSlices(), flash.NoLSA, buf), ErrOutOfRange)
	assert.ErrorIs(t, m.Program(flash.NoVSA, 1, stamped(1)), ErrOutOfRange)
	assert.ErrorIs(t, m.Erase(2, 0), ErrOutOfRange)
	assert.ErrorIs(t, m.Erase(0, 4), ErrOutOfRange)
}

func TestMediumErase(t *testing.T) {
	geo := testGeometry()
	m := NewMedium(geo)

	for page := uint32(0); page < geo.PagesPerBlock; page++ {
		require.NoError(t, m.Program(geo.Translate(1, 0, page), page, stamped(page)))
	}
	other := geo.Translate(0, 0, 0)
	require.NoError(t, m.Program(other, 99, stamped(99)))

	require.NoError(t, m.Erase(1, 0))
	for page := uint32(0); page < geo.PagesPerBlock; page++ {
		assert.Equal(t, flash.NoLSA, m.Stamp(geo.Translate(1, 0, page)))
	}
	assert.Equal(t, flash.LSA(99), m.Stamp(other), "other die untouched")

	require.NoError(t, m.Program(geo.Translate(1, 0, 0), 5, stamped(5)), "erased page is programmable")
	assert.Equal(t, uint64(1), m.Stats().Erases)
}
