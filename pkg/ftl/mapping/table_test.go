package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ftlgc/pkg/flash"
)

func newTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(8, 16)
	require.NoError(t, err)
	return tbl
}

func TestNewRejectsBadSizes(t *testing.T) {
	tests := []struct {
		name             string
		logical, virtual uint32
	}{
		{"zero logical", 0, 16},
		{"zero virtual", 8, 0},
		{"logical exceeds virtual", 17, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.logical, tt.virtual)
			assert.Error(t, err)
		})
	}
}

func TestEmptyTable(t *testing.T) {
	tbl := newTable(t)

	assert.Equal(t, uint32(8), tbl.LogicalSlices())
	assert.Equal(t, uint32(16), tbl.VirtualSlices())
	assert.Equal(t, flash.NoVSA, tbl.LogicalOwner(3))
	assert.Equal(t, flash.NoLSA, tbl.VirtualOwner(3))
	assert.Equal(t, flash.NoVSA, tbl.LogicalOwner(100), "out of range")
	assert.Equal(t, flash.NoLSA, tbl.VirtualOwner(100), "out of range")
	assert.Zero(t, tbl.Mapped())
	assert.NoError(t, tbl.Check())
}

func TestMapAndRemap(t *testing.T) {
	tbl := newTable(t)

	tbl.Map(2, 5)
	assert.Equal(t, flash.VSA(5), tbl.LogicalOwner(2))
	assert.Equal(t, flash.LSA(2), tbl.VirtualOwner(5))
	assert.True(t, tbl.IsValid(5))

	tbl.Map(2, 9)
	assert.Equal(t, flash.VSA(9), tbl.LogicalOwner(2))
	assert.Equal(t, flash.NoLSA, tbl.VirtualOwner(5), "stale reverse entry cleared")
	assert.False(t, tbl.IsValid(5))
	assert.True(t, tbl.IsValid(9))
	assert.Equal(t, 1, tbl.Mapped())
	assert.NoError(t, tbl.Check())
}

func TestUnmap(t *testing.T) {
	tbl := newTable(t)
	tbl.Map(1, 4)

	assert.Equal(t, flash.VSA(4), tbl.Unmap(1))
	assert.Equal(t, flash.NoVSA, tbl.LogicalOwner(1))
	assert.Equal(t, flash.NoLSA, tbl.VirtualOwner(4))
	assert.Equal(t, flash.NoVSA, tbl.Unmap(1), "second unmap finds nothing")
	assert.Equal(t, flash.NoVSA, tbl.Unmap(99))
}

func TestClearVirtualAndReset(t *testing.T) {
	tbl := newTable(t)
	tbl.Map(0, 0)
	tbl.Map(1, 1)

	tbl.ClearVirtual(0)
	assert.Equal(t, flash.NoLSA, tbl.VirtualOwner(0))
	assert.Error(t, tbl.Check(), "lsa 0 now points at a slot that does not name it")

	tbl.Reset()
	assert.Zero(t, tbl.Mapped())
	assert.NoError(t, tbl.Check())
}
