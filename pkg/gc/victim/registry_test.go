package victim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ftlgc/pkg/flash"
)

func newTestRegistry(t *testing.T) (*Registry, *flash.BlockTable) {
	t.Helper()
	geo := flash.Geometry{Dies: 2, BlocksPerDie: 8, PagesPerBlock: 4, PageSize: 512}
	table := flash.NewBlockTable(geo)
	return New(table), table
}

// insert sets the record's invalid count before linking, as the collector does.
func insert(t *testing.T, r *Registry, table *flash.BlockTable, die flash.DieID, block flash.BlockID, invalid uint32) {
	t.Helper()
	table.Get(die, block).InvalidSlices = invalid
	require.NoError(t, r.Insert(die, block, invalid))
	require.NoError(t, r.Check(die))
}

func TestRegistry_InsertAppendsToTail(t *testing.T) {
	r, table := newTestRegistry(t)

	insert(t, r, table, 0, 3, 2)
	insert(t, r, table, 0, 1, 2)
	insert(t, r, table, 0, 5, 2)

	assert.Equal(t, []flash.BlockID{3, 1, 5}, r.Members(0, 2))
	assert.Equal(t, flash.BlockID(3), r.Head(0, 2))
	assert.Equal(t, flash.BlockID(5), r.Tail(0, 2))
	assert.Equal(t, 3, r.Len(0, 2))
	assert.Equal(t, 0, r.Len(1, 2), "other die untouched")
	assert.Equal(t, flash.StateListed, table.Get(0, 1).State)
}

func TestRegistry_InsertRejectsOutOfRangeBucket(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.Insert(0, 0, 5)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRegistry_DetachAllPositions(t *testing.T) {
	tests := []struct {
		name   string
		detach flash.BlockID
		want   []flash.BlockID
	}{
		{name: "head", detach: 1, want: []flash.BlockID{2, 3}},
		{name: "interior", detach: 2, want: []flash.BlockID{1, 3}},
		{name: "tail", detach: 3, want: []flash.BlockID{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, table := newTestRegistry(t)
			for _, b := range []flash.BlockID{1, 2, 3} {
				insert(t, r, table, 0, b, 3)
			}

			require.NoError(t, r.Detach(0, tt.detach))
			table.Get(0, tt.detach).State = flash.StateReclaiming

			assert.Equal(t, tt.want, r.Members(0, 3))
			assert.Equal(t, flash.NoBlock, table.Get(0, tt.detach).Next)
			assert.Equal(t, flash.NoBlock, table.Get(0, tt.detach).Prev)
			require.NoError(t, r.Check(0))
		})
	}
}

func TestRegistry_DetachSoleNode(t *testing.T) {
	r, table := newTestRegistry(t)
	insert(t, r, table, 1, 4, 1)

	require.NoError(t, r.Detach(1, 4))
	table.Get(1, 4).State = flash.StateReclaiming

	assert.Equal(t, flash.NoBlock, r.Head(1, 1))
	assert.Equal(t, flash.NoBlock, r.Tail(1, 1))
	assert.Equal(t, 0, r.Len(1, 1))
	require.NoError(t, r.Check(1))
}

func TestRegistry_DetachNotListed(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.Detach(0, 2)
	assert.ErrorIs(t, err, ErrNotListed)
}

func TestRegistry_InsertDetachIsInverse(t *testing.T) {
	r, table := newTestRegistry(t)
	insert(t, r, table, 0, 0, 2)
	insert(t, r, table, 0, 6, 2)
	insert(t, r, table, 0, 7, 3)

	beforeHead, beforeTail := r.Head(0, 2), r.Tail(0, 2)
	beforeMembers := r.Members(0, 2)

	insert(t, r, table, 0, 4, 2)
	require.NoError(t, r.Detach(0, 4))
	table.Get(0, 4).State = flash.StateOpen

	assert.Equal(t, beforeHead, r.Head(0, 2))
	assert.Equal(t, beforeTail, r.Tail(0, 2))
	assert.Equal(t, beforeMembers, r.Members(0, 2))
	assert.Equal(t, []flash.BlockID{7}, r.Members(0, 3))
	require.NoError(t, r.Check(0))
}

func TestRegistry_PopHeadIsFIFO(t *testing.T) {
	r, table := newTestRegistry(t)
	insert(t, r, table, 0, 5, 4)
	insert(t, r, table, 0, 2, 4)

	got, err := r.PopHead(0, 4)
	require.NoError(t, err)
	assert.Equal(t, flash.BlockID(5), got)
	table.Get(0, got).State = flash.StateReclaiming

	got, err = r.PopHead(0, 4)
	require.NoError(t, err)
	assert.Equal(t, flash.BlockID(2), got)
	table.Get(0, got).State = flash.StateReclaiming

	got, err = r.PopHead(0, 4)
	require.NoError(t, err)
	assert.Equal(t, flash.NoBlock, got)
	require.NoError(t, r.Check(0))
}

func TestRegistry_HighestSkipsBucketZero(t *testing.T) {
	r, table := newTestRegistry(t)
	insert(t, r, table, 0, 1, 0)

	_, ok := r.Highest(0)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Candidates(0))

	insert(t, r, table, 0, 2, 1)
	insert(t, r, table, 0, 3, 3)

	idx, ok := r.Highest(0)
	require.True(t, ok)
	assert.Equal(t, uint32(3), idx)
	assert.Equal(t, 2, r.Candidates(0))
}

func TestRegistry_WalkOrder(t *testing.T) {
	r, table := newTestRegistry(t)
	insert(t, r, table, 0, 0, 0)
	insert(t, r, table, 0, 1, 1)
	insert(t, r, table, 0, 2, 3)
	insert(t, r, table, 0, 3, 1)
	insert(t, r, table, 0, 4, 3)

	var order []flash.BlockID
	r.Walk(0, func(block flash.BlockID, invalid uint32) bool {
		order = append(order, block)
		assert.Equal(t, table.Get(0, block).InvalidSlices, invalid)
		return true
	})
	assert.Equal(t, []flash.BlockID{2, 4, 1, 3}, order)

	order = order[:0]
	r.Walk(0, func(block flash.BlockID, _ uint32) bool {
		order = append(order, block)
		return len(order) < 2
	})
	assert.Equal(t, []flash.BlockID{2, 4}, order)
}

func TestRegistry_CheckDetectsCorruption(t *testing.T) {
	r, table := newTestRegistry(t)
	insert(t, r, table, 0, 1, 2)
	insert(t, r, table, 0, 2, 2)

	// Bucket/count mismatch.
	table.Get(0, 2).InvalidSlices = 3
	assert.ErrorIs(t, r.Check(0), ErrCorrupt)
	table.Get(0, 2).InvalidSlices = 2
	require.NoError(t, r.Check(0))

	// Broken back link.
	table.Get(0, 2).Prev = flash.NoBlock
	assert.ErrorIs(t, r.Check(0), ErrCorrupt)
	table.Get(0, 2).Prev = 1

	// Listed but unreachable.
	table.Get(0, 6).State = flash.StateListed
	assert.ErrorIs(t, r.Check(0), ErrCorrupt)
}

func TestRegistry_Reset(t *testing.T) {
	r, table := newTestRegistry(t)
	insert(t, r, table, 0, 1, 2)
	r.Reset()

	assert.Equal(t, flash.NoBlock, r.Head(0, 2))
	assert.Equal(t, 0, r.Len(0, 2))
	assert.Equal(t, 5, r.Buckets())
}
