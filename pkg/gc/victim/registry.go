// Package victim implements the GC victim registry: for every die, an array
// of buckets indexed by invalid-slice count, each bucket a doubly linked list
// of block IDs.
//
// The lists are intrusive: link fields live in the flash.BlockTable records
// and hold block indices, never pointers. Insert and Detach are O(1).
//
// The registry is a pure data structure. It does not know about aging, scoring
// or reclamation; the gc package layers those on top.
//
// Thread Safety:
// Registry does no locking. The gc.Collector serialises all access per die.
package victim

import (
	"errors"
	"fmt"

	"github.com/marmos91/ftlgc/pkg/flash"
)

var (
	// ErrNotListed is returned by Detach for a block that is not linked into
	// any bucket.
	ErrNotListed = errors.New("block is not in the victim registry")

	// ErrCorrupt is returned when bucket or link bookkeeping is inconsistent.
	ErrCorrupt = errors.New("victim registry corrupt")
)

// bucket is the head and tail of one invalid-count list.
type bucket struct {
	head flash.BlockID
	tail flash.BlockID
	size int
}

// Registry holds the per-die victim buckets.
type Registry struct {
	table   *flash.BlockTable
	buckets [][]bucket // [die][invalidCount]
}

// New creates a registry over table with every bucket empty.
func New(table *flash.BlockTable) *Registry {
	geo := table.Geometry()
	r := &Registry{
		table:   table,
		buckets: make([][]bucket, geo.Dies),
	}
	for die := range r.buckets {
		r.buckets[die] = make([]bucket, geo.PagesPerBlock+1)
	}
	r.Reset()
	return r
}

// Reset empties every bucket on every die.
//
// Block link fields are left untouched; callers that reset the registry
// without resetting the block table must not rely on stale links.
func (r *Registry) Reset() {
	for die := range r.buckets {
		for i := range r.buckets[die] {
			r.buckets[die][i] = bucket{head: flash.NoBlock, tail: flash.NoBlock}
		}
	}
}

// Buckets returns the number of buckets per die (PagesPerBlock + 1).
func (r *Registry) Buckets() int {
	return len(r.buckets[0])
}

// Insert appends block to the tail of bucket invalid on die.
func (r *Registry) Insert(die flash.DieID, block flash.BlockID, invalid uint32) error {
	if int(invalid) >= len(r.buckets[die]) {
		return fmt.Errorf("%w: invalid count %d out of range for block %d on die %d",
			ErrCorrupt, invalid, block, die)
	}

	b := &r.buckets[die][invalid]
	rec := r.table.Get(die, block)

	if b.tail != flash.NoBlock {
		rec.Prev = b.tail
		rec.Next = flash.NoBlock
		r.table.Get(die, b.tail).Next = block
		b.tail = block
	} else {
		rec.Prev = flash.NoBlock
		rec.Next = flash.NoBlock
		b.head = block
		b.tail = block
	}
	b.size++
	rec.State = flash.StateListed
	return nil
}

// Detach unlinks block from the bucket matching its InvalidSlices field and
// clears its own links. The block's state is left for the caller to set.
func (r *Registry) Detach(die flash.DieID, block flash.BlockID) error {
	rec := r.table.Get(die, block)
	if rec.State != flash.StateListed {
		return fmt.Errorf("%w: block %d on die %d is %s", ErrNotListed, block, die, rec.State)
	}
	if int(rec.InvalidSlices) >= len(r.buckets[die]) {
		return fmt.Errorf("%w: block %d on die %d has invalid count %d",
			ErrCorrupt, block, die, rec.InvalidSlices)
	}

	b := &r.buckets[die][rec.InvalidSlices]
	next, prev := rec.Next, rec.Prev

	switch {
	case next != flash.NoBlock && prev != flash.NoBlock:
		// interior
		r.table.Get(die, prev).Next = next
		r.table.Get(die, next).Prev = prev
	case next == flash.NoBlock && prev != flash.NoBlock:
		// tail
		if b.tail != block {
			return fmt.Errorf("%w: block %d on die %d has no successor but tail is %d",
				ErrCorrupt, block, die, b.tail)
		}
		r.table.Get(die, prev).Next = flash.NoBlock
		b.tail = prev
	case next != flash.NoBlock && prev == flash.NoBlock:
		// head
		if b.head != block {
			return fmt.Errorf("%w: block %d on die %d has no predecessor but head is %d",
				ErrCorrupt, block, die, b.head)
		}
		r.table.Get(die, next).Prev = flash.NoBlock
		b.head = next
	default:
		// sole node
		if b.head != block || b.tail != block {
			return fmt.Errorf("%w: block %d on die %d unlinked but bucket %d is (%d, %d)",
				ErrCorrupt, block, die, rec.InvalidSlices, b.head, b.tail)
		}
		b.head = flash.NoBlock
		b.tail = flash.NoBlock
	}

	b.size--
	rec.Next = flash.NoBlock
	rec.Prev = flash.NoBlock
	return nil
}

// PopHead detaches and returns the head of bucket invalid on die, or
// NoBlock if the bucket is empty.
func (r *Registry) PopHead(die flash.DieID, invalid uint32) (flash.BlockID, error) {
	head := r.buckets[die][invalid].head
	if head == flash.NoBlock {
		return flash.NoBlock, nil
	}
	if err := r.Detach(die, head); err != nil {
		return flash.NoBlock, err
	}
	return head, nil
}

// Head returns the first block of a bucket, or NoBlock.
func (r *Registry) Head(die flash.DieID, invalid uint32) flash.BlockID {
	return r.buckets[die][invalid].head
}

// Tail returns the last block of a bucket, or NoBlock.
func (r *Registry) Tail(die flash.DieID, invalid uint32) flash.BlockID {
	return r.buckets[die][invalid].tail
}

// Next returns the successor of block in its bucket, or NoBlock.
func (r *Registry) Next(die flash.DieID, block flash.BlockID) flash.BlockID {
	return r.table.Get(die, block).Next
}

// Len returns the number of blocks in a bucket.
func (r *Registry) Len(die flash.DieID, invalid uint32) int {
	return r.buckets[die][invalid].size
}

// Candidates returns the number of blocks on die with at least one invalid
// slice, i.e. the blocks selection may return.
func (r *Registry) Candidates(die flash.DieID) int {
	n := 0
	for i := 1; i < len(r.buckets[die]); i++ {
		n += r.buckets[die][i].size
	}
	return n
}

// Highest returns the highest bucket index >= 1 that is non-empty, and false
// if every such bucket is empty. Bucket 0 is never considered.
func (r *Registry) Highest(die flash.DieID) (uint32, bool) {
	for i := len(r.buckets[die]) - 1; i > 0; i-- {
		if r.buckets[die][i].head != flash.NoBlock {
			return uint32(i), true
		}
	}
	return 0, false
}

// Walk visits every block in buckets [1, PagesPerBlock] of die, highest
// bucket first and in list order within a bucket. The successor is read
// before fn runs, so fn observing a block never changes which block is
// visited next. Walking stops early when fn returns false.
func (r *Registry) Walk(die flash.DieID, fn func(block flash.BlockID, invalid uint32) bool) {
	for i := len(r.buckets[die]) - 1; i > 0; i-- {
		block := r.buckets[die][i].head
		for block != flash.NoBlock {
			next := r.table.Get(die, block).Next
			if !fn(block, uint32(i)) {
				return
			}
			block = next
		}
	}
}

// Members returns the blocks of one bucket in list order.
func (r *Registry) Members(die flash.DieID, invalid uint32) []flash.BlockID {
	out := make([]flash.BlockID, 0, r.buckets[die][invalid].size)
	for block := r.buckets[die][invalid].head; block != flash.NoBlock; block = r.table.Get(die, block).Next {
		out = append(out, block)
	}
	return out
}
