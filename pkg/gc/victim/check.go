package victim

import (
	"fmt"

	"github.com/marmos91/ftlgc/pkg/flash"
)

// Check verifies the registry invariants for one die:
//   - an empty bucket has head == tail == NoBlock
//   - head.Prev and tail.Next are NoBlock
//   - forward traversal from head reaches tail, backward traversal mirrors it
//   - every linked block is StateListed and its InvalidSlices matches its bucket
//   - every StateListed block on the die is linked exactly once
//
// It is O(blocks) and meant for tests and paranoid mode.
func (r *Registry) Check(die flash.DieID) error {
	blocks := r.table.Die(die)
	seen := make(map[flash.BlockID]uint32, len(blocks))

	for idx := range r.buckets[die] {
		b := r.buckets[die][idx]
		if (b.head == flash.NoBlock) != (b.tail == flash.NoBlock) {
			return fmt.Errorf("%w: die %d bucket %d has head %d tail %d",
				ErrCorrupt, die, idx, b.head, b.tail)
		}
		if b.head == flash.NoBlock {
			if b.size != 0 {
				return fmt.Errorf("%w: die %d bucket %d empty but size %d", ErrCorrupt, die, idx, b.size)
			}
			continue
		}
		if blocks[b.head].Prev != flash.NoBlock {
			return fmt.Errorf("%w: die %d bucket %d head %d has predecessor %d",
				ErrCorrupt, die, idx, b.head, blocks[b.head].Prev)
		}

		count := 0
		prev := flash.NoBlock
		for cur := b.head; cur != flash.NoBlock; cur = blocks[cur].Next {
			if int(cur) >= len(blocks) {
				return fmt.Errorf("%w: die %d bucket %d links to out-of-range block %d", ErrCorrupt, die, idx, cur)
			}
			if _, dup := seen[cur]; dup {
				return fmt.Errorf("%w: die %d block %d linked twice", ErrCorrupt, die, cur)
			}
			seen[cur] = uint32(idx)
			rec := blocks[cur]
			if rec.Prev != prev {
				return fmt.Errorf("%w: die %d block %d prev is %d, want %d", ErrCorrupt, die, cur, rec.Prev, prev)
			}
			if rec.State != flash.StateListed {
				return fmt.Errorf("%w: die %d block %d in bucket %d is %s", ErrCorrupt, die, cur, idx, rec.State)
			}
			if rec.InvalidSlices != uint32(idx) {
				return fmt.Errorf("%w: die %d block %d has %d invalid slices but sits in bucket %d",
					ErrCorrupt, die, cur, rec.InvalidSlices, idx)
			}
			prev = cur
			count++
		}
		if prev != b.tail {
			return fmt.Errorf("%w: die %d bucket %d traversal ends at %d, tail is %d",
				ErrCorrupt, die, idx, prev, b.tail)
		}
		if count != b.size {
			return fmt.Errorf("%w: die %d bucket %d has %d nodes, size %d", ErrCorrupt, die, idx, count, b.size)
		}
	}

	for id := range blocks {
		if blocks[id].State != flash.StateListed {
			continue
		}
		if _, ok := seen[flash.BlockID(id)]; !ok {
			return fmt.Errorf("%w: die %d block %d is listed but unreachable", ErrCorrupt, die, id)
		}
	}
	return nil
}
