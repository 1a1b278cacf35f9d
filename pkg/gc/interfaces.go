package gc

import (
	"context"
	"time"

	"github.com/marmos91/ftlgc/pkg/flash"
)

// Mapping resolves and repoints the two slice mapping directions.
type Mapping interface {
	// VirtualOwner returns the logical slice stored at vsa, or NoLSA.
	VirtualOwner(vsa flash.VSA) flash.LSA

	// LogicalOwner returns the virtual slice currently holding lsa, or NoVSA.
	LogicalOwner(lsa flash.LSA) flash.VSA

	// Map points lsa at vsa and vsa back at lsa.
	Map(lsa flash.LSA, vsa flash.VSA)
}

// Allocator hands out relocation targets and takes back erased blocks.
//
// It is only ever called from inside RunGarbageCollection, with the die's
// collector lock held, so implementations must not call back into the
// Collector.
type Allocator interface {
	// AllocateForGC returns a free slice on die for relocated data. The slice
	// must not belong to exclude. When the allocation fills the die's GC
	// write block, that block is returned as filled so the collector can
	// list it; otherwise filled is NoBlock.
	AllocateForGC(die flash.DieID, exclude flash.BlockID) (vsa flash.VSA, filled flash.BlockID, err error)

	// EraseBlock erases block, increments its wear, resets its invalid count
	// and returns it to the free pool.
	EraseBlock(ctx context.Context, die flash.DieID, block flash.BlockID) error
}

// Pipeline is the asynchronous NAND request path. Submission never waits
// for completion.
type Pipeline interface {
	// AcquireSlot blocks until a request slot is free.
	AcquireSlot(ctx context.Context) (uint32, error)

	// AcquireBuffer blocks until a temp data buffer on die is free.
	AcquireBuffer(ctx context.Context, die flash.DieID) (uint32, error)

	// ReleaseSlot returns a slot that was never submitted.
	ReleaseSlot(slot uint32)

	// ReleaseBuffer returns a buffer that no submitted request uses.
	ReleaseBuffer(buf uint32)

	// SubmitRead queues a read of vsa into buf.
	SubmitRead(slot, buf uint32, lsa flash.LSA, vsa flash.VSA)

	// SubmitWrite queues a program of buf to vsa. It is ordered after any
	// earlier request on the same buffer, and releases the buffer on
	// completion.
	SubmitWrite(slot, buf uint32, lsa flash.LSA, vsa flash.VSA)
}

// Metrics receives GC observations. A nil Metrics disables collection.
type Metrics interface {
	// ObserveSelection records one victim selection.
	ObserveSelection(die flash.DieID, policy string, invalid, score uint32, scanned int, duration time.Duration)

	// ObserveCycle records one completed reclamation.
	ObserveCycle(die flash.DieID, policy string, migrated int, fastPath bool, duration time.Duration)

	// RecordFatal records a fatal GC error by kind.
	RecordFatal(die flash.DieID, kind string)

	// SetCandidates reports the number of blocks on die with invalid slices.
	SetCandidates(die flash.DieID, n int)
}
