// Package gc implements victim selection and reclamation for the flash
// translation layer.
//
// Blocks accumulate invalid slices as the host overwrites or trims data.
// The Collector tracks every closed block in a per-die victim registry
// bucketed by invalid count, ranks candidates with a pluggable scoring
// policy, and reclaims the winner: still-valid slices are relocated through
// the asynchronous NAND pipeline, both mapping directions are repointed, and
// the block is erased and returned to the free pool.
//
// Usage:
//
//	collector, err := gc.New(table, mappingTable, ftl, pipeline, gc.Options{
//		Policy: policy.CAT{},
//	})
//	...
//	stats, err := collector.RunGarbageCollection(ctx, die)
//	if gc.IsFatal(err) {
//		// the die has no reclaimable capacity left, or metadata is corrupt
//	}
//
// Aging uses a logical clock per die that only advances when a block gains
// an invalid slice. A block's age is the number of ticks since its baseline;
// the baseline is stamped at erase time, and additionally at every dirtying
// event for policies that ask for it (CAT).
//
// The collector does not wait for migration requests to complete. Ordering
// between the reads, writes and the final erase is the pipeline's contract.
package gc
