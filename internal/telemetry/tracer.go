package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for flash and GC spans.
const (
	// ========================================================================
	// Flash addressing
	// ========================================================================
	AttrDie   = "flash.die"
	AttrBlock = "flash.block"
	AttrLSA   = "flash.lsa"
	AttrVSA   = "flash.vsa"

	// ========================================================================
	// Garbage collection
	// ========================================================================
	AttrPolicy   = "gc.policy"
	AttrInvalid  = "gc.invalid"
	AttrScore    = "gc.score"
	AttrMigrated = "gc.migrated"
	AttrFree     = "gc.free_blocks"

	// ========================================================================
	// Simulation
	// ========================================================================
	AttrRunID    = "sim.run_id"
	AttrWorkload = "sim.workload"
	AttrWrites   = "sim.writes"
)

// Span names.
// Format: <component>.<operation>
const (
	SpanGCCycle     = "gc.cycle"
	SpanFTLWrite    = "ftl.write"
	SpanFTLTrim     = "ftl.trim"
	SpanSimRun      = "sim.run"
	SpanSnapshotIO  = "snapshot.io"
	SpanSnapshotGet = "snapshot.load"
)

// Die returns an attribute for a die index
func Die(die uint32) attribute.KeyValue {
	return attribute.Int64(AttrDie, int64(die))
}

// Block returns an attribute for a block index
func Block(block uint32) attribute.KeyValue {
	return attribute.Int64(AttrBlock, int64(block))
}

// LSA returns an attribute for a logical slice address
func LSA(lsa uint32) attribute.KeyValue {
	return attribute.Int64(AttrLSA, int64(lsa))
}

// VSA returns an attribute for a virtual slice address
func VSA(vsa uint32) attribute.KeyValue {
	return attribute.Int64(AttrVSA, int64(vsa))
}

// Policy returns an attribute for the GC policy name
func Policy(name string) attribute.KeyValue {
	return attribute.String(AttrPolicy, name)
}

// Invalid returns an attribute for a victim's invalid slice count
func Invalid(n uint32) attribute.KeyValue {
	return attribute.Int64(AttrInvalid, int64(n))
}

// Score returns an attribute for a victim's policy score
func Score(score uint32) attribute.KeyValue {
	return attribute.Int64(AttrScore, int64(score))
}

// Migrated returns an attribute for relocated slice count
func Migrated(n int) attribute.KeyValue {
	return attribute.Int(AttrMigrated, n)
}

// FreeBlocks returns an attribute for a die's free block count
func FreeBlocks(n int) attribute.KeyValue {
	return attribute.Int(AttrFree, n)
}

// RunID returns an attribute for a simulation run ID
func RunID(id string) attribute.KeyValue {
	return attribute.String(AttrRunID, id)
}

// Workload returns an attribute for the workload generator name
func Workload(name string) attribute.KeyValue {
	return attribute.String(AttrWorkload, name)
}

// Writes returns an attribute for a host write count
func Writes(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrWrites, int64(n))
}

// StartGCSpan starts a span for a GC operation on one die.
func StartGCSpan(ctx context.Context, name string, die uint32, policy string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, 2+len(attrs))
	allAttrs = append(allAttrs, Die(die), Policy(policy))
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartSimSpan starts the root span of a simulation run.
func StartSimSpan(ctx context.Context, runID, workload, policy string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSimRun, trace.WithAttributes(RunID(runID), Workload(workload), Policy(policy)))
}
