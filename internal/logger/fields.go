package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently so simulation runs can be filtered per die,
// per block or per policy.
const (
	// ========================================================================
	// Run & Tracing
	// ========================================================================
	KeyRunID   = "run_id"   // Simulation run identifier
	KeyTraceID = "trace_id" // OpenTelemetry trace ID
	KeySpanID  = "span_id"  // OpenTelemetry span ID

	// ========================================================================
	// Flash Addressing
	// ========================================================================
	KeyDie   = "die"   // Die index
	KeyBlock = "block" // Block index within a die
	KeyPage  = "page"  // Page index within a block
	KeyVSA   = "vsa"   // Virtual slice address
	KeyLSA   = "lsa"   // Logical slice address

	// ========================================================================
	// Garbage Collection
	// ========================================================================
	KeyPolicy   = "policy"   // Victim scoring policy
	KeyInvalid  = "invalid"  // Invalid slices in a block
	KeyValid    = "valid"    // Valid slices in a block
	KeyScore    = "score"    // Policy score of a candidate
	KeyAge      = "age"      // Ticks since the block's baseline
	KeyWear     = "wear"     // Erase count
	KeyTick     = "tick"     // Aging clock value
	KeyScanned  = "scanned"  // Candidates scored during selection
	KeyMigrated = "migrated" // Slices relocated by a reclamation
	KeyFree     = "free"     // Free blocks on a die
	KeyKind     = "kind"     // Fatal error kind

	// ========================================================================
	// Pipeline
	// ========================================================================
	KeyRequest = "request" // NAND request kind: read, write, erase
	KeySlot    = "slot"    // Request slot index
	KeyBuffer  = "buffer"  // Temp buffer index
	KeyWorkers = "workers" // Worker goroutines

	// ========================================================================
	// Workload & Results
	// ========================================================================
	KeyWorkload   = "workload"    // Workload generator name
	KeyWrites     = "writes"      // Host writes issued
	KeyWAF        = "waf"         // Write amplification factor
	KeyDurationMs = "duration_ms" // Duration in milliseconds
	KeyPath       = "path"        // File or directory path

	// ========================================================================
	// API
	// ========================================================================
	KeyRequestID = "request_id" // HTTP request ID
	KeyMethod    = "method"     // HTTP method
	KeyStatus    = "status"     // HTTP response status

	// ========================================================================
	// Errors
	// ========================================================================
	KeyError = "error" // Error message
)

// ============================================================================
// Field Constructors
// ============================================================================

// RunID creates a run ID attribute.
func RunID(id string) slog.Attr {
	return slog.String(KeyRunID, id)
}

// Die creates a die attribute.
func Die(die uint32) slog.Attr {
	return slog.Any(KeyDie, die)
}

// Block creates a block attribute.
func Block(block uint32) slog.Attr {
	return slog.Any(KeyBlock, block)
}

// Policy creates a policy attribute.
func Policy(name string) slog.Attr {
	return slog.String(KeyPolicy, name)
}

// DurationMs creates a duration attribute in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err creates an error attribute. Returns an empty attribute for a nil error,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
