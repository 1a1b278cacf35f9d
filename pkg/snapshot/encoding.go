package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/ftlgc/internal/logger"
)

// ============================================================================
// Key Namespace
// ============================================================================
//
// Data Type    Prefix   Key Format        Value Type
// ====================================================
// Snapshots    "snap:"  snap:<name>       Snapshot (JSON)

const prefixSnapshot = "snap:"

// keySnapshot generates a key for a snapshot: "snap:<name>"
func keySnapshot(name string) []byte {
	return []byte(prefixSnapshot + name)
}

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode %q: %w", snap.Name, err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return &snap, nil
}

// ============================================================================
// Logging
// ============================================================================

// badgerLogger routes BadgerDB's internal logging through the structured
// logger. Info chatter is demoted to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Error("BadgerDB: " + trimNewline(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warn("BadgerDB: " + trimNewline(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debug("BadgerDB: " + trimNewline(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Debug("BadgerDB: " + trimNewline(fmt.Sprintf(format, args...)))
}

func trimNewline(s string) string {
	for len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	return s
}
