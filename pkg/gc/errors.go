package gc

import (
	"errors"
	"fmt"

	"github.com/marmos91/ftlgc/pkg/flash"
)

// Kind classifies a fatal GC condition.
type Kind int

const (
	// KindExhausted means no block on the die has any invalid slice: the
	// device is out of reclaimable capacity.
	KindExhausted Kind = iota + 1

	// KindStructural means the victim registry or block state machine is
	// inconsistent (detach of an absent block, impossible links).
	KindStructural

	// KindMappingCorrupt means an address resolved to "none" or to an
	// impossible location in the middle of a migration.
	KindMappingCorrupt
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindExhausted:
		return "Exhausted"
	case KindStructural:
		return "StructuralCorruption"
	case KindMappingCorrupt:
		return "MappingCorrupt"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// ErrNoVictim is wrapped by the exhaustion FatalError.
var ErrNoVictim = errors.New("no reclaimable block")

// FatalError is an unrecoverable GC fault. None of these conditions is worth
// retrying; the host decides whether to halt the device.
type FatalError struct {
	Kind  Kind
	Die   flash.DieID
	Block flash.BlockID
	Err   error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	if e.Block != flash.NoBlock {
		return fmt.Sprintf("gc fatal %s on die %d block %d: %v", e.Kind, e.Die, e.Block, e.Err)
	}
	return fmt.Sprintf("gc fatal %s on die %d: %v", e.Kind, e.Die, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// KindOf returns the Kind of a wrapped FatalError, or 0.
func KindOf(err error) Kind {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

func exhausted(die flash.DieID) *FatalError {
	return &FatalError{Kind: KindExhausted, Die: die, Block: flash.NoBlock, Err: ErrNoVictim}
}

func structural(die flash.DieID, block flash.BlockID, err error) *FatalError {
	return &FatalError{Kind: KindStructural, Die: die, Block: block, Err: err}
}

func mappingCorrupt(die flash.DieID, block flash.BlockID, format string, args ...any) *FatalError {
	return &FatalError{Kind: KindMappingCorrupt, Die: die, Block: block, Err: fmt.Errorf(format, args...)}
}
