package nand

import (
	"github.com/marmos91/ftlgc/pkg/flash"
)

// Op is a NAND operation type.
type Op uint8

const (
	OpRead Op = iota
	OpProgram
	OpErase
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpProgram:
		return "program"
	case OpErase:
		return "erase"
	default:
		return "unknown"
	}
}

// noBuffer marks requests that carry no data.
const noBuffer = ^uint32(0)

// request is one queued NAND operation. It runs only after every channel in
// after is closed, and closes done when it completes.
type request struct {
	op    Op
	slot  uint32
	buf   uint32
	lsa   flash.LSA
	vsa   flash.VSA
	die   flash.DieID
	block flash.BlockID

	after []<-chan struct{}
	done  chan struct{}
	err   error
}
