// Package bufpool provides reusable page buffers for the NAND pipeline.
//
// Every temp data buffer the pipeline hands out, and every buffer the
// simulator fills for a host write, is exactly one page. Pooling them keeps
// long simulation runs from churning the Go heap with page-sized garbage.
//
// The first four bytes of a page carry the logical slice address that was
// written into it (little endian). The simulated medium keeps only that
// stamp, which is enough to prove after any number of relocations that each
// logical slice still reads back as itself.
//
// # Usage
//
//	pool := bufpool.New(4096)
//	buf := pool.Get()
//	defer pool.Put(buf)
//	bufpool.Stamp(buf, lsa)
package bufpool

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// StampSize is the number of leading page bytes used by Stamp.
const StampSize = 4

// DefaultPageSize matches flash.DefaultGeometry.
const DefaultPageSize = 4 << 10

// Pool manages buffers of a single page size.
type Pool struct {
	size        int
	pool        sync.Pool
	outstanding atomic.Int64
}

// New creates a pool of size-byte buffers. Sizes below StampSize are raised
// to StampSize so every buffer can carry a stamp.
func New(size int) *Pool {
	if size < StampSize {
		size = StampSize
	}

	p := &Pool{size: size}
	p.pool = sync.Pool{
		New: func() any {
			buf := make([]byte, p.size)
			return &buf
		},
	}
	return p
}

// Size returns the buffer size of the pool.
func (p *Pool) Size() int {
	return p.size
}

// Get returns a zeroed page buffer. The caller must Put it back.
func (p *Pool) Get() []byte {
	buf := *p.pool.Get().(*[]byte)
	clear(buf)
	p.outstanding.Add(1)
	return buf
}

// Put returns a buffer to the pool. Buffers of a foreign size are dropped.
//
// Thread Safety: Safe to call concurrently from multiple goroutines.
func (p *Pool) Put(buf []byte) {
	if buf == nil || cap(buf) != p.size {
		return
	}
	p.outstanding.Add(-1)
	full := buf[:cap(buf)]
	p.pool.Put(&full)
}

// Outstanding returns the number of buffers handed out and not yet returned.
func (p *Pool) Outstanding() int64 {
	return p.outstanding.Load()
}

// =============================================================================
// Stamps
// =============================================================================

// Stamp writes lsa into the leading bytes of buf.
func Stamp(buf []byte, lsa uint32) {
	binary.LittleEndian.PutUint32(buf[:StampSize], lsa)
}

// ReadStamp returns the logical slice address stamped into buf.
func ReadStamp(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[:StampSize])
}
