// Package nand simulates the asynchronous NAND request path: a fixed pool of
// request slots, a fixed pool of page-sized temp buffers per die, and a set
// of workers that execute reads, programs and erases against an in-memory
// Medium.
//
// Submission never waits for completion. Ordering is expressed as
// dependencies instead:
//   - a request on a buffer runs after the previous request on that buffer,
//     so a relocation's read always lands before its program;
//   - a read or program on a block runs after the block's last erase and
//     its last program, so pages are programmed in order and never read
//     before they are written;
//   - an erase runs after every read and program issued to the block since
//     its previous erase.
//
// Slots and buffers are released on completion, so callers that need one
// when the pool is empty block in AcquireSlot or AcquireBuffer until an
// earlier request finishes.
package nand

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/bufpool"
	"github.com/marmos91/ftlgc/pkg/flash"
)

// Config configures a Pipeline.
type Config struct {
	// Workers is the number of goroutines executing requests.
	// Default: one per die
	Workers int `mapstructure:"workers" validate:"omitempty,min=1" yaml:"workers"`

	// Slots is the number of requests that may be outstanding at once. A
	// host write holds one while GC relocates with two more.
	// Default: 64
	Slots int `mapstructure:"slots" validate:"omitempty,min=3" yaml:"slots"`

	// BuffersPerDie is the number of temp data buffers on each die. A host
	// write holds one while GC relocates through another.
	// Default: 4
	BuffersPerDie int `mapstructure:"buffers_per_die" validate:"omitempty,min=2" yaml:"buffers_per_die"`

	// ReadLatency, ProgramLatency and EraseLatency are slept by a worker
	// before completing each operation. Zero runs at memory speed.
	ReadLatency    time.Duration `mapstructure:"read_latency" yaml:"read_latency"`
	ProgramLatency time.Duration `mapstructure:"program_latency" yaml:"program_latency"`
	EraseLatency   time.Duration `mapstructure:"erase_latency" yaml:"erase_latency"`
}

// applyDefaults fills in zero values.
func (c *Config) applyDefaults(geo flash.Geometry) {
	if c.Workers <= 0 {
		c.Workers = int(geo.Dies)
	}
	if c.Slots <= 0 {
		c.Slots = 64
	}
	if c.BuffersPerDie <= 0 {
		c.BuffersPerDie = 4
	}
}

// Stats summarizes pipeline activity.
type Stats struct {
	Submitted uint64 `json:"submitted" yaml:"submitted"`
	Completed uint64 `json:"completed" yaml:"completed"`
	Failed    uint64 `json:"failed" yaml:"failed"`
	Pending   int    `json:"pending" yaml:"pending"`
}

// Pipeline is the asynchronous NAND request queue.
type Pipeline struct {
	geo    flash.Geometry
	cfg    Config
	medium *Medium
	pool   *bufpool.Pool

	slots   chan uint32
	buffers []chan uint32
	data    [][]byte
	queue   chan *request

	// Dependency bookkeeping, guarded by depMu.
	depMu     sync.Mutex
	bufLast   []<-chan struct{}
	eraseLast []<-chan struct{}
	progLast  []<-chan struct{}
	blockOps  [][]<-chan struct{}

	inflight sync.WaitGroup

	// Worker management
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}
	started   bool

	mu          sync.Mutex
	stats       Stats
	lastError   error
	lastErrorAt time.Time
}

// New creates a pipeline over medium. Call Start before submitting.
func New(geo flash.Geometry, medium *Medium, cfg Config) (*Pipeline, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if medium == nil {
		return nil, fmt.Errorf("nand: medium is required")
	}
	cfg.applyDefaults(geo)

	p := &Pipeline{
		geo:       geo,
		cfg:       cfg,
		medium:    medium,
		pool:      bufpool.New(int(geo.PageSize)),
		slots:     make(chan uint32, cfg.Slots),
		buffers:   make([]chan uint32, geo.Dies),
		data:      make([][]byte, int(geo.Dies)*cfg.BuffersPerDie),
		queue:     make(chan *request, cfg.Slots),
		bufLast:   make([]<-chan struct{}, int(geo.Dies)*cfg.BuffersPerDie),
		eraseLast: make([]<-chan struct{}, geo.Dies*geo.BlocksPerDie),
		progLast:  make([]<-chan struct{}, geo.Dies*geo.BlocksPerDie),
		blockOps:  make([][]<-chan struct{}, geo.Dies*geo.BlocksPerDie),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	for i := 0; i < cfg.Slots; i++ {
		p.slots <- uint32(i)
	}
	for die := range p.buffers {
		p.buffers[die] = make(chan uint32, cfg.BuffersPerDie)
		for i := 0; i < cfg.BuffersPerDie; i++ {
			id := uint32(die*cfg.BuffersPerDie + i)
			p.data[id] = p.pool.Get()
			p.buffers[die] <- id
		}
	}
	return p, nil
}

// Medium returns the array the pipeline operates on.
func (p *Pipeline) Medium() *Medium {
	return p.medium
}

// Buffer returns the bytes of temp buffer buf. The caller must own buf.
func (p *Pipeline) Buffer(buf uint32) []byte {
	return p.data[buf]
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start launches the workers.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	logger.Debug("Starting NAND pipeline",
		logger.KeyWorkers, p.cfg.Workers,
		logger.KeySlot, p.cfg.Slots,
		logger.KeyBuffer, p.cfg.BuffersPerDie)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	// Monitor goroutine to close stoppedCh when all workers exit
	go func() {
		p.wg.Wait()
		close(p.stoppedCh)
	}()
}

// Stop drains queued requests and shuts the workers down, waiting at most
// timeout.
func (p *Pipeline) Stop(timeout time.Duration) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.stoppedCh:
		logger.Debug("NAND pipeline stopped")
	case <-time.After(timeout):
		logger.Warn("NAND pipeline stop timed out", "pending", p.Stats().Pending)
	}
}

// Wait blocks until every submitted request has completed.
func (p *Pipeline) Wait() {
	p.inflight.Wait()
}

// Close returns the temp buffers to the pool. The pipeline must be stopped.
func (p *Pipeline) Close() {
	for i, buf := range p.data {
		p.pool.Put(buf)
		p.data[i] = nil
	}
}

// =============================================================================
// Slots and buffers
// =============================================================================

// AcquireSlot blocks until a request slot is free.
func (p *Pipeline) AcquireSlot(ctx context.Context) (uint32, error) {
	select {
	case slot := <-p.slots:
		return slot, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// AcquireBuffer blocks until a temp buffer on die is free.
func (p *Pipeline) AcquireBuffer(ctx context.Context, die flash.DieID) (uint32, error) {
	if die >= p.geo.Dies {
		return 0, fmt.Errorf("%w: die %d", ErrOutOfRange, die)
	}
	select {
	case buf := <-p.buffers[die]:
		return buf, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ReleaseSlot returns a slot that was never submitted.
func (p *Pipeline) ReleaseSlot(slot uint32) {
	p.slots <- slot
}

// ReleaseBuffer returns a buffer that no pending request uses.
func (p *Pipeline) ReleaseBuffer(buf uint32) {
	p.buffers[buf/uint32(p.cfg.BuffersPerDie)] <- buf
}

// =============================================================================
// Submission
// =============================================================================

// SubmitRead queues a read of vsa into buf. The data must belong to lsa
// unless lsa is NoLSA.
func (p *Pipeline) SubmitRead(slot, buf uint32, lsa flash.LSA, vsa flash.VSA) {
	p.submit(&request{op: OpRead, slot: slot, buf: buf, lsa: lsa, vsa: vsa,
		die: p.geo.Die(vsa), block: p.geo.Block(vsa)})
}

// SubmitWrite queues a program of buf to vsa and releases buf on completion.
func (p *Pipeline) SubmitWrite(slot, buf uint32, lsa flash.LSA, vsa flash.VSA) {
	p.submit(&request{op: OpProgram, slot: slot, buf: buf, lsa: lsa, vsa: vsa,
		die: p.geo.Die(vsa), block: p.geo.Block(vsa)})
}

// SubmitErase queues an erase of block on die.
func (p *Pipeline) SubmitErase(slot uint32, die flash.DieID, block flash.BlockID) {
	p.submit(&request{op: OpErase, slot: slot, buf: noBuffer, lsa: flash.NoLSA, vsa: flash.NoVSA,
		die: die, block: block})
}

// Read synchronously reads vsa and returns the slice stamped in it. The
// stamp must match expect unless expect is NoLSA.
func (p *Pipeline) Read(ctx context.Context, expect flash.LSA, vsa flash.VSA) (flash.LSA, error) {
	if !p.geo.Contains(vsa) {
		return flash.NoLSA, fmt.Errorf("%w: read vsa %d", ErrOutOfRange, vsa)
	}
	slot, err := p.AcquireSlot(ctx)
	if err != nil {
		return flash.NoLSA, err
	}
	buf, err := p.AcquireBuffer(ctx, p.geo.Die(vsa))
	if err != nil {
		p.ReleaseSlot(slot)
		return flash.NoLSA, err
	}
	defer p.ReleaseBuffer(buf)

	req := &request{op: OpRead, slot: slot, buf: buf, lsa: expect, vsa: vsa,
		die: p.geo.Die(vsa), block: p.geo.Block(vsa)}
	p.submit(req)

	select {
	case <-req.done:
	case <-ctx.Done():
		// The request still owns buf; wait for it before releasing.
		<-req.done
		return flash.NoLSA, ctx.Err()
	}
	if req.err != nil {
		return flash.NoLSA, req.err
	}
	return bufpool.ReadStamp(p.data[buf]), nil
}

func (p *Pipeline) submit(req *request) {
	req.done = make(chan struct{})
	key := req.die*p.geo.BlocksPerDie + req.block

	p.depMu.Lock()
	if req.buf != noBuffer {
		if last := p.bufLast[req.buf]; last != nil {
			req.after = append(req.after, last)
		}
		p.bufLast[req.buf] = req.done
	}
	if key < uint32(len(p.blockOps)) {
		if req.op == OpErase {
			req.after = append(req.after, p.blockOps[key]...)
			if last := p.eraseLast[key]; last != nil {
				req.after = append(req.after, last)
			}
			p.blockOps[key] = nil
			p.eraseLast[key] = req.done
			p.progLast[key] = nil
		} else {
			if last := p.eraseLast[key]; last != nil {
				req.after = append(req.after, last)
			}
			if last := p.progLast[key]; last != nil {
				req.after = append(req.after, last)
			}
			if req.op == OpProgram {
				p.progLast[key] = req.done
			}
			p.blockOps[key] = append(pending(p.blockOps[key]), req.done)
		}
	}
	p.depMu.Unlock()

	p.mu.Lock()
	p.stats.Submitted++
	p.stats.Pending++
	p.mu.Unlock()

	p.inflight.Add(1)
	p.queue <- req
}

// pending drops the completed requests from ops in place.
func pending(ops []<-chan struct{}) []<-chan struct{} {
	kept := ops[:0]
	for _, done := range ops {
		select {
		case <-done:
		default:
			kept = append(kept, done)
		}
	}
	clear(ops[len(kept):])
	return kept
}

// =============================================================================
// Workers
// =============================================================================

// worker executes requests until stopCh is closed, then drains the queue.
//
// Requests are dequeued in submission order and only ever depend on earlier
// requests, so the oldest unfinished request can always make progress.
func (p *Pipeline) worker(_ context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case req := <-p.queue:
			p.process(req)
		case <-p.stopCh:
			p.drainQueue()
			logger.Debug("NAND worker stopped", "worker", id)
			return
		}
	}
}

// drainQueue processes remaining requests during shutdown.
func (p *Pipeline) drainQueue() {
	for {
		select {
		case req := <-p.queue:
			p.process(req)
		default:
			return
		}
	}
}

func (p *Pipeline) process(req *request) {
	for _, dep := range req.after {
		<-dep
	}
	req.after = nil

	var err error
	switch req.op {
	case OpRead:
		sleep(p.cfg.ReadLatency)
		err = p.medium.Read(req.vsa, req.lsa, p.data[req.buf])
	case OpProgram:
		sleep(p.cfg.ProgramLatency)
		err = p.medium.Program(req.vsa, req.lsa, p.data[req.buf])
	case OpErase:
		sleep(p.cfg.EraseLatency)
		err = p.medium.Erase(req.die, req.block)
	}
	req.err = err

	p.recordResult(req, err)
	close(req.done)

	if req.op == OpProgram {
		p.ReleaseBuffer(req.buf)
	}
	p.ReleaseSlot(req.slot)
	p.inflight.Done()
}

// recordResult updates counters after a request completes.
func (p *Pipeline) recordResult(req *request, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Pending--
	if err != nil {
		p.stats.Failed++
		p.lastError = err
		p.lastErrorAt = time.Now()
		logger.Error("NAND request failed",
			logger.KeyRequest, req.op.String(),
			logger.KeyDie, req.die,
			logger.KeyBlock, req.block,
			logger.KeyVSA, req.vsa,
			logger.KeyLSA, req.lsa,
			logger.KeyError, err)
		return
	}
	p.stats.Completed++
}

// Stats returns request counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// LastError returns when the last failure occurred and the error itself.
func (p *Pipeline) LastError() (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErrorAt, p.lastError
}

func sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
