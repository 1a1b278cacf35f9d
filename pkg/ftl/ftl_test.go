package ftl

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/gc"
	"github.com/marmos91/ftlgc/pkg/gc/policy"
	"github.com/marmos91/ftlgc/pkg/nand"
)

// ============================================================================
// Harness
// ============================================================================

func smallGeometry() flash.Geometry {
	return flash.Geometry{Dies: 1, BlocksPerDie: 8, PagesPerBlock: 4, PageSize: 64}
}

func newTestPipeline(t *testing.T, geo flash.Geometry) *nand.Pipeline {
	t.Helper()
	pipe, err := nand.New(geo, nand.NewMedium(geo), nand.Config{Workers: 2})
	require.NoError(t, err)
	pipe.Start(context.Background())
	t.Cleanup(func() {
		pipe.Stop(time.Second)
		pipe.Close()
	})
	return pipe
}

func newTestFTL(t *testing.T, geo flash.Geometry, cfg Config, p policy.Policy) (*FTL, *nand.Pipeline) {
	t.Helper()
	pipe := newTestPipeline(t, geo)
	f, err := New(geo, pipe, Options{
		Config: cfg,
		GC:     gc.Options{Policy: p, Paranoid: true},
	})
	require.NoError(t, err)
	return f, pipe
}

func halfProvisioned() Config {
	cfg := DefaultConfig()
	cfg.Overprovision = 0.5
	return cfg
}

func writeRange(t *testing.T, f *FTL, from, to flash.LSA) {
	t.Helper()
	for lsa := from; lsa < to; lsa++ {
		require.NoError(t, f.Write(context.Background(), lsa))
	}
}

// ============================================================================
// Construction
// ============================================================================

func TestNew_Validates(t *testing.T) {
	geo := smallGeometry()
	pipe := newTestPipeline(t, geo)

	_, err := New(geo, nil, Options{Config: DefaultConfig()})
	assert.Error(t, err, "pipeline required")

	_, err = New(flash.Geometry{}, pipe, Options{Config: DefaultConfig()})
	assert.Error(t, err, "geometry validated")

	_, err = New(geo, pipe, Options{Config: Config{Overprovision: 1}})
	assert.Error(t, err, "overprovision must leave logical space")

	_, err = New(geo, pipe, Options{Config: Config{GCThreshold: 7}})
	assert.Error(t, err, "threshold leaves no room for open blocks")

	f, err := New(geo, pipe, Options{Config: halfProvisioned()})
	require.NoError(t, err)
	assert.Equal(t, uint32(16), f.LogicalSlices())
	assert.Equal(t, "greedy", f.Collector().Policy().Name())
}

// ============================================================================
// Host I/O
// ============================================================================

func TestWrite_StripesAcrossDies(t *testing.T) {
	geo := flash.Geometry{Dies: 2, BlocksPerDie: 8, PagesPerBlock: 4, PageSize: 64}
	f, _ := newTestFTL(t, geo, halfProvisioned(), policy.Greedy{})

	writeRange(t, f, 0, 4)

	for lsa := flash.LSA(0); lsa < 4; lsa++ {
		vsa := f.mapping.LogicalOwner(lsa)
		assert.Equal(t, lsa%2, geo.Die(vsa), "lsa %d", lsa)
	}
}

func TestWrite_ReadBack(t *testing.T) {
	f, pipe := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.Greedy{})
	ctx := context.Background()

	writeRange(t, f, 0, 16)
	f.Flush()

	for lsa := flash.LSA(0); lsa < 16; lsa++ {
		require.NoError(t, f.Read(ctx, lsa))
	}
	assert.NoError(t, f.Check())
	assert.Zero(t, pipe.Stats().Failed)

	stats := f.Stats()
	assert.Equal(t, uint64(16), stats.HostWrites)
	assert.Equal(t, uint64(16), stats.Reads)
	assert.Equal(t, 1.0, stats.WAF())
}

func TestWrite_OverwriteInvalidatesOldCopy(t *testing.T) {
	f, _ := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.Greedy{})

	writeRange(t, f, 0, 4)
	first := f.geo.Block(f.mapping.LogicalOwner(0))
	require.NoError(t, f.Write(context.Background(), 0))

	rec := f.table.Get(0, first)
	assert.Equal(t, flash.StateListed, rec.State, "full block was listed")
	assert.Equal(t, uint32(1), rec.InvalidSlices)
	assert.Equal(t, 1, f.Collector().Candidates(0))
	assert.NoError(t, f.Check())
}

func TestWrite_OutOfRange(t *testing.T) {
	f, _ := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.Greedy{})
	ctx := context.Background()

	assert.ErrorIs(t, f.Write(ctx, 16), ErrOutOfRange)
	assert.ErrorIs(t, f.Trim(ctx, 16), ErrOutOfRange)
	assert.ErrorIs(t, f.Read(ctx, 16), ErrOutOfRange)
}

// starvedPipeline refuses request slots or buffers on demand.
type starvedPipeline struct {
	*nand.Pipeline
	noSlots   bool
	noBuffers bool
}

func (p *starvedPipeline) AcquireSlot(ctx context.Context) (uint32, error) {
	if p.noSlots {
		return 0, context.DeadlineExceeded
	}
	return p.Pipeline.AcquireSlot(ctx)
}

func (p *starvedPipeline) AcquireBuffer(ctx context.Context, die flash.DieID) (uint32, error) {
	if p.noBuffers {
		return 0, context.DeadlineExceeded
	}
	return p.Pipeline.AcquireBuffer(ctx, die)
}

func TestWrite_FailedReservationChangesNothing(t *testing.T) {
	geo := smallGeometry()
	pipe := &starvedPipeline{Pipeline: newTestPipeline(t, geo)}
	f, err := New(geo, pipe, Options{
		Config: halfProvisioned(),
		GC:     gc.Options{Policy: policy.Greedy{}, Paranoid: true},
	})
	require.NoError(t, err)
	ctx := context.Background()

	writeRange(t, f, 0, 3)
	host := f.hostOpen[0]
	owner := f.mapping.LogicalOwner(0)

	for _, starve := range []func(bool){
		func(on bool) { pipe.noSlots = on },
		func(on bool) { pipe.noBuffers = on },
	} {
		starve(true)
		assert.ErrorIs(t, f.Write(ctx, 0), context.DeadlineExceeded)
		assert.ErrorIs(t, f.Write(ctx, 3), context.DeadlineExceeded)
		starve(false)

		assert.Equal(t, owner, f.mapping.LogicalOwner(0), "old copy still mapped")
		assert.Equal(t, flash.NoVSA, f.mapping.LogicalOwner(3))
		assert.Equal(t, host, f.hostOpen[0])
		assert.Equal(t, uint32(3), f.table.Get(0, host).CurrentPage, "no page consumed")
		assert.NoError(t, f.Check())
	}

	// The open block is filled and listed, and the next write opens a new one.
	require.NoError(t, f.Write(ctx, 3))
	assert.Equal(t, geo.Translate(0, host, 3), f.mapping.LogicalOwner(3))
	assert.Equal(t, flash.StateListed, f.table.Get(0, host).State)
	require.NoError(t, f.Write(ctx, 4))
	assert.NotEqual(t, host, geo.Block(f.mapping.LogicalOwner(4)))
	assert.Zero(t, geo.Page(f.mapping.LogicalOwner(4)))

	f.Flush()
	for lsa := flash.LSA(0); lsa < 5; lsa++ {
		require.NoError(t, f.Read(ctx, lsa))
	}
	assert.NoError(t, f.Check())
	assert.Equal(t, uint64(5), f.Stats().HostWrites)
}

func TestTrim(t *testing.T) {
	f, _ := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.Greedy{})
	ctx := context.Background()

	writeRange(t, f, 0, 2)
	require.NoError(t, f.Trim(ctx, 1))
	assert.ErrorIs(t, f.Read(ctx, 1), ErrUnmapped)
	require.NoError(t, f.Trim(ctx, 1), "trimming an unmapped slice is a no-op")
	require.NoError(t, f.Trim(ctx, 9))

	assert.Equal(t, uint64(1), f.Stats().Trims)
	assert.Equal(t, uint32(1), f.table.Get(0, 0).InvalidSlices)
	assert.NoError(t, f.Check())
}

// ============================================================================
// Reclamation
// ============================================================================

func TestCollectGarbage_FastPath(t *testing.T) {
	f, pipe := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.Greedy{})
	ctx := context.Background()

	writeRange(t, f, 0, 4)
	for lsa := flash.LSA(0); lsa < 4; lsa++ {
		require.NoError(t, f.Trim(ctx, lsa))
	}

	stats, err := f.CollectGarbage(ctx, 0)
	require.NoError(t, err)
	assert.True(t, stats.FastPath)
	assert.Equal(t, flash.BlockID(0), stats.Victim)
	f.Flush()

	rec := f.table.Get(0, 0)
	assert.Equal(t, flash.StateFree, rec.State)
	assert.Equal(t, uint32(1), rec.EraseCount)
	assert.Equal(t, 8, f.Status().Dies[0].Free)
	for page := uint32(0); page < 4; page++ {
		assert.Equal(t, flash.NoLSA, pipe.Medium().Stamp(f.geo.Translate(0, 0, page)))
	}
	assert.Equal(t, uint64(1), f.Stats().Erases)
}

func TestCollectGarbage_RelocatesValidSlices(t *testing.T) {
	f, pipe := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.Greedy{})
	ctx := context.Background()

	writeRange(t, f, 0, 8) // blocks 0 and 1 full
	writeRange(t, f, 0, 2) // block 0 now has 2 invalid

	stats, err := f.CollectGarbage(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, flash.BlockID(0), stats.Victim)
	assert.Equal(t, 2, stats.Migrated)
	f.Flush()

	for lsa := flash.LSA(0); lsa < 8; lsa++ {
		require.NoError(t, f.Read(ctx, lsa), "lsa %d", lsa)
	}
	for _, lsa := range []flash.LSA{2, 3} {
		vsa := f.mapping.LogicalOwner(lsa)
		assert.NotEqual(t, flash.BlockID(0), f.geo.Block(vsa))
		assert.Equal(t, lsa, pipe.Medium().Stamp(vsa))
	}
	assert.Equal(t, uint64(2), f.Stats().GCWrites)
	assert.Greater(t, f.Stats().WAF(), 1.0)
	assert.NoError(t, f.Check())
	assert.Zero(t, pipe.Stats().Failed)
}

func TestCollectGarbage_Exhausted(t *testing.T) {
	f, _ := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.Greedy{})

	_, err := f.CollectGarbage(context.Background(), 0)
	assert.Equal(t, gc.KindExhausted, gc.KindOf(err))

	_, err = f.CollectGarbage(context.Background(), 3)
	assert.Error(t, err)
}

func TestWearOutRetiresBlock(t *testing.T) {
	cfg := halfProvisioned()
	cfg.MaxEraseCount = 1
	f, _ := newTestFTL(t, smallGeometry(), cfg, policy.Greedy{})
	ctx := context.Background()

	writeRange(t, f, 0, 4)
	for lsa := flash.LSA(0); lsa < 4; lsa++ {
		require.NoError(t, f.Trim(ctx, lsa))
	}
	_, err := f.CollectGarbage(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, flash.StateBad, f.table.Get(0, 0).State)
	status := f.Status()
	assert.Equal(t, 7, status.Dies[0].Free)
	assert.Equal(t, 1, status.Dies[0].Bad)
	assert.Equal(t, uint64(1), status.Stats.Retired)
}

func TestRetire(t *testing.T) {
	f, _ := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.Greedy{})
	ctx := context.Background()

	require.NoError(t, f.Retire(0, 7))
	assert.Equal(t, flash.StateBad, f.table.Get(0, 7).State)
	require.NoError(t, f.Retire(0, 7), "retiring twice is a no-op")

	writeRange(t, f, 0, 1)
	assert.ErrorIs(t, f.Retire(0, 0), ErrBlockInUse, "open block")

	writeRange(t, f, 1, 4)
	assert.ErrorIs(t, f.Retire(0, 0), ErrBlockInUse, "listed block with valid data")

	for lsa := flash.LSA(0); lsa < 4; lsa++ {
		require.NoError(t, f.Trim(ctx, lsa))
	}
	require.NoError(t, f.Retire(0, 0))
	assert.Equal(t, flash.StateBad, f.table.Get(0, 0).State)
	assert.Zero(t, f.Collector().Candidates(0))

	assert.Error(t, f.Retire(0, 99))
	assert.Equal(t, uint64(2), f.Stats().Retired)
	assert.NoError(t, f.Check())
}

func TestSustainedOverwrite_PreservesData(t *testing.T) {
	for _, p := range []policy.Policy{policy.Greedy{}, policy.CostBenefit{}, policy.CAT{}} {
		t.Run(p.Name(), func(t *testing.T) {
			geo := flash.Geometry{Dies: 2, BlocksPerDie: 16, PagesPerBlock: 8, PageSize: 64}
			f, pipe := newTestFTL(t, geo, halfProvisioned(), p)
			ctx := context.Background()

			logical := f.LogicalSlices()
			writeRange(t, f, 0, logical)

			rng := rand.New(rand.NewPCG(1, 2))
			for i := 0; i < 1500; i++ {
				require.NoError(t, f.Write(ctx, rng.Uint32N(logical)))
			}
			f.Flush()

			for lsa := flash.LSA(0); lsa < logical; lsa++ {
				require.NoError(t, f.Read(ctx, lsa), "lsa %d", lsa)
			}
			require.NoError(t, f.Check())

			stats := f.Stats()
			assert.Positive(t, stats.GCRuns)
			assert.Positive(t, stats.Erases)
			assert.GreaterOrEqual(t, stats.WAF(), 1.0)
			assert.Zero(t, pipe.Stats().Failed)
			assert.Equal(t, int(logical), f.Status().Mapped)
		})
	}
}

// ============================================================================
// State
// ============================================================================

func TestExportImportState(t *testing.T) {
	f, _ := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.CAT{})
	ctx := context.Background()

	writeRange(t, f, 0, 4)
	for lsa := flash.LSA(0); lsa < 4; lsa++ {
		require.NoError(t, f.Trim(ctx, lsa))
	}
	_, err := f.CollectGarbage(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, f.Retire(0, 5))

	st := f.ExportState()
	assert.Equal(t, "cat", st.Policy)
	assert.Equal(t, uint32(1), st.Dies[0].EraseCounts[0])
	assert.True(t, st.Dies[0].Bad[5])

	fresh, _ := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.CAT{})
	require.NoError(t, fresh.ImportState(st))

	assert.Equal(t, uint32(1), fresh.table.Get(0, 0).EraseCount)
	assert.Equal(t, flash.StateBad, fresh.table.Get(0, 5).State)
	assert.Equal(t, 7, fresh.Status().Dies[0].Free)
	tick, baselines := fresh.Collector().ClockState(0)
	assert.Equal(t, st.Dies[0].Tick, tick)
	assert.Equal(t, st.Dies[0].Baselines, baselines)

	assert.Error(t, f.ImportState(st), "already written")

	bad := st
	bad.Geometry.BlocksPerDie = 16
	assert.Error(t, fresh.ImportState(bad))
}

// ============================================================================
// Command loop
// ============================================================================

func TestServe(t *testing.T) {
	f, _ := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.Greedy{})

	cmds := make(chan Command, 8)
	cmds <- Command{Op: CmdWrite, LSA: 1}
	cmds <- Command{Op: CmdWrite, LSA: 2}
	cmds <- Command{Op: CmdTrim, LSA: 2}
	cmds <- Command{Op: CmdRead, LSA: 1}
	close(cmds)

	require.NoError(t, f.Serve(context.Background(), cmds))
	stats := f.Stats()
	assert.Equal(t, uint64(2), stats.HostWrites)
	assert.Equal(t, uint64(1), stats.Trims)
	assert.Equal(t, uint64(1), stats.Reads)
}

func TestServe_StopsOnError(t *testing.T) {
	f, _ := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.Greedy{})

	cmds := make(chan Command, 2)
	cmds <- Command{Op: CmdRead, LSA: 3}
	cmds <- Command{Op: CmdWrite, LSA: 3}

	err := f.Serve(context.Background(), cmds)
	assert.ErrorIs(t, err, ErrUnmapped)
	assert.Zero(t, f.Stats().HostWrites)

	assert.Error(t, f.Execute(context.Background(), Command{Op: CommandOp(9)}))
	assert.Equal(t, "unknown(9)", CommandOp(9).String())
}

func TestServe_Cancelled(t *testing.T) {
	f, _ := newTestFTL(t, smallGeometry(), halfProvisioned(), policy.Greedy{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Serve(ctx, make(chan Command)), context.Canceled)
}

// ============================================================================
// Metrics
// ============================================================================

type fakeMetrics struct {
	writes   map[flash.DieID]int
	trims    int
	triggers int
	free     map[flash.DieID]int
}

func (m *fakeMetrics) RecordHostWrite(die flash.DieID)      { m.writes[die]++ }
func (m *fakeMetrics) RecordTrim()                          { m.trims++ }
func (m *fakeMetrics) RecordGCTrigger(flash.DieID)          { m.triggers++ }
func (m *fakeMetrics) SetFreeBlocks(die flash.DieID, n int) { m.free[die] = n }

func TestMetricsAreRecorded(t *testing.T) {
	geo := smallGeometry()
	pipe := newTestPipeline(t, geo)
	m := &fakeMetrics{writes: map[flash.DieID]int{}, free: map[flash.DieID]int{}}

	f, err := New(geo, pipe, Options{Config: halfProvisioned(), Metrics: m})
	require.NoError(t, err)
	assert.Equal(t, 8, m.free[0], "initial pool reported")

	writeRange(t, f, 0, 16) // opens blocks 0..3, leaving 4 free
	require.NoError(t, f.Trim(context.Background(), 0))
	writeRange(t, f, 0, 12) // opens blocks 4 and 5, then hits the threshold

	assert.Equal(t, 28, m.writes[0])
	assert.Equal(t, 1, m.trims)
	assert.Positive(t, m.triggers)
	assert.Equal(t, len(f.free[0]), m.free[0])
}
