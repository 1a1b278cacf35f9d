package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/ftl"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSnapshot(name string) *Snapshot {
	geo := flash.Geometry{Dies: 1, BlocksPerDie: 2, PagesPerBlock: 4, PageSize: 64}
	return &Snapshot{
		Name:     name,
		RunID:    "run-" + name,
		Policy:   "cat",
		Workload: "hotcold",
		Stats:    ftl.Stats{HostWrites: 10, GCWrites: 5},
		State: ftl.State{
			Geometry: geo,
			Policy:   "cat",
			Dies: []ftl.DieState{{
				EraseCounts: []uint32{3, 5},
				Bad:         []bool{false, true},
				Tick:        42,
				Baselines:   []uint32{40, 12},
			}},
		},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	snap := sampleSnapshot("worn")
	require.NoError(t, s.Save(ctx, snap))
	assert.False(t, snap.CreatedAt.IsZero(), "CreatedAt stamped on save")

	got, err := s.Load(ctx, "worn")
	require.NoError(t, err)
	assert.Equal(t, snap.State, got.State)
	assert.Equal(t, snap.Stats, got.Stats)
	assert.Equal(t, "run-worn", got.RunID)
	assert.WithinDuration(t, snap.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestSaveReplaces(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleSnapshot("a")))
	next := sampleSnapshot("a")
	next.Policy = "greedy"
	require.NoError(t, s.Save(ctx, next))

	got, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "greedy", got.Policy)
}

func TestLoadMissing(t *testing.T) {
	s := openStore(t)

	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), "nope"), ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleSnapshot("b")))
	require.NoError(t, s.Save(ctx, sampleSnapshot("a")))

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name, "ordered by key")
	assert.Equal(t, 4.0, infos[0].MeanWear)

	require.NoError(t, s.Delete(ctx, "a"))
	infos, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "b", infos[0].Name)
}

func TestSaveValidates(t *testing.T) {
	s := openStore(t)

	assert.Error(t, s.Save(context.Background(), &Snapshot{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Save(ctx, sampleSnapshot("x")), context.Canceled)
	_, err := s.Load(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrimNewline(t *testing.T) {
	assert.Equal(t, "compaction done", trimNewline("compaction done\n\n"))
	assert.Equal(t, "", trimNewline("\n"))
}
