package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ftlgc/pkg/registry"
)

func TestRequestApply(t *testing.T) {
	base := testConfig()
	seed := uint64(99)
	off := false

	cfg := Request{
		Policy:       "cat",
		Workload:     "zipf",
		Seed:         &seed,
		Commands:     7,
		Precondition: &off,
		SaveSnapshot: "after",
	}.Apply(base)

	assert.Equal(t, "cat", cfg.Policy)
	assert.Equal(t, "zipf", cfg.Workload.Kind)
	assert.Equal(t, uint64(99), cfg.Workload.Seed)
	assert.Equal(t, uint64(7), cfg.Commands)
	assert.False(t, cfg.Precondition)
	assert.Equal(t, "after", cfg.SaveSnapshot)

	// Empty request keeps the base.
	assert.Equal(t, base, Request{}.Apply(base))
}

func TestLauncherRunsInBackground(t *testing.T) {
	reg := registry.NewRegistry()
	l := NewLauncher(testConfig(), nil, reg, LauncherConfig{Workers: 2})
	l.Start(context.Background())
	defer l.Stop(5 * time.Second)

	var ids []string
	for _, name := range []string{"greedy", "cat"} {
		run, err := l.Launch(Request{Policy: name, Commands: 200})
		require.NoError(t, err)
		ids = append(ids, run.ID())
	}

	require.Eventually(t, func() bool {
		completed, _ := l.Stats()
		return completed == 2
	}, 30*time.Second, 10*time.Millisecond)

	for _, id := range ids {
		run, err := reg.GetRun(id)
		require.NoError(t, err)
		assert.Equal(t, registry.RunCompleted, run.Info().State)
	}
}

func TestLauncherRejectsInvalidRequest(t *testing.T) {
	reg := registry.NewRegistry()
	l := NewLauncher(testConfig(), nil, reg, LauncherConfig{})

	_, err := l.Launch(Request{Policy: "fifo"})
	assert.Error(t, err)
	assert.Zero(t, reg.CountRuns())
}

func TestLauncherQueueFull(t *testing.T) {
	reg := registry.NewRegistry()
	// Not started: nothing drains the queue.
	l := NewLauncher(testConfig(), nil, reg, LauncherConfig{QueueSize: 1})

	_, err := l.Launch(Request{})
	require.NoError(t, err)
	_, err = l.Launch(Request{})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, reg.CountRuns())
}

func TestLauncherStopCancelsRuns(t *testing.T) {
	reg := registry.NewRegistry()
	cfg := testConfig()
	cfg.Commands = 1 << 40
	l := NewLauncher(cfg, nil, reg, LauncherConfig{Workers: 1})
	l.Start(context.Background())

	run, err := l.Launch(Request{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return run.Info().State == registry.RunRunning
	}, 10*time.Second, time.Millisecond)

	// The only worker is busy, so these wait in the queue.
	queued := make([]*Run, 2)
	for i := range queued {
		queued[i], err = l.Launch(Request{})
		require.NoError(t, err)
		assert.Equal(t, registry.RunPending, queued[i].Info().State)
	}

	l.Stop(10 * time.Second)
	assert.Equal(t, registry.RunCancelled, run.Info().State)
	for _, q := range queued {
		info := q.Info()
		assert.Equal(t, registry.RunCancelled, info.State)
		assert.Equal(t, context.Canceled.Error(), info.Error)
		assert.False(t, info.FinishedAt.IsZero())
	}

	_, err = l.Launch(Request{})
	assert.ErrorIs(t, err, ErrLauncherStopped)
}
