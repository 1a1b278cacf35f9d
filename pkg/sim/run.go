package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/internal/telemetry"
	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/ftl"
	"github.com/marmos91/ftlgc/pkg/gc"
	"github.com/marmos91/ftlgc/pkg/gc/policy"
	"github.com/marmos91/ftlgc/pkg/metrics"
	"github.com/marmos91/ftlgc/pkg/nand"
	"github.com/marmos91/ftlgc/pkg/registry"
	"github.com/marmos91/ftlgc/pkg/snapshot"
	"github.com/marmos91/ftlgc/pkg/workload"
)

// pipelineStopTimeout bounds how long a finished run waits for NAND workers.
const pipelineStopTimeout = 5 * time.Second

// ErrAlreadyStarted is returned when Execute is called twice on a run.
var ErrAlreadyStarted = errors.New("sim: run already started")

// Run is a single simulation. It implements registry.Run so the status API
// can observe it while it executes.
type Run struct {
	id    string
	cfg   Config
	store *snapshot.Store

	done  atomic.Uint64
	total atomic.Uint64

	mu         sync.RWMutex
	state      registry.RunState
	startedAt  time.Time
	finishedAt time.Time
	err        error
	ftl        *ftl.FTL
	report     *Report
}

// NewRun validates cfg and creates a pending run. store is only needed when
// cfg loads or saves a snapshot.
func NewRun(cfg Config, store *snapshot.Store) (*Run, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	if (cfg.LoadSnapshot != "" || cfg.SaveSnapshot != "") && store == nil {
		return nil, fmt.Errorf("sim: snapshot store is required to load or save snapshots")
	}
	return &Run{
		id:    uuid.NewString(),
		cfg:   cfg,
		store: store,
		state: registry.RunPending,
	}, nil
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// Config returns the run configuration.
func (r *Run) Config() Config {
	return r.cfg
}

// Info implements registry.Run.
func (r *Run) Info() registry.RunInfo {
	r.mu.RLock()
	info := registry.RunInfo{
		ID:         r.id,
		Policy:     r.cfg.Policy,
		Workload:   r.cfg.Workload.Kind,
		State:      r.state,
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
		Done:       r.done.Load(),
		Total:      r.total.Load(),
	}
	if r.err != nil {
		info.Error = r.err.Error()
	}
	f := r.ftl
	r.mu.RUnlock()

	if f != nil {
		status := f.Status()
		info.Status = &status
	}
	return info
}

// Report returns the final report, or nil until the run completes.
func (r *Run) Report() *Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.report
}

// abandon marks a run that never started as cancelled. It reports false
// when the run had already started.
func (r *Run) abandon() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != registry.RunPending {
		return false
	}
	r.state = registry.RunCancelled
	r.finishedAt = time.Now()
	r.err = context.Canceled
	return true
}

// Execute runs the simulation to completion. It may only be called once.
func (r *Run) Execute(ctx context.Context) (*Report, error) {
	r.mu.Lock()
	if r.state != registry.RunPending {
		r.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	r.state = registry.RunRunning
	r.startedAt = time.Now()
	r.mu.Unlock()

	report, err := r.execute(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishedAt = time.Now()
	r.err = err
	r.report = report
	switch {
	case err == nil:
		r.state = registry.RunCompleted
	case errors.Is(err, context.Canceled):
		r.state = registry.RunCancelled
	default:
		r.state = registry.RunFailed
	}
	return report, err
}

func (r *Run) execute(ctx context.Context) (*Report, error) {
	cfg := r.cfg
	lc := logger.NewLogContext(r.id).WithPolicy(cfg.Policy).WithWorkload(cfg.Workload.Kind)
	ctx = logger.WithContext(ctx, lc)

	ctx, span := telemetry.StartSimSpan(ctx, r.id, cfg.Workload.Kind, cfg.Policy)
	defer span.End()
	ctx = telemetry.WithLogContext(ctx)

	p, err := policy.Lookup(cfg.Policy)
	if err != nil {
		return nil, err
	}

	pipe, err := nand.New(cfg.Geometry, nand.NewMedium(cfg.Geometry), cfg.Pipeline)
	if err != nil {
		return nil, err
	}
	pipe.Start(ctx)
	defer func() {
		pipe.Stop(pipelineStopTimeout)
		pipe.Close()
	}()

	f, err := ftl.New(cfg.Geometry, pipe, ftl.Options{
		Config: cfg.FTL,
		GC: gc.Options{
			Policy:   p,
			Metrics:  metrics.NewGCMetrics(),
			Paranoid: cfg.Paranoid,
		},
		Metrics: metrics.NewFTLMetrics(),
	})
	if err != nil {
		return nil, err
	}

	if cfg.LoadSnapshot != "" {
		if err := r.restore(ctx, f); err != nil {
			telemetry.RecordError(ctx, err)
			return nil, err
		}
	}

	gen, err := workload.New(cfg.Workload, f.LogicalSlices())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.ftl = f
	r.mu.Unlock()

	var pre []ftl.Command
	if cfg.Precondition {
		pre = workload.Precondition(f.LogicalSlices())
	}
	r.total.Store(uint64(len(pre)) + cfg.Commands)
	telemetry.SetAttributes(ctx, telemetry.Writes(r.total.Load()))

	logger.InfoCtx(ctx, "Simulation started",
		logger.KeyWrites, r.total.Load(),
		"logical_slices", f.LogicalSlices(),
		"physical_slices", cfg.Geometry.TotalSlices())

	start := time.Now()
	var replayErr error
	telemetry.ProfileRun(ctx, func(ctx context.Context) {
		replayErr = r.replay(ctx, f, gen, pre)
	}, "policy", cfg.Policy, "workload", cfg.Workload.Kind)
	if err := replayErr; err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Simulation failed", logger.KeyError, err)
		return nil, err
	}
	elapsed := time.Since(start)

	if cfg.Verify {
		if err := verify(ctx, f); err != nil {
			telemetry.RecordError(ctx, err)
			logger.ErrorCtx(ctx, "Simulation verification failed", logger.KeyError, err)
			return nil, err
		}
	}

	report := newReport(r, f, pipe, elapsed)

	if cfg.SaveSnapshot != "" {
		if err := r.save(ctx, f); err != nil {
			telemetry.RecordError(ctx, err)
			return report, err
		}
	}

	logger.InfoCtx(ctx, "Simulation completed",
		logger.KeyWAF, report.WAF(),
		logger.KeyDurationMs, float64(elapsed.Microseconds())/1000.0)
	return report, nil
}

// replay feeds the precondition and workload commands to the FTL. The
// generator runs in its own goroutine so command generation overlaps with
// FTL work.
func (r *Run) replay(ctx context.Context, f *ftl.FTL, gen workload.Generator, pre []ftl.Command) error {
	cmds := make(chan ftl.Command, r.cfg.QueueDepth)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(cmds)
		send := func(cmd ftl.Command) error {
			select {
			case cmds <- cmd:
				r.done.Add(1)
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		for _, cmd := range pre {
			if err := send(cmd); err != nil {
				return err
			}
		}
		for i := uint64(0); i < r.cfg.Commands; i++ {
			if err := send(gen.Next()); err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		return f.Serve(gctx, cmds)
	})

	return g.Wait()
}

// verify reads back every mapped slice and checks FTL consistency.
func verify(ctx context.Context, f *ftl.FTL) error {
	if err := f.Check(); err != nil {
		return fmt.Errorf("sim: consistency check: %w", err)
	}
	for lsa := flash.LSA(0); lsa < f.LogicalSlices(); lsa++ {
		err := f.Read(ctx, lsa)
		if errors.Is(err, ftl.ErrUnmapped) {
			continue
		}
		if err != nil {
			return fmt.Errorf("sim: verify: %w", err)
		}
	}
	return nil
}

func (r *Run) restore(ctx context.Context, f *ftl.FTL) error {
	snap, err := r.store.Load(ctx, r.cfg.LoadSnapshot)
	if err != nil {
		return err
	}
	if err := f.ImportState(snap.State); err != nil {
		return fmt.Errorf("sim: restore snapshot %q: %w", r.cfg.LoadSnapshot, err)
	}
	logger.InfoCtx(ctx, "Snapshot restored",
		"snapshot", snap.Name,
		"source_run", snap.RunID,
		"source_policy", snap.Policy)
	return nil
}

func (r *Run) save(ctx context.Context, f *ftl.FTL) error {
	return r.store.Save(ctx, &snapshot.Snapshot{
		Name:     r.cfg.SaveSnapshot,
		RunID:    r.id,
		Policy:   r.cfg.Policy,
		Workload: r.cfg.Workload.Kind,
		Stats:    f.Stats(),
		State:    f.ExportState(),
	})
}
