package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/registry"
	"github.com/marmos91/ftlgc/pkg/snapshot"
)

// ErrQueueFull is returned by Launch when the run queue has no room.
var ErrQueueFull = errors.New("sim: run queue full")

// ErrLauncherStopped is returned by Launch after Stop.
var ErrLauncherStopped = errors.New("sim: launcher stopped")

// Request overrides fields of the launcher's base configuration for one
// background run. Zero values keep the base setting.
type Request struct {
	Policy       string  `json:"policy"`
	Workload     string  `json:"workload,omitempty"`
	Seed         *uint64 `json:"seed,omitempty"`
	Commands     uint64  `json:"commands,omitempty"`
	Precondition *bool   `json:"precondition,omitempty"`
	LoadSnapshot string  `json:"load_snapshot,omitempty"`
	SaveSnapshot string  `json:"save_snapshot,omitempty"`
}

// Apply returns base with the request's overrides.
func (req Request) Apply(base Config) Config {
	cfg := base
	if req.Policy != "" {
		cfg.Policy = req.Policy
	}
	if req.Workload != "" {
		cfg.Workload.Kind = req.Workload
	}
	if req.Seed != nil {
		cfg.Workload.Seed = *req.Seed
	}
	if req.Commands > 0 {
		cfg.Commands = req.Commands
	}
	if req.Precondition != nil {
		cfg.Precondition = *req.Precondition
	}
	if req.LoadSnapshot != "" {
		cfg.LoadSnapshot = req.LoadSnapshot
	}
	if req.SaveSnapshot != "" {
		cfg.SaveSnapshot = req.SaveSnapshot
	}
	return cfg
}

// LauncherConfig configures a Launcher.
type LauncherConfig struct {
	// Workers is the number of runs executed concurrently.
	// Default: 1
	Workers int `mapstructure:"workers" validate:"omitempty,min=1" yaml:"workers"`

	// QueueSize is the number of runs that may wait for a worker.
	// Default: 16
	QueueSize int `mapstructure:"queue_size" validate:"omitempty,min=1" yaml:"queue_size"`
}

// Launcher executes runs in the background and tracks them in a registry.
type Launcher struct {
	base  Config
	store *snapshot.Store
	reg   *registry.Registry

	queue chan *Run

	// Worker management
	workers   int
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}
	cancel    context.CancelFunc

	mu        sync.Mutex
	started   bool
	stopped   bool
	completed int
	failed    int
}

// NewLauncher creates a launcher. reg must not be nil.
func NewLauncher(base Config, store *snapshot.Store, reg *registry.Registry, cfg LauncherConfig) *Launcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &Launcher{
		base:      base,
		store:     store,
		reg:       reg,
		queue:     make(chan *Run, cfg.QueueSize),
		workers:   cfg.Workers,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start launches the workers. Runs inherit ctx.
func (l *Launcher) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	logger.Info("Starting run launcher", logger.KeyWorkers, l.workers)

	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go l.worker(ctx)
	}

	go func() {
		l.wg.Wait()
		close(l.stoppedCh)
	}()
}

// Stop cancels queued and running simulations and waits at most timeout
// for the workers to exit.
func (l *Launcher) Stop(timeout time.Duration) {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.mu.Unlock()

	logger.Info("Stopping run launcher", "pending", len(l.queue))

	l.cancel()
	close(l.stopCh)
	l.drain()

	select {
	case <-l.stoppedCh:
		logger.Info("Run launcher stopped")
	case <-time.After(timeout):
		logger.Warn("Run launcher stop timed out")
	}
}

// drain cancels every run still waiting in the queue.
func (l *Launcher) drain() {
	for {
		select {
		case run := <-l.queue:
			if run.abandon() {
				logger.Debug("Queued run cancelled", logger.KeyRunID, run.ID())
			}
		default:
			return
		}
	}
}

// Launch registers a run built from req and queues it. It does not block.
func (l *Launcher) Launch(req Request) (*Run, error) {
	run, err := NewRun(req.Apply(l.base), l.store)
	if err != nil {
		return nil, err
	}

	// Held until the run is queued so Stop cannot drain in between.
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return nil, ErrLauncherStopped
	}

	if err := l.reg.RegisterRun(run); err != nil {
		return nil, fmt.Errorf("sim: register run: %w", err)
	}

	select {
	case l.queue <- run:
		return run, nil
	default:
		_ = l.reg.RemoveRun(run.ID())
		logger.Warn("Run queue full, rejecting run", logger.KeyPolicy, run.cfg.Policy)
		return nil, ErrQueueFull
	}
}

// Stats returns the number of runs that completed and failed.
func (l *Launcher) Stats() (completed, failed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed, l.failed
}

func (l *Launcher) worker(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopCh:
			return
		case run := <-l.queue:
			if ctx.Err() != nil {
				run.abandon()
				continue
			}
			l.execute(ctx, run)
		}
	}
}

func (l *Launcher) execute(ctx context.Context, run *Run) {
	_, err := run.Execute(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.failed++
		logger.Warn("Background run failed", logger.KeyRunID, run.ID(), logger.KeyError, err)
		return
	}
	l.completed++
}
