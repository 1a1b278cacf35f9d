package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/ftlgc/pkg/snapshot"
)

var (
	// ErrRunNotFound is returned for an unknown run ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunActive is returned when removing a run that is still running.
	ErrRunActive = errors.New("run is still running")
)

// Registry tracks simulation runs and the snapshot store they share.
// It provides thread-safe registration and lookup for the CLI and the
// status API.
//
// Runs are kept in memory only. Finished runs stay registered until removed
// so their reports remain visible.
//
// Example usage:
//
//	reg := NewRegistry()
//	reg.SetSnapshotStore(store)
//	reg.RegisterRun(run)
//
//	info, _ := reg.GetRun(run.ID())
//	for _, info := range reg.ListRuns() { ... }
type Registry struct {
	mu        sync.RWMutex
	runs      map[string]Run
	order     []string // registration order
	snapshots *snapshot.Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[string]Run),
	}
}

// ============================================================================
// Runs
// ============================================================================

// RegisterRun adds a run to the registry.
// Returns an error if a run with the same ID already exists.
func (r *Registry) RegisterRun(run Run) error {
	if run == nil {
		return fmt.Errorf("cannot register nil run")
	}
	id := run.ID()
	if id == "" {
		return fmt.Errorf("cannot register run with empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[id]; exists {
		return fmt.Errorf("run %q already registered", id)
	}

	r.runs[id] = run
	r.order = append(r.order, id)
	return nil
}

// RemoveRun removes a run. Running runs cannot be removed.
func (r *Registry) RemoveRun(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, exists := r.runs[id]
	if !exists {
		return fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	if run.Info().State == RunRunning {
		return fmt.Errorf("%w: %q", ErrRunActive, id)
	}

	delete(r.runs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetRun returns the run with the given ID.
func (r *Registry) GetRun(id string) (Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, exists := r.runs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	return run, nil
}

// ListRuns returns the info of every run in registration order.
func (r *Registry) ListRuns() []RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]RunInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.runs[id].Info())
	}
	return infos
}

// ListRunsByPolicy returns the IDs of runs using the named policy, sorted.
func (r *Registry) ListRunsByPolicy(policy string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0)
	for id, run := range r.runs {
		if run.Info().Policy == policy {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// CountRuns returns the number of registered runs.
func (r *Registry) CountRuns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}

// CountActiveRuns returns the number of runs that have not finished.
func (r *Registry) CountActiveRuns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, run := range r.runs {
		if !run.Info().State.Terminal() {
			n++
		}
	}
	return n
}

// RunExists reports whether a run with the given ID is registered.
func (r *Registry) RunExists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.runs[id]
	return exists
}

// ============================================================================
// Snapshot Store
// ============================================================================

// SetSnapshotStore sets the store used to save and restore wear state.
func (r *Registry) SetSnapshotStore(store *snapshot.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = store
}

// GetSnapshotStore returns the snapshot store, or nil if none is configured.
func (r *Registry) GetSnapshotStore() *snapshot.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshots
}
