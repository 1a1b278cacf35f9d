package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/marmos91/ftlgc/pkg/snapshot"
)

// fakeRun is a minimal Run for registry tests.
type fakeRun struct {
	mu   sync.Mutex
	info RunInfo
}

func newFakeRun(id, policy string, state RunState) *fakeRun {
	return &fakeRun{info: RunInfo{ID: id, Policy: policy, State: state}}
}

func (f *fakeRun) ID() string { return f.info.ID }

func (f *fakeRun) Info() RunInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info
}

func (f *fakeRun) setState(s RunState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info.State = s
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if reg.CountRuns() != 0 {
		t.Errorf("Expected 0 runs, got %d", reg.CountRuns())
	}
	if reg.GetSnapshotStore() != nil {
		t.Error("Expected no snapshot store")
	}
}

func TestRegisterRun(t *testing.T) {
	reg := NewRegistry()
	run := newFakeRun("run-1", "greedy", RunPending)

	if err := reg.RegisterRun(run); err != nil {
		t.Fatalf("Failed to register run: %v", err)
	}
	if reg.CountRuns() != 1 {
		t.Errorf("Expected 1 run, got %d", reg.CountRuns())
	}

	// Test duplicate registration
	if err := reg.RegisterRun(run); err == nil {
		t.Error("Expected error when registering duplicate run")
	}

	// Test nil run
	if err := reg.RegisterRun(nil); err == nil {
		t.Error("Expected error when registering nil run")
	}

	// Test empty id
	if err := reg.RegisterRun(newFakeRun("", "greedy", RunPending)); err == nil {
		t.Error("Expected error when registering run with empty id")
	}
}

func TestGetRun(t *testing.T) {
	reg := NewRegistry()
	_ = reg.RegisterRun(newFakeRun("run-1", "cat", RunRunning))

	run, err := reg.GetRun("run-1")
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if run.Info().Policy != "cat" {
		t.Errorf("Expected policy 'cat', got %q", run.Info().Policy)
	}
	if !reg.RunExists("run-1") {
		t.Error("Expected run-1 to exist")
	}

	if _, err := reg.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound for missing run, got %v", err)
	}
}

func TestRemoveRun(t *testing.T) {
	reg := NewRegistry()
	run := newFakeRun("run-1", "greedy", RunRunning)
	_ = reg.RegisterRun(run)

	if err := reg.RemoveRun("run-1"); !errors.Is(err, ErrRunActive) {
		t.Errorf("Expected ErrRunActive when removing a running run, got %v", err)
	}

	run.setState(RunCompleted)
	if err := reg.RemoveRun("run-1"); err != nil {
		t.Fatalf("Failed to remove run: %v", err)
	}
	if reg.RunExists("run-1") {
		t.Error("Expected run-1 to be removed")
	}
	if len(reg.ListRuns()) != 0 {
		t.Error("Expected empty run list after removal")
	}

	if err := reg.RemoveRun("run-1"); err == nil {
		t.Error("Expected error when removing a missing run")
	}
}

func TestListRunsKeepsRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		_ = reg.RegisterRun(newFakeRun(id, "greedy", RunPending))
	}

	infos := reg.ListRuns()
	if len(infos) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(infos))
	}
	for i, want := range []string{"c", "a", "b"} {
		if infos[i].ID != want {
			t.Errorf("Expected run %d to be %q, got %q", i, want, infos[i].ID)
		}
	}
}

func TestListRunsByPolicy(t *testing.T) {
	reg := NewRegistry()
	_ = reg.RegisterRun(newFakeRun("r2", "cat", RunCompleted))
	_ = reg.RegisterRun(newFakeRun("r1", "cat", RunRunning))
	_ = reg.RegisterRun(newFakeRun("r3", "greedy", RunRunning))

	ids := reg.ListRunsByPolicy("cat")
	if len(ids) != 2 || ids[0] != "r1" || ids[1] != "r2" {
		t.Errorf("Expected [r1 r2], got %v", ids)
	}
	if len(reg.ListRunsByPolicy("cost-benefit")) != 0 {
		t.Error("Expected no cost-benefit runs")
	}
	if reg.CountActiveRuns() != 2 {
		t.Errorf("Expected 2 active runs, got %d", reg.CountActiveRuns())
	}
}

func TestRunStateAndProgress(t *testing.T) {
	for _, s := range []RunState{RunCompleted, RunFailed, RunCancelled} {
		if !s.Terminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
	for _, s := range []RunState{RunPending, RunRunning} {
		if s.Terminal() {
			t.Errorf("Expected %s not to be terminal", s)
		}
	}

	if p := (RunInfo{}).Progress(); p != 0 {
		t.Errorf("Expected 0 progress for empty run, got %f", p)
	}
	if p := (RunInfo{Done: 25, Total: 100}).Progress(); p != 0.25 {
		t.Errorf("Expected 0.25 progress, got %f", p)
	}
}

func TestSnapshotStore(t *testing.T) {
	store, err := snapshot.Open(snapshot.Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to open snapshot store: %v", err)
	}
	defer func() { _ = store.Close() }()

	reg := NewRegistry()
	reg.SetSnapshotStore(store)
	if reg.GetSnapshotStore() != store {
		t.Error("Expected configured snapshot store")
	}
}

func TestConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	_ = reg.RegisterRun(newFakeRun("run-1", "greedy", RunRunning))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = reg.GetRun("run-1")
			_ = reg.ListRuns()
			_ = reg.CountActiveRuns()
		}()
	}
	wg.Wait()
}
