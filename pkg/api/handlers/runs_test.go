package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/ftlgc/pkg/flash"
	"github.com/marmos91/ftlgc/pkg/ftl"
	"github.com/marmos91/ftlgc/pkg/registry"
	"github.com/marmos91/ftlgc/pkg/sim"
	"github.com/marmos91/ftlgc/pkg/snapshot"
)

// stubRun is a registry.Run with a fixed view.
type stubRun struct {
	info registry.RunInfo
}

func (s stubRun) ID() string             { return s.info.ID }
func (s stubRun) Info() registry.RunInfo { return s.info }

// stubLauncher records launch requests.
type stubLauncher struct {
	got  []sim.Request
	base sim.Config
	err  error
}

func (l *stubLauncher) Launch(req sim.Request) (*sim.Run, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.got = append(l.got, req)
	return sim.NewRun(req.Apply(l.base), nil)
}

func newRunsRouter(reg *registry.Registry, l Launcher) http.Handler {
	h := NewRunsHandler(reg, l)
	r := chi.NewRouter()
	r.Get("/runs", h.List)
	r.Post("/runs", h.Create)
	r.Get("/runs/{id}", h.Get)
	r.Delete("/runs/{id}", h.Delete)
	r.Get("/runs/{id}/report", h.Report)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRuns_ListAndGet(t *testing.T) {
	reg := registry.NewRegistry()
	status := &ftl.Status{Policy: "cat"}
	_ = reg.RegisterRun(stubRun{info: registry.RunInfo{ID: "r1", Policy: "cat", State: registry.RunRunning, Status: status}})
	router := newRunsRouter(reg, nil)

	w := serve(router, "GET", "/runs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	list, ok := decodeResponse(t, w).Data.([]interface{})
	if !ok || len(list) != 1 {
		t.Fatalf("Expected one run, got %v", list)
	}
	if _, has := list[0].(map[string]interface{})["status"]; has {
		t.Error("Expected listing to omit FTL status")
	}

	w = serve(router, "GET", "/runs/r1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	info := decodeResponse(t, w).Data.(map[string]interface{})
	if info["policy"] != "cat" {
		t.Errorf("Expected policy 'cat', got %v", info["policy"])
	}
	if _, has := info["status"]; !has {
		t.Error("Expected run detail to include FTL status")
	}

	w = serve(router, "GET", "/runs/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != ContentTypeProblemJSON {
		t.Errorf("Expected problem content type, got %q", ct)
	}
}

func TestRuns_Delete(t *testing.T) {
	reg := registry.NewRegistry()
	_ = reg.RegisterRun(stubRun{info: registry.RunInfo{ID: "busy", State: registry.RunRunning}})
	_ = reg.RegisterRun(stubRun{info: registry.RunInfo{ID: "done", State: registry.RunCompleted}})
	router := newRunsRouter(reg, nil)

	if w := serve(router, "DELETE", "/runs/busy", ""); w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}
	if w := serve(router, "DELETE", "/runs/done", ""); w.Code != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if w := serve(router, "DELETE", "/runs/done", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestRuns_Create(t *testing.T) {
	base := sim.DefaultConfig()
	base.Geometry = flash.Geometry{Dies: 1, BlocksPerDie: 8, PagesPerBlock: 4, PageSize: 64}
	launcher := &stubLauncher{base: base}
	router := newRunsRouter(registry.NewRegistry(), launcher)

	w := serve(router, "POST", "/runs", `{"policy":"cat","commands":10}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusAccepted, w.Code, w.Body.String())
	}
	if len(launcher.got) != 1 || launcher.got[0].Policy != "cat" || launcher.got[0].Commands != 10 {
		t.Errorf("Unexpected launch requests: %+v", launcher.got)
	}

	if w := serve(router, "POST", "/runs", `{"policy":`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for malformed body, got %d", http.StatusBadRequest, w.Code)
	}
	if w := serve(router, "POST", "/runs", `{"colour":"red"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for unknown field, got %d", http.StatusBadRequest, w.Code)
	}
	if w := serve(router, "POST", "/runs", `{"policy":"lifo"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for unknown policy, got %d", http.StatusBadRequest, w.Code)
	}

	launcher.err = sim.ErrQueueFull
	if w := serve(router, "POST", "/runs", `{}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d when queue is full, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestRuns_CreateWithoutLauncher(t *testing.T) {
	router := newRunsRouter(registry.NewRegistry(), nil)
	if w := serve(router, "POST", "/runs", `{}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestRuns_Report(t *testing.T) {
	reg := registry.NewRegistry()
	cfg := sim.DefaultConfig()
	cfg.Geometry = flash.Geometry{Dies: 1, BlocksPerDie: 8, PagesPerBlock: 4, PageSize: 64}
	cfg.FTL.Overprovision = 0.5
	cfg.Commands = 20
	run, err := sim.NewRun(cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	_ = reg.RegisterRun(run)
	router := newRunsRouter(reg, nil)

	if w := serve(router, "GET", "/runs/"+run.ID()+"/report", ""); w.Code != http.StatusConflict {
		t.Errorf("Expected status %d before completion, got %d", http.StatusConflict, w.Code)
	}

	if _, err := run.Execute(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	w := serve(router, "GET", "/runs/"+run.ID()+"/report", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	rep := decodeResponse(t, w).Data.(map[string]interface{})
	if rep["run_id"] != run.ID() {
		t.Errorf("Expected report for %s, got %v", run.ID(), rep["run_id"])
	}
}

func TestSnapshots(t *testing.T) {
	reg := registry.NewRegistry()
	h := NewSnapshotsHandler(reg)
	r := chi.NewRouter()
	r.Get("/snapshots", h.List)
	r.Delete("/snapshots/{name}", h.Delete)

	if w := serve(r, "GET", "/snapshots", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d without store, got %d", http.StatusServiceUnavailable, w.Code)
	}

	store, err := snapshot.Open(snapshot.Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()
	reg.SetSnapshotStore(store)

	if err := store.Save(context.Background(), &snapshot.Snapshot{Name: "worn", Policy: "greedy"}); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	w := serve(r, "GET", "/snapshots", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	list := decodeResponse(t, w).Data.([]interface{})
	if len(list) != 1 || list[0].(map[string]interface{})["name"] != "worn" {
		t.Errorf("Unexpected snapshot list: %v", list)
	}

	if w := serve(r, "DELETE", "/snapshots/worn", ""); w.Code != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if w := serve(r, "DELETE", "/snapshots/worn", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestPolicies(t *testing.T) {
	w := httptest.NewRecorder()
	Policies(w, httptest.NewRequest("GET", "/policies", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	list := decodeResponse(t, w).Data.([]interface{})
	if len(list) != 3 {
		t.Fatalf("Expected 3 policies, got %d", len(list))
	}
	for _, item := range list {
		p := item.(map[string]interface{})
		if p["description"] == "" {
			t.Errorf("Policy %v has no description", p["name"])
		}
	}
}
