package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/ftlgc/pkg/registry"
)

// storeProbeTimeout bounds the snapshot listing done by /health/stores.
const storeProbeTimeout = 5 * time.Second

// HealthHandler answers liveness, readiness and snapshot store probes.
// A nil registry makes readiness and store probes report unhealthy.
type HealthHandler struct {
	registry *registry.Registry
	started  time.Time
}

func NewHealthHandler(registry *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: registry, started: time.Now()}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope("healthy", map[string]string{
		"service": "ftlsim",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	}))
}

func (h *HealthHandler) unavailable(w http.ResponseWriter) bool {
	if h.registry != nil {
		return false
	}
	resp := envelope("unhealthy", nil)
	resp.Error = "registry not initialized"
	writeJSON(w, http.StatusServiceUnavailable, resp)
	return true
}

// Readiness is the body of GET /health/ready.
type Readiness struct {
	Runs       int  `json:"runs"`
	ActiveRuns int  `json:"active_runs"`
	Snapshots  bool `json:"snapshots"`
}

// Readiness handles GET /health/ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	writeJSON(w, http.StatusOK, envelope("healthy", Readiness{
		Runs:       h.registry.CountRuns(),
		ActiveRuns: h.registry.CountActiveRuns(),
		Snapshots:  h.registry.GetSnapshotStore() != nil,
	}))
}

// StoreHealth is one entry of GET /health/stores.
type StoreHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Snapshots int    `json:"snapshots"`
	Error     string `json:"error,omitempty"`
	Latency   string `json:"latency,omitempty"`
}

// Stores handles GET /health/stores by listing the snapshot store. A server
// without a store is healthy with an empty list.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	if h.unavailable(w) {
		return
	}
	store := h.registry.GetSnapshotStore()
	if store == nil {
		writeJSON(w, http.StatusOK, envelope("healthy", []StoreHealth{}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeProbeTimeout)
	defer cancel()

	start := time.Now()
	infos, err := store.List(ctx)
	probe := StoreHealth{Name: "snapshots", Status: "healthy", Snapshots: len(infos), Latency: time.Since(start).String()}
	status, code := "healthy", http.StatusOK
	if err != nil {
		probe.Status, probe.Error = "unhealthy", err.Error()
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, envelope(status, []StoreHealth{probe}))
}
