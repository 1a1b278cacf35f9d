package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/ftlgc/pkg/gc/policy"
	"github.com/marmos91/ftlgc/pkg/registry"
	"github.com/marmos91/ftlgc/pkg/snapshot"
)

// SnapshotsHandler exposes the snapshot store.
type SnapshotsHandler struct {
	registry *registry.Registry
}

// NewSnapshotsHandler creates a snapshots handler.
func NewSnapshotsHandler(registry *registry.Registry) *SnapshotsHandler {
	return &SnapshotsHandler{registry: registry}
}

// List handles GET /snapshots.
func (h *SnapshotsHandler) List(w http.ResponseWriter, r *http.Request) {
	store := h.registry.GetSnapshotStore()
	if store == nil {
		problem(w, http.StatusServiceUnavailable, "snapshot store not configured")
		return
	}
	infos, err := store.List(r.Context())
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []snapshot.Info{}
	}
	respond(w, http.StatusOK, infos)
}

// Delete handles DELETE /snapshots/{name}.
func (h *SnapshotsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	store := h.registry.GetSnapshotStore()
	if store == nil {
		problem(w, http.StatusServiceUnavailable, "snapshot store not configured")
		return
	}
	if err := store.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PolicyInfo describes a built-in GC policy.
type PolicyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Policies handles GET /policies.
func Policies(w http.ResponseWriter, r *http.Request) {
	names := policy.Names()
	out := make([]PolicyInfo, 0, len(names))
	for _, name := range names {
		p, err := policy.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, PolicyInfo{Name: name, Description: policy.Describe(p)})
	}
	respond(w, http.StatusOK, out)
}
