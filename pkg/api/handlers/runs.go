package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/registry"
	"github.com/marmos91/ftlgc/pkg/sim"
)

// Launcher starts simulation runs in the background.
type Launcher interface {
	Launch(req sim.Request) (*sim.Run, error)
}

// RunsHandler exposes simulation runs.
type RunsHandler struct {
	registry *registry.Registry
	launcher Launcher
}

// NewRunsHandler creates a runs handler. launcher may be nil, in which case
// Create answers 503.
func NewRunsHandler(registry *registry.Registry, launcher Launcher) *RunsHandler {
	return &RunsHandler{registry: registry, launcher: launcher}
}

// List handles GET /runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs := h.registry.ListRuns()
	// Listing omits the per-die detail.
	for i := range runs {
		runs[i].Status = nil
	}
	respond(w, http.StatusOK, runs)
}

// Get handles GET /runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.registry.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	respond(w, http.StatusOK, run.Info())
}

// Report handles GET /runs/{id}/report. Answers 409 until the run has
// completed.
func (h *RunsHandler) Report(w http.ResponseWriter, r *http.Request) {
	run, err := h.registry.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	var report *sim.Report
	if sr, ok := run.(*sim.Run); ok {
		report = sr.Report()
	}
	if report == nil {
		problem(w, http.StatusConflict, "run has no report yet")
		return
	}
	respond(w, http.StatusOK, report)
}

// Create handles POST /runs with a sim.Request body.
func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.launcher == nil {
		problem(w, http.StatusServiceUnavailable, "run launcher not configured")
		return
	}

	var req sim.Request
	if !decodeJSONBody(w, r, &req) {
		return
	}

	run, err := h.launcher.Launch(req)
	if err != nil {
		// Anything but a saturated launcher is a bad request.
		writeError(w, err, http.StatusBadRequest)
		return
	}

	logger.Info("Run queued", logger.KeyRunID, run.ID(), logger.KeyPolicy, run.Config().Policy)
	respond(w, http.StatusAccepted, run.Info())
}

// Delete handles DELETE /runs/{id}. Running simulations cannot be removed.
func (h *RunsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.RemoveRun(chi.URLParam(r, "id")); err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
