// Package handlers serves the simulator status API: runs, snapshots,
// policies and health.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/registry"
	"github.com/marmos91/ftlgc/pkg/sim"
	"github.com/marmos91/ftlgc/pkg/snapshot"
)

// Response wraps every successful payload and every health answer.
// Status is "ok", "healthy" or "unhealthy".
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func envelope(status string, data any) Response {
	return Response{Status: status, Timestamp: time.Now().UTC(), Data: data}
}

// Problem is an RFC 7807 error body.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const ContentTypeProblemJSON = "application/problem+json"

// writeJSON encodes before writing headers so an encoding failure still
// produces a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	writeBody(w, status, "application/json", v)
}

func writeBody(w http.ResponseWriter, status int, contentType string, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Error("API: response encoding failed", logger.KeyError, err)
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope("ok", data))
}

// problem writes an RFC 7807 body titled with the status text.
func problem(w http.ResponseWriter, status int, detail string) {
	writeBody(w, status, ContentTypeProblemJSON, Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

var errorStatus = []struct {
	err    error
	status int
}{
	{registry.ErrRunNotFound, http.StatusNotFound},
	{snapshot.ErrNotFound, http.StatusNotFound},
	{registry.ErrRunActive, http.StatusConflict},
	{sim.ErrQueueFull, http.StatusServiceUnavailable},
	{sim.ErrLauncherStopped, http.StatusServiceUnavailable},
}

// writeError answers with the status mapped to err, or fallback for
// errors without a mapping.
func writeError(w http.ResponseWriter, err error, fallback int) {
	status := fallback
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			status = m.status
			break
		}
	}
	problem(w, status, err.Error())
}

// decodeJSONBody rejects unknown fields. On failure it has already written
// a 400.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		problem(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
