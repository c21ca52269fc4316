// Package httpapi exposes the localhost status API consumed by the
// desktop UI: current connectivity mode, checkpoint, and a "sync now"
// trigger.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	apperrors "github.com/sahelpos/terminal/internal/errors"
	"github.com/sahelpos/terminal/internal/logging"
	syncpkg "github.com/sahelpos/terminal/internal/sync"
)

// Handler serves the status API over an Orchestrator.
type Handler struct {
	engine syncpkg.Orchestrator
}

// NewHandler creates a Handler over the engine.
func NewHandler(engine syncpkg.Orchestrator) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes attaches the API routes to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.Health)
	mux.HandleFunc("/api/status", h.Status)
	mux.HandleFunc("/api/sync", h.SyncNow)
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// statusResponse is the UI-facing view of the engine state. Error
// detail stays in the logs: the till operator only sees that the
// terminal is offline or in error.
type statusResponse struct {
	Status     string     `json:"status"`
	Mode       string     `json:"mode"`
	Checkpoint string     `json:"checkpoint"`
	LastSync   *time.Time `json:"last_sync,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{
		Status:   string(h.engine.Status()),
		Mode:     string(h.engine.Mode()),
		LastSync: h.engine.LastSync(),
	}
	if cp, err := h.engine.Checkpoint(); err == nil {
		resp.Checkpoint = cp
	}
	if err := h.engine.LastError(); err != nil {
		resp.LastError = string(apperrors.CodeOf(err))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SyncNow handles POST /api/sync: the manual "sync now" action. A run
// already in flight is reported as a conflict, not queued.
func (h *Handler) SyncNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.engine.Sync(r.Context())
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSyncInProgress) {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error": string(apperrors.ErrSyncInProgress),
			})
			return
		}
		logging.ErrorWithCode("Manual sync failed", string(apperrors.CodeOf(err)), err)
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":  string(apperrors.CodeOf(err)),
			"result": result,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("Failed to encode response", err)
	}
}
