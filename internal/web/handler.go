// Package web serves the JSON status API used in serve mode.
package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cexll/firstfix/internal/runstore"
	"github.com/cexll/firstfix/internal/state"
)

// ProcessedLister lists the processed issues log.
type ProcessedLister interface {
	List() []state.Record
}

// TriggerFunc starts a pipeline run in the background. It returns the new
// run ID, or false when a run is already in progress.
type TriggerFunc func() (string, bool)

// Handler serves run history and the processed log.
type Handler struct {
	runs      *runstore.Store
	processed ProcessedLister
	trigger   TriggerFunc
	busy      func() bool
}

// NewHandler creates a handler over runs and processed.
func NewHandler(runs *runstore.Store, processed ProcessedLister) *Handler {
	return &Handler{runs: runs, processed: processed}
}

// WithTrigger enables POST /runs.
func (h *Handler) WithTrigger(trigger TriggerFunc, busy func() bool) *Handler {
	h.trigger = trigger
	h.busy = busy
	return h
}

// RegisterRoutes registers the API routes on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/runs", h.ListRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", h.RunDetail).Methods(http.MethodGet)
	r.HandleFunc("/processed", h.ListProcessed).Methods(http.MethodGet)
	if h.trigger != nil {
		r.HandleFunc("/runs", h.StartRun).Methods(http.MethodPost)
	}
}

// Health reports liveness and whether a run is in progress.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	running := false
	if h.busy != nil {
		running = h.busy()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": running,
	})
}

// ListRuns returns all runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": h.runs.List()})
}

// RunDetail returns a single run with its log.
func (h *Handler) RunDetail(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListProcessed returns the processed issues log.
func (h *Handler) ListProcessed(w http.ResponseWriter, r *http.Request) {
	records := h.processed.List()
	if records == nil {
		records = []state.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": records})
}

// StartRun triggers a pipeline pass.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.trigger()
	if !ok {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	log.Printf("[Web] Triggered run %s", id)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Web] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
