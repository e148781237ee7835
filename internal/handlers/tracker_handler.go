package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sitechron/fieldsync/internal/models"
	"github.com/sitechron/fieldsync/internal/tracker"
)

// TrackerHandler exposes the time tracking state machine to the UI
type TrackerHandler struct {
	machine  *tracker.Machine
	location *tracker.PushProvider
}

// NewTrackerHandler creates a new TrackerHandler
func NewTrackerHandler(machine *tracker.Machine, location *tracker.PushProvider) *TrackerHandler {
	return &TrackerHandler{
		machine:  machine,
		location: location,
	}
}

// Start begins tracking a new time entry
func (h *TrackerHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.StartTrackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	entry, err := h.machine.Start(r.Context(), tracker.StartParams{
		ProjectID:  req.ProjectID,
		TaskID:     req.TaskID,
		CostCodeID: req.CostCodeID,
		Location:   req.Location,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

// ToggleBreak flips the active entry between tracking and on-break
func (h *TrackerHandler) ToggleBreak(w http.ResponseWriter, r *http.Request) {
	onBreak, breakSeconds, err := h.machine.ToggleBreak(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"onBreak":              onBreak,
		"breakDurationSeconds": breakSeconds,
	})
}

// Stop finalizes the active entry
func (h *TrackerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	entry, queued, err := h.machine.Stop(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.StopTrackingResponse{
		Entry:      entry,
		TotalHours: entry.TotalHours,
		IsOvertime: entry.IsOvertime,
		Queued:     queued,
	})
}

// Active returns the live view of the current entry
func (h *TrackerHandler) Active(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.machine.Snapshot())
}

// ReportLocation records a GPS fix pushed by the device shell
func (h *TrackerHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	var req models.ReportLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.location.Report(req.Position); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
