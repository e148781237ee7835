package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sitechron/fieldsync/internal/models"
	"github.com/sitechron/fieldsync/internal/observability"
	"github.com/sitechron/fieldsync/internal/syncer"
)

// CaptureHandler accepts field records and hands them to the offline-first
// write path. The record is durable before the response is sent; whether it
// reached the remote store yet is reported in the queued flag.
type CaptureHandler struct {
	writer *syncer.Writer
}

// NewCaptureHandler creates a new CaptureHandler
func NewCaptureHandler(writer *syncer.Writer) *CaptureHandler {
	return &CaptureHandler{writer: writer}
}

// CaptureIncident records a safety incident
func (h *CaptureHandler) CaptureIncident(w http.ResponseWriter, r *http.Request) {
	var req models.CaptureIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	incident, err := models.NewSafetyIncident(req.UserID, req.ProjectID, req.Severity, req.Description, req.Location, occurredAt)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.submit(w, r, models.KindSafetyIncident, incident.ID, incident)
}

// CaptureEquipment records an equipment transaction
func (h *CaptureHandler) CaptureEquipment(w http.ResponseWriter, r *http.Request) {
	var req models.CaptureEquipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	tx, err := models.NewEquipmentTransaction(req.UserID, req.ProjectID, req.EquipmentID, req.Action, req.HoursUsed, req.Notes)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.submit(w, r, models.KindEquipmentTransaction, tx.ID, tx)
}

// CaptureDelivery records a material delivery
func (h *CaptureHandler) CaptureDelivery(w http.ResponseWriter, r *http.Request) {
	var req models.CaptureDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	delivery, err := models.NewMaterialDelivery(req.UserID, req.ProjectID, req.Supplier, req.Material, req.Quantity, req.Unit, req.ReceivedBy)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.submit(w, r, models.KindMaterialDelivery, delivery.ID, delivery)
}

func (h *CaptureHandler) submit(w http.ResponseWriter, r *http.Request, kind models.EntityKind, id string, entity interface{}) {
	queued, err := h.writer.Write(r.Context(), kind, id, entity)
	if err != nil {
		observability.Errorf("Persisting %s %s: %v", kind, id, err)
		respondError(w, http.StatusInternalServerError, "Failed to persist record.")
		return
	}

	observability.RecordCapture(r.Context(), string(kind))
	respondJSON(w, http.StatusCreated, models.CaptureResponse{ID: id, Queued: queued})
}
