package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitechron/fieldsync/internal/models"
	"github.com/sitechron/fieldsync/internal/outbox"
	"github.com/sitechron/fieldsync/internal/syncer"
)

// SyncHandler exposes sync state and manual sync controls
type SyncHandler struct {
	status     *syncer.StatusTracker
	reconciler *syncer.Reconciler
	outbox     *outbox.Outbox
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(status *syncer.StatusTracker, reconciler *syncer.Reconciler, outbox *outbox.Outbox) *SyncHandler {
	return &SyncHandler{
		status:     status,
		reconciler: reconciler,
		outbox:     outbox,
	}
}

// Status returns pending and failed counts plus the last completed pass
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.status.Status())
}

// Run triggers a reconciliation pass and waits for it. If a pass is already
// in progress the trigger coalesces into a rerun and started is false.
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	synced, failed, started := h.reconciler.Reconcile(r.Context())
	respondJSON(w, http.StatusOK, models.ReconcileResponse{
		Synced:  synced,
		Failed:  failed,
		Started: started,
	})
}

// DeadLetters lists mutations that exhausted their attempts or were rejected
func (h *SyncHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	items, err := h.outbox.ListDeadLettered(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list dead letters.")
		return
	}

	resp := make([]models.DeadLetterItemResponse, 0, len(items))
	for _, m := range items {
		resp = append(resp, models.DeadLetterItemResponse{
			IdempotencyID: m.IdempotencyID,
			EntityKind:    m.EntityKind,
			CreatedAt:     m.CreatedAt,
			AttemptCount:  m.AttemptCount,
			LastError:     m.LastError,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// RetryDeadLetter puts one dead-lettered mutation back in the pending queue
func (h *SyncHandler) RetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.outbox.RequestRetry(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	if err := h.status.Refresh(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to refresh sync status.")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "requeued"})
}
