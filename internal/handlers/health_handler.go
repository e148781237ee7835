package handlers

import (
	"net/http"
	"time"

	"github.com/sitechron/fieldsync/internal/models"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	online func() bool
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(online func() bool) *HealthHandler {
	return &HealthHandler{online: online}
}

// HealthCheck returns the agent health status
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	}
	if h.online != nil {
		response.Online = h.online()
	}

	respondJSON(w, http.StatusOK, response)
}
