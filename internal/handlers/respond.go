package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sitechron/fieldsync/internal/models"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondDomainError maps domain errors onto HTTP statuses. Unknown errors
// are treated as internal and not echoed to the client.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrDuplicateActiveEntry),
		errors.Is(err, models.ErrInvalidStateTransition),
		errors.Is(err, models.ErrNotDeadLettered):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrMutationNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		var domainErr models.DomainError
		if errors.As(err, &domainErr) {
			respondError(w, http.StatusBadRequest, domainErr.Message)
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal error.")
	}
}
