package models

import (
	"encoding/json"
	"strings"
	"time"
)

// EntityKind identifies which remote collection a mutation targets
type EntityKind string

const (
	KindTimeEntry            EntityKind = "time_entry"
	KindSafetyIncident       EntityKind = "safety_incident"
	KindEquipmentTransaction EntityKind = "equipment_transaction"
	KindMaterialDelivery     EntityKind = "material_delivery"
)

// ValidEntityKind reports whether k is a known entity kind
func ValidEntityKind(k EntityKind) bool {
	switch k {
	case KindTimeEntry, KindSafetyIncident, KindEquipmentTransaction, KindMaterialDelivery:
		return true
	}
	return false
}

// PendingMutation is one not-yet-confirmed write against the remote store.
// The IdempotencyID matches the domain entity's client-generated id, so a
// retried submission can never create a duplicate remote record.
type PendingMutation struct {
	IdempotencyID string          `json:"idempotencyId"`
	EntityKind    EntityKind      `json:"entityKind"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
	AttemptCount  int             `json:"attemptCount"`
	LastError     string          `json:"lastError,omitempty"`
	DeadLettered  bool            `json:"deadLettered"`
}

// NewPendingMutation creates a PendingMutation with validation.
// The entity is marshaled immediately so the payload is a stable snapshot.
func NewPendingMutation(idempotencyID string, kind EntityKind, entity interface{}) (*PendingMutation, error) {
	if strings.TrimSpace(idempotencyID) == "" {
		return nil, ErrEmptyIdempotencyID
	}
	if !ValidEntityKind(kind) {
		return nil, ErrUnknownEntityKind
	}

	payload, err := json.Marshal(entity)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 || string(payload) == "null" {
		return nil, ErrEmptyPayload
	}

	return &PendingMutation{
		IdempotencyID: idempotencyID,
		EntityKind:    kind,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
