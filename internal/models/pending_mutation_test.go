package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPendingMutation(t *testing.T) {
	t.Run("snapshots the entity payload", func(t *testing.T) {
		entry, err := NewTimeEntry("user-1", "project-1", "", "",
			time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC),
			Position{Latitude: 1, Longitude: 2})
		require.NoError(t, err)

		m, err := NewPendingMutation(entry.ID, KindTimeEntry, entry)

		require.NoError(t, err)
		assert.Equal(t, entry.ID, m.IdempotencyID)
		assert.Equal(t, KindTimeEntry, m.EntityKind)
		assert.Zero(t, m.AttemptCount)
		assert.False(t, m.DeadLettered)
		assert.WithinDuration(t, time.Now().UTC(), m.CreatedAt, 5*time.Second)

		var decoded TimeEntry
		require.NoError(t, json.Unmarshal(m.Payload, &decoded))
		assert.Equal(t, entry.ID, decoded.ID)
	})

	t.Run("rejects empty idempotency id", func(t *testing.T) {
		_, err := NewPendingMutation("  ", KindTimeEntry, struct{}{})
		assert.ErrorIs(t, err, ErrEmptyIdempotencyID)
	})

	t.Run("rejects unknown entity kind", func(t *testing.T) {
		_, err := NewPendingMutation("id-1", EntityKind("photo"), struct{}{})
		assert.ErrorIs(t, err, ErrUnknownEntityKind)
	})

	t.Run("rejects nil entity", func(t *testing.T) {
		_, err := NewPendingMutation("id-1", KindTimeEntry, nil)
		assert.ErrorIs(t, err, ErrEmptyPayload)
	})
}
