package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeEntry(t *testing.T) {
	gps := Position{Latitude: 40.7128, Longitude: -74.0060, AccuracyMeters: 5}

	t.Run("creates active entry with valid parameters", func(t *testing.T) {
		start := time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC)

		entry, err := NewTimeEntry("user-1", "project-1", "task-1", "cc-1", start, gps)

		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, "user-1", entry.UserID)
		assert.Equal(t, "project-1", entry.ProjectID)
		assert.Equal(t, start, entry.StartTime)
		assert.Nil(t, entry.EndTime)
		assert.True(t, entry.Active())
		assert.Zero(t, entry.BreakDurationSeconds)
	})

	t.Run("rejects empty user id", func(t *testing.T) {
		_, err := NewTimeEntry("", "project-1", "", "", time.Now(), gps)
		assert.ErrorIs(t, err, ErrEmptyUserID)
	})

	t.Run("rejects empty project id", func(t *testing.T) {
		_, err := NewTimeEntry("user-1", "  ", "", "", time.Now(), gps)
		assert.ErrorIs(t, err, ErrEmptyProjectID)
	})

	t.Run("rejects out-of-range coordinates", func(t *testing.T) {
		bad := Position{Latitude: 91, Longitude: 0}
		_, err := NewTimeEntry("user-1", "project-1", "", "", time.Now(), bad)
		assert.ErrorIs(t, err, ErrInvalidCoordinates)
	})

	t.Run("generates unique ids", func(t *testing.T) {
		e1, err := NewTimeEntry("user-1", "project-1", "", "", time.Now(), gps)
		require.NoError(t, err)
		e2, err := NewTimeEntry("user-1", "project-1", "", "", time.Now(), gps)
		require.NoError(t, err)
		assert.NotEqual(t, e1.ID, e2.ID)
	})
}

func TestTimeEntry_Finalize(t *testing.T) {
	gps := Position{Latitude: 40.7128, Longitude: -74.0060}
	start := time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC)

	newEntry := func(t *testing.T) *TimeEntry {
		entry, err := NewTimeEntry("user-1", "project-1", "", "", start, gps)
		require.NoError(t, err)
		return entry
	}

	t.Run("computes total hours minus breaks", func(t *testing.T) {
		entry := newEntry(t)
		entry.BreakDurationSeconds = 30 * 60 // 30 minute break

		err := entry.Finalize(start.Add(9 * time.Hour))

		require.NoError(t, err)
		assert.False(t, entry.Active())
		assert.InDelta(t, 8.5, entry.TotalHours, 1e-9)
		assert.True(t, entry.IsOvertime)
	})

	t.Run("exactly eight hours worked is not overtime", func(t *testing.T) {
		entry := newEntry(t)

		err := entry.Finalize(start.Add(8 * time.Hour))

		require.NoError(t, err)
		assert.InDelta(t, 8.0, entry.TotalHours, 1e-9)
		assert.False(t, entry.IsOvertime)
	})

	t.Run("rejects end before start", func(t *testing.T) {
		entry := newEntry(t)
		err := entry.Finalize(start.Add(-time.Minute))
		assert.ErrorIs(t, err, ErrEndBeforeStart)
	})

	t.Run("rejects negative accumulated break", func(t *testing.T) {
		entry := newEntry(t)
		entry.BreakDurationSeconds = -1
		err := entry.Finalize(start.Add(time.Hour))
		assert.ErrorIs(t, err, ErrNegativeBreak)
	})

	t.Run("break longer than session clamps worked time to zero", func(t *testing.T) {
		entry := newEntry(t)
		entry.BreakDurationSeconds = 2 * 3600

		err := entry.Finalize(start.Add(time.Hour))

		require.NoError(t, err)
		assert.Zero(t, entry.TotalHours)
		assert.False(t, entry.IsOvertime)
	})
}

func TestTimeEntry_WorkedDuration(t *testing.T) {
	gps := Position{Latitude: 0, Longitude: 0}
	start := time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC)

	t.Run("active entry measures against now", func(t *testing.T) {
		entry, err := NewTimeEntry("user-1", "project-1", "", "", start, gps)
		require.NoError(t, err)
		entry.BreakDurationSeconds = 600

		worked := entry.WorkedDuration(start.Add(2 * time.Hour))

		assert.Equal(t, 2*time.Hour-10*time.Minute, worked)
	})

	t.Run("finalized entry ignores now", func(t *testing.T) {
		entry, err := NewTimeEntry("user-1", "project-1", "", "", start, gps)
		require.NoError(t, err)
		require.NoError(t, entry.Finalize(start.Add(4*time.Hour)))

		worked := entry.WorkedDuration(start.Add(100 * time.Hour))

		assert.Equal(t, 4*time.Hour, worked)
	})
}
