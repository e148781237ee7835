package outbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitechron/fieldsync/internal/models"
	"github.com/sitechron/fieldsync/internal/store"
)

func setupTestOutbox(t *testing.T, cfg Config) (*Outbox, string) {
	tempDir, err := os.MkdirTemp("", "fieldsync-outbox-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	dbPath := filepath.Join(tempDir, "agent.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return New(s, cfg), dbPath
}

func newMutation(t *testing.T, id string, createdAt time.Time) *models.PendingMutation {
	m, err := models.NewPendingMutation(id, models.KindTimeEntry, map[string]string{"id": id})
	require.NoError(t, err)
	m.CreatedAt = createdAt
	return m
}

func TestOutbox_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("re-enqueue with same id updates payload without duplicating", func(t *testing.T) {
		ob, _ := setupTestOutbox(t, Config{})
		created := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

		first := newMutation(t, "m1", created)
		require.NoError(t, ob.Enqueue(ctx, first))

		updated, err := models.NewPendingMutation("m1", models.KindTimeEntry, map[string]string{"id": "m1", "notes": "edited"})
		require.NoError(t, err)
		require.NoError(t, ob.Enqueue(ctx, updated))

		pending, err := ob.ListPending(ctx, "")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, created, pending[0].CreatedAt, "original arrival time is preserved")
		assert.Contains(t, string(pending[0].Payload), "edited")
	})

	t.Run("preserves attempt history on re-enqueue", func(t *testing.T) {
		ob, _ := setupTestOutbox(t, Config{})

		require.NoError(t, ob.Enqueue(ctx, newMutation(t, "m1", time.Now().UTC())))
		require.NoError(t, ob.MarkFailed(ctx, "m1", errors.New("timeout"), false))

		require.NoError(t, ob.Enqueue(ctx, newMutation(t, "m1", time.Now().UTC())))

		pending, err := ob.ListPending(ctx, "")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 1, pending[0].AttemptCount)
		assert.Equal(t, "timeout", pending[0].LastError)
	})
}

func TestOutbox_ListPending(t *testing.T) {
	ctx := context.Background()

	t.Run("orders by arrival oldest first across kinds", func(t *testing.T) {
		ob, _ := setupTestOutbox(t, Config{})
		base := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

		third := newMutation(t, "zz-late", base.Add(2*time.Minute))
		require.NoError(t, ob.Enqueue(ctx, third))

		second, err := models.NewPendingMutation("incident-1", models.KindSafetyIncident, map[string]string{"id": "incident-1"})
		require.NoError(t, err)
		second.CreatedAt = base.Add(time.Minute)
		require.NoError(t, ob.Enqueue(ctx, second))

		first := newMutation(t, "aa-early", base)
		require.NoError(t, ob.Enqueue(ctx, first))

		pending, err := ob.ListPending(ctx, "")
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, "aa-early", pending[0].IdempotencyID)
		assert.Equal(t, "incident-1", pending[1].IdempotencyID)
		assert.Equal(t, "zz-late", pending[2].IdempotencyID)
	})

	t.Run("filters by entity kind when given", func(t *testing.T) {
		ob, _ := setupTestOutbox(t, Config{})

		require.NoError(t, ob.Enqueue(ctx, newMutation(t, "m1", time.Now().UTC())))
		incident, err := models.NewPendingMutation("i1", models.KindSafetyIncident, map[string]string{"id": "i1"})
		require.NoError(t, err)
		require.NoError(t, ob.Enqueue(ctx, incident))

		pending, err := ob.ListPending(ctx, models.KindSafetyIncident)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "i1", pending[0].IdempotencyID)
	})

	t.Run("relisting is deterministic", func(t *testing.T) {
		ob, _ := setupTestOutbox(t, Config{})
		same := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, ob.Enqueue(ctx, newMutation(t, id, same)))
		}

		first, err := ob.ListPending(ctx, "")
		require.NoError(t, err)
		second, err := ob.ListPending(ctx, "")
		require.NoError(t, err)

		require.Len(t, first, 3)
		for i := range first {
			assert.Equal(t, first[i].IdempotencyID, second[i].IdempotencyID)
		}
	})
}

func TestOutbox_Durability(t *testing.T) {
	ctx := context.Background()

	t.Run("enqueued mutations survive close and reopen", func(t *testing.T) {
		tempDir, err := os.MkdirTemp("", "fieldsync-outbox-*")
		require.NoError(t, err)
		t.Cleanup(func() { os.RemoveAll(tempDir) })
		dbPath := filepath.Join(tempDir, "agent.db")

		s, err := store.NewSQLiteStore(dbPath)
		require.NoError(t, err)
		ob := New(s, Config{})

		require.NoError(t, ob.Enqueue(ctx, newMutation(t, "m1", time.Now().UTC())))
		require.NoError(t, ob.Enqueue(ctx, newMutation(t, "m2", time.Now().UTC())))
		require.NoError(t, ob.MarkSucceeded(ctx, "m2"))
		require.NoError(t, s.Close())

		reopened, err := store.NewSQLiteStore(dbPath)
		require.NoError(t, err)
		defer reopened.Close()

		pending, err := New(reopened, Config{}).ListPending(ctx, "")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "m1", pending[0].IdempotencyID)
	})
}

func TestOutbox_MarkFailed(t *testing.T) {
	ctx := context.Background()

	t.Run("transient failures accumulate until the attempt cap", func(t *testing.T) {
		ob, _ := setupTestOutbox(t, Config{AttemptCap: 3})
		require.NoError(t, ob.Enqueue(ctx, newMutation(t, "m1", time.Now().UTC())))

		require.NoError(t, ob.MarkFailed(ctx, "m1", errors.New("timeout"), false))
		require.NoError(t, ob.MarkFailed(ctx, "m1", errors.New("timeout"), false))

		pending, err := ob.ListPending(ctx, "")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 2, pending[0].AttemptCount)

		require.NoError(t, ob.MarkFailed(ctx, "m1", errors.New("timeout"), false))

		pending, err = ob.ListPending(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, pending)

		dead, err := ob.ListDeadLettered(ctx)
		require.NoError(t, err)
		require.Len(t, dead, 1)
		assert.Equal(t, 3, dead[0].AttemptCount)
		assert.Equal(t, "timeout", dead[0].LastError)
	})

	t.Run("permanent failure dead-letters immediately", func(t *testing.T) {
		ob, _ := setupTestOutbox(t, Config{AttemptCap: 5})
		require.NoError(t, ob.Enqueue(ctx, newMutation(t, "m1", time.Now().UTC())))

		require.NoError(t, ob.MarkFailed(ctx, "m1", errors.New("validation rejected"), true))

		pending, err := ob.ListPending(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, pending)

		dead, err := ob.ListDeadLettered(ctx)
		require.NoError(t, err)
		require.Len(t, dead, 1)
		assert.Equal(t, 1, dead[0].AttemptCount)
	})

	t.Run("unknown mutation id is an error", func(t *testing.T) {
		ob, _ := setupTestOutbox(t, Config{})
		err := ob.MarkFailed(ctx, "ghost", errors.New("x"), false)
		assert.ErrorIs(t, err, models.ErrMutationNotFound)
	})
}

func TestOutbox_RequestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a dead-lettered mutation to the pending pool", func(t *testing.T) {
		ob, _ := setupTestOutbox(t, Config{AttemptCap: 1})
		require.NoError(t, ob.Enqueue(ctx, newMutation(t, "m1", time.Now().UTC())))
		require.NoError(t, ob.MarkFailed(ctx, "m1", errors.New("timeout"), false))

		require.NoError(t, ob.RequestRetry(ctx, "m1"))

		pending, err := ob.ListPending(ctx, "")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Zero(t, pending[0].AttemptCount)
		assert.Empty(t, pending[0].LastError)
	})

	t.Run("rejects retry of a mutation that is not dead-lettered", func(t *testing.T) {
		ob, _ := setupTestOutbox(t, Config{})
		require.NoError(t, ob.Enqueue(ctx, newMutation(t, "m1", time.Now().UTC())))

		err := ob.RequestRetry(ctx, "m1")
		assert.ErrorIs(t, err, models.ErrNotDeadLettered)
	})
}

func TestOutbox_DeadLetterRetention(t *testing.T) {
	ctx := context.Background()

	t.Run("oldest dead-lettered mutations are dropped past the cap", func(t *testing.T) {
		ob, _ := setupTestOutbox(t, Config{AttemptCap: 1, DeadLetterRetention: 2})
		base := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

		for i := 0; i < 3; i++ {
			id := fmt.Sprintf("dead-%d", i)
			require.NoError(t, ob.Enqueue(ctx, newMutation(t, id, base.Add(time.Duration(i)*time.Minute))))
			require.NoError(t, ob.MarkFailed(ctx, id, errors.New("rejected"), true))
		}

		dead, err := ob.ListDeadLettered(ctx)
		require.NoError(t, err)
		require.Len(t, dead, 2)
		assert.Equal(t, "dead-1", dead[0].IdempotencyID)
		assert.Equal(t, "dead-2", dead[1].IdempotencyID)
	})
}

func TestOutbox_Counts(t *testing.T) {
	ctx := context.Background()

	ob, _ := setupTestOutbox(t, Config{AttemptCap: 1})
	require.NoError(t, ob.Enqueue(ctx, newMutation(t, "p1", time.Now().UTC())))
	require.NoError(t, ob.Enqueue(ctx, newMutation(t, "p2", time.Now().UTC())))
	require.NoError(t, ob.Enqueue(ctx, newMutation(t, "d1", time.Now().UTC())))
	require.NoError(t, ob.MarkFailed(ctx, "d1", errors.New("rejected"), true))

	pending, failed, err := ob.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
	assert.Equal(t, 1, failed)
}
