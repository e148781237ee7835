package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*SQLiteStore, string) {
	tempDir, err := os.MkdirTemp("", "fieldsync-store-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	dbPath := filepath.Join(tempDir, "agent.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, dbPath
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("put then get round-trips the value", func(t *testing.T) {
		s, _ := setupTestStore(t)

		require.NoError(t, s.Put(ctx, "tracker/active/user-1", []byte(`{"id":"e1"}`)))

		got, err := s.Get(ctx, "tracker/active/user-1")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"id":"e1"}`), got)
	})

	t.Run("get of missing key returns nil without error", func(t *testing.T) {
		s, _ := setupTestStore(t)

		got, err := s.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("put overwrites an existing value", func(t *testing.T) {
		s, _ := setupTestStore(t)

		require.NoError(t, s.Put(ctx, "k", []byte("v1")))
		require.NoError(t, s.Put(ctx, "k", []byte("v2")))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("delete removes the key and is idempotent", func(t *testing.T) {
		s, _ := setupTestStore(t)

		require.NoError(t, s.Put(ctx, "k", []byte("v")))
		require.NoError(t, s.Delete(ctx, "k"))
		require.NoError(t, s.Delete(ctx, "k"))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list by prefix returns only matching keys in order", func(t *testing.T) {
		s, _ := setupTestStore(t)

		require.NoError(t, s.Put(ctx, "outbox/b", []byte("2")))
		require.NoError(t, s.Put(ctx, "outbox/a", []byte("1")))
		require.NoError(t, s.Put(ctx, "tracker/active/user-1", []byte("x")))

		entries, err := s.ListByPrefix(ctx, "outbox/")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "outbox/a", entries[0].Key)
		assert.Equal(t, "outbox/b", entries[1].Key)
	})

	t.Run("values survive close and reopen", func(t *testing.T) {
		tempDir, err := os.MkdirTemp("", "fieldsync-store-*")
		require.NoError(t, err)
		t.Cleanup(func() { os.RemoveAll(tempDir) })
		dbPath := filepath.Join(tempDir, "agent.db")

		s, err := NewSQLiteStore(dbPath)
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, "outbox/m1", []byte("payload")))
		require.NoError(t, s.Close())

		reopened, err := NewSQLiteStore(dbPath)
		require.NoError(t, err)
		defer reopened.Close()

		got, err := reopened.Get(ctx, "outbox/m1")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), got)
	})
}
