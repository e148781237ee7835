package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sitechron/fieldsync/internal/models"
	"github.com/sitechron/fieldsync/internal/outbox"
	"github.com/sitechron/fieldsync/internal/services"
	"github.com/sitechron/fieldsync/internal/store"
)

const lastSyncKey = "sync/last_sync_at"

// StatusTracker aggregates the outbox counters and last sync time for
// display. Only LastSyncAt is persisted; the counts are derived.
type StatusTracker struct {
	mu     sync.RWMutex
	outbox *outbox.Outbox
	store  store.LocalStore
	events Events
	status models.SyncStatus
}

// NewStatusTracker creates a status tracker over the outbox
func NewStatusTracker(ob *outbox.Outbox, s store.LocalStore, events Events) *StatusTracker {
	return &StatusTracker{outbox: ob, store: s, events: events}
}

// Load restores the persisted last sync time and computes initial counters
func (t *StatusTracker) Load(ctx context.Context) error {
	data, err := t.store.Get(ctx, lastSyncKey)
	if err != nil {
		return err
	}
	if data != nil {
		if at, err := time.Parse(time.RFC3339Nano, string(data)); err == nil {
			t.mu.Lock()
			t.status.LastSyncAt = &at
			t.mu.Unlock()
		}
	}
	return t.Refresh(ctx)
}

// Status returns the current aggregate view
func (t *StatusTracker) Status() models.SyncStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Refresh recomputes the counters from the outbox and publishes the change.
// Called after every outbox mutation and every reconciliation pass.
func (t *StatusTracker) Refresh(ctx context.Context) error {
	pending, failed, err := t.outbox.Counts(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.status.PendingCount = pending
	t.status.FailedCount = failed
	status := t.status
	t.mu.Unlock()

	t.publish(status)
	return nil
}

// SetSyncing flags whether a reconciliation pass is in flight
func (t *StatusTracker) SetSyncing(syncing bool) {
	t.mu.Lock()
	t.status.IsSyncing = syncing
	status := t.status
	t.mu.Unlock()

	t.publish(status)
}

// RecordPassCompleted persists the pass timestamp — durable so the UI can
// show "last synced" across restarts — and refreshes the counters
func (t *StatusTracker) RecordPassCompleted(ctx context.Context, at time.Time) error {
	at = at.UTC()
	if err := t.store.Put(ctx, lastSyncKey, []byte(at.Format(time.RFC3339Nano))); err != nil {
		return err
	}

	t.mu.Lock()
	t.status.LastSyncAt = &at
	t.mu.Unlock()

	return t.Refresh(ctx)
}

func (t *StatusTracker) publish(status models.SyncStatus) {
	if t.events != nil {
		t.events.Publish(services.EventSyncStatusChanged, status)
	}
}
