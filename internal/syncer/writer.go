package syncer

import (
	"context"

	"github.com/sitechron/fieldsync/internal/models"
	"github.com/sitechron/fieldsync/internal/observability"
	"github.com/sitechron/fieldsync/internal/outbox"
	"github.com/sitechron/fieldsync/internal/remote"
)

// Writer is the single offline-first write path for finalized field records:
// when online it tries the remote store directly, otherwise (or on transient
// failure) the record lands in the outbox for the reconciler. A rejection is
// dead-lettered immediately so it surfaces in failedCount rather than being
// retried forever.
type Writer struct {
	outbox *outbox.Outbox
	remote remote.Store
	online func() bool
	status *StatusTracker
}

// NewWriter creates a Writer
func NewWriter(ob *outbox.Outbox, rs remote.Store, online func() bool, status *StatusTracker) *Writer {
	if online == nil {
		online = func() bool { return false }
	}
	return &Writer{outbox: ob, remote: rs, online: online, status: status}
}

// Write snapshots the entity into a mutation keyed by its client id and
// submits it. Returns whether the record was queued rather than confirmed.
func (w *Writer) Write(ctx context.Context, kind models.EntityKind, id string, entity interface{}) (queued bool, err error) {
	mutation, err := models.NewPendingMutation(id, kind, entity)
	if err != nil {
		return false, err
	}
	return w.Submit(ctx, mutation)
}

// Submit delivers a prepared mutation through the offline-first path
func (w *Writer) Submit(ctx context.Context, m *models.PendingMutation) (queued bool, err error) {
	defer w.refresh(ctx)

	if w.online() && w.remote != nil {
		_, remoteErr := w.remote.Insert(ctx, m.EntityKind, m.Payload, m.IdempotencyID)
		if remoteErr == nil {
			return false, nil
		}
		if remote.IsRejected(remoteErr) {
			if err := w.outbox.Enqueue(ctx, m); err != nil {
				return false, err
			}
			if err := w.outbox.MarkFailed(ctx, m.IdempotencyID, remoteErr, true); err != nil {
				return false, err
			}
			observability.Errorf("Remote store rejected %s %s: %v", m.EntityKind, m.IdempotencyID, remoteErr)
			return true, nil
		}
		observability.Warnf("Remote write of %s %s failed, queueing: %v", m.EntityKind, m.IdempotencyID, remoteErr)
	}

	if err := w.outbox.Enqueue(ctx, m); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Writer) refresh(ctx context.Context) {
	if w.status != nil {
		if err := w.status.Refresh(ctx); err != nil {
			observability.Errorf("Refreshing sync status: %v", err)
		}
	}
}
