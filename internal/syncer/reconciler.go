package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sitechron/fieldsync/internal/models"
	"github.com/sitechron/fieldsync/internal/observability"
	"github.com/sitechron/fieldsync/internal/outbox"
	"github.com/sitechron/fieldsync/internal/remote"
)

// ReconcilerConfig tunes the reconciler's background loop
type ReconcilerConfig struct {
	// SyncInterval is the periodic drain cadence while online; zero disables
	// the timer and passes run only on reconnect and manual triggers
	SyncInterval time.Duration
}

// Reconciler drains the outbox against the remote store: one combined
// oldest-first stream across entity kinds, one attempt per item per pass,
// one bad item never blocking the rest. At most one pass runs at a time; a
// trigger arriving mid-pass coalesces into a rerun after the pass finishes.
type Reconciler struct {
	outbox *outbox.Outbox
	remote remote.Store
	status *StatusTracker
	online func() bool
	cfg    ReconcilerConfig
	now    func() time.Time

	mu      sync.Mutex
	running bool
	rerun   bool
}

// NewReconciler creates a reconciler
func NewReconciler(ob *outbox.Outbox, rs remote.Store, status *StatusTracker, online func() bool, cfg ReconcilerConfig) *Reconciler {
	if online == nil {
		online = func() bool { return false }
	}
	return &Reconciler{
		outbox: ob,
		remote: rs,
		status: status,
		online: online,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile runs one pass (plus any coalesced reruns). If a pass is already
// in progress the call is a no-op that schedules a rerun; started reports
// whether this call performed the work.
func (r *Reconciler) Reconcile(ctx context.Context) (synced, failed int, started bool) {
	r.mu.Lock()
	if r.running {
		r.rerun = true
		r.mu.Unlock()
		return 0, 0, false
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	for {
		passSynced, passFailed := r.runPass(ctx)
		synced += passSynced
		failed += passFailed

		r.mu.Lock()
		again := r.rerun
		r.rerun = false
		r.mu.Unlock()

		if !again || ctx.Err() != nil || !r.online() {
			return synced, failed, true
		}
	}
}

// runPass drains one snapshot of the pending queue. Connectivity is checked
// before each item, not just at the start: an in-flight item finishes, but no
// new item starts once the device goes offline.
func (r *Reconciler) runPass(ctx context.Context) (synced, failed int) {
	r.status.SetSyncing(true)
	defer r.status.SetSyncing(false)

	pending, err := r.outbox.ListPending(ctx, "")
	if err != nil {
		observability.Errorf("Listing pending mutations: %v", err)
		return 0, 0
	}

	for _, m := range pending {
		if ctx.Err() != nil || !r.online() {
			observability.Warnf("Reconciliation pass interrupted with %d items remaining", len(pending)-synced-failed)
			break
		}

		if r.syncItem(ctx, m) {
			synced++
		} else {
			failed++
		}
	}

	if err := r.status.RecordPassCompleted(ctx, r.now()); err != nil {
		observability.Errorf("Recording reconciliation pass: %v", err)
	}

	if synced > 0 || failed > 0 {
		observability.WithFields(map[string]interface{}{
			"synced": synced,
			"failed": failed,
		}).Info("Reconciliation pass completed")
	}
	return synced, failed
}

// syncItem attempts one remote write. Failures are isolated: the item is
// marked and the pass moves on.
func (r *Reconciler) syncItem(ctx context.Context, m *models.PendingMutation) bool {
	ctx, span := observability.StartServiceSpan(ctx, "reconciler", "syncItem")
	defer span.End()
	span.SetAttributes(
		observability.MutationID(m.IdempotencyID),
		observability.EntityKind(string(m.EntityKind)),
	)

	_, err := r.remote.Insert(ctx, m.EntityKind, m.Payload, m.IdempotencyID)
	if err == nil {
		observability.SetSuccess(span)
		observability.RecordSyncAttempt(ctx, string(m.EntityKind), "synced")
		if err := r.outbox.MarkSucceeded(ctx, m.IdempotencyID); err != nil {
			observability.Errorf("Marking %s succeeded: %v", m.IdempotencyID, err)
		}
		return true
	}
	observability.RecordError(span, err)

	permanent := remote.IsRejected(err)
	if markErr := r.outbox.MarkFailed(ctx, m.IdempotencyID, err, permanent); markErr != nil {
		observability.Errorf("Marking %s failed: %v", m.IdempotencyID, markErr)
	}

	if permanent {
		observability.RecordSyncAttempt(ctx, string(m.EntityKind), "rejected")
		observability.RecordDeadLetter(ctx, string(m.EntityKind))
		observability.Errorf("Remote store rejected %s %s, dead-lettering: %v", m.EntityKind, m.IdempotencyID, err)
	} else {
		observability.RecordSyncAttempt(ctx, string(m.EntityKind), "transient")
		observability.Warnf("Transient failure syncing %s %s: %v", m.EntityKind, m.IdempotencyID, err)
	}
	return false
}

// Run reacts to connectivity transitions and, while online, drains the
// outbox on the configured interval. Blocks until the context is canceled.
func (r *Reconciler) Run(ctx context.Context, transitions <-chan bool) {
	var ticker *time.Ticker
	var tick <-chan time.Time
	if r.cfg.SyncInterval > 0 {
		ticker = time.NewTicker(r.cfg.SyncInterval)
		tick = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-transitions:
			if !ok {
				return
			}
			if online {
				r.Reconcile(ctx)
			}
		case <-tick:
			if r.online() {
				r.Reconcile(ctx)
			}
		}
	}
}
