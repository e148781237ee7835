package outbox

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/sitechron/fieldsync/internal/models"
	"github.com/sitechron/fieldsync/internal/observability"
	"github.com/sitechron/fieldsync/internal/store"
)

const keyPrefix = "outbox/"

// Config bounds the outbox's retry and retention behavior
type Config struct {
	// AttemptCap is the number of failed attempts before a mutation is
	// dead-lettered instead of retried
	AttemptCap int
	// DeadLetterRetention caps how many dead-lettered mutations are kept;
	// beyond it the oldest are dropped at enqueue time
	DeadLetterRetention int
}

// DefaultConfig returns the outbox defaults
func DefaultConfig() Config {
	return Config{
		AttemptCap:          5,
		DeadLetterRetention: 200,
	}
}

// Outbox is the durable queue of writes not yet confirmed by the remote
// store. It owns every pending-mutation record; producers and the reconciler
// go through Enqueue/List/Mark only, never the underlying store.
type Outbox struct {
	store store.LocalStore
	cfg   Config
}

// New creates an Outbox over the given durable store
func New(s store.LocalStore, cfg Config) *Outbox {
	if cfg.AttemptCap <= 0 {
		cfg.AttemptCap = DefaultConfig().AttemptCap
	}
	if cfg.DeadLetterRetention <= 0 {
		cfg.DeadLetterRetention = DefaultConfig().DeadLetterRetention
	}
	return &Outbox{store: s, cfg: cfg}
}

func mutationKey(idempotencyID string) string {
	return keyPrefix + idempotencyID
}

// Enqueue stores a mutation for later delivery. Idempotent on IdempotencyID:
// re-enqueueing an existing id replaces the payload but preserves the
// original CreatedAt and attempt history.
func (o *Outbox) Enqueue(ctx context.Context, m *models.PendingMutation) error {
	existing, err := o.load(ctx, m.IdempotencyID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Payload = m.Payload
		existing.EntityKind = m.EntityKind
		return o.save(ctx, existing)
	}

	if err := o.enforceDeadLetterRetention(ctx); err != nil {
		return err
	}

	return o.save(ctx, m)
}

// ListPending returns mutations awaiting delivery, oldest first. Dead-lettered
// items are excluded. Pass an empty kind to list every entity kind.
func (o *Outbox) ListPending(ctx context.Context, kind models.EntityKind) ([]*models.PendingMutation, error) {
	all, err := o.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	var pending []*models.PendingMutation
	for _, m := range all {
		if m.DeadLettered {
			continue
		}
		if kind != "" && m.EntityKind != kind {
			continue
		}
		pending = append(pending, m)
	}

	sortByArrival(pending)
	return pending, nil
}

// ListDeadLettered returns mutations that exhausted their retry budget,
// oldest first. They stay here until a user requests a retry.
func (o *Outbox) ListDeadLettered(ctx context.Context) ([]*models.PendingMutation, error) {
	all, err := o.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	var dead []*models.PendingMutation
	for _, m := range all {
		if m.DeadLettered {
			dead = append(dead, m)
		}
	}

	sortByArrival(dead)
	return dead, nil
}

// MarkSucceeded removes a confirmed mutation
func (o *Outbox) MarkSucceeded(ctx context.Context, idempotencyID string) error {
	return o.store.Delete(ctx, mutationKey(idempotencyID))
}

// MarkFailed records a delivery failure. A permanent failure dead-letters the
// mutation immediately; a transient one increments the attempt count and
// dead-letters once the cap is reached.
func (o *Outbox) MarkFailed(ctx context.Context, idempotencyID string, cause error, permanent bool) error {
	m, err := o.load(ctx, idempotencyID)
	if err != nil {
		return err
	}
	if m == nil {
		return models.ErrMutationNotFound
	}

	m.AttemptCount++
	if cause != nil {
		m.LastError = cause.Error()
	}
	if permanent || m.AttemptCount >= o.cfg.AttemptCap {
		m.DeadLettered = true
	}

	return o.save(ctx, m)
}

// RequestRetry puts a dead-lettered mutation back into the pending pool with
// a fresh attempt budget. Only a user action reaches this path.
func (o *Outbox) RequestRetry(ctx context.Context, idempotencyID string) error {
	m, err := o.load(ctx, idempotencyID)
	if err != nil {
		return err
	}
	if m == nil {
		return models.ErrMutationNotFound
	}
	if !m.DeadLettered {
		return models.ErrNotDeadLettered
	}

	m.DeadLettered = false
	m.AttemptCount = 0
	m.LastError = ""
	return o.save(ctx, m)
}

// Counts returns how many mutations are pending and dead-lettered
func (o *Outbox) Counts(ctx context.Context) (pending, failed int, err error) {
	all, err := o.loadAll(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, m := range all {
		if m.DeadLettered {
			failed++
		} else {
			pending++
		}
	}
	return pending, failed, nil
}

func (o *Outbox) load(ctx context.Context, idempotencyID string) (*models.PendingMutation, error) {
	data, err := o.store.Get(ctx, mutationKey(idempotencyID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var m models.PendingMutation
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (o *Outbox) loadAll(ctx context.Context) ([]*models.PendingMutation, error) {
	entries, err := o.store.ListByPrefix(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	mutations := make([]*models.PendingMutation, 0, len(entries))
	for _, e := range entries {
		var m models.PendingMutation
		if err := json.Unmarshal(e.Value, &m); err != nil {
			return nil, err
		}
		mutations = append(mutations, &m)
	}
	return mutations, nil
}

func (o *Outbox) save(ctx context.Context, m *models.PendingMutation) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return o.store.Put(ctx, mutationKey(m.IdempotencyID), data)
}

// enforceDeadLetterRetention drops the oldest dead-lettered mutations once
// the retention cap is reached, so a neglected dead-letter pool cannot grow
// without bound on the device.
func (o *Outbox) enforceDeadLetterRetention(ctx context.Context) error {
	dead, err := o.ListDeadLettered(ctx)
	if err != nil {
		return err
	}
	if len(dead) < o.cfg.DeadLetterRetention {
		return nil
	}

	excess := len(dead) - o.cfg.DeadLetterRetention + 1
	for _, m := range dead[:excess] {
		observability.Warnf("Dropping dead-lettered mutation %s (%s) to honor retention cap of %d",
			m.IdempotencyID, m.EntityKind, o.cfg.DeadLetterRetention)
		if err := o.store.Delete(ctx, mutationKey(m.IdempotencyID)); err != nil {
			return err
		}
	}
	return nil
}

// sortByArrival orders mutations oldest first; ties break on id so re-listing
// is deterministic
func sortByArrival(mutations []*models.PendingMutation) {
	sort.SliceStable(mutations, func(i, j int) bool {
		if mutations[i].CreatedAt.Equal(mutations[j].CreatedAt) {
			return mutations[i].IdempotencyID < mutations[j].IdempotencyID
		}
		return mutations[i].CreatedAt.Before(mutations[j].CreatedAt)
	})
}
