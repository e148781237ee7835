package tracker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sitechron/fieldsync/internal/geo"
	"github.com/sitechron/fieldsync/internal/models"
	"github.com/sitechron/fieldsync/internal/observability"
	"github.com/sitechron/fieldsync/internal/remote"
	"github.com/sitechron/fieldsync/internal/services"
	"github.com/sitechron/fieldsync/internal/store"
	"github.com/sitechron/fieldsync/internal/syncer"
)

const activeKeyPrefix = "tracker/active/"

// State is the tracking lifecycle state
type State string

const (
	StateIdle     State = "idle"
	StateTracking State = "tracking"
	StateOnBreak  State = "on_break"
)

// GeofenceSource resolves a project's site boundary; owned by project
// configuration outside this subsystem
type GeofenceSource interface {
	Geofence(projectID string) (models.GeofenceConfig, bool)
}

// Events is the subset of the event hub the machine publishes through
type Events interface {
	Publish(eventType string, payload interface{})
}

// activeState is the durable record of the in-progress entry. StartTime is
// persisted at Start so a restart can recompute elapsed time; an open break's
// start is persisted so at most the open segment is lost in a crash.
type activeState struct {
	Entry          *models.TimeEntry `json:"entry"`
	BreakStartedAt *time.Time        `json:"breakStartedAt,omitempty"`
}

// Deps are the machine's injected collaborators
type Deps struct {
	Store    store.LocalStore
	Writer   *syncer.Writer
	Remote   remote.Store
	Location LocationProvider
	Sites    GeofenceSource
	Online   func() bool
	Events   Events
	Now      func() time.Time
}

// Machine owns the lifecycle of the current user's active time entry:
// Idle -> Tracking <-> OnBreak -> Stopped (back to Idle). All operations are
// serialized through one mutex, so a UI double-tap cannot race itself.
type Machine struct {
	mu sync.Mutex

	store    store.LocalStore
	writer   *syncer.Writer
	remote   remote.Store
	location LocationProvider
	sites    GeofenceSource
	online   func() bool
	events   Events
	now      func() time.Time

	userID         string
	state          State
	entry          *models.TimeEntry
	breakStartedAt *time.Time
	elapsedSeconds int64
	lastFence      geo.Result
}

// NewMachine creates an idle machine for one user session
func NewMachine(userID string, deps Deps) *Machine {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	online := deps.Online
	if online == nil {
		online = func() bool { return false }
	}

	return &Machine{
		store:    deps.Store,
		writer:   deps.Writer,
		remote:   deps.Remote,
		location: deps.Location,
		sites:    deps.Sites,
		online:   online,
		events:   deps.Events,
		now:      now,
		userID:   userID,
		state:    StateIdle,
	}
}

// StartParams are the inputs to Start
type StartParams struct {
	ProjectID  string
	TaskID     string
	CostCodeID string
	// Location overrides the provider when the caller already has a fix
	Location *models.Position
}

// Recover reloads the persisted active entry after a process restart. Elapsed
// time is recomputed from the durable StartTime and break total, so time
// accrued while the process was down is not lost.
func (m *Machine) Recover(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.store.Get(ctx, activeKeyPrefix+m.userID)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var st activeState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Entry == nil || !st.Entry.Active() {
		return m.store.Delete(ctx, activeKeyPrefix+m.userID)
	}

	m.entry = st.Entry
	m.breakStartedAt = st.BreakStartedAt
	if m.breakStartedAt != nil {
		m.state = StateOnBreak
	} else {
		m.state = StateTracking
	}
	m.elapsedSeconds = m.computeElapsedLocked(m.now())

	observability.WithFields(map[string]interface{}{
		"entry_id": m.entry.ID,
		"state":    string(m.state),
	}).Info("Recovered active time entry after restart")
	return nil
}

// Start begins tracking a new entry. Requires Idle, a GPS fix, and no open
// entry for the user (confirmed against the remote store when online). Being
// outside the geofence is a warning, never a block.
func (m *Machine) Start(ctx context.Context, params StartParams) (*models.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return nil, models.ErrDuplicateActiveEntry
	}

	pos, err := m.resolveLocation(ctx, params.Location)
	if err != nil {
		return nil, err
	}

	if m.online() && m.remote != nil {
		open, err := m.remote.FindActiveEntry(ctx, m.userID)
		if err != nil {
			// Cannot confirm; local state says Idle, so proceed as offline
			observability.Warnf("Active-entry confirmation failed, proceeding on local state: %v", err)
		} else if open != nil {
			return nil, models.ErrDuplicateActiveEntry
		}
	}

	entry, err := models.NewTimeEntry(m.userID, params.ProjectID, params.TaskID, params.CostCodeID, m.now(), *pos)
	if err != nil {
		return nil, err
	}

	entry.InsideFenceAtStart = m.evaluateFence(entry.ProjectID, pos)

	if err := m.persistActiveLocked(ctx, entry, nil); err != nil {
		return nil, err
	}

	m.entry = entry
	m.breakStartedAt = nil
	m.state = StateTracking
	m.elapsedSeconds = 0

	m.publish(services.EventTimeEntryStarted, entry)
	observability.RecordTrackingEvent(ctx, services.EventTimeEntryStarted)
	observability.WithFields(map[string]interface{}{
		"entry_id":   entry.ID,
		"project_id": entry.ProjectID,
	}).Info("Time tracking started")
	return entry, nil
}

// ToggleBreak flips between Tracking and OnBreak. Ending a break folds the
// elapsed break seconds into the durable running total before returning.
func (m *Machine) ToggleBreak(ctx context.Context) (onBreak bool, breakSeconds int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateTracking:
		started := m.now()
		if err := m.persistActiveLocked(ctx, m.entry, &started); err != nil {
			return false, 0, err
		}
		m.breakStartedAt = &started
		m.state = StateOnBreak

	case StateOnBreak:
		m.entry.BreakDurationSeconds += int64(m.now().Sub(*m.breakStartedAt).Seconds())
		if err := m.persistActiveLocked(ctx, m.entry, nil); err != nil {
			return false, 0, err
		}
		m.breakStartedAt = nil
		m.state = StateTracking

	default:
		return false, 0, models.ErrInvalidStateTransition
	}

	onBreak = m.state == StateOnBreak
	m.publish(services.EventBreakToggled, map[string]interface{}{
		"onBreak":              onBreak,
		"breakDurationSeconds": m.entry.BreakDurationSeconds,
	})
	return onBreak, m.entry.BreakDurationSeconds, nil
}

// Stop finalizes the active entry, computing total hours and overtime, then
// submits it: directly to the remote store when online, otherwise into the
// outbox. The machine returns to Idle either way; submission failures are the
// reconciler's problem, never the caller's.
func (m *Machine) Stop(ctx context.Context) (entry *models.TimeEntry, queued bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateTracking && m.state != StateOnBreak {
		return nil, false, models.ErrInvalidStateTransition
	}

	end := m.now()
	if m.breakStartedAt != nil {
		m.entry.BreakDurationSeconds += int64(end.Sub(*m.breakStartedAt).Seconds())
		m.breakStartedAt = nil
	}

	if err := m.entry.Finalize(end); err != nil {
		return nil, false, err
	}

	queued = m.submitLocked(ctx, m.entry)

	if err := m.store.Delete(ctx, activeKeyPrefix+m.userID); err != nil {
		return nil, false, err
	}

	entry = m.entry
	m.entry = nil
	m.state = StateIdle
	m.elapsedSeconds = 0

	m.publish(services.EventTimeEntryStopped, map[string]interface{}{
		"totalHours": entry.TotalHours,
		"isOvertime": entry.IsOvertime,
	})
	observability.RecordTrackingEvent(ctx, services.EventTimeEntryStopped)
	observability.WithFields(map[string]interface{}{
		"entry_id":    entry.ID,
		"total_hours": entry.TotalHours,
		"is_overtime": entry.IsOvertime,
		"queued":      queued,
	}).Info("Time tracking stopped")
	return entry, queued, nil
}

// Snapshot returns the live view of the machine for display
func (m *Machine) Snapshot() models.ActiveEntryResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	resp := models.ActiveEntryResponse{State: string(m.state)}
	if m.entry != nil {
		resp.Entry = m.entry
		resp.ElapsedSeconds = m.computeElapsedLocked(m.now())
		resp.GeofenceStatus = m.lastFence.Status()
		resp.DistanceMeters = m.lastFence.DistanceMeters
	}
	return resp
}

// RunTicker drives the display-only elapsed counter once a second while
// tracking. Nothing is persisted here; the durable StartTime is the source
// of truth for elapsed time.
func (m *Machine) RunTicker(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.state == StateTracking || m.state == StateOnBreak {
				m.elapsedSeconds = m.computeElapsedLocked(m.now())
			}
			m.mu.Unlock()
		}
	}
}

// submitLocked hands the finalized entry to the offline-first write path
func (m *Machine) submitLocked(ctx context.Context, entry *models.TimeEntry) (queued bool) {
	queued, err := m.writer.Write(ctx, models.KindTimeEntry, entry.ID, entry)
	if err != nil {
		observability.Errorf("Submitting entry %s: %v", entry.ID, err)
	}
	return queued
}

func (m *Machine) resolveLocation(ctx context.Context, override *models.Position) (*models.Position, error) {
	if override != nil {
		if err := override.Validate(); err != nil {
			return nil, err
		}
		return override, nil
	}
	if m.location == nil {
		return nil, models.ErrLocationRequired
	}

	pos, err := m.location.CurrentPosition(ctx)
	if err != nil || pos == nil {
		return nil, models.ErrLocationRequired
	}
	return pos, nil
}

// evaluateFence captures the geofence result for audit. Unknown or outside
// only produces a warning; tracking proceeds regardless.
func (m *Machine) evaluateFence(projectID string, pos *models.Position) *bool {
	m.lastFence = geo.Result{}
	if m.sites == nil {
		return nil
	}

	site, ok := m.sites.Geofence(projectID)
	if !ok {
		return nil
	}

	result, err := geo.Evaluate(pos, site)
	if err != nil {
		observability.Warnf("Geofence evaluation failed for project %s: %v", projectID, err)
		return nil
	}
	m.lastFence = result

	if result.InsideFence == nil || !*result.InsideFence {
		observability.WithFields(map[string]interface{}{
			"project_id":      projectID,
			"geofence_status": result.Status(),
			"distance_meters": result.DistanceMeters,
		}).Warn("Starting outside the verified site boundary")
		m.publish(services.EventGeofenceWarning, map[string]interface{}{
			"projectId":      projectID,
			"status":         result.Status(),
			"distanceMeters": result.DistanceMeters,
		})
	}
	return result.InsideFence
}

func (m *Machine) persistActiveLocked(ctx context.Context, entry *models.TimeEntry, breakStartedAt *time.Time) error {
	data, err := json.Marshal(activeState{Entry: entry, BreakStartedAt: breakStartedAt})
	if err != nil {
		return err
	}
	return m.store.Put(ctx, activeKeyPrefix+m.userID, data)
}

// computeElapsedLocked derives worked seconds from durable state: wall clock
// minus recorded breaks minus the open break segment, never below zero
func (m *Machine) computeElapsedLocked(now time.Time) int64 {
	if m.entry == nil {
		return 0
	}
	elapsed := m.entry.WorkedDuration(now)
	if m.breakStartedAt != nil {
		elapsed -= now.Sub(*m.breakStartedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed.Seconds())
}

func (m *Machine) publish(eventType string, payload interface{}) {
	if m.events != nil {
		m.events.Publish(eventType, payload)
	}
}
