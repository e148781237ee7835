package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/sitechron/fieldsync/internal/models"
)

// LocationProvider supplies the device's current GPS fix. Implementations
// wrap whatever the platform offers; errors and missing fixes both surface
// as ErrLocationRequired at the machine boundary.
type LocationProvider interface {
	CurrentPosition(ctx context.Context) (*models.Position, error)
}

// PushProvider is fed fixes by the device shell (via the /api/location
// endpoint) and serves the most recent one, subject to a staleness window.
type PushProvider struct {
	mu         sync.RWMutex
	last       *models.Position
	reportedAt time.Time
	maxAge     time.Duration
	now        func() time.Time
}

// NewPushProvider creates a provider that considers fixes older than maxAge
// unusable
func NewPushProvider(maxAge time.Duration) *PushProvider {
	if maxAge <= 0 {
		maxAge = 2 * time.Minute
	}
	return &PushProvider{
		maxAge: maxAge,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Report records a fresh fix from the device
func (p *PushProvider) Report(pos models.Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &pos
	p.reportedAt = p.now()
	return nil
}

// CurrentPosition returns the latest fix, or ErrLocationRequired when no
// fresh fix is available
func (p *PushProvider) CurrentPosition(ctx context.Context) (*models.Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.last == nil || p.now().Sub(p.reportedAt) > p.maxAge {
		return nil, models.ErrLocationRequired
	}
	pos := *p.last
	return &pos, nil
}

// StaticSites is a GeofenceSource backed by a fixed per-project map, loaded
// from agent configuration
type StaticSites struct {
	sites map[string]models.GeofenceConfig
}

// NewStaticSites creates a GeofenceSource from configured site boundaries
func NewStaticSites(configs []models.GeofenceConfig) *StaticSites {
	sites := make(map[string]models.GeofenceConfig, len(configs))
	for _, c := range configs {
		sites[c.ProjectID] = c
	}
	return &StaticSites{sites: sites}
}

// Geofence returns the boundary configured for the project
func (s *StaticSites) Geofence(projectID string) (models.GeofenceConfig, bool) {
	cfg, ok := s.sites[projectID]
	return cfg, ok
}
