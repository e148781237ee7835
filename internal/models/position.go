package models

// Position is a GPS fix reported by the device
type Position struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracyMeters,omitempty"`
}

// Validate checks the coordinates are within valid ranges
func (p Position) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return ErrInvalidCoordinates
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// GeofenceConfig is a project site boundary: a circle around the site center.
// A zero radius or zero-value config means no verification is possible.
type GeofenceConfig struct {
	ProjectID    string  `json:"projectId"`
	CenterLat    float64 `json:"centerLat"`
	CenterLon    float64 `json:"centerLon"`
	RadiusMeters float64 `json:"radiusMeters"`
}

// Usable reports whether the config describes a verifiable boundary
func (g GeofenceConfig) Usable() bool {
	return g.RadiusMeters > 0
}
