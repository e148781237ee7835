package geo

import (
	"math"

	"github.com/sitechron/fieldsync/internal/models"
)

// earthRadiusMeters is the mean earth radius used for haversine distance
const earthRadiusMeters = 6371000.0

// Result is the outcome of a geofence evaluation. InsideFence is nil when
// verification was not possible (no GPS fix, or no usable site boundary) —
// callers must treat "unknown" distinctly from "confirmed outside".
type Result struct {
	InsideFence    *bool   `json:"insideFence"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// Status renders the result for display
func (r Result) Status() string {
	switch {
	case r.InsideFence == nil:
		return "unknown"
	case *r.InsideFence:
		return "inside"
	default:
		return "outside"
	}
}

// Evaluate computes great-circle distance from current to the site center and
// whether the point falls within the site boundary. The boundary is inclusive:
// a point exactly RadiusMeters from center is inside. A nil current position
// or an unusable site config yields an unknown result, not an outside one.
func Evaluate(current *models.Position, site models.GeofenceConfig) (Result, error) {
	if current == nil {
		return Result{}, nil
	}
	if err := current.Validate(); err != nil {
		return Result{}, err
	}

	center := models.Position{Latitude: site.CenterLat, Longitude: site.CenterLon}
	if err := center.Validate(); err != nil {
		return Result{}, err
	}

	distance := haversine(current.Latitude, current.Longitude, site.CenterLat, site.CenterLon)

	if !site.Usable() {
		return Result{DistanceMeters: distance}, nil
	}

	inside := distance <= site.RadiusMeters
	return Result{InsideFence: &inside, DistanceMeters: distance}, nil
}

// haversine returns the great-circle distance in meters between two points
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
