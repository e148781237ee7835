package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitechron/fieldsync/internal/models"
)

func TestEvaluate(t *testing.T) {
	site := models.GeofenceConfig{
		ProjectID:    "project-1",
		CenterLat:    40.7128,
		CenterLon:    -74.0060,
		RadiusMeters: 100,
	}

	t.Run("point at site center is inside with zero distance", func(t *testing.T) {
		current := &models.Position{Latitude: site.CenterLat, Longitude: site.CenterLon}

		result, err := Evaluate(current, site)

		require.NoError(t, err)
		require.NotNil(t, result.InsideFence)
		assert.True(t, *result.InsideFence)
		assert.Zero(t, result.DistanceMeters)
		assert.Equal(t, "inside", result.Status())
	})

	t.Run("point well outside the radius is outside", func(t *testing.T) {
		// Roughly 1.1km north of center
		current := &models.Position{Latitude: site.CenterLat + 0.01, Longitude: site.CenterLon}

		result, err := Evaluate(current, site)

		require.NoError(t, err)
		require.NotNil(t, result.InsideFence)
		assert.False(t, *result.InsideFence)
		assert.Greater(t, result.DistanceMeters, site.RadiusMeters)
		assert.Equal(t, "outside", result.Status())
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		// One degree of latitude is ~111.19km, so walk north by exactly the
		// fraction that lands on the fence line, then verify with the
		// evaluator's own measured distance.
		current := &models.Position{
			Latitude:  site.CenterLat + 100/111194.9,
			Longitude: site.CenterLon,
		}

		result, err := Evaluate(current, site)

		require.NoError(t, err)
		require.NotNil(t, result.InsideFence)
		assert.InDelta(t, 100, result.DistanceMeters, 0.5)
		assert.Equal(t, result.DistanceMeters <= site.RadiusMeters, *result.InsideFence)

		// A distance exactly equal to the radius must count as inside
		wider := site
		wider.RadiusMeters = result.DistanceMeters
		result, err = Evaluate(current, wider)
		require.NoError(t, err)
		require.NotNil(t, result.InsideFence)
		assert.True(t, *result.InsideFence)
	})

	t.Run("missing GPS fix yields unknown, never outside", func(t *testing.T) {
		result, err := Evaluate(nil, site)

		require.NoError(t, err)
		assert.Nil(t, result.InsideFence)
		assert.Equal(t, "unknown", result.Status())
	})

	t.Run("zero radius yields unknown with measured distance", func(t *testing.T) {
		unbounded := site
		unbounded.RadiusMeters = 0
		current := &models.Position{Latitude: site.CenterLat + 0.001, Longitude: site.CenterLon}

		result, err := Evaluate(current, unbounded)

		require.NoError(t, err)
		assert.Nil(t, result.InsideFence)
		assert.Greater(t, result.DistanceMeters, 0.0)
	})

	t.Run("rejects invalid current coordinates", func(t *testing.T) {
		current := &models.Position{Latitude: 120, Longitude: 0}

		_, err := Evaluate(current, site)

		assert.ErrorIs(t, err, models.ErrInvalidCoordinates)
	})

	t.Run("rejects invalid site center", func(t *testing.T) {
		bad := site
		bad.CenterLon = 999
		current := &models.Position{Latitude: 0, Longitude: 0}

		_, err := Evaluate(current, bad)

		assert.ErrorIs(t, err, models.ErrInvalidCoordinates)
	})

	t.Run("distance is symmetric and never negative", func(t *testing.T) {
		a := &models.Position{Latitude: 51.5007, Longitude: -0.1246}
		b := models.GeofenceConfig{CenterLat: 48.8584, CenterLon: 2.2945, RadiusMeters: 50}

		fromA, err := Evaluate(a, b)
		require.NoError(t, err)

		reversed := models.GeofenceConfig{CenterLat: a.Latitude, CenterLon: a.Longitude, RadiusMeters: 50}
		fromB, err := Evaluate(&models.Position{Latitude: b.CenterLat, Longitude: b.CenterLon}, reversed)
		require.NoError(t, err)

		assert.InDelta(t, fromA.DistanceMeters, fromB.DistanceMeters, 0.001)
		assert.GreaterOrEqual(t, fromA.DistanceMeters, 0.0)
		// London to Paris is ~334km
		assert.InDelta(t, 334000, fromA.DistanceMeters, 5000)
	})
}
