package zones

import (
	"errors"
	"testing"

	"github.com/passbi/od_dashboard/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(minLon, minLat, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat},
		{minLon + size, minLat},
		{minLon + size, minLat + size},
		{minLon, minLat + size},
		{minLon, minLat},
	}}
}

func zoneFeature(id interface{}, g orb.Geometry) *geojson.Feature {
	f := geojson.NewFeature(g)
	if id != nil {
		f.Properties["id"] = id
	}
	return f
}

func TestBuildComputesCentroids(t *testing.T) {
	features := []*geojson.Feature{
		zoneFeature(float64(1), square(-44.3, -2.6, 0.2)),
		zoneFeature("2", square(-44.1, -2.6, 0.2)),
	}

	reg, err := Build(features, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []models.ZoneID{1, 2}, reg.IDs())

	c1, ok := reg.Lookup(1)
	require.True(t, ok)
	assert.InDelta(t, -2.5, c1.Lat, 1e-9)
	assert.InDelta(t, -44.2, c1.Lon, 1e-9)

	c2, ok := reg.Lookup(2)
	require.True(t, ok)
	assert.InDelta(t, -2.5, c2.Lat, 1e-9)
	assert.InDelta(t, -44.0, c2.Lon, 1e-9)
}

func TestBuildMultiPolygonIsAreaWeighted(t *testing.T) {
	// a 2x2 square and a 1x1 square: the larger part dominates
	mp := orb.MultiPolygon{square(0, 0, 2), square(10, 0, 1)}
	reg, err := Build([]*geojson.Feature{zoneFeature(float64(7), mp)}, Options{})
	require.NoError(t, err)

	c, ok := reg.Lookup(7)
	require.True(t, ok)
	// x = (1*4 + 10.5*1) / 5
	assert.InDelta(t, 2.9, c.Lon, 1e-9)
	assert.InDelta(t, (1*4+0.5*1)/5.0, c.Lat, 1e-9)
}

func TestBuildMalformedGeometry(t *testing.T) {
	tests := []struct {
		name    string
		feature *geojson.Feature
	}{
		{name: "Missing geometry", feature: zoneFeature(float64(1), nil)},
		{name: "Point geometry", feature: zoneFeature(float64(1), orb.Point{1, 2})},
		{name: "Empty polygon", feature: zoneFeature(float64(1), orb.Polygon{})},
		{name: "Ring too short", feature: zoneFeature(float64(1), orb.Polygon{orb.Ring{{0, 0}, {1, 1}}})},
		{name: "Empty multipolygon", feature: zoneFeature(float64(1), orb.MultiPolygon{})},
		{name: "Missing id", feature: zoneFeature(nil, square(0, 0, 1))},
		{name: "Fractional id", feature: zoneFeature(1.5, square(0, 0, 1))},
		{name: "Non numeric id", feature: zoneFeature("abc", square(0, 0, 1))},
		{name: "Id above int64", feature: zoneFeature(1e19, square(0, 0, 1))},
		{name: "Id below int64", feature: zoneFeature(-1e19, square(0, 0, 1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build([]*geojson.Feature{zoneFeature(float64(9), square(5, 5, 1)), tt.feature}, Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedGeometry))

			var mErr *MalformedGeometryError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, 1, mErr.Index)
		})
	}
}

func TestBuildDuplicateZones(t *testing.T) {
	features := []*geojson.Feature{
		zoneFeature(float64(1), square(0, 0, 1)),
		zoneFeature(float64(2), square(2, 0, 1)),
		zoneFeature(float64(1), square(4, 0, 1)),
	}

	t.Run("Rejected by default", func(t *testing.T) {
		_, err := Build(features, Options{})
		require.Error(t, err)

		var dErr *DuplicateZoneError
		require.True(t, errors.As(err, &dErr))
		assert.Equal(t, models.ZoneID(1), dErr.ID)
		assert.Equal(t, 0, dErr.FirstIndex)
		assert.Equal(t, 2, dErr.SecondIndex)
		assert.True(t, errors.Is(err, ErrDuplicateZone))
	})

	t.Run("Last write wins when requested", func(t *testing.T) {
		reg, err := Build(features, Options{Duplicates: LastWriteWins})
		require.NoError(t, err)
		assert.Equal(t, 2, reg.Len())
		assert.Equal(t, []models.ZoneID{1}, reg.Overwritten())

		c, ok := reg.Lookup(1)
		require.True(t, ok)
		assert.InDelta(t, 4.5, c.Lon, 1e-9)
	})
}

func TestBuildEmptyRegistry(t *testing.T) {
	_, err := Build(nil, Options{})
	assert.ErrorIs(t, err, ErrEmptyRegistry)
}

func TestLookupUnknownZone(t *testing.T) {
	reg, err := Build([]*geojson.Feature{zoneFeature(float64(1), square(0, 0, 1))}, Options{})
	require.NoError(t, err)

	_, ok := reg.Lookup(99)
	assert.False(t, ok)
}

func TestMeanCenter(t *testing.T) {
	reg, err := Build([]*geojson.Feature{
		zoneFeature(float64(1), square(0, 0, 2)),
		zoneFeature(float64(2), square(4, 2, 2)),
	}, Options{})
	require.NoError(t, err)

	center, err := reg.MeanCenter()
	require.NoError(t, err)
	assert.InDelta(t, 3.0, center.Lon, 1e-9)
	assert.InDelta(t, 2.0, center.Lat, 1e-9)

	var empty *Registry
	_, err = empty.MeanCenter()
	assert.ErrorIs(t, err, ErrEmptyRegistry)
}

func TestParseDuplicatePolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected DuplicatePolicy
		hasError bool
	}{
		{input: "", expected: RejectDuplicates},
		{input: "reject", expected: RejectDuplicates},
		{input: "Last-Write-Wins", expected: LastWriteWins},
		{input: "lww", expected: LastWriteWins},
		{input: "merge", hasError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseDuplicatePolicy(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}
