package assign

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrograph/demandgen/internal/model"
)

func squarePolygon(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}
}

func TestPolygonAssigner(t *testing.T) {
	hoods := []model.Neighborhood{
		{PlaceID: 1, Name: "west", Center: orb.Point{13.005, 52.005}},
		{PlaceID: 2, Name: "east", Center: orb.Point{13.015, 52.005}},
	}
	regions := []orb.Polygon{
		squarePolygon(13.00, 52.00, 13.01, 52.01),
		squarePolygon(13.01, 52.00, 13.02, 52.01),
	}

	a, err := NewPolygonAssigner(hoods, regions)
	require.NoError(t, err)

	idx, ok := a.Assign(model.SimplifiedBuilding{Bounds: boxAround(orb.Point{13.003, 52.004}, 0.0001)})
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = a.Assign(model.SimplifiedBuilding{Bounds: boxAround(orb.Point{13.017, 52.006}, 0.0001)})
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = a.Assign(model.SimplifiedBuilding{Bounds: boxAround(orb.Point{13.05, 52.05}, 0.0001)})
	assert.False(t, ok, "outside every region")
}

func TestPolygonAssignerOverlapTieBreak(t *testing.T) {
	hoods := []model.Neighborhood{
		{PlaceID: 1, Center: orb.Point{13.002, 52.005}},
		{PlaceID: 2, Center: orb.Point{13.018, 52.005}},
	}
	// Both regions cover the whole box; the nearer center wins.
	regions := []orb.Polygon{
		squarePolygon(13.00, 52.00, 13.02, 52.01),
		squarePolygon(13.00, 52.00, 13.02, 52.01),
	}

	a, err := NewPolygonAssigner(hoods, regions)
	require.NoError(t, err)

	idx, ok := a.Assign(model.SimplifiedBuilding{Bounds: boxAround(orb.Point{13.004, 52.005}, 0.0001)})
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestPolygonAssignerMismatchedInput(t *testing.T) {
	_, err := NewPolygonAssigner([]model.Neighborhood{{PlaceID: 1}}, nil)
	require.Error(t, err)
}

func TestPolygonAssignerMatchesAggregateInvariants(t *testing.T) {
	hoods := []model.Neighborhood{
		{PlaceID: 1, Center: orb.Point{13.005, 52.005}},
		{PlaceID: 2, Center: orb.Point{13.015, 52.005}},
	}
	regions := []orb.Polygon{
		squarePolygon(13.00, 52.00, 13.01, 52.01),
		squarePolygon(13.01, 52.00, 13.02, 52.01),
	}
	a, err := NewPolygonAssigner(hoods, regions)
	require.NoError(t, err)

	buildings := []model.SimplifiedBuilding{
		{ID: 1, Bounds: boxAround(orb.Point{13.004, 52.004}, 0.0002), Levels: 3, Tags: map[string]string{"building": "apartments"}},
		{ID: 2, Bounds: boxAround(orb.Point{13.016, 52.004}, 0.0002), Levels: 2, Tags: map[string]string{"building": "retail"}},
	}
	agg := Aggregate(buildings, hoods, a)

	assert.Equal(t, 2, agg.Assigned)
	assert.Zero(t, agg.Dropped)
	assert.InDelta(t, 1.0, agg.Neighborhoods[0].PopulationShare, 1e-6)
	assert.InDelta(t, 1.0, agg.Neighborhoods[1].JobShare, 1e-6)
}
