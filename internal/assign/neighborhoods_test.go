package assign

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrograph/demandgen/internal/model"
)

func placeNode(id int64, place, name string, p orb.Point) model.RawFeature {
	tags := map[string]string{"place": place}
	if name != "" {
		tags["name"] = name
	}
	return model.RawFeature{ID: id, Kind: model.FeatureNode, Tags: tags, Geometry: []orb.Point{p}}
}

func TestExtractNeighborhoods(t *testing.T) {
	feats := []model.RawFeature{
		placeNode(100, "suburb", "Moabit", orb.Point{13.34, 52.53}),
		placeNode(101, "neighbourhood", "Hansaviertel", orb.Point{13.34, 52.52}),
		placeNode(102, "city", "Berlin", orb.Point{13.40, 52.52}), // too coarse, skipped
		{
			ID:     500,
			Kind:   model.FeatureWay,
			Tags:   map[string]string{"aeroway": "terminal", "name": "Terminal 1"},
			Bounds: &model.Bounds{MinLon: 13.50, MinLat: 52.36, MaxLon: 13.51, MaxLat: 52.37},
		},
		{
			ID:     501,
			Kind:   model.FeatureWay,
			Tags:   map[string]string{"aeroway": "terminal"},
			Bounds: &model.Bounds{MinLon: 13.52, MinLat: 52.36, MaxLon: 13.53, MaxLat: 52.37},
		},
	}

	hoods := ExtractNeighborhoods(feats, NewTerminalSequence())
	require.Len(t, hoods, 4)

	assert.Equal(t, int64(100), hoods[0].PlaceID)
	assert.Equal(t, "Moabit", hoods[0].Name)
	assert.Equal(t, orb.Point{13.34, 52.53}, hoods[0].Center)

	// Terminals get synthetic ids well clear of the OSM id space.
	assert.Equal(t, "Terminal 1", hoods[2].Name)
	assert.GreaterOrEqual(t, hoods[2].PlaceID, int64(1)<<40)
	assert.Equal(t, hoods[2].PlaceID+1, hoods[3].PlaceID)
	assert.Equal(t, "Terminal 2", hoods[3].Name)
}

func TestExtractNeighborhoodsUnnamedPlace(t *testing.T) {
	hoods := ExtractNeighborhoods([]model.RawFeature{
		placeNode(77, "hamlet", "", orb.Point{13.1, 52.1}),
	}, NewTerminalSequence())
	require.Len(t, hoods, 1)
	assert.Equal(t, "place 77", hoods[0].Name)
}

func TestExtractNeighborhoodsNoLocation(t *testing.T) {
	hoods := ExtractNeighborhoods([]model.RawFeature{
		{ID: 1, Kind: model.FeatureNode, Tags: map[string]string{"place": "suburb", "name": "Nowhere"}},
	}, NewTerminalSequence())
	assert.Empty(t, hoods)
}

func TestTerminalSequenceIsPerRun(t *testing.T) {
	a := NewTerminalSequence()
	first := a.Next()
	assert.Equal(t, first+1, a.Next())

	b := NewTerminalSequence()
	assert.Equal(t, first, b.Next(), "fresh sequences start over")
}
