package assign

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrograph/demandgen/internal/model"
)

func buildingWay(id int64, tags map[string]string) model.RawFeature {
	return model.RawFeature{
		ID:     id,
		Kind:   model.FeatureWay,
		Tags:   tags,
		Bounds: &model.Bounds{MinLon: 13.40, MinLat: 52.50, MaxLon: 13.401, MaxLat: 52.5008},
	}
}

func TestSimplifyBuilding(t *testing.T) {
	f := buildingWay(42, map[string]string{
		"building":        "apartments",
		"building:levels": "5",
		"name":            "Hofgarten",
		"roof:shape":      "flat",
	})

	b, ok := Simplify(f)
	require.True(t, ok)
	assert.Equal(t, int64(42), b.ID)
	assert.Equal(t, 5, b.Levels)
	assert.Zero(t, b.Underground)
	assert.Equal(t, *f.Bounds, b.Bounds)
	assert.Equal(t, "Hofgarten", b.Tags["name"])
	assert.NotContains(t, b.Tags, "roof:shape")
}

func TestSimplifyDefaultsToOneLevel(t *testing.T) {
	b, ok := Simplify(buildingWay(1, map[string]string{"building": "yes"}))
	require.True(t, ok)
	assert.Equal(t, 1, b.Levels)
}

func TestSimplifyBoundsFromGeometry(t *testing.T) {
	f := model.RawFeature{
		ID:   7,
		Kind: model.FeatureWay,
		Tags: map[string]string{"building": "house"},
		Geometry: []orb.Point{
			{13.40, 52.50}, {13.401, 52.50}, {13.401, 52.5005}, {13.40, 52.5005}, {13.40, 52.50},
		},
	}
	b, ok := Simplify(f)
	require.True(t, ok)
	assert.Equal(t, model.Bounds{MinLon: 13.40, MinLat: 52.50, MaxLon: 13.401, MaxLat: 52.5005}, b.Bounds)
}

func TestSimplifyRejects(t *testing.T) {
	node := model.RawFeature{ID: 1, Kind: model.FeatureNode, Tags: map[string]string{"building": "yes"}, Geometry: []orb.Point{{13.4, 52.5}}}
	_, ok := Simplify(node)
	assert.False(t, ok, "nodes are not buildings")

	road := buildingWay(2, map[string]string{"highway": "residential"})
	_, ok = Simplify(road)
	assert.False(t, ok, "no building tag")

	degenerate := buildingWay(3, map[string]string{"building": "yes"})
	degenerate.Bounds = &model.Bounds{MinLon: 13.4, MinLat: 52.5, MaxLon: 13.4, MaxLat: 52.5}
	_, ok = Simplify(degenerate)
	assert.False(t, ok, "zero-area box")

	empty := model.RawFeature{ID: 4, Kind: model.FeatureWay, Tags: map[string]string{"building": "yes"}}
	_, ok = Simplify(empty)
	assert.False(t, ok, "no geometry at all")
}

func TestSimplifyAllKeepsOrder(t *testing.T) {
	feats := make([]model.RawFeature, 0, 20)
	for i := 0; i < 20; i++ {
		f := buildingWay(int64(i), map[string]string{"building": "yes"})
		if i%4 == 0 {
			f.Tags = map[string]string{"highway": "service"} // filtered out
		}
		feats = append(feats, f)
	}

	got, err := SimplifyAll(context.Background(), 4, 3, feats)
	require.NoError(t, err)
	require.Len(t, got, 15)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].ID, got[i].ID, "batch merge must preserve input order")
	}
}
