package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrograph/demandgen/internal/catalog"
	"github.com/metrograph/demandgen/internal/config"
	"github.com/metrograph/demandgen/internal/dataset"
	"github.com/metrograph/demandgen/internal/model"
	"github.com/metrograph/demandgen/internal/overpass"
)

// fakeFetcher serves canned features per dataset.
type fakeFetcher struct {
	features map[overpass.Dataset][]model.RawFeature
	calls    []overpass.Dataset
	err      error
}

func (f *fakeFetcher) Fetch(_ context.Context, ds overpass.Dataset, _ model.Bounds) ([]model.RawFeature, error) {
	f.calls = append(f.calls, ds)
	if f.err != nil {
		return nil, f.err
	}
	return f.features[ds], nil
}

func testCity() model.City {
	return model.City{Name: "Testberg", MinLon: 13.00, MinLat: 52.00, MaxLon: 13.02, MaxLat: 52.02}
}

// testFeatures builds a small but complete city: two residential clusters,
// one office cluster, two place nodes.
func testFeatures() map[overpass.Dataset][]model.RawFeature {
	way := func(id int64, lon, lat float64, tags map[string]string) model.RawFeature {
		return model.RawFeature{
			ID:     id,
			Kind:   model.FeatureWay,
			Tags:   tags,
			Bounds: &model.Bounds{MinLon: lon, MinLat: lat, MaxLon: lon + 0.0005, MaxLat: lat + 0.0005},
		}
	}

	var buildings []model.RawFeature
	for i := 0; i < 10; i++ {
		buildings = append(buildings, way(int64(i+1), 13.004+float64(i)*0.0001, 52.004,
			map[string]string{"building": "apartments", "building:levels": "4"}))
	}
	for i := 0; i < 5; i++ {
		buildings = append(buildings, way(int64(i+100), 13.015+float64(i)*0.0001, 52.015,
			map[string]string{"building": "office", "building:levels": "6"}))
	}

	places := []model.RawFeature{
		{
			ID:       201,
			Kind:     model.FeatureNode,
			Tags:     map[string]string{"place": "suburb", "name": "West End"},
			Geometry: []orb.Point{{13.004, 52.004}},
		},
		{
			ID:       202,
			Kind:     model.FeatureNode,
			Tags:     map[string]string{"place": "quarter", "name": "East Side"},
			Geometry: []orb.Point{{13.015, 52.015}},
		},
	}

	roads := []model.RawFeature{
		{
			ID:       301,
			Kind:     model.FeatureWay,
			Tags:     map[string]string{"highway": "residential"},
			Geometry: []orb.Point{{13.004, 52.004}, {13.015, 52.015}},
		},
	}

	return map[overpass.Dataset][]model.RawFeature{
		overpass.DatasetRoads:     roads,
		overpass.DatasetBuildings: buildings,
		overpass.DatasetPlaces:    places,
	}
}

func testPipeline(t *testing.T, fetcher Fetcher) (*Pipeline, *dataset.Store) {
	t.Helper()
	cfg := &config.Config{
		Process: config.ProcessConfig{
			Workers:            2,
			BuildingBatch:      4,
			GridCellMeters:     200,
			SearchRadiusMeters: 5000,
		},
		Demand: config.DemandConfig{
			MinConnection:         1,
			MaxConnectionSize:     400,
			ConservationTolerance: 5,
			OriginBatch:           64,
		},
	}
	store := dataset.NewStore(t.TempDir())
	return New(fetcher, store, catalog.NopStore{}, cfg), store
}

func TestRunEndToEnd(t *testing.T) {
	fetcher := &fakeFetcher{features: testFeatures()}
	p, store := testPipeline(t, fetcher)

	require.NoError(t, p.Run(context.Background(), testCity()))
	assert.Equal(t, overpass.Datasets, fetcher.calls)
	assert.True(t, store.HasProcessed("Testberg"))

	ds, err := store.ReadDemand("Testberg")
	require.NoError(t, err)
	require.Len(t, ds.Neighborhoods, 2)
	assert.Equal(t, "West End", ds.Neighborhoods[0].Name)
	assert.Positive(t, ds.Neighborhoods[0].Population)
	assert.Positive(t, ds.Neighborhoods[1].Jobs)

	// Conservation: every origin's outgoing sizes sum to its population.
	for _, h := range ds.Neighborhoods {
		sum := 0
		for _, c := range ds.Connections {
			if c.ResidenceID == h.PlaceID {
				sum += c.Size
			}
		}
		if len(ds.Connections) > 0 && h.Population > 0 {
			assert.Equal(t, h.Population, sum, "origin %s", h.Name)
		}
	}

	stats, err := store.ReadSummary("Testberg")
	require.NoError(t, err)
	assert.Equal(t, 15, stats.AssignedBuildings)
	assert.Equal(t, 2, stats.Neighborhoods)
	assert.Positive(t, stats.TotalPopulation)
	assert.Positive(t, stats.TotalJobs)

	idx, err := store.ReadIndex("Testberg")
	require.NoError(t, err)
	assert.Len(t, idx.Rectangles, 15)
	assert.NotEmpty(t, idx.Cells)
}

func TestFetchCitySubset(t *testing.T) {
	fetcher := &fakeFetcher{features: testFeatures()}
	p, store := testPipeline(t, fetcher)

	n, err := p.FetchCity(context.Background(), testCity(), []overpass.Dataset{overpass.DatasetPlaces})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []overpass.Dataset{overpass.DatasetPlaces}, fetcher.calls)

	feats, err := store.ReadRaw(context.Background(), "Testberg", "places")
	require.NoError(t, err)
	assert.Len(t, feats, 2)
}

func TestProcessCityWithoutRawData(t *testing.T) {
	p, _ := testPipeline(t, &fakeFetcher{})
	_, err := p.ProcessCity(context.Background(), testCity())
	require.Error(t, err)
}

func TestRunFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("gateway timeout")}
	p, store := testPipeline(t, fetcher)

	err := p.Run(context.Background(), testCity())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway timeout")
	assert.False(t, store.HasProcessed("Testberg"))
}

func TestRunAllIsolatesFailures(t *testing.T) {
	good := testCity()
	bad := model.City{Name: "Brokenburg", MinLon: 14.0, MinLat: 53.0, MaxLon: 14.02, MaxLat: 53.02}

	calls := 0
	fetcher := &fetchFunc{fn: func(ctx context.Context, ds overpass.Dataset, b model.Bounds) ([]model.RawFeature, error) {
		calls++
		if b.MinLon >= 14.0 {
			return nil, fmt.Errorf("no such region")
		}
		return testFeatures()[ds], nil
	}}
	p, store := testPipeline(t, fetcher)

	err := p.RunAll(context.Background(), []model.City{bad, good})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 cities failed")
	assert.True(t, store.HasProcessed("Testberg"), "good city still ran")
}

type fetchFunc struct {
	fn func(ctx context.Context, ds overpass.Dataset, b model.Bounds) ([]model.RawFeature, error)
}

func (f *fetchFunc) Fetch(ctx context.Context, ds overpass.Dataset, b model.Bounds) ([]model.RawFeature, error) {
	return f.fn(ctx, ds, b)
}
