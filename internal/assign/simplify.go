package assign

import (
	"context"

	"github.com/metrograph/demandgen/internal/model"
	"github.com/metrograph/demandgen/internal/pool"
)

// buildingTagKeys is the tag subset preserved on simplified buildings.
var buildingTagKeys = []string{
	"building",
	"building:levels",
	"building:levels:underground",
	"name",
}

// Simplify reduces a raw way with a building tag to its bbox form. Features
// that are not building ways, or whose box is degenerate, are dropped.
func Simplify(f model.RawFeature) (model.SimplifiedBuilding, bool) {
	if f.Kind != model.FeatureWay {
		return model.SimplifiedBuilding{}, false
	}
	if _, ok := f.Tags["building"]; !ok {
		return model.SimplifiedBuilding{}, false
	}

	var bounds model.Bounds
	switch {
	case f.Bounds != nil:
		bounds = *f.Bounds
	case len(f.Geometry) > 1:
		c, _ := model.Compact(f)
		bounds = c.Bounds
	default:
		return model.SimplifiedBuilding{}, false
	}
	if !bounds.Valid() {
		return model.SimplifiedBuilding{}, false
	}

	tags := make(map[string]string, len(buildingTagKeys))
	for _, key := range buildingTagKeys {
		if v, ok := f.Tags[key]; ok {
			tags[key] = v
		}
	}

	return model.SimplifiedBuilding{
		ID:          f.ID,
		Bounds:      bounds,
		Levels:      ParseLevels(f.Tags, "building:levels", 1),
		Underground: ParseLevels(f.Tags, "building:levels:underground", 0),
		Tags:        tags,
	}, true
}

// SimplifyAll derives simplified buildings from raw features in parallel
// batches. The raw slice is released by the caller afterwards; workers
// return fresh objects only.
func SimplifyAll(ctx context.Context, workers, batchSize int, feats []model.RawFeature) ([]model.SimplifiedBuilding, error) {
	return pool.Map(ctx, workers, pool.Split(feats, batchSize),
		func(_ context.Context, batch []model.RawFeature) ([]model.SimplifiedBuilding, error) {
			out := make([]model.SimplifiedBuilding, 0, len(batch))
			for _, f := range batch {
				if b, ok := Simplify(f); ok {
					out = append(out, b)
				}
			}
			return out, nil
		})
}
