package overpass

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/metrograph/demandgen/internal/geo"
	"github.com/metrograph/demandgen/internal/model"
	"github.com/metrograph/demandgen/internal/resilience"
)

// FetchConfig controls tiling and subdivision behavior.
type FetchConfig struct {
	// TileSizes holds the per-dataset tile edge length in degrees.
	// Buildings default smallest because it is the densest dataset.
	TileSizes map[Dataset]float64

	// TryFullBBox attempts one single-shot fetch of the whole box before
	// tiling, when the box area is at or below FullBBoxCutoff (deg²).
	TryFullBBox    bool
	FullBBoxCutoff float64

	// MaxSplitDepth bounds recursive subdivision; worst case 4^depth
	// requests per original tile.
	MaxSplitDepth int
	// MinSplitArea is the smallest tile area (deg²) still worth splitting.
	MinSplitArea float64

	// InterRequestDelay is the base pause between sibling tile requests,
	// randomized to avoid synchronized bursts.
	InterRequestDelay time.Duration

	Retry resilience.RetryConfig
}

// DefaultFetchConfig returns the stock tiling parameters.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		TileSizes: map[Dataset]float64{
			DatasetRoads:     0.5,
			DatasetBuildings: 0.25,
			DatasetPlaces:    1.0,
		},
		TryFullBBox:       true,
		FullBBoxCutoff:    1.5,
		MaxSplitDepth:     3,
		MinSplitArea:      0.01,
		InterRequestDelay: 200 * time.Millisecond,
		Retry:             resilience.DefaultRetryConfig(),
	}
}

// TileSource is the single-tile fetch interface the Fetcher drives.
// *Client implements it.
type TileSource interface {
	FetchTile(ctx context.Context, dataset Dataset, b model.Bounds) ([]model.RawFeature, error)
}

// Fetcher returns the complete feature set for a bounding box, tiling and
// recursively subdividing as needed.
type Fetcher struct {
	source TileSource
	cfg    FetchConfig
	log    *zap.Logger
}

// NewFetcher creates a Fetcher over the given tile source.
func NewFetcher(source TileSource, cfg FetchConfig) *Fetcher {
	if cfg.TileSizes == nil {
		cfg.TileSizes = DefaultFetchConfig().TileSizes
	}
	return &Fetcher{
		source: source,
		cfg:    cfg,
		log:    zap.L().With(zap.String("component", "overpass.fetcher")),
	}
}

// Fetch returns all features of the dataset inside the box. Features
// spanning several tiles are deduplicated by (kind, id). Tiles that fail at
// minimum granularity contribute zero features; only decode failures abort
// the fetch.
func (f *Fetcher) Fetch(ctx context.Context, dataset Dataset, b model.Bounds) ([]model.RawFeature, error) {
	log := f.log.With(zap.String("dataset", string(dataset)))

	if f.cfg.TryFullBBox && geo.AreaSqDeg(b) <= f.cfg.FullBBoxCutoff {
		feats, err := f.fetchWithRetry(ctx, dataset, b)
		if err == nil && len(feats) > 0 {
			log.Info("full-bbox fetch succeeded", zap.Int("features", len(feats)))
			return feats, nil
		}
		if IsDecodeError(err) {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Info("full-bbox fetch empty or failed, falling back to tiling", zap.Error(err))
	}

	tiles := geo.Tiles(b, f.cfg.TileSizes[dataset])
	log.Info("tiling bounding box",
		zap.Int("tiles", len(tiles)),
		zap.Float64("area_sq_deg", geo.AreaSqDeg(b)),
	)

	merged := newFeatureSet()
	for i, tile := range tiles {
		if i > 0 {
			if err := f.pause(ctx); err != nil {
				return nil, err
			}
		}
		feats, err := f.fetchRecursive(ctx, dataset, tile, 0)
		if err != nil {
			return nil, err
		}
		merged.addAll(feats)
	}

	log.Info("fetch complete", zap.Int("features", merged.len()))
	return merged.features, nil
}

// fetchRecursive fetches one tile, splitting it into quadrants when the
// result is ambiguous: a zero-feature response from a large tile may be a
// legitimately empty area or silent truncation by the remote service, and
// re-verifying is cheap compared to silently losing data. Below MinSplitArea
// or past MaxSplitDepth the result is accepted as final.
func (f *Fetcher) fetchRecursive(ctx context.Context, dataset Dataset, tile model.Bounds, depth int) ([]model.RawFeature, error) {
	feats, err := f.fetchWithRetry(ctx, dataset, tile)
	if err == nil && len(feats) > 0 {
		return feats, nil
	}
	if IsDecodeError(err) {
		return nil, err
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}

	area := geo.AreaSqDeg(tile)
	if area > f.cfg.MinSplitArea && depth < f.cfg.MaxSplitDepth {
		f.log.Debug("splitting ambiguous tile",
			zap.String("dataset", string(dataset)),
			zap.Float64("area_sq_deg", area),
			zap.Int("depth", depth),
			zap.Error(err),
		)
		merged := newFeatureSet()
		for i, quadrant := range geo.Quadrants(tile) {
			if i > 0 {
				if perr := f.pause(ctx); perr != nil {
					return nil, perr
				}
			}
			sub, serr := f.fetchRecursive(ctx, dataset, quadrant, depth+1)
			if serr != nil {
				return nil, serr
			}
			merged.addAll(sub)
		}
		return merged.features, nil
	}

	if err != nil {
		// Failed at minimum granularity: log with enough context to
		// diagnose and contribute zero features. Never fatal to the run.
		f.log.Warn("tile fetch failed at minimum granularity",
			zap.String("dataset", string(dataset)),
			zap.Float64("min_lon", tile.MinLon),
			zap.Float64("min_lat", tile.MinLat),
			zap.Float64("max_lon", tile.MaxLon),
			zap.Float64("max_lat", tile.MaxLat),
			zap.Float64("area_sq_deg", area),
			zap.Int("attempts", f.cfg.Retry.MaxAttempts),
			zap.Error(err),
		)
		return nil, nil
	}
	return feats, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, dataset Dataset, tile model.Bounds) ([]model.RawFeature, error) {
	cfg := f.cfg.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("overpass", string(dataset))
	}
	// Decode failures are final; everything transient goes through backoff.
	cfg.ShouldRetry = func(err error) bool {
		return !IsDecodeError(err) && resilience.IsTransient(err)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]model.RawFeature, error) {
		return f.source.FetchTile(ctx, dataset, tile)
	})
}

// pause sleeps the inter-request delay plus up to 50% random jitter.
func (f *Fetcher) pause(ctx context.Context) error {
	base := f.cfg.InterRequestDelay
	if base <= 0 {
		return nil
	}
	d := base + time.Duration(rand.Int64N(int64(base)/2+1))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// featureSet accumulates features while deduplicating by (kind, id):
// a way crossing a tile edge is returned by both tiles.
type featureSet struct {
	seen     map[string]struct{}
	features []model.RawFeature
}

func newFeatureSet() *featureSet {
	return &featureSet{seen: make(map[string]struct{})}
}

func (s *featureSet) addAll(feats []model.RawFeature) {
	for _, f := range feats {
		key := fmt.Sprintf("%s/%d", f.Kind, f.ID)
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.features = append(s.features, f)
	}
}

func (s *featureSet) len() int {
	return len(s.features)
}
