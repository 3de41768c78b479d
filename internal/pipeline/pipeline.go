// Package pipeline sequences the per-city stages: fetch, decode, simplify,
// assign, demand synthesis and output encoding. Stages are barriers; a
// stage failure aborts the city run.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metrograph/demandgen/internal/assign"
	"github.com/metrograph/demandgen/internal/catalog"
	"github.com/metrograph/demandgen/internal/config"
	"github.com/metrograph/demandgen/internal/dataset"
	"github.com/metrograph/demandgen/internal/demand"
	"github.com/metrograph/demandgen/internal/model"
	"github.com/metrograph/demandgen/internal/overpass"
	"github.com/metrograph/demandgen/internal/pool"
	"github.com/metrograph/demandgen/internal/resilience"
)

// Fetcher pulls one dataset for one bounding box. *overpass.Fetcher
// implements it.
type Fetcher interface {
	Fetch(ctx context.Context, ds overpass.Dataset, b model.Bounds) ([]model.RawFeature, error)
}

// Pipeline orchestrates city runs.
type Pipeline struct {
	fetcher Fetcher
	store   *dataset.Store
	catalog catalog.Store
	cfg     *config.Config
	log     *zap.Logger
}

// New assembles a pipeline from its parts.
func New(fetcher Fetcher, store *dataset.Store, cat catalog.Store, cfg *config.Config) *Pipeline {
	if cat == nil {
		cat = catalog.NopStore{}
	}
	return &Pipeline{
		fetcher: fetcher,
		store:   store,
		catalog: cat,
		cfg:     cfg,
		log:     zap.L().With(zap.String("component", "pipeline")),
	}
}

// FromConfig wires the real Overpass client and file store.
func FromConfig(cfg *config.Config, cat catalog.Store) *Pipeline {
	client := overpass.NewClient(overpass.ClientConfig{
		Endpoint:   cfg.Fetch.Endpoint,
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		RatePerSec: cfg.Fetch.RatePerSec,
		Burst:      cfg.Fetch.Burst,
	})
	fetcher := overpass.NewFetcher(client, fetchConfig(cfg.Fetch))
	return New(fetcher, dataset.NewStore(cfg.Output.Dir), cat, cfg)
}

// fetchConfig translates the flat configuration surface into the fetcher's
// tuning struct.
func fetchConfig(c config.FetchConfig) overpass.FetchConfig {
	out := overpass.DefaultFetchConfig()
	if c.TileSizes.Roads > 0 {
		out.TileSizes[overpass.DatasetRoads] = c.TileSizes.Roads
	}
	if c.TileSizes.Buildings > 0 {
		out.TileSizes[overpass.DatasetBuildings] = c.TileSizes.Buildings
	}
	if c.TileSizes.Places > 0 {
		out.TileSizes[overpass.DatasetPlaces] = c.TileSizes.Places
	}
	out.TryFullBBox = c.TryFullBBox
	if c.FullBBoxCutoff > 0 {
		out.FullBBoxCutoff = c.FullBBoxCutoff
	}
	if c.MaxSplitDepth > 0 {
		out.MaxSplitDepth = c.MaxSplitDepth
	}
	if c.MinSplitArea > 0 {
		out.MinSplitArea = c.MinSplitArea
	}
	if c.InterRequestDelayMS > 0 {
		out.InterRequestDelay = c.InterRequestDelay()
	}

	retry := resilience.DefaultRetryConfig()
	if c.Retry.MaxAttempts > 0 {
		retry.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.InitialBackoffSecs > 0 {
		retry.InitialBackoff = time.Duration(c.Retry.InitialBackoffSecs) * time.Second
	}
	if c.Retry.MaxBackoffSecs > 0 {
		retry.MaxBackoff = time.Duration(c.Retry.MaxBackoffSecs) * time.Second
	}
	if c.Retry.Multiplier > 0 {
		retry.Multiplier = c.Retry.Multiplier
	}
	if c.Retry.RateLimitMultiplier > 0 {
		retry.RateLimitMultiplier = c.Retry.RateLimitMultiplier
	}
	out.Retry = retry
	return out
}

// FetchCity pulls the requested datasets for one city and persists them.
// Roads are stored as a streamed JSON array; the two large datasets are
// additionally stored in the compact binary form the processor prefers.
func (p *Pipeline) FetchCity(ctx context.Context, city model.City, datasets []overpass.Dataset) (int, error) {
	if len(datasets) == 0 {
		datasets = overpass.Datasets
	}
	log := p.log.With(zap.String("city", city.Name))

	total := 0
	for _, ds := range datasets {
		start := time.Now()
		feats, err := p.fetcher.Fetch(ctx, ds, city.Bounds())
		if err != nil {
			return total, eris.Wrapf(err, "pipeline: fetch %s for %s", ds, city.Name)
		}

		if err := p.store.WriteRawText(ctx, city.Name, string(ds), feats); err != nil {
			return total, err
		}
		if ds == overpass.DatasetBuildings || ds == overpass.DatasetPlaces {
			if err := p.store.WriteRawBinary(city.Name, string(ds), feats); err != nil {
				return total, err
			}
		}

		total += len(feats)
		log.Info("dataset fetched",
			zap.String("dataset", string(ds)),
			zap.Int("features", len(feats)),
			zap.Duration("took", time.Since(start)))
	}
	return total, nil
}

// ProcessCity turns the stored raw datasets into the processed outputs:
// the building index, the demand dataset and the summary.
func (p *Pipeline) ProcessCity(ctx context.Context, city model.City) (model.RunCounts, error) {
	log := p.log.With(zap.String("city", city.Name))
	counts := model.RunCounts{}

	raw, err := p.store.ReadRawMany(ctx, city.Name, []string{
		string(overpass.DatasetBuildings),
		string(overpass.DatasetPlaces),
	})
	if err != nil {
		return counts, eris.Wrapf(err, "pipeline: read raw datasets for %s", city.Name)
	}
	rawBuildings := raw[string(overpass.DatasetBuildings)]
	rawPlaces := raw[string(overpass.DatasetPlaces)]
	counts.Features = len(rawBuildings) + len(rawPlaces)
	log.Info("raw datasets loaded",
		zap.Int("buildings", len(rawBuildings)),
		zap.Int("places", len(rawPlaces)))

	workers := pool.Size(p.cfg.Process.Workers)
	buildings, err := assign.SimplifyAll(ctx, workers, p.cfg.Process.BuildingBatch, rawBuildings)
	if err != nil {
		return counts, eris.Wrapf(err, "pipeline: simplify buildings for %s", city.Name)
	}
	counts.Buildings = len(buildings)
	log.Info("buildings simplified", zap.Int("kept", len(buildings)), zap.Int("raw", len(rawBuildings)))

	hoods := assign.ExtractNeighborhoods(rawPlaces, assign.NewTerminalSequence())
	counts.Neighborhoods = len(hoods)
	if len(hoods) == 0 {
		log.Warn("no neighborhoods found; demand output will be empty")
	}

	ga, err := assign.BuildGridAssigner(ctx, city.Bounds(), hoods, assign.GridConfig{
		CellMeters:         p.cfg.Process.GridCellMeters,
		SearchRadiusMeters: p.cfg.Process.SearchRadiusMeters,
	}, func(done, total int) {
		if done == total || done%65536 == 0 {
			log.Debug("grid precompute", zap.Int("done", done), zap.Int("total", total))
		}
	})
	if err != nil {
		return counts, eris.Wrapf(err, "pipeline: build grid for %s", city.Name)
	}

	agg := assign.Aggregate(buildings, hoods, ga)
	log.Info("buildings assigned",
		zap.Int("assigned", agg.Assigned),
		zap.Int("dropped", agg.Dropped))

	conns, err := demand.Synthesize(ctx, agg.Neighborhoods, demand.Config{
		MinConnection:         p.cfg.Demand.MinConnection,
		MaxConnectionSize:     p.cfg.Demand.MaxConnectionSize,
		ConservationTolerance: p.cfg.Demand.ConservationTolerance,
		OriginBatch:           p.cfg.Demand.OriginBatch,
		Workers:               p.cfg.Process.Workers,
	})
	if err != nil {
		return counts, eris.Wrapf(err, "pipeline: synthesize demand for %s", city.Name)
	}
	counts.Connections = len(conns)
	log.Info("demand synthesized", zap.Int("connections", len(conns)))

	stats := summarize(agg, conns)
	out := model.DemandDataset{
		Neighborhoods: agg.Neighborhoods,
		Connections:   conns,
		Stats:         stats,
	}

	if err := p.store.WriteIndex(city.Name, assign.BuildIndex(ga.Grid(), buildings)); err != nil {
		return counts, err
	}
	if err := p.store.WriteDemand(city.Name, out); err != nil {
		return counts, err
	}
	if err := p.store.WriteSummary(city.Name, stats); err != nil {
		return counts, err
	}
	log.Info("processed outputs written",
		zap.Int("population", stats.TotalPopulation),
		zap.Int("jobs", stats.TotalJobs))
	return counts, nil
}

func summarize(agg assign.Aggregation, conns []model.Connection) model.SummaryStats {
	stats := model.SummaryStats{
		Neighborhoods:     len(agg.Neighborhoods),
		Connections:       len(conns),
		AssignedBuildings: agg.Assigned,
		DroppedBuildings:  agg.Dropped,
	}
	for _, h := range agg.Neighborhoods {
		stats.TotalPopulation += h.Population
		stats.TotalJobs += h.Jobs
	}
	return stats
}

// Run executes fetch and process for one city under a catalog record.
func (p *Pipeline) Run(ctx context.Context, city model.City) error {
	run, err := p.catalog.CreateRun(ctx, city.Name)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create catalog run for %s", city.Name)
	}

	if err := p.runStages(ctx, run.ID, city); err != nil {
		if failErr := p.catalog.FailRun(ctx, run.ID, err); failErr != nil {
			p.log.Warn("catalog fail-run update failed", zap.Error(failErr))
		}
		return err
	}
	return nil
}

func (p *Pipeline) runStages(ctx context.Context, runID string, city model.City) error {
	if err := p.catalog.UpdateStage(ctx, runID, "fetch"); err != nil {
		return err
	}
	features, err := p.FetchCity(ctx, city, nil)
	if err != nil {
		return err
	}

	if err := p.catalog.UpdateStage(ctx, runID, "process"); err != nil {
		return err
	}
	counts, err := p.ProcessCity(ctx, city)
	if err != nil {
		return err
	}
	counts.Features = features

	return p.catalog.CompleteRun(ctx, runID, counts)
}

// RunAll processes every city, isolating failures: one failed city is
// logged and skipped, the rest still run. It returns an error only when at
// least one city failed.
func (p *Pipeline) RunAll(ctx context.Context, cities []model.City) error {
	failed := 0
	for _, city := range cities {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: batch cancelled")
		}
		if err := p.Run(ctx, city); err != nil {
			failed++
			p.log.Error("city run failed", zap.String("city", city.Name), zap.Error(err))
			continue
		}
	}
	if failed > 0 {
		return eris.Errorf("pipeline: %d of %d cities failed", failed, len(cities))
	}
	return nil
}
