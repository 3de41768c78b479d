// Package demand synthesizes origin-destination travel demand between
// neighborhoods with a job-share gravity model. Every origin's assigned
// connection sizes sum exactly to its declared population.
package demand

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/metrograph/demandgen/internal/geo"
	"github.com/metrograph/demandgen/internal/model"
	"github.com/metrograph/demandgen/internal/pool"
)

// SecondsPerMeter converts great-circle distance to a synthetic driving
// time. Tuned for rendered travel animations, not routing accuracy.
const SecondsPerMeter = 0.12

// Config tunes demand synthesis.
type Config struct {
	// MinConnection discards candidate flows at or below this size as noise.
	MinConnection float64
	// MaxConnectionSize bounds one connection; larger flows split into
	// near-equal pieces.
	MaxConnectionSize int
	// ConservationTolerance is the shortfall above which a warning is
	// logged. The correction itself runs for any nonzero shortfall.
	ConservationTolerance int
	// OriginBatch is the origin count handed to one worker.
	OriginBatch int
	// Workers follows pool.Size semantics.
	Workers int
}

// DefaultConfig returns the stock synthesis parameters.
func DefaultConfig() Config {
	return Config{
		MinConnection:         1,
		MaxConnectionSize:     400,
		ConservationTolerance: 5,
		OriginBatch:           64,
		Workers:               0,
	}
}

// Synthesize computes the full connection set. Origins are processed in
// parallel batches; every worker reads the shared destination list and
// corrects its own origins locally, so batches never synchronize. Ids are
// assigned sequentially after the merge and carry no meaning beyond
// uniqueness within one dataset.
func Synthesize(ctx context.Context, hoods []model.Neighborhood, cfg Config) ([]model.Connection, error) {
	if cfg.MaxConnectionSize <= 0 {
		cfg.MaxConnectionSize = DefaultConfig().MaxConnectionSize
	}
	if cfg.OriginBatch <= 0 {
		cfg.OriginBatch = DefaultConfig().OriginBatch
	}
	log := zap.L().With(zap.String("component", "demand"))

	conns, err := pool.Map(ctx, pool.Size(cfg.Workers), pool.Split(hoods, cfg.OriginBatch),
		func(_ context.Context, origins []model.Neighborhood) ([]model.Connection, error) {
			var out []model.Connection
			for _, origin := range origins {
				out = append(out, synthesizeOrigin(origin, hoods, cfg, log)...)
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	for i := range conns {
		conns[i].ID = int64(i + 1)
	}
	return conns, nil
}

// synthesizeOrigin produces and conservation-corrects one origin's
// connections.
func synthesizeOrigin(origin model.Neighborhood, dests []model.Neighborhood, cfg Config, log *zap.Logger) []model.Connection {
	if origin.Population <= 0 {
		return nil
	}

	var conns []model.Connection
	assigned := 0
	for _, dest := range dests {
		candidate := dest.JobShare * float64(origin.Population)
		if candidate <= cfg.MinConnection {
			continue
		}
		total := int(math.Round(candidate))
		if total <= 0 {
			continue
		}

		meters := geo.Distance(origin.Center, dest.Center)
		seconds := meters * SecondsPerMeter

		splits := (total + cfg.MaxConnectionSize - 1) / cfg.MaxConnectionSize
		size := int(math.Round(float64(total) / float64(splits)))
		for s := 0; s < splits; s++ {
			conns = append(conns, model.Connection{
				ResidenceID:    origin.PlaceID,
				JobID:          dest.PlaceID,
				Size:           size,
				DrivingMeters:  meters,
				DrivingSeconds: seconds,
			})
			assigned += size
		}
	}

	lost := origin.Population - assigned
	if lost != 0 && len(conns) > 0 {
		if abs(lost) > cfg.ConservationTolerance {
			log.Warn("conservation shortfall",
				zap.Int64("origin", origin.PlaceID),
				zap.Int("population", origin.Population),
				zap.Int("assigned", assigned),
				zap.Int("lost", lost))
		}
		redistribute(conns, lost)
	}
	return conns
}

// redistribute spreads lost units across the connections as evenly as
// possible: integer share each, remainder to the first connections. Sizes
// never drop below one; a negative overshoot carries forward until
// absorbed.
func redistribute(conns []model.Connection, lost int) {
	n := len(conns)
	base, rem := lost/n, lost%n
	for i := range conns {
		d := base
		if rem > 0 && i < rem {
			d++
		}
		if rem < 0 && i < -rem {
			d--
		}
		conns[i].Size += d
	}

	// Clamp undersized connections and take the deficit back from the rest.
	deficit := 0
	for i := range conns {
		if conns[i].Size < 1 {
			deficit += 1 - conns[i].Size
			conns[i].Size = 1
		}
	}
	for i := n - 1; i >= 0 && deficit > 0; i-- {
		spare := conns[i].Size - 1
		if spare <= 0 {
			continue
		}
		take := min(spare, deficit)
		conns[i].Size -= take
		deficit -= take
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
