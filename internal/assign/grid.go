package assign

import (
	"context"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/metrograph/demandgen/internal/geo"
	"github.com/metrograph/demandgen/internal/model"
)

// checkpointEvery is the cell granularity at which grid precomputation
// reports progress and checks for cancellation.
const checkpointEvery = 4096

// GridConfig tunes the assignment grid.
type GridConfig struct {
	// CellMeters is the grid cell edge. Default 200 m.
	CellMeters float64
	// SearchRadiusMeters bounds the candidate search around each cell
	// center. Cells with no neighborhood center within the radius stay
	// unassigned. Default 5000 m.
	SearchRadiusMeters float64
}

// DefaultGridConfig returns the stock grid parameters.
func DefaultGridConfig() GridConfig {
	return GridConfig{CellMeters: 200, SearchRadiusMeters: 5000}
}

// centerEntry adapts a neighborhood center to the R-tree.
type centerEntry struct {
	idx  int
	pt   orb.Point
	rect rtreego.Rect
}

func (e *centerEntry) Bounds() rtreego.Rect {
	return e.rect
}

// GridAssigner maps building centers to neighborhoods in O(1) amortized per
// building: every grid cell's nearest neighborhood is precomputed once, so
// per-building work is a cell lookup instead of an index query.
type GridAssigner struct {
	grid geo.Grid
	// cells holds the winning neighborhood index per flattened cell
	// coordinate, -1 for unassigned.
	cells []int32
}

// BuildGridAssigner precomputes the cell-to-neighborhood cache. checkpoint,
// when non-nil, is called every few thousand cells with progress; it doubles
// as the cancellation point for this long synchronous loop.
func BuildGridAssigner(ctx context.Context, bounds model.Bounds, hoods []model.Neighborhood, cfg GridConfig, checkpoint func(done, total int)) (*GridAssigner, error) {
	if cfg.CellMeters <= 0 {
		cfg.CellMeters = DefaultGridConfig().CellMeters
	}
	if cfg.SearchRadiusMeters <= 0 {
		cfg.SearchRadiusMeters = DefaultGridConfig().SearchRadiusMeters
	}

	tree := rtreego.NewTree(2, 25, 50)
	for i, h := range hoods {
		entry := &centerEntry{idx: i, pt: h.Center}
		entry.rect = rtreego.Point{h.Center[0], h.Center[1]}.ToRect(1e-9)
		tree.Insert(entry)
	}

	grid := geo.NewGrid(bounds, cfg.CellMeters)
	cells := make([]int32, grid.CellCount())

	midLat := (bounds.MinLat + bounds.MaxLat) / 2
	radiusDegLat := cfg.SearchRadiusMeters / geo.MetersPerDegLat
	radiusDegLon := cfg.SearchRadiusMeters / geo.MetersPerDegLon(midLat)

	total := grid.CellCount()
	done := 0
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			center := grid.CellCenter(col, row)
			cells[grid.CellIndex(col, row)] = nearestWithin(tree, center, radiusDegLon, radiusDegLat)

			done++
			if done%checkpointEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, eris.Wrap(err, "assign: grid precompute cancelled")
				}
				if checkpoint != nil {
					checkpoint(done, total)
				}
			}
		}
	}
	if checkpoint != nil {
		checkpoint(total, total)
	}

	return &GridAssigner{grid: grid, cells: cells}, nil
}

// nearestWithin returns the index of the nearest neighborhood center inside
// the search box around p, by squared planar distance, or -1. Planar
// approximation is fine at this resolution.
func nearestWithin(tree *rtreego.Rtree, p orb.Point, radiusDegLon, radiusDegLat float64) int32 {
	searchBox, err := rtreego.NewRect(
		rtreego.Point{p[0] - radiusDegLon, p[1] - radiusDegLat},
		[]float64{2 * radiusDegLon, 2 * radiusDegLat},
	)
	if err != nil {
		return -1
	}

	best := int32(-1)
	bestDist := 0.0
	for _, candidate := range tree.SearchIntersect(searchBox) {
		entry := candidate.(*centerEntry)
		d := geo.PlanarDistSq(p, entry.pt)
		if best == -1 || d < bestDist {
			best = int32(entry.idx)
			bestDist = d
		}
	}
	return best
}

// Assign returns the neighborhood index for a building, or false when the
// building's cell is unassigned or outside the grid.
func (a *GridAssigner) Assign(b model.SimplifiedBuilding) (int, bool) {
	col, row, ok := a.grid.Cell(b.Bounds.Center())
	if !ok {
		return 0, false
	}
	idx := a.cells[a.grid.CellIndex(col, row)]
	if idx < 0 {
		return 0, false
	}
	return int(idx), true
}

// Grid exposes the underlying grid for building-index packaging.
func (a *GridAssigner) Grid() geo.Grid {
	return a.grid
}
