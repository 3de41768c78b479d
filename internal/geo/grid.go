package geo

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/metrograph/demandgen/internal/model"
)

// Grid is a uniform planar grid over a bounding box. Cell size is given in
// meters and converted to degrees at the box's mid-latitude, so cells are
// approximately square on the ground.
type Grid struct {
	Bounds     model.Bounds
	Cols, Rows int
	CellMeters float64

	cellDegLon float64
	cellDegLat float64
}

// NewGrid builds a grid over the box with cells of roughly cellMeters on a
// side. The box must be valid and cellMeters positive.
func NewGrid(b model.Bounds, cellMeters float64) Grid {
	midLat := (b.MinLat + b.MaxLat) / 2
	cellDegLat := cellMeters / MetersPerDegLat
	cellDegLon := cellMeters / MetersPerDegLon(midLat)

	cols := int(math.Ceil((b.MaxLon - b.MinLon) / cellDegLon))
	rows := int(math.Ceil((b.MaxLat - b.MinLat) / cellDegLat))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return Grid{
		Bounds:     b,
		Cols:       cols,
		Rows:       rows,
		CellMeters: cellMeters,
		cellDegLon: cellDegLon,
		cellDegLat: cellDegLat,
	}
}

// Cell maps a point to its grid coordinate. ok is false when the point lies
// outside the grid bounds.
func (g Grid) Cell(p orb.Point) (col, row int, ok bool) {
	if !g.Bounds.Contains(p) {
		return 0, 0, false
	}
	col = int((p[0] - g.Bounds.MinLon) / g.cellDegLon)
	row = int((p[1] - g.Bounds.MinLat) / g.cellDegLat)
	// Points on the max edge land in the last cell.
	if col >= g.Cols {
		col = g.Cols - 1
	}
	if row >= g.Rows {
		row = g.Rows - 1
	}
	return col, row, true
}

// CellCenter returns the midpoint of the given cell.
func (g Grid) CellCenter(col, row int) orb.Point {
	return orb.Point{
		g.Bounds.MinLon + (float64(col)+0.5)*g.cellDegLon,
		g.Bounds.MinLat + (float64(row)+0.5)*g.cellDegLat,
	}
}

// CellIndex flattens a cell coordinate to a row-major slice index.
func (g Grid) CellIndex(col, row int) int {
	return row*g.Cols + col
}

// CellCount returns the total number of cells.
func (g Grid) CellCount() int {
	return g.Cols * g.Rows
}
