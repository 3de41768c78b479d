package assign

import (
	"github.com/metrograph/demandgen/internal/geo"
	"github.com/metrograph/demandgen/internal/model"
)

// BuildIndex packages the building set into the persisted spatial index:
// the grid geometry, the occupied cells with their building positions, and
// the building rectangles in input order. Buildings whose centers fall
// outside the grid are left out of the cells but keep their rectangle slot
// so positions stay stable.
func BuildIndex(grid geo.Grid, buildings []model.SimplifiedBuilding) model.BuildingIndex {
	idx := model.BuildingIndex{
		Bounds:     grid.Bounds,
		Cols:       grid.Cols,
		Rows:       grid.Rows,
		CellMeters: grid.CellMeters,
		Rectangles: make([]model.Bounds, len(buildings)),
	}

	occupied := make(map[int]*model.GridCell)
	order := make([]int, 0, len(buildings)/4+1)
	for i, b := range buildings {
		idx.Rectangles[i] = b.Bounds
		col, row, ok := grid.Cell(b.Bounds.Center())
		if !ok {
			continue
		}
		key := grid.CellIndex(col, row)
		cell, seen := occupied[key]
		if !seen {
			cell = &model.GridCell{Col: col, Row: row}
			occupied[key] = cell
			order = append(order, key)
		}
		cell.Buildings = append(cell.Buildings, int32(i))
	}

	idx.Cells = make([]model.GridCell, 0, len(order))
	for _, key := range order {
		idx.Cells = append(idx.Cells, *occupied[key])
	}
	return idx
}
