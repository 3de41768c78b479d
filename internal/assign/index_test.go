package assign

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrograph/demandgen/internal/geo"
	"github.com/metrograph/demandgen/internal/model"
)

func TestBuildIndex(t *testing.T) {
	bounds := model.Bounds{MinLon: 13.00, MinLat: 52.00, MaxLon: 13.02, MaxLat: 52.02}
	grid := geo.NewGrid(bounds, 200)

	buildings := []model.SimplifiedBuilding{
		{ID: 1, Bounds: boxAround(orb.Point{13.001, 52.001}, 0.0001)},
		{ID: 2, Bounds: boxAround(orb.Point{13.0012, 52.0011}, 0.0001)}, // same cell as 1
		{ID: 3, Bounds: boxAround(orb.Point{13.015, 52.015}, 0.0001)},
		{ID: 4, Bounds: boxAround(orb.Point{14.0, 53.0}, 0.0001)}, // outside the grid
	}

	idx := BuildIndex(grid, buildings)

	assert.Equal(t, bounds, idx.Bounds)
	assert.Equal(t, grid.Cols, idx.Cols)
	assert.Equal(t, grid.Rows, idx.Rows)
	assert.Equal(t, 200.0, idx.CellMeters)
	require.Len(t, idx.Rectangles, 4, "outside buildings keep their rectangle slot")

	require.Len(t, idx.Cells, 2)
	assert.Equal(t, []int32{0, 1}, idx.Cells[0].Buildings)
	assert.Equal(t, []int32{2}, idx.Cells[1].Buildings)

	var indexed int
	for _, cell := range idx.Cells {
		indexed += len(cell.Buildings)
	}
	assert.Equal(t, 3, indexed, "building 4 falls outside every cell")
}

func TestBuildIndexEmpty(t *testing.T) {
	bounds := model.Bounds{MinLon: 13.00, MinLat: 52.00, MaxLon: 13.01, MaxLat: 52.01}
	idx := BuildIndex(geo.NewGrid(bounds, 200), nil)
	assert.Empty(t, idx.Cells)
	assert.Empty(t, idx.Rectangles)
}
