package assign

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/metrograph/demandgen/internal/geo"
	"github.com/metrograph/demandgen/internal/model"
)

// regionEntry adapts one neighborhood polygon to the R-tree.
type regionEntry struct {
	idx    int
	poly   orb.Polygon
	center orb.Point
	rect   rtreego.Rect
}

func (e *regionEntry) Bounds() rtreego.Rect {
	return e.rect
}

// PolygonAssigner is the exact point-in-polygon fallback used when
// neighborhoods carry region polygons instead of bare centers. The R-tree
// filters candidates by bounding box before the containment test, so the
// per-building cost stays near the candidate count, not the region count.
type PolygonAssigner struct {
	tree *rtreego.Rtree
}

// NewPolygonAssigner builds the fallback assigner. regions must be parallel
// to hoods; empty polygons are skipped.
func NewPolygonAssigner(hoods []model.Neighborhood, regions []orb.Polygon) (*PolygonAssigner, error) {
	if len(regions) != len(hoods) {
		return nil, eris.New("assign: region count does not match neighborhood count")
	}

	tree := rtreego.NewTree(2, 25, 50)
	for i, poly := range regions {
		if len(poly) == 0 || len(poly[0]) < 3 {
			continue
		}
		bound := poly.Bound()
		rect, err := rtreego.NewRect(
			rtreego.Point{bound.Min[0], bound.Min[1]},
			[]float64{bound.Max[0] - bound.Min[0], bound.Max[1] - bound.Min[1]},
		)
		if err != nil {
			return nil, eris.Wrap(err, "assign: region bounding box")
		}
		tree.Insert(&regionEntry{idx: i, poly: poly, center: hoods[i].Center, rect: rect})
	}
	return &PolygonAssigner{tree: tree}, nil
}

// Assign returns the index of the region containing the building's bbox
// center. Overlapping regions tie-break by nearest center so the result is
// deterministic.
func (a *PolygonAssigner) Assign(b model.SimplifiedBuilding) (int, bool) {
	p := b.Bounds.Center()
	point, err := rtreego.NewRect(rtreego.Point{p[0], p[1]}, []float64{1e-12, 1e-12})
	if err != nil {
		return 0, false
	}

	best := -1
	bestDist := 0.0
	for _, candidate := range a.tree.SearchIntersect(point) {
		entry := candidate.(*regionEntry)
		if !geo.PointInPolygon(entry.poly, p) {
			continue
		}
		d := geo.PlanarDistSq(p, entry.center)
		if best == -1 || d < bestDist {
			best = entry.idx
			bestDist = d
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}
