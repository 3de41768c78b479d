package model

import "github.com/paulmach/orb"

// FeatureKind identifies the OSM element type a raw feature came from.
type FeatureKind string

const (
	FeatureNode     FeatureKind = "node"
	FeatureWay      FeatureKind = "way"
	FeatureRelation FeatureKind = "relation"
)

// Bounds is an axis-aligned geographic bounding box in lon/lat degrees.
type Bounds struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Valid reports whether the box is non-degenerate.
func (b Bounds) Valid() bool {
	return b.MinLon < b.MaxLon && b.MinLat < b.MaxLat
}

// Center returns the box midpoint.
func (b Bounds) Center() orb.Point {
	return orb.Point{(b.MinLon + b.MaxLon) / 2, (b.MinLat + b.MaxLat) / 2}
}

// Contains reports whether the point lies inside the box (inclusive).
func (b Bounds) Contains(p orb.Point) bool {
	return p[0] >= b.MinLon && p[0] <= b.MaxLon && p[1] >= b.MinLat && p[1] <= b.MaxLat
}

// RawFeature is one element returned by the remote data source. Immutable
// once created by the fetcher.
type RawFeature struct {
	ID       int64             `json:"id"`
	Kind     FeatureKind       `json:"kind"`
	Tags     map[string]string `json:"tags,omitempty"`
	Geometry []orb.Point       `json:"geometry,omitempty"`
	Bounds   *Bounds           `json:"bounds,omitempty"`
}

// Location returns a representative point for the feature: the node position,
// the bounds center, or the first geometry vertex.
func (f RawFeature) Location() (orb.Point, bool) {
	if f.Kind == FeatureNode && len(f.Geometry) > 0 {
		return f.Geometry[0], true
	}
	// Degenerate point boxes still carry a usable location; compact node
	// records round-trip through them.
	if f.Bounds != nil && f.Bounds.MinLon <= f.Bounds.MaxLon && f.Bounds.MinLat <= f.Bounds.MaxLat {
		return f.Bounds.Center(), true
	}
	if len(f.Geometry) > 0 {
		return f.Geometry[0], true
	}
	return orb.Point{}, false
}

// CompactFeature is the binary-store schema for the two largest datasets:
// only id, bounds and tags survive, which shrinks the payload roughly 8x.
type CompactFeature struct {
	ID     int64             `json:"id"`
	Bounds Bounds            `json:"bounds"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Compact reduces a raw feature to its binary-store form. Features without a
// usable bounding box are skipped.
func Compact(f RawFeature) (CompactFeature, bool) {
	c := CompactFeature{ID: f.ID, Tags: f.Tags}
	switch {
	case f.Bounds != nil:
		c.Bounds = *f.Bounds
	case len(f.Geometry) > 0:
		c.Bounds = boundsOf(f.Geometry)
	default:
		return CompactFeature{}, false
	}
	return c, true
}

// Expand converts a compact record back to a raw way feature.
func (c CompactFeature) Expand() RawFeature {
	b := c.Bounds
	return RawFeature{ID: c.ID, Kind: FeatureWay, Tags: c.Tags, Bounds: &b}
}

func boundsOf(pts []orb.Point) Bounds {
	b := Bounds{MinLon: pts[0][0], MinLat: pts[0][1], MaxLon: pts[0][0], MaxLat: pts[0][1]}
	for _, p := range pts[1:] {
		if p[0] < b.MinLon {
			b.MinLon = p[0]
		}
		if p[0] > b.MaxLon {
			b.MaxLon = p[0]
		}
		if p[1] < b.MinLat {
			b.MinLat = p[1]
		}
		if p[1] > b.MaxLat {
			b.MaxLat = p[1]
		}
	}
	return b
}
