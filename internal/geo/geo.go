// Package geo holds the pure geometry helpers shared by the fetcher, the
// assignment engine and the demand engine. It has no dependencies on the
// rest of the module.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"

	"github.com/metrograph/demandgen/internal/model"
)

// MetersPerDegLat is the approximate length of one degree of latitude.
const MetersPerDegLat = 111132.92

// MetersPerDegLon returns the length of one degree of longitude at the
// given latitude.
func MetersPerDegLon(lat float64) float64 {
	return 111412.84 * math.Cos(lat*math.Pi/180)
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b orb.Point) float64 {
	return orbgeo.DistanceHaversine(a, b)
}

// AreaSqDeg returns the box area in square degrees.
func AreaSqDeg(b model.Bounds) float64 {
	return (b.MaxLon - b.MinLon) * (b.MaxLat - b.MinLat)
}

// AreaM2 returns the approximate box area in square meters, corrected for
// latitude. Planar approximation, fine at building scale.
func AreaM2(b model.Bounds) float64 {
	midLat := (b.MinLat + b.MaxLat) / 2
	dy := (b.MaxLat - b.MinLat) * MetersPerDegLat
	dx := (b.MaxLon - b.MinLon) * MetersPerDegLon(midLat)
	return math.Abs(dx * dy)
}

// PlanarDistSq returns the squared planar distance in square meters between
// two points, using the latitude of the first for the lon scale.
func PlanarDistSq(a, b orb.Point) float64 {
	dx := (b[0] - a[0]) * MetersPerDegLon(a[1])
	dy := (b[1] - a[1]) * MetersPerDegLat
	return dx*dx + dy*dy
}

// PointInPolygon reports whether the point lies inside the polygon.
func PointInPolygon(poly orb.Polygon, p orb.Point) bool {
	return planar.PolygonContains(poly, p)
}

// Quadrants splits a box into four equal sub-boxes.
func Quadrants(b model.Bounds) [4]model.Bounds {
	midLon := (b.MinLon + b.MaxLon) / 2
	midLat := (b.MinLat + b.MaxLat) / 2
	return [4]model.Bounds{
		{MinLon: b.MinLon, MinLat: b.MinLat, MaxLon: midLon, MaxLat: midLat},
		{MinLon: midLon, MinLat: b.MinLat, MaxLon: b.MaxLon, MaxLat: midLat},
		{MinLon: b.MinLon, MinLat: midLat, MaxLon: midLon, MaxLat: b.MaxLat},
		{MinLon: midLon, MinLat: midLat, MaxLon: b.MaxLon, MaxLat: b.MaxLat},
	}
}

// Tiles partitions a box into a uniform grid of tiles of at most sizeDeg on
// each side. Edge tiles are clamped to the box.
func Tiles(b model.Bounds, sizeDeg float64) []model.Bounds {
	if sizeDeg <= 0 {
		return []model.Bounds{b}
	}
	var tiles []model.Bounds
	for lat := b.MinLat; lat < b.MaxLat; lat += sizeDeg {
		top := math.Min(lat+sizeDeg, b.MaxLat)
		for lon := b.MinLon; lon < b.MaxLon; lon += sizeDeg {
			right := math.Min(lon+sizeDeg, b.MaxLon)
			tiles = append(tiles, model.Bounds{MinLon: lon, MinLat: lat, MaxLon: right, MaxLat: top})
		}
	}
	return tiles
}
