package geospatial

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

const (
	// EarthRadiusKm is the mean Earth radius used for great-circle distances.
	EarthRadiusKm = 6371.0

	// MetersPerDegreeLat is the length of one degree of latitude (approximate, at the equator).
	MetersPerDegreeLat = 111320.0

	// GridResolution is the number of clustering cells per degree (0.01° cells, ~1.1 km at the equator).
	GridResolution = 100.0

	// CellHashPrecision is the geohash length used to label grid cells (~1.2 km x 0.6 km).
	CellHashPrecision = 6
)

// DistanceKm returns the great-circle distance in kilometres between two points
// using the spherical law of cosines.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	// acos amplifies rounding near c == 1, so identical points short-circuit.
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	phi1, phi2 := toRad(lat1), toRad(lat2)
	dLambda := toRad(lon2) - toRad(lon1)

	c := math.Cos(phi1)*math.Cos(phi2)*math.Cos(dLambda) + math.Sin(phi1)*math.Sin(phi2)
	// Rounding can push c just past ±1 for (nearly) identical points.
	c = math.Max(-1, math.Min(1, c))

	return EarthRadiusKm * math.Acos(c)
}

// BoundingBox returns a box around a point with the given radius in meters.
// The longitude span grows without bound as lat approaches ±90°; near the poles
// the box is a poor pre-filter.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / MetersPerDegreeLat
	lonDelta := radiusMeters / (MetersPerDegreeLat * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// GridCell snaps a coordinate to its clustering cell.
func GridCell(lat, lon float64) (cellLat, cellLon float64) {
	return math.Floor(lat*GridResolution) / GridResolution,
		math.Floor(lon*GridResolution) / GridResolution
}

// CellHash returns a short geohash labelling the cell at (lat, lon).
func CellHash(lat, lon float64) string {
	return geohash.EncodeWithPrecision(lat, lon, CellHashPrecision)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
