// Package geo contains pure geographic computation helpers.
package geo

import "math"

const earthRadiusMeters = 6371000.0

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceMeters returns the great-circle (haversine) distance in metres
// between two points.
func DistanceMeters(a, b Coordinate) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// BearingDegrees returns the initial compass bearing from one point to
// another, in [0, 360) with true north at 0.
func BearingDegrees(from, to Coordinate) float64 {
	dLng := degreesToRadians(to.Lng - from.Lng)
	rLat1 := degreesToRadians(from.Lat)
	rLat2 := degreesToRadians(to.Lat)

	y := math.Sin(dLng) * math.Cos(rLat2)
	x := math.Cos(rLat1)*math.Sin(rLat2) -
		math.Sin(rLat1)*math.Cos(rLat2)*math.Cos(dLng)

	// atan2 yields (-180, 180]; shift before the modulo so the result is never negative.
	return math.Mod(radiansToDegrees(math.Atan2(y, x))+360, 360)
}

// AngleDiff returns the signed shortest rotation from heading a to heading b,
// in (-180, 180].
func AngleDiff(a, b float64) float64 {
	diff := math.Mod(b-a+180, 360) - 180
	if diff <= -180 {
		diff += 360
	}
	return diff
}

// NormalizeHeading folds any finite angle into [0, 360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func radiansToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// SortByDistance performs an insertion sort (fine for small N) on any slice
// where each element exposes a distance via the accessor function. Equal
// distances keep their original order.
func SortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
