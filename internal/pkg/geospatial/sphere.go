package geospatial

import "math"

const earthRadiusMeters = 6371000.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// PathLength sums the great-circle legs of a lon/lat coordinate sequence,
// returning meters. Fewer than two points has zero length.
func PathLength(coords [][2]float64) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += Haversine(coords[i-1][1], coords[i-1][0], coords[i][1], coords[i][0])
	}
	return total
}

// RingArea approximates the geodesic area in square meters of a lon/lat ring
// using the spherical-excess formula of Chamberlain & Duquette. The ring does
// not need to be explicitly closed; orientation does not matter.
func RingArea(ring [][2]float64) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		p1 := ring[i]
		p2 := ring[(i+1)%n]
		sum += toRad(p2[0]-p1[0]) * (2 + math.Sin(toRad(p1[1])) + math.Sin(toRad(p2[1])))
	}
	return math.Abs(sum * earthRadiusMeters * earthRadiusMeters / 2)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
