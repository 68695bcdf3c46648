package geo

import (
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle math.
const EarthRadiusKm = 6371

// DistanceKm calculates the haversine distance between two points in kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// BearingDeg calculates the initial bearing from point 1 to point 2,
// normalized to [0, 360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(deltaLon) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// ForwardConeHalfAngleDeg is the half-angle of the cone used to judge
// whether a target lies ahead of the current heading.
const ForwardConeHalfAngleDeg = 60

// IsWithinForwardCone reports whether targetBearing falls inside the
// 120-degree cone centered on heading. The angular difference is wrapped
// to [0, 180] before comparing.
func IsWithinForwardCone(targetBearingDeg, headingDeg float64) bool {
	diff := math.Abs(math.Mod(targetBearingDeg-headingDeg+360, 360))
	if diff > 180 {
		diff = 360 - diff
	}
	return diff < ForwardConeHalfAngleDeg
}
