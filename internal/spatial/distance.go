package spatial

import (
	"github.com/golang/geo/s2"
)

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Interpolate returns the point at fraction t (0..1) on the great circle between two points
func Interpolate(lat1, lon1, lat2, lon2, t float64) (float64, float64) {
	if t <= 0 {
		return lat1, lon1
	}
	if t >= 1 {
		return lat2, lon2
	}

	p1 := s2.PointFromLatLng(s2.LatLngFromDegrees(lat1, lon1))
	p2 := s2.PointFromLatLng(s2.LatLngFromDegrees(lat2, lon2))
	ll := s2.LatLngFromPoint(s2.Interpolate(t, p1, p2))

	return ll.Lat.Degrees(), ll.Lng.Degrees()
}

// EarthRadiusMeters is Earth's mean radius
const EarthRadiusMeters = 6371000.0
