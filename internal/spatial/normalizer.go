package spatial

import (
	"math"

	"github.com/jengzang/tour-geocompare/internal/models"
)

const (
	// DefaultGeoAccuracy quantizes degrees to 1/10000, about 11 m of latitude
	DefaultGeoAccuracy = 10000
	// DefaultDistanceAccuracy is the spacing of normalized points in meters
	DefaultDistanceAccuracy = 10.0
)

// Normalize resamples samples[first..last] to points spaced distanceAccuracy
// meters apart along the path and quantizes them with geoAccuracy.
//
// Samples without a position are skipped. Each grid point remembers the index
// of the sample at or before it, so a grid range can be mapped back to the
// original series.
func Normalize(samples []models.TourSample, first, last int, geoAccuracy int, distanceAccuracy float64) *models.NormalizedGeoData {
	if geoAccuracy <= 0 {
		geoAccuracy = DefaultGeoAccuracy
	}
	if distanceAccuracy <= 0 {
		distanceAccuracy = DefaultDistanceAccuracy
	}

	norm := &models.NormalizedGeoData{
		FirstIndex:       first,
		LastIndex:        last,
		GeoAccuracy:      geoAccuracy,
		DistanceAccuracy: distanceAccuracy,
	}

	first, last, ok := clampRange(len(samples), first, last)
	if !ok {
		return norm
	}
	norm.FirstIndex, norm.LastIndex = first, last

	quantize := func(deg float64) int64 {
		return int64(math.Round(deg * float64(geoAccuracy)))
	}
	emit := func(lat, lon float64, originalIndex int) {
		norm.Lat = append(norm.Lat, quantize(lat))
		norm.Lon = append(norm.Lon, quantize(lon))
		norm.OriginalIndices = append(norm.OriginalIndices, originalIndex)
	}

	prev := -1
	var travelled float64 // Distance from the first positioned sample
	var next float64      // Distance of the next grid point

	for i := first; i <= last; i++ {
		s := samples[i]
		if !s.HasPosition() {
			continue
		}

		if prev < 0 {
			emit(s.Latitude, s.Longitude, i)
			next = distanceAccuracy
			prev = i
			continue
		}

		p := samples[prev]
		segment := HaversineDistance(p.Latitude, p.Longitude, s.Latitude, s.Longitude)

		// Place every grid point which falls inside this segment
		for segment > 0 && next <= travelled+segment {
			t := (next - travelled) / segment
			lat, lon := Interpolate(p.Latitude, p.Longitude, s.Latitude, s.Longitude, t)

			originalIndex := prev
			if t >= 1 {
				originalIndex = i
			}
			emit(lat, lon, originalIndex)
			next += distanceAccuracy
		}

		travelled += segment
		prev = i
	}

	if norm.Len() > 0 {
		norm.NormalizedDistance = float64(norm.Len()-1) * distanceAccuracy
	}

	return norm
}
