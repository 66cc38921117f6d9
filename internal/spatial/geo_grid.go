package spatial

import (
	"math"
	"slices"

	"github.com/jengzang/tour-geocompare/internal/models"
)

// Geo grid cells are 0.01° squares. The id packs the shifted lat and lon
// indices so that every cell on the globe has a distinct positive id.
const (
	gridCellsPerDegree = 100
	gridLatShift       = 90 * gridCellsPerDegree
	gridLonShift       = 180 * gridCellsPerDegree
	gridLatFactor      = 100000
)

// GridCellID returns the geo grid cell that contains a position
func GridCellID(lat, lon float64) int64 {
	latIdx := int64(math.Floor(lat*gridCellsPerDegree)) + gridLatShift
	lonIdx := int64(math.Floor(lon*gridCellsPerDegree)) + gridLonShift
	return latIdx*gridLatFactor + lonIdx
}

// GridCellsFor returns the sorted distinct grid cells touched by samples[first..last]
func GridCellsFor(samples []models.TourSample, first, last int) []int64 {
	first, last, ok := clampRange(len(samples), first, last)
	if !ok {
		return nil
	}

	seen := make(map[int64]struct{})
	cells := make([]int64, 0)
	for i := first; i <= last; i++ {
		s := samples[i]
		if !s.HasPosition() {
			continue
		}
		id := GridCellID(s.Latitude, s.Longitude)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cells = append(cells, id)
	}

	slices.Sort(cells)
	return cells
}

// clampRange limits [first, last] to a series of n samples
func clampRange(n, first, last int) (int, int, bool) {
	if n == 0 {
		return 0, 0, false
	}
	if first < 0 {
		first = 0
	}
	if last >= n {
		last = n - 1
	}
	if first > last {
		return 0, 0, false
	}
	return first, last, true
}
