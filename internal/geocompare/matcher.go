package geocompare

import (
	"github.com/jengzang/tour-geocompare/internal/models"
)

// MatchResult is the outcome of matching a reference against one candidate
type MatchResult struct {
	// Curve has the window difference for every candidate offset
	Curve []models.MatchValue
	// Best is the minimum valid difference, invalid when no window fits
	Best models.MatchValue
	// Offset is the candidate position of Best, -1 when there is none
	Offset int
}

// Match slides the reference over the candidate grid and sums the absolute
// lat/lon differences of every window which fits completely inside the
// candidate. Windows running past the end are invalid and never chosen.
//
// The scan stops and returns false as soon as canceled reports true. Both
// grids must be normalized with the same accuracies.
func Match(ref, cand *models.NormalizedGeoData, canceled func() bool) (MatchResult, bool) {
	m, n := ref.Len(), cand.Len()

	result := MatchResult{
		Curve:  make([]models.MatchValue, n),
		Best:   models.InvalidMatch(),
		Offset: -1,
	}

	var bestDiff int64
	for s := 0; s < n; s++ {
		if canceled != nil && canceled() {
			return result, false
		}

		if m == 0 || s+m > n {
			result.Curve[s] = models.InvalidMatch()
			continue
		}

		var diff int64
		for i := 0; i < m; i++ {
			diff += abs64(ref.Lat[i]-cand.Lat[s+i]) + abs64(ref.Lon[i]-cand.Lon[s+i])
		}
		result.Curve[s] = models.ValidMatch(diff)

		if result.Offset < 0 || diff < bestDiff {
			bestDiff = diff
			result.Offset = s
		}
	}

	if result.Offset >= 0 {
		result.Best = models.ValidMatch(bestDiff)
	}
	return result, true
}

// originalRange maps the grid window [offset, offset+length) to sample indices
func originalRange(cand *models.NormalizedGeoData, offset, length int) (int, int, bool) {
	last := offset + length - 1
	if offset < 0 || length <= 0 || last >= len(cand.OriginalIndices) {
		return 0, 0, false
	}
	return cand.OriginalIndices[offset], cand.OriginalIndices[last], true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
