package geocompare

import (
	"cmp"
	"slices"

	"github.com/jengzang/tour-geocompare/internal/models"
)

// nearZeroPercent is the smallest relative difference threshold. A threshold
// of 0 would otherwise hide everything but identical paths.
const nearZeroPercent = 0.5

// FilterOptions selects which results are shown
type FilterOptions struct {
	RelativeDiffEnabled bool    `json:"relativeDiffEnabled" yaml:"relative_diff_enabled"`
	RelativeDiffPercent float64 `json:"relativeDiffPercent" yaml:"relative_diff_percent" validate:"gte=0,lte=100"`
	MaxResultsEnabled   bool    `json:"maxResultsEnabled" yaml:"max_results_enabled"`
	MaxResults          int     `json:"maxResults" yaml:"max_results" validate:"gte=0"`
}

// ViewEntry is one result of a filtered view
type ViewEntry struct {
	Tour         *models.GeoComparedTour `json:"tour"`
	RelativeDiff float64                 `json:"relativeDiff"` // Percent of the max diff
}

// FilteredView is a sorted and filtered view of a request's results
type FilteredView struct {
	Generation    int64       `json:"generation"`
	MaxDiff       int64       `json:"maxDiff"`
	NumUnfiltered int         `json:"numUnfiltered"`
	Entries       []ViewEntry `json:"entries"`
}

// MaxValidDiff returns the largest valid best match, 0 when there is none
func MaxValidDiff(results []*models.GeoComparedTour) int64 {
	var maxDiff int64
	for _, t := range results {
		if v, ok := t.BestMatch.Value(); ok && v > maxDiff {
			maxDiff = v
		}
	}
	return maxDiff
}

// RelativeDiff returns a match value as percent of maxDiff, 0 when it is not computable
func RelativeDiff(value models.MatchValue, maxDiff int64) float64 {
	v, ok := value.Value()
	if !ok || maxDiff <= 0 {
		return 0
	}
	return float64(v) / float64(maxDiff) * 100
}

// CompareTours orders results by best match, then by tour start time
func CompareTours(a, b *models.GeoComparedTour) int {
	if c := models.CompareMatch(a.BestMatch, b.BestMatch); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TourStartTime, b.TourStartTime); c != 0 {
		return c
	}
	return cmp.Compare(a.TourID, b.TourID)
}

// SortTours sorts results in place with CompareTours
func SortTours(tours []*models.GeoComparedTour) {
	slices.SortStableFunc(tours, CompareTours)
}

// ApplyFilter sorts a copy of the results and applies the relative difference
// and the top-N filter. The results slice is not modified.
func ApplyFilter(generation int64, results []*models.GeoComparedTour, opts FilterOptions) FilteredView {
	maxDiff := MaxValidDiff(results)

	tours := slices.Clone(results)
	SortTours(tours)

	if opts.RelativeDiffEnabled {
		threshold := max(opts.RelativeDiffPercent, nearZeroPercent)

		kept := make([]*models.GeoComparedTour, 0, len(tours))
		for _, t := range tours {
			if !t.BestMatch.IsValid() {
				continue
			}
			if RelativeDiff(t.BestMatch, maxDiff) <= threshold {
				kept = append(kept, t)
			}
		}
		tours = kept
	}

	if opts.MaxResultsEnabled && len(tours) > opts.MaxResults {
		tours = tours[:max(opts.MaxResults, 0)]
	}

	entries := make([]ViewEntry, len(tours))
	for i, t := range tours {
		entries[i] = ViewEntry{Tour: t, RelativeDiff: RelativeDiff(t.BestMatch, maxDiff)}
	}

	return FilteredView{
		Generation:    generation,
		MaxDiff:       maxDiff,
		NumUnfiltered: len(results),
		Entries:       entries,
	}
}
