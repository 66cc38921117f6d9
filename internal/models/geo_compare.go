package models

// NormalizedGeoData is a lat/lon polyline resampled to a fixed distance and
// quantized to an integer grid. It is never modified after creation.
type NormalizedGeoData struct {
	TourID     int64 `json:"tourId"`
	FirstIndex int   `json:"firstIndex"`
	LastIndex  int   `json:"lastIndex"`

	Lat []int64 `json:"lat"`
	Lon []int64 `json:"lon"`

	// OriginalIndices maps a grid position to the sample index it was taken from
	OriginalIndices []int `json:"originalIndices"`

	GeoAccuracy        int     `json:"geoAccuracy"`
	DistanceAccuracy   float64 `json:"distanceAccuracy"`   // Meters between grid points
	NormalizedDistance float64 `json:"normalizedDistance"` // Meters
}

// Len returns the number of grid points
func (n *NormalizedGeoData) Len() int {
	if n == nil {
		return 0
	}
	return len(n.Lat)
}

// GeoComparedTour is the comparison result of one candidate tour
type GeoComparedTour struct {
	TourID        int64  `json:"tourId"`
	Generation    int64  `json:"generation"`
	TourTitle     string `json:"tourTitle,omitempty"`
	TourStartTime int64  `json:"tourStartTime"` // Unix timestamp

	// DiffCurve has one value for each normalized position of the candidate
	DiffCurve []MatchValue `json:"diffCurve,omitempty"`
	BestMatch MatchValue   `json:"bestMatch"`

	BestNormalizedIndex int `json:"bestNormalizedIndex"`
	OriginalStartIndex  int `json:"originalStartIndex"`
	OriginalEndIndex    int `json:"originalEndIndex"`

	Stats     TourStats `json:"stats"`
	Completed bool      `json:"completed"`
}
