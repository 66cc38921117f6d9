package models

// GeoCompareStartRequest is the body of a geo compare start request
type GeoCompareStartRequest struct {
	TourID           int64    `json:"tourId" binding:"required,gt=0"`
	FirstIndex       int      `json:"firstIndex" binding:"gte=0"`
	LastIndex        int      `json:"lastIndex" binding:"gtefield=FirstIndex"`
	UseAppFilter     bool     `json:"useAppFilter"`
	GeoAccuracy      int      `json:"geoAccuracy" binding:"gte=0"`
	DistanceAccuracy float64  `json:"distanceAccuracy" binding:"gte=0"` // Meters
	MaxDiffPercent   *float64 `json:"maxDiffPercent" binding:"omitempty,gte=0,lte=100"`
	MaxResults       *int     `json:"maxResults" binding:"omitempty,gt=0"`
}

// GeoCompareResultFilter represents filter parameters for querying compare results
type GeoCompareResultFilter struct {
	MaxDiffPercent *float64 `form:"maxDiffPercent" binding:"omitempty,gte=0,lte=100"` // Relative difference threshold
	MaxResults     *int     `form:"maxResults" binding:"omitempty,gt=0"`              // Top-N
	WithCurve      bool     `form:"withCurve"`                                        // Include difference curves
}

// GeoCompareStatus is the state of a geo compare session
type GeoCompareStatus struct {
	ID         string `json:"id"`
	Generation int64  `json:"generation"`
	State      string `json:"state"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Canceled   bool   `json:"canceled"`
}
