package models

// TourSample is one recorded sample of a tour
type TourSample struct {
	TimeOffset int64   `json:"timeOffset" db:"time_offset"` // Seconds since tour start
	Latitude   float64 `json:"latitude" db:"latitude"`
	Longitude  float64 `json:"longitude" db:"longitude"`
	Altitude   float64 `json:"altitude" db:"altitude"`
	Distance   float64 `json:"distance" db:"distance"` // Cumulative meters
	Pulse      float64 `json:"pulse" db:"pulse"`       // Beats per minute, 0 when not recorded
}

// HasPosition reports whether the sample carries a GPS position.
// The 0/0 position is what devices write when they have no fix.
func (s TourSample) HasPosition() bool {
	return s.Latitude != 0 || s.Longitude != 0
}

// Tour represents a recorded tour with its sample series
type Tour struct {
	ID         int64        `json:"id" db:"id"`
	Title      string       `json:"title" db:"title"`
	StartTime  int64        `json:"startTime" db:"start_time"` // Unix timestamp
	PersonID   int64        `json:"personId" db:"person_id"`
	TourTypeID int64        `json:"tourTypeId" db:"tour_type_id"`
	Samples    []TourSample `json:"samples,omitempty"`

	// Metadata
	CreatedAt *string `json:"createdAt,omitempty" db:"created_at"`
}

// NumSamples returns the number of samples in the tour
func (t *Tour) NumSamples() int {
	if t == nil {
		return 0
	}
	return len(t.Samples)
}

// TourStats holds the statistics of a tour part
type TourStats struct {
	AvgPulse      float64 `json:"avgPulse"`
	MaxPulse      float64 `json:"maxPulse"`
	AvgSpeed      float64 `json:"avgSpeed"`      // km/h
	AvgPace       float64 `json:"avgPace"`       // Seconds per km
	ElevationGain float64 `json:"elevationGain"` // Meters
	ElevationLoss float64 `json:"elevationLoss"` // Meters
	ElapsedTime   int64   `json:"elapsedTime"`   // Seconds
	MovingTime    int64   `json:"movingTime"`    // Seconds
	RecordedTime  int64   `json:"recordedTime"`  // Seconds
	Distance      float64 `json:"distance"`      // Meters
}
