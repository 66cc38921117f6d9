package stats

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/jengzang/tour-geocompare/internal/models"
)

// Options controls how moving and recorded time are derived from the samples
type Options struct {
	// PauseGap is the longest sample interval which still counts as recording
	PauseGap time.Duration
	// MinMovingSpeed is the speed in km/h below which an interval is a break
	MinMovingSpeed float64
}

// DefaultOptions returns the default statistics options
func DefaultOptions() Options {
	return Options{
		PauseGap:       5 * time.Minute,
		MinMovingSpeed: 1.0,
	}
}

// Aggregate computes the statistics of samples[start..end]
func Aggregate(samples []models.TourSample, start, end int, opts Options) models.TourStats {
	var result models.TourStats

	if start < 0 || end >= len(samples) || start > end {
		return result
	}
	if opts.PauseGap <= 0 {
		opts.PauseGap = DefaultOptions().PauseGap
	}
	if opts.MinMovingSpeed < 0 {
		opts.MinMovingSpeed = 0
	}

	part := samples[start : end+1]
	first, last := part[0], part[len(part)-1]

	result.ElapsedTime = last.TimeOffset - first.TimeOffset
	result.Distance = last.Distance - first.Distance
	if result.Distance < 0 {
		result.Distance = 0
	}

	pulses := make([]float64, 0, len(part))
	if first.Pulse > 0 {
		pulses = append(pulses, first.Pulse)
	}

	pauseGap := int64(opts.PauseGap / time.Second)
	minSpeed := opts.MinMovingSpeed / 3.6 // m/s

	for i := 1; i < len(part); i++ {
		prev, cur := part[i-1], part[i]

		if cur.Pulse > 0 {
			pulses = append(pulses, cur.Pulse)
		}

		if dAlt := cur.Altitude - prev.Altitude; dAlt > 0 {
			result.ElevationGain += dAlt
		} else {
			result.ElevationLoss -= dAlt
		}

		dt := cur.TimeOffset - prev.TimeOffset
		if dt <= 0 || dt > pauseGap {
			continue
		}
		result.RecordedTime += dt

		speed := (cur.Distance - prev.Distance) / float64(dt)
		if speed >= minSpeed {
			result.MovingTime += dt
		}
	}

	if len(pulses) > 0 {
		result.AvgPulse = stat.Mean(pulses, nil)
		result.MaxPulse = floats.Max(pulses)
	}

	result.AvgSpeed = Speed(result.Distance, result.MovingTime)
	result.AvgPace = Pace(result.Distance, result.MovingTime)

	return result
}

// Speed returns km/h for a distance in meters and a time in seconds, 0 for zero time
func Speed(distance float64, seconds int64) float64 {
	if seconds <= 0 || distance <= 0 {
		return 0
	}
	return distance / float64(seconds) * 3.6
}

// Pace returns seconds per km, 0 when no distance was covered
func Pace(distance float64, seconds int64) float64 {
	if distance <= 0 || seconds <= 0 {
		return 0
	}
	return float64(seconds) / (distance / 1000)
}
