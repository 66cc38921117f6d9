package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jengzang/tour-geocompare/internal/models"
)

func TestGridCellID(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     int64
	}{
		{"origin", 0.001, 0.001, 9000*100000 + 18000},
		{"berlin", 52.5163, 13.3777, (5251+9000)*100000 + (1337 + 18000)},
		{"south west", -33.8688, -70.6483, (-3387+9000)*100000 + (-7065 + 18000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GridCellID(tt.lat, tt.lon))
		})
	}
}

func TestGridCellIDNeighbours(t *testing.T) {
	// Cells on both sides of a lat or lon boundary differ
	assert.NotEqual(t, GridCellID(52.5099, 13.3799), GridCellID(52.5101, 13.3799))
	assert.NotEqual(t, GridCellID(52.5099, 13.3799), GridCellID(52.5099, 13.3801))
	assert.Equal(t, GridCellID(52.5101, 13.3801), GridCellID(52.5199, 13.3899))
}

func TestGridCellsFor(t *testing.T) {
	samples := []models.TourSample{
		{Latitude: 48.1001, Longitude: 11.5001},
		{Latitude: 48.1002, Longitude: 11.5002},
		{},
		{Latitude: 48.1101, Longitude: 11.5001},
		{Latitude: 48.1001, Longitude: 11.5001},
		{Latitude: 50.0, Longitude: 8.0},
	}

	cells := GridCellsFor(samples, 0, 4)
	assert.Equal(t, []int64{
		GridCellID(48.1001, 11.5001),
		GridCellID(48.1101, 11.5001),
	}, cells)

	assert.Len(t, GridCellsFor(samples, 0, 100), 3)
	assert.Empty(t, GridCellsFor(samples, 2, 2))
	assert.Empty(t, GridCellsFor(nil, 0, 1))
}
