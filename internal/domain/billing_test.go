package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBillableHours(t *testing.T) {
	parked := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"zero", 0, 1},
		{"negative", -5 * time.Minute, 1},
		{"one second", time.Second, 1},
		{"59 minutes", 59 * time.Minute, 1},
		{"exactly one hour", time.Hour, 1},
		{"61 minutes", 61 * time.Minute, 2},
		{"90 minutes", 90 * time.Minute, 2},
		{"120 minutes", 120 * time.Minute, 2},
		{"two hours and a second", 2*time.Hour + time.Second, 3},
		{"a day", 24 * time.Hour, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BillableHours(parked, parked.Add(tt.elapsed)))
		})
	}
}

func TestParkingCost(t *testing.T) {
	parked := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, 20.0, ParkingCost(parked, parked.Add(90*time.Minute), 10))
	assert.Equal(t, 2.5, ParkingCost(parked, parked.Add(time.Minute), 2.5))
	assert.Equal(t, 0.3, ParkingCost(parked, parked.Add(150*time.Minute), 0.1))
}

func TestSpotView_ParkedFor(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	free := SpotView{ParkingSpot: ParkingSpot{Status: SpotAvailable}}
	assert.False(t, free.Occupied())
	assert.Zero(t, free.ParkedFor(now))

	taken := SpotView{ParkingSpot: ParkingSpot{Status: SpotOccupied}}
	taken.ParkingTimestamp.SetValid(now.Add(-45 * time.Minute))
	assert.True(t, taken.Occupied())
	assert.Equal(t, 45*time.Minute, taken.ParkedFor(now))
}
