package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type SpotStatus string

const (
	SpotAvailable SpotStatus = "A"
	SpotOccupied  SpotStatus = "O"
)

type ParkingSpot struct {
	ID         int        `json:"id"`
	LotID      int        `json:"lot_id"`
	SpotNumber int        `json:"spot_number"`
	Status     SpotStatus `json:"status"`
}

// SpotView is a spot with the active reservation holding it, if any.
// The reservation columns come from a LEFT JOIN and are all null for a free spot.
type SpotView struct {
	ParkingSpot
	ReservationID    null.Int    `json:"reservation_id"`
	UserID           null.Int    `json:"user_id"`
	Username         null.String `json:"username"`
	ParkingTimestamp null.Time   `json:"parking_timestamp"`
	ParkedMinutes    null.Int    `json:"parked_minutes"`
}

func (v SpotView) Occupied() bool {
	return v.Status == SpotOccupied
}

// ParkedFor returns how long the active reservation has been running at now.
func (v SpotView) ParkedFor(now time.Time) time.Duration {
	if !v.ParkingTimestamp.Valid {
		return 0
	}
	return now.Sub(v.ParkingTimestamp.Time)
}
