package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
)

type Reservation struct {
	ID               int               `json:"id"`
	SpotID           int               `json:"spot_id"`
	UserID           int               `json:"user_id"`
	ParkingTimestamp time.Time         `json:"parking_timestamp"`
	LeavingTimestamp null.Time         `json:"leaving_timestamp"`
	ParkingCost      float64           `json:"parking_cost"`
	Status           ReservationStatus `json:"status"`
}

// ReservationDetail is a reservation joined with the spot and lot it refers to.
type ReservationDetail struct {
	Reservation
	SpotNumber int     `json:"spot_number"`
	LotID      int     `json:"lot_id"`
	LotName    string  `json:"lot_name"`
	LotPrice   float64 `json:"lot_price"`
	// EstimatedCost is what releasing now would charge. Set only on active reservations.
	EstimatedCost float64 `json:"estimated_cost,omitempty"`
}

func (r ReservationDetail) IsActive() bool {
	return r.Status == ReservationActive
}

// HistoryLimit bounds for per-user history pages.
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)
