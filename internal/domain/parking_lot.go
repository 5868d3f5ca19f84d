package domain

import "time"

type ParkingLot struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"` // hourly rate
	Address    string    `json:"address"`
	PostalCode string    `json:"postal_code"`
	MaxSpots   int       `json:"max_spots"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LotSummary is a lot together with occupancy counts computed from its spots.
type LotSummary struct {
	ParkingLot
	TotalSpots     int `json:"total_spots"`
	AvailableSpots int `json:"available_spots"`
	OccupiedSpots  int `json:"occupied_spots"`
}

type ParkingLotDTO struct {
	Name       string  `json:"name" binding:"required,max=200"`
	Price      float64 `json:"price" binding:"required,gt=0"`
	Address    string  `json:"address" binding:"required,max=500"`
	PostalCode string  `json:"postal_code" binding:"required,max=20"`
	MaxSpots   int     `json:"max_spots" binding:"required,gt=0,lte=10000"`
}
