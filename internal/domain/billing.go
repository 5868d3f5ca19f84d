package domain

import (
	"math"
	"time"
)

// BillableHours rounds the parked duration up to whole hours with a one hour minimum.
func BillableHours(parkedAt, leftAt time.Time) int {
	elapsed := leftAt.Sub(parkedAt)
	hours := int(math.Ceil(elapsed.Seconds() / 3600))
	if hours < 1 {
		return 1
	}
	return hours
}

// ParkingCost is BillableHours times the lot's hourly price, rounded to cents.
func ParkingCost(parkedAt, leftAt time.Time, hourlyPrice float64) float64 {
	cost := float64(BillableHours(parkedAt, leftAt)) * hourlyPrice
	return math.Round(cost*100) / 100
}
