package domain

type DailyBookingCount struct {
	Date     string `json:"date"` // YYYY-MM-DD, UTC
	Bookings int    `json:"bookings"`
}

type AdminSummary struct {
	TotalParkingLots   int `json:"total_parking_lots"`
	TotalUsers         int `json:"total_users"`
	ActiveReservations int `json:"active_reservations"`
}

// OccupancyStats feeds the admin occupancy chart: one entry per lot in each slice.
type OccupancyStats struct {
	Labels    []string `json:"labels"`
	Available []int    `json:"available"`
	Occupied  []int    `json:"occupied"`
}

// UserBookingStats feeds the user's bookings-per-day chart.
type UserBookingStats struct {
	Labels   []string `json:"labels"`
	Bookings []int    `json:"bookings"`
}

const DefaultStatsDays = 7
