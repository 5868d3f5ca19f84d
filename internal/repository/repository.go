package repository

import (
	"context"
	"errors"
	"time"

	"parking_reservation/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")
var ErrNoAvailableSpot = errors.New("no available spot in parking lot")
var ErrHasOccupiedSpots = errors.New("parking lot has occupied spots")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	FindAll(ctx context.Context) ([]domain.User, error)
	UpdateRole(ctx context.Context, id int, role string) (*domain.User, error)
	Count(ctx context.Context) (int, error)
}

// ParkingLotRepository owns lots and their spots. Create, Update and Delete
// keep the spot rows consistent with max_spots inside one transaction.
type ParkingLotRepository interface {
	Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error)
	FindSummaryByID(ctx context.Context, id int) (*domain.LotSummary, error)
	FindAllSummaries(ctx context.Context) ([]domain.LotSummary, error)
	FindAvailable(ctx context.Context) ([]domain.LotSummary, error)
	Search(ctx context.Context, text string) ([]domain.LotSummary, error)
	Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error)
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
}

type ParkingSpotRepository interface {
	FindViewsByLotID(ctx context.Context, lotID int) ([]domain.SpotView, error)
}

// ReservationRepository performs the booking and release transitions.
// Book and Release change the reservation and its spot atomically.
type ReservationRepository interface {
	Book(ctx context.Context, lotID, userID int, parkedAt time.Time) (*domain.ReservationDetail, error)
	Release(ctx context.Context, reservationID, userID int, leftAt time.Time) (*domain.ReservationDetail, error)
	FindByID(ctx context.Context, id int) (*domain.ReservationDetail, error)
	FindActiveByUser(ctx context.Context, userID int) ([]domain.ReservationDetail, error)
	FindHistoryByUser(ctx context.Context, userID, limit int) ([]domain.ReservationDetail, error)
	DailyCountsByUser(ctx context.Context, userID, days int) ([]domain.DailyBookingCount, error)
	CountActive(ctx context.Context) (int, error)
}
