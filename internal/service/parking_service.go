package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v4"

	"parking_reservation/internal/domain"
	"parking_reservation/internal/repository"
)

type ParkingService struct {
	lotRepo         repository.ParkingLotRepository
	spotRepo        repository.ParkingSpotRepository
	reservationRepo repository.ReservationRepository
	userRepo        repository.UserRepository
	now             func() time.Time
}

func NewParkingService(
	lotRepo repository.ParkingLotRepository,
	spotRepo repository.ParkingSpotRepository,
	reservationRepo repository.ReservationRepository,
	userRepo repository.UserRepository,
) *ParkingService {
	return &ParkingService{
		lotRepo:         lotRepo,
		spotRepo:        spotRepo,
		reservationRepo: reservationRepo,
		userRepo:        userRepo,
		now:             time.Now,
	}
}

// WithClock replaces the time source used for booking and release timestamps.
func (s *ParkingService) WithClock(now func() time.Time) *ParkingService {
	s.now = now
	return s
}

// --- ParkingLot ---

func (s *ParkingService) CreateLot(ctx context.Context, actor Actor, dto domain.ParkingLotDTO) (*domain.ParkingLot, error) {
	if err := Authorize(actor, CapabilityManageLots); err != nil {
		return nil, err
	}
	if err := validateStruct(dto); err != nil {
		return nil, err
	}

	lot, err := s.lotRepo.Create(ctx, &domain.ParkingLot{
		Name:       dto.Name,
		Price:      dto.Price,
		Address:    dto.Address,
		PostalCode: dto.PostalCode,
		MaxSpots:   dto.MaxSpots,
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"lot_id": lot.ID, "max_spots": lot.MaxSpots, "user_id": actor.UserID}).Info("parking lot created")
	return lot, nil
}

// UpdateLot replaces the lot's attributes and resizes it to dto.MaxSpots.
func (s *ParkingService) UpdateLot(ctx context.Context, actor Actor, id int, dto domain.ParkingLotDTO) (*domain.ParkingLot, error) {
	if err := Authorize(actor, CapabilityManageLots); err != nil {
		return nil, err
	}
	if err := validateStruct(dto); err != nil {
		return nil, err
	}

	lot, err := s.lotRepo.Update(ctx, &domain.ParkingLot{
		ID:         id,
		Name:       dto.Name,
		Price:      dto.Price,
		Address:    dto.Address,
		PostalCode: dto.PostalCode,
		MaxSpots:   dto.MaxSpots,
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"lot_id": lot.ID, "max_spots": lot.MaxSpots, "user_id": actor.UserID}).Info("parking lot updated")
	return lot, nil
}

func (s *ParkingService) DeleteLot(ctx context.Context, actor Actor, id int) error {
	if err := Authorize(actor, CapabilityManageLots); err != nil {
		return err
	}
	if err := s.lotRepo.Delete(ctx, id); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"lot_id": id, "user_id": actor.UserID}).Info("parking lot deleted")
	return nil
}

func (s *ParkingService) GetLot(ctx context.Context, id int) (*domain.LotSummary, error) {
	return s.lotRepo.FindSummaryByID(ctx, id)
}

func (s *ParkingService) ListLots(ctx context.Context) ([]domain.LotSummary, error) {
	return s.lotRepo.FindAllSummaries(ctx)
}

func (s *ParkingService) ListAvailableLots(ctx context.Context) ([]domain.LotSummary, error) {
	return s.lotRepo.FindAvailable(ctx)
}

func (s *ParkingService) SearchLots(ctx context.Context, text string) ([]domain.LotSummary, error) {
	return s.lotRepo.Search(ctx, text)
}

// GetLotSpots lists the lot's spots. Occupied spots carry how many whole
// minutes they have been held.
func (s *ParkingService) GetLotSpots(ctx context.Context, lotID int) ([]domain.SpotView, error) {
	spots, err := s.spotRepo.FindViewsByLotID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	for i := range spots {
		if spots[i].Occupied() {
			spots[i].ParkedMinutes = null.IntFrom(int64(spots[i].ParkedFor(now) / time.Minute))
		}
	}
	return spots, nil
}

// --- Reservation ---

// Book assigns the lowest-numbered free spot of the lot to the actor.
func (s *ParkingService) Book(ctx context.Context, actor Actor, lotID int) (*domain.ReservationDetail, error) {
	d, err := s.reservationRepo.Book(ctx, lotID, actor.UserID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"reservation_id": d.ID,
		"lot_id":         d.LotID,
		"spot_number":    d.SpotNumber,
		"user_id":        actor.UserID,
	}).Info("spot booked")
	return d, nil
}

// Release ends one of the actor's active reservations and returns it with its cost.
func (s *ParkingService) Release(ctx context.Context, actor Actor, reservationID int) (*domain.ReservationDetail, error) {
	d, err := s.reservationRepo.Release(ctx, reservationID, actor.UserID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"reservation_id": d.ID,
		"lot_id":         d.LotID,
		"spot_number":    d.SpotNumber,
		"user_id":        actor.UserID,
		"cost":           d.ParkingCost,
	}).Info("spot released")
	return d, nil
}

// GetReservation returns one of the actor's reservations. An active one carries
// the cost of releasing it now. Reservations of other users are reported as not found.
func (s *ParkingService) GetReservation(ctx context.Context, actor Actor, id int) (*domain.ReservationDetail, error) {
	d, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != actor.UserID {
		return nil, repository.ErrNotFound
	}
	if d.IsActive() {
		d.EstimatedCost = domain.ParkingCost(d.ParkingTimestamp, s.now().UTC(), d.LotPrice)
	}
	return d, nil
}

func (s *ParkingService) UserActiveReservations(ctx context.Context, actor Actor) ([]domain.ReservationDetail, error) {
	return s.reservationRepo.FindActiveByUser(ctx, actor.UserID)
}

// UserHistory returns the actor's latest reservations. A limit outside
// [1, MaxHistoryLimit] is replaced by the default or clamped.
func (s *ParkingService) UserHistory(ctx context.Context, actor Actor, limit int) ([]domain.ReservationDetail, error) {
	switch {
	case limit <= 0:
		limit = domain.DefaultHistoryLimit
	case limit > domain.MaxHistoryLimit:
		limit = domain.MaxHistoryLimit
	}
	return s.reservationRepo.FindHistoryByUser(ctx, actor.UserID, limit)
}

func (s *ParkingService) DailyBookingCounts(ctx context.Context, actor Actor, days int) ([]domain.DailyBookingCount, error) {
	if days <= 0 {
		days = domain.DefaultStatsDays
	}
	return s.reservationRepo.DailyCountsByUser(ctx, actor.UserID, days)
}

// --- Statistics ---

func (s *ParkingService) ActiveReservationCount(ctx context.Context) (int, error) {
	return s.reservationRepo.CountActive(ctx)
}

func (s *ParkingService) AdminSummary(ctx context.Context, actor Actor) (*domain.AdminSummary, error) {
	if err := Authorize(actor, CapabilityViewAdminSummary); err != nil {
		return nil, err
	}

	lots, err := s.lotRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting lots: %w", err)
	}
	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	active, err := s.reservationRepo.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting active reservations: %w", err)
	}
	return &domain.AdminSummary{TotalParkingLots: lots, TotalUsers: users, ActiveReservations: active}, nil
}

// OccupancyStats returns per-lot available and occupied counts for the admin chart.
func (s *ParkingService) OccupancyStats(ctx context.Context, actor Actor) (*domain.OccupancyStats, error) {
	if err := Authorize(actor, CapabilityViewAdminSummary); err != nil {
		return nil, err
	}
	lots, err := s.lotRepo.FindAllSummaries(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.OccupancyStats{
		Labels:    make([]string, 0, len(lots)),
		Available: make([]int, 0, len(lots)),
		Occupied:  make([]int, 0, len(lots)),
	}
	for _, l := range lots {
		stats.Labels = append(stats.Labels, l.Name)
		stats.Available = append(stats.Available, l.AvailableSpots)
		stats.Occupied = append(stats.Occupied, l.OccupiedSpots)
	}
	return stats, nil
}

// UserBookingStats returns the actor's bookings per day over the last
// DefaultStatsDays days with bookings, newest first.
func (s *ParkingService) UserBookingStats(ctx context.Context, actor Actor) (*domain.UserBookingStats, error) {
	counts, err := s.DailyBookingCounts(ctx, actor, domain.DefaultStatsDays)
	if err != nil {
		return nil, err
	}

	stats := &domain.UserBookingStats{
		Labels:   make([]string, 0, len(counts)),
		Bookings: make([]int, 0, len(counts)),
	}
	for _, c := range counts {
		stats.Labels = append(stats.Labels, c.Date)
		stats.Bookings = append(stats.Bookings, c.Bookings)
	}
	return stats, nil
}
