package sqlrepo

import (
	"context"
	"fmt"
	"time"

	"parking_reservation/internal/domain"
	"parking_reservation/internal/repository"
)

type parkingSpotRepository struct {
	db *DB
}

func NewParkingSpotRepository(db *DB) repository.ParkingSpotRepository {
	return &parkingSpotRepository{db: db}
}

// FindViewsByLotID lists the lot's spots by number, each with the active
// reservation and user holding it. Returns ErrNotFound for an unknown lot.
func (r *parkingSpotRepository) FindViewsByLotID(ctx context.Context, lotID int) ([]domain.SpotView, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_lots WHERE id = $1`, lotID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("ParkingSpotRepository.FindViewsByLotID: %w", err)
	}
	if exists == 0 {
		return nil, repository.ErrNotFound
	}

	query := `SELECT s.id, s.lot_id, s.spot_number, s.status,
	                 r.id, r.user_id, u.username, r.parking_timestamp
	          FROM parking_spots s
	          LEFT JOIN reservations r ON r.spot_id = s.id AND r.status = 'active'
	          LEFT JOIN users u ON u.id = r.user_id
	          WHERE s.lot_id = $1
	          ORDER BY s.spot_number`
	rows, err := r.db.QueryContext(ctx, query, lotID)
	if err != nil {
		return nil, fmt.Errorf("ParkingSpotRepository.FindViewsByLotID: %w", err)
	}
	defer rows.Close()

	spots := []domain.SpotView{}
	for rows.Next() {
		var v domain.SpotView
		if err := rows.Scan(&v.ID, &v.LotID, &v.SpotNumber, &v.Status,
			&v.ReservationID, &v.UserID, &v.Username, &v.ParkingTimestamp); err != nil {
			return nil, fmt.Errorf("ParkingSpotRepository.FindViewsByLotID (scanning row): %w", err)
		}
		if v.ParkingTimestamp.Valid {
			v.ParkingTimestamp.Time = v.ParkingTimestamp.Time.In(time.UTC)
		}
		spots = append(spots, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ParkingSpotRepository.FindViewsByLotID (rows error): %w", err)
	}
	return spots, nil
}
