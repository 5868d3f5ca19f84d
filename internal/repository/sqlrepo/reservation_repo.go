package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parking_reservation/internal/domain"
	"parking_reservation/internal/repository"
)

const reservationDetailSelect = `
	SELECT r.id, r.spot_id, r.user_id, r.parking_timestamp, r.leaving_timestamp, r.parking_cost, r.status,
	       s.spot_number, l.id, l.name, l.price
	FROM reservations r
	JOIN parking_spots s ON s.id = r.spot_id
	JOIN parking_lots l ON l.id = s.lot_id`

type reservationRepository struct {
	db *DB
}

func NewReservationRepository(db *DB) repository.ReservationRepository {
	return &reservationRepository{db: db}
}

func scanReservationDetail(row rowScanner) (*domain.ReservationDetail, error) {
	d := &domain.ReservationDetail{}
	err := row.Scan(&d.ID, &d.SpotID, &d.UserID, &d.ParkingTimestamp, &d.LeavingTimestamp, &d.ParkingCost, &d.Status,
		&d.SpotNumber, &d.LotID, &d.LotName, &d.LotPrice)
	if err != nil {
		return nil, err
	}
	d.ParkingTimestamp = d.ParkingTimestamp.In(time.UTC)
	if d.LeavingTimestamp.Valid {
		d.LeavingTimestamp.Time = d.LeavingTimestamp.Time.In(time.UTC)
	}
	return d, nil
}

// Book claims the lowest-numbered available spot of the lot for userID and opens
// an active reservation starting at parkedAt. The lot row is locked for the
// duration of the transaction so concurrent bookings of one lot serialize.
func (r *reservationRepository) Book(ctx context.Context, lotID, userID int, parkedAt time.Time) (*domain.ReservationDetail, error) {
	parkedAt = dbTime(parkedAt)
	d := &domain.ReservationDetail{}

	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, r.db.forUpdate(`SELECT id, name, price FROM parking_lots WHERE id = $1`), lotID).
			Scan(&d.LotID, &d.LotName, &d.LotPrice)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("locking lot: %w", err)
		}

		claim := `UPDATE parking_spots SET status = 'O'
		          WHERE id = (SELECT id FROM parking_spots WHERE lot_id = $1 AND status = 'A' ORDER BY spot_number LIMIT 1)
		            AND status = 'A'
		          RETURNING id, spot_number`
		if err := tx.QueryRowContext(ctx, claim, lotID).Scan(&d.SpotID, &d.SpotNumber); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return repository.ErrNoAvailableSpot
			}
			return fmt.Errorf("claiming spot: %w", err)
		}

		insert := `INSERT INTO reservations (spot_id, user_id, parking_timestamp, parking_cost, status)
		           VALUES ($1, $2, $3, 0, 'active')
		           RETURNING id`
		if err := tx.QueryRowContext(ctx, insert, d.SpotID, userID, parkedAt).Scan(&d.ID); err != nil {
			return fmt.Errorf("inserting reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrNoAvailableSpot) {
			return nil, err
		}
		return nil, fmt.Errorf("ReservationRepository.Book: %w", err)
	}

	d.UserID = userID
	d.ParkingTimestamp = parkedAt
	d.Status = domain.ReservationActive
	return d, nil
}

// Release closes the user's active reservation at leftAt, bills it with the
// lot's hourly price and frees the spot. A reservation that does not exist,
// belongs to someone else or is already completed yields ErrNotFound.
func (r *reservationRepository) Release(ctx context.Context, reservationID, userID int, leftAt time.Time) (*domain.ReservationDetail, error) {
	leftAt = dbTime(leftAt)
	var d *domain.ReservationDetail

	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		query := reservationDetailSelect + ` WHERE r.id = $1 AND r.user_id = $2 AND r.status = 'active'`
		var err error
		d, err = scanReservationDetail(tx.QueryRowContext(ctx, r.db.forUpdate(query), reservationID, userID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("loading reservation: %w", err)
		}

		cost := domain.ParkingCost(d.ParkingTimestamp, leftAt, d.LotPrice)
		result, err := tx.ExecContext(ctx,
			`UPDATE reservations SET leaving_timestamp = $1, parking_cost = $2, status = 'completed' WHERE id = $3 AND status = 'active'`,
			leftAt, cost, d.ID)
		if err != nil {
			return fmt.Errorf("closing reservation: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("closing reservation (checking rows affected): %w", err)
		}
		if rowsAffected != 1 {
			return repository.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `UPDATE parking_spots SET status = 'A' WHERE id = $1`, d.SpotID); err != nil {
			return fmt.Errorf("freeing spot: %w", err)
		}

		d.LeavingTimestamp.SetValid(leftAt)
		d.ParkingCost = cost
		d.Status = domain.ReservationCompleted
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ReservationRepository.Release: %w", err)
	}
	return d, nil
}

func (r *reservationRepository) FindByID(ctx context.Context, id int) (*domain.ReservationDetail, error) {
	d, err := scanReservationDetail(r.db.QueryRowContext(ctx, reservationDetailSelect+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.FindByID: %w", err)
	}
	return d, nil
}

func (r *reservationRepository) FindActiveByUser(ctx context.Context, userID int) ([]domain.ReservationDetail, error) {
	query := reservationDetailSelect + ` WHERE r.user_id = $1 AND r.status = 'active' ORDER BY r.parking_timestamp DESC, r.id DESC`
	return r.queryDetails(ctx, "FindActiveByUser", query, userID)
}

// FindHistoryByUser returns the user's most recent reservations, newest first.
func (r *reservationRepository) FindHistoryByUser(ctx context.Context, userID, limit int) ([]domain.ReservationDetail, error) {
	query := reservationDetailSelect + ` WHERE r.user_id = $1 ORDER BY r.parking_timestamp DESC, r.id DESC LIMIT $2`
	return r.queryDetails(ctx, "FindHistoryByUser", query, userID, limit)
}

func (r *reservationRepository) queryDetails(ctx context.Context, op, query string, args ...any) ([]domain.ReservationDetail, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.%s: %w", op, err)
	}
	defer rows.Close()

	details := []domain.ReservationDetail{}
	for rows.Next() {
		d, err := scanReservationDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("ReservationRepository.%s (scanning row): %w", op, err)
		}
		details = append(details, *d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.%s (rows error): %w", op, err)
	}
	return details, nil
}

// DailyCountsByUser groups the user's bookings by UTC calendar day of
// parking_timestamp and returns the most recent days, newest first.
// Grouping happens here so both dialects share one query.
func (r *reservationRepository) DailyCountsByUser(ctx context.Context, userID, days int) ([]domain.DailyBookingCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT parking_timestamp FROM reservations WHERE user_id = $1 ORDER BY parking_timestamp DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.DailyCountsByUser: %w", err)
	}
	defer rows.Close()

	counts := []domain.DailyBookingCount{}
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("ReservationRepository.DailyCountsByUser (scanning row): %w", err)
		}
		day := ts.UTC().Format(time.DateOnly)
		if n := len(counts); n > 0 && counts[n-1].Date == day {
			counts[n-1].Bookings++
			continue
		}
		if len(counts) == days {
			break
		}
		counts = append(counts, domain.DailyBookingCount{Date: day, Bookings: 1})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.DailyCountsByUser (rows error): %w", err)
	}
	return counts, nil
}

func (r *reservationRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE status = 'active'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ReservationRepository.CountActive: %w", err)
	}
	return n, nil
}
