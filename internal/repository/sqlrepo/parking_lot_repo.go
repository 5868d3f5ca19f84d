package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"parking_reservation/internal/domain"
	"parking_reservation/internal/repository"
)

const lotSummarySelect = `
	SELECT l.id, l.name, l.price, l.address, l.postal_code, l.max_spots, l.created_at, l.updated_at,
	       COUNT(s.id),
	       COUNT(CASE WHEN s.status = 'A' THEN 1 END),
	       COUNT(CASE WHEN s.status = 'O' THEN 1 END)
	FROM parking_lots l
	LEFT JOIN parking_spots s ON s.lot_id = l.id`

type parkingLotRepository struct {
	db *DB
}

func NewParkingLotRepository(db *DB) repository.ParkingLotRepository {
	return &parkingLotRepository{db: db}
}

func scanLotSummary(row rowScanner) (*domain.LotSummary, error) {
	s := &domain.LotSummary{}
	err := row.Scan(&s.ID, &s.Name, &s.Price, &s.Address, &s.PostalCode, &s.MaxSpots, &s.CreatedAt, &s.UpdatedAt,
		&s.TotalSpots, &s.AvailableSpots, &s.OccupiedSpots)
	if err != nil {
		return nil, err
	}
	s.CreatedAt = s.CreatedAt.In(time.UTC)
	s.UpdatedAt = s.UpdatedAt.In(time.UTC)
	return s, nil
}

// Create inserts the lot and its spots numbered 1..MaxSpots, all available.
func (r *parkingLotRepository) Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	now := dbTime(time.Now())
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO parking_lots (name, price, address, postal_code, max_spots, created_at, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7)
		          RETURNING id`
		err := tx.QueryRowContext(ctx, query, lot.Name, lot.Price, lot.Address, lot.PostalCode, lot.MaxSpots, now, now).Scan(&lot.ID)
		if err != nil {
			return fmt.Errorf("inserting lot: %w", err)
		}
		return insertSpots(ctx, tx, lot.ID, 1, lot.MaxSpots)
	})
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.Create: %w", err)
	}
	lot.CreatedAt = now
	lot.UpdatedAt = now
	return lot, nil
}

// insertSpots adds available spots numbered from..to inclusive.
func insertSpots(ctx context.Context, tx *sql.Tx, lotID, from, to int) error {
	if from > to {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO parking_spots (lot_id, spot_number, status) VALUES ($1, $2, 'A')`)
	if err != nil {
		return fmt.Errorf("preparing spot insert: %w", err)
	}
	defer stmt.Close()

	for n := from; n <= to; n++ {
		if _, err := stmt.ExecContext(ctx, lotID, n); err != nil {
			return fmt.Errorf("inserting spot %d: %w", n, err)
		}
	}
	return nil
}

func (r *parkingLotRepository) FindSummaryByID(ctx context.Context, id int) (*domain.LotSummary, error) {
	query := lotSummarySelect + ` WHERE l.id = $1 GROUP BY l.id`
	s, err := scanLotSummary(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingLotRepository.FindSummaryByID: %w", err)
	}
	return s, nil
}

func (r *parkingLotRepository) FindAllSummaries(ctx context.Context) ([]domain.LotSummary, error) {
	query := lotSummarySelect + ` GROUP BY l.id ORDER BY l.name, l.id`
	return r.querySummaries(ctx, "FindAllSummaries", query)
}

func (r *parkingLotRepository) FindAvailable(ctx context.Context) ([]domain.LotSummary, error) {
	query := lotSummarySelect + ` GROUP BY l.id HAVING COUNT(CASE WHEN s.status = 'A' THEN 1 END) > 0 ORDER BY l.name, l.id`
	return r.querySummaries(ctx, "FindAvailable", query)
}

// Search matches text case-insensitively as a substring of name, address or postal code.
func (r *parkingLotRepository) Search(ctx context.Context, text string) ([]domain.LotSummary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []domain.LotSummary{}, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
	query := lotSummarySelect + `
	WHERE LOWER(l.name) LIKE $1 ESCAPE '\'
	   OR LOWER(l.address) LIKE $2 ESCAPE '\'
	   OR LOWER(l.postal_code) LIKE $3 ESCAPE '\'
	GROUP BY l.id ORDER BY l.name, l.id`
	return r.querySummaries(ctx, "Search", query, pattern, pattern, pattern)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *parkingLotRepository) querySummaries(ctx context.Context, op, query string, args ...any) ([]domain.LotSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.%s: %w", op, err)
	}
	defer rows.Close()

	lots := []domain.LotSummary{}
	for rows.Next() {
		s, err := scanLotSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("ParkingLotRepository.%s (scanning row): %w", op, err)
		}
		lots = append(lots, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.%s (rows error): %w", op, err)
	}
	return lots, nil
}

// Update rewrites the lot's attributes and resizes its spots to MaxSpots.
// Growing appends available spots after the highest existing number. Shrinking
// removes the highest-numbered spots and their past reservations, and fails with
// ErrHasOccupiedSpots if any of them is occupied.
func (r *parkingLotRepository) Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	now := dbTime(time.Now())
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, r.db.forUpdate(`SELECT created_at FROM parking_lots WHERE id = $1`), lot.ID).Scan(&lot.CreatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("locking lot: %w", err)
		}

		var highest int
		err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(spot_number), 0) FROM parking_spots WHERE lot_id = $1`, lot.ID).Scan(&highest)
		if err != nil {
			return fmt.Errorf("reading spot count: %w", err)
		}

		switch {
		case lot.MaxSpots > highest:
			if err := insertSpots(ctx, tx, lot.ID, highest+1, lot.MaxSpots); err != nil {
				return err
			}
		case lot.MaxSpots < highest:
			if err := removeSpotsAbove(ctx, tx, lot.ID, lot.MaxSpots); err != nil {
				return err
			}
		}

		query := `UPDATE parking_lots SET name = $1, price = $2, address = $3, postal_code = $4, max_spots = $5, updated_at = $6 WHERE id = $7`
		if _, err := tx.ExecContext(ctx, query, lot.Name, lot.Price, lot.Address, lot.PostalCode, lot.MaxSpots, now, lot.ID); err != nil {
			return fmt.Errorf("updating lot: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrHasOccupiedSpots) {
			return nil, err
		}
		return nil, fmt.Errorf("ParkingLotRepository.Update: %w", err)
	}
	lot.CreatedAt = lot.CreatedAt.In(time.UTC)
	lot.UpdatedAt = now
	return lot, nil
}

func removeSpotsAbove(ctx context.Context, tx *sql.Tx, lotID, keep int) error {
	var occupied int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parking_spots WHERE lot_id = $1 AND spot_number > $2 AND status = 'O'`,
		lotID, keep).Scan(&occupied)
	if err != nil {
		return fmt.Errorf("counting occupied spots: %w", err)
	}
	if occupied > 0 {
		return fmt.Errorf("%w: %d spot(s) above %d are in use", repository.ErrHasOccupiedSpots, occupied, keep)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM reservations WHERE spot_id IN (SELECT id FROM parking_spots WHERE lot_id = $1 AND spot_number > $2)`,
		lotID, keep)
	if err != nil {
		return fmt.Errorf("deleting reservations of removed spots: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM parking_spots WHERE lot_id = $1 AND spot_number > $2`, lotID, keep); err != nil {
		return fmt.Errorf("deleting spots: %w", err)
	}
	return nil
}

// Delete removes the lot, its spots and their reservation history. A lot with
// any occupied spot is left untouched and ErrHasOccupiedSpots is returned.
func (r *parkingLotRepository) Delete(ctx context.Context, id int) error {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		var lockedID int
		if err := tx.QueryRowContext(ctx, r.db.forUpdate(`SELECT id FROM parking_lots WHERE id = $1`), id).Scan(&lockedID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("locking lot: %w", err)
		}

		var occupied int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_spots WHERE lot_id = $1 AND status = 'O'`, id).Scan(&occupied)
		if err != nil {
			return fmt.Errorf("counting occupied spots: %w", err)
		}
		if occupied > 0 {
			return fmt.Errorf("%w: %d spot(s) in use", repository.ErrHasOccupiedSpots, occupied)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE spot_id IN (SELECT id FROM parking_spots WHERE lot_id = $1)`, id); err != nil {
			return fmt.Errorf("deleting reservations: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM parking_spots WHERE lot_id = $1`, id); err != nil {
			return fmt.Errorf("deleting spots: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM parking_lots WHERE id = $1`, id); err != nil {
			return fmt.Errorf("deleting lot: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrHasOccupiedSpots) {
			return err
		}
		return fmt.Errorf("ParkingLotRepository.Delete: %w", err)
	}
	return nil
}

func (r *parkingLotRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_lots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ParkingLotRepository.Count: %w", err)
	}
	return n, nil
}
