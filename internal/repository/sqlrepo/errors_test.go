package sqlrepo

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking_reservation/internal/config"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pgx unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"pgx foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"pq unique violation", &pq.Error{Code: "23505"}, true},
		{"pq not null violation", &pq.Error{Code: "23502"}, false},
		{"wrapped pgx error", fmt.Errorf("inserting user: %w", &pgconn.PgError{Code: "23505"}), true},
		{"wrapped pq error", fmt.Errorf("inserting user: %w", &pq.Error{Code: "23505"}), true},
		{"plain error", errors.New("duplicate key"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestForUpdate(t *testing.T) {
	const query = `SELECT id FROM parking_lots WHERE id = $1`

	for _, driver := range []string{config.DriverPgx, config.DriverPostgres} {
		d, err := dialectFor(driver)
		require.NoError(t, err)
		db := &DB{dialect: d}
		assert.Equal(t, query+" FOR UPDATE", db.forUpdate(query), driver)
	}

	d, err := dialectFor(config.DriverSQLite)
	require.NoError(t, err)
	db := &DB{dialect: d}
	assert.Equal(t, query, db.forUpdate(query))
}

func TestDBTime(t *testing.T) {
	local := time.Date(2026, 3, 1, 10, 30, 0, 123456789, time.FixedZone("IST", 5*3600+1800))
	got := dbTime(local)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 123456000, got.Nanosecond())
	assert.True(t, got.Equal(local.Truncate(time.Microsecond)))
}
