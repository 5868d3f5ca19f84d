package sqlrepo

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"parking_reservation/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

type dialect struct {
	driver       string
	gooseDialect string
	migrationDir string
	// lockSuffix is appended to a SELECT to lock the selected row until commit.
	// SQLite locks the whole database on BEGIN IMMEDIATE instead.
	lockSuffix string
}

var (
	postgresDialect = dialect{gooseDialect: "postgres", migrationDir: "migrations/postgres", lockSuffix: " FOR UPDATE"}
	sqliteDialect   = dialect{driver: config.DriverSQLite, gooseDialect: "sqlite3", migrationDir: "migrations/sqlite"}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case config.DriverPgx, config.DriverPostgres:
		d := postgresDialect
		d.driver = driver
		return d, nil
	case config.DriverSQLite:
		return sqliteDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// DB is a connection pool together with the SQL dialect of its driver.
type DB struct {
	*sql.DB
	dialect dialect
}

// NewDB opens and pings the database configured in cfg.
func NewDB(cfg *config.Config) (*DB, error) {
	d, err := dialectFor(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{DB: db, dialect: d}, nil
}

func (db *DB) Driver() string {
	return db.dialect.driver
}

// Migrate runs all pending migrations for the database dialect.
func (db *DB) Migrate() error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(logrus.StandardLogger())

	if err := goose.SetDialect(db.dialect.gooseDialect); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.Up(db.DB, db.dialect.migrationDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing only if fn returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// forUpdate appends the row lock clause of the dialect to query.
func (db *DB) forUpdate(query string) string {
	return query + db.dialect.lockSuffix
}
