package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DriverPgx      = "pgx"      // github.com/jackc/pgx/v5/stdlib
	DriverPostgres = "postgres" // github.com/lib/pq
	DriverSQLite   = "sqlite"   // modernc.org/sqlite
)

// MinJWTSecretLength is the minimum accepted length of JWT_SECRET in bytes.
const MinJWTSecretLength = 32

// knownWeakSecrets are sample values that must never sign real tokens.
var knownWeakSecrets = []string{
	"your-very-secret-key-for-jwt-!@#$",
	"change-me-to-a-32-byte-secret-key",
	"dev-parking-app-secret-key-2024-do-not-use-in-production",
}

type Config struct {
	ServerPort      string        `env:"SERVER_PORT" envDefault:"8080"`
	ServerMode      string        `env:"SERVER_MODE" envDefault:"release"` // gin mode: debug, release, test
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"pgx"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"parking_db"`
	DBSslMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	DBPath     string `env:"DB_PATH" envDefault:"parking.db"` // sqlite only

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	JWTSecret     string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiration time.Duration `env:"JWT_EXPIRATION" envDefault:"24h"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Optional bootstrap administrator, created at startup if missing.
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not read .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes long, got %d", MinJWTSecretLength, len(c.JWTSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.JWTSecret == weak {
			return errors.New("JWT_SECRET is a published example value and must not be used")
		}
	}
	if c.JWTExpiration <= 0 {
		return fmt.Errorf("JWT_EXPIRATION must be positive, got %s", c.JWTExpiration)
	}

	switch c.ServerMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("SERVER_MODE must be debug, release or test, got %q", c.ServerMode)
	}

	switch c.DBDriver {
	case DriverPgx, DriverPostgres:
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want %s, %s or %s)", c.DBDriver, DriverPgx, DriverPostgres, DriverSQLite)
	}

	set := 0
	for _, v := range []string{c.AdminUsername, c.AdminEmail, c.AdminPassword} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return errors.New("ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

func (c *Config) BootstrapAdmin() bool {
	return c.AdminUsername != ""
}

func (c *Config) IsSQLite() bool {
	return c.DBDriver == DriverSQLite
}

// DSN returns the data source name for the configured driver.
func (c *Config) DSN() string {
	if c.IsSQLite() {
		return SQLiteDSN(c.DBPath)
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSslMode)
}

// SQLiteDSN builds a modernc.org/sqlite DSN. Transactions start with BEGIN IMMEDIATE
// so that writers serialize instead of failing on lock upgrade.
func SQLiteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(10000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	q.Set("_time_format", "sqlite")
	return "file:" + path + "?" + q.Encode()
}
