// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	LedgerDB    = "db"
	LedgerRedis = "redis"
)

// Config holds every setting of the server and the ingest command.
type Config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	DBDriver     string `env:"DB_DRIVER" envDefault:"sqlite"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"swapsnap.db"`
	DatabaseURL  string `env:"DATABASE_URL"`
	RedisAddr    string `env:"REDIS_ADDR"`
	LedgerDriver string `env:"LEDGER_DRIVER" envDefault:"db"`

	UploadDir      string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`
	MaxWidth       int    `env:"MAX_WIDTH" envDefault:"1920"`
	MaxHeight      int    `env:"MAX_HEIGHT" envDefault:"1080"`
	JPEGQuality    int    `env:"JPEG_QUALITY" envDefault:"85"`

	CatalogRefresh time.Duration `env:"CATALOG_REFRESH" envDefault:"10s"`
	StorageTimeout time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	CookieSecure   bool          `env:"COOKIE_SECURE"`
}

// Load reads an optional dotenv file and parses the environment. Variables
// already set in the environment win over the file.
func Load(dotenv string) (Config, error) {
	if dotenv != "" {
		if _, err := os.Lstat(dotenv); err == nil {
			if err := godotenv.Load(dotenv); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
			}
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the combinations env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}

	switch c.LedgerDriver {
	case LedgerDB:
	case LedgerRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_DRIVER %q", c.LedgerDriver))
	}

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.UploadDir == "" {
		errs = append(errs, errors.New("UPLOAD_DIR must not be empty"))
	}
	return errors.Join(errs...)
}
