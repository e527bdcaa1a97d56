package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type PostgresCfg struct {
	URL            string        `env:"POSTGRES_URL" envDefault:"postgres://localhost:5432/customers?sslmode=disable"`
	User           string        `env:"POSTGRES_USER"`
	Password       string        `env:"POSTGRES_PASSWORD"`
	PoolMaxConn    int           `env:"POSTGRES_POOL_MAX_CONN" envDefault:"10"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" envDefault:"5s"`
}

// DSN returns connection URL with credentials merged into it
func (c PostgresCfg) DSN() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse postgres url - %w", err)
	}

	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported postgres url scheme %q", u.Scheme)
	}

	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String(), nil
}

type HTTPCfg struct {
	Port            int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RateLimit       float64       `env:"HTTP_RATE_LIMIT" envDefault:"0"`
	RateBurst       int           `env:"HTTP_RATE_BURST" envDefault:"0"`
}

type LogCfg struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type MigrationCfg struct {
	Enabled           bool   `env:"MIGRATION_ENABLED" envDefault:"true"`
	Location          string `env:"MIGRATION_LOCATION" envDefault:""`
	Table             string `env:"MIGRATION_TABLE" envDefault:"schema_history"`
	ValidateOnMigrate bool   `env:"MIGRATION_VALIDATE_ON_MIGRATE" envDefault:"true"`
	OutOfOrder        bool   `env:"MIGRATION_OUT_OF_ORDER" envDefault:"false"`
	IgnoreMissing     bool   `env:"MIGRATION_IGNORE_MISSING" envDefault:"false"`
}

type Config struct {
	PostgresCfg  PostgresCfg
	HTTPCfg      HTTPCfg
	LogCfg       LogCfg
	MigrationCfg MigrationCfg
}

// Build loads optional dotenv file and parses environment into Config.
// Variables already present in environment are never overridden by the file.
func Build(envFile string) (Config, error) {
	var cfg Config

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load env file %s - %w", envFile, err)
		}
	}

	opts := env.Options{RequiredIfNoDef: true}
	if err := env.Parse(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("failed to parse environment variables - %w", err)
	}

	if cfg.MigrationCfg.Table == "" {
		return cfg, errors.New("migration history table name must not be empty")
	}

	return cfg, nil
}
