package infra

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver for database/sql
	"github.com/umalmyha/customers-api/internal/config"
)

// SQL opens dedicated database/sql connection used by schema migrator
func SQL(ctx context.Context, cfg config.PostgresCfg) (*sqlx.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection - %w", err)
	}
	db.SetMaxOpenConns(2)

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("didn't get response from database after sending ping request - %w", err)
	}
	return db, nil
}
