package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/reset980reset980/write0917/internal/config"
)

// NewPostgres opens a pooled connection. It does not ping; callers decide
// how long to wait for the server.
func NewPostgres(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}
