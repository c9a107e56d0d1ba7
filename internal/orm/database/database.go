// Package database opens connections for the supported drivers and pairs them with a SQL dialect.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conduit-lang/apiorm/internal/orm/query"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Config describes a database connection
type Config struct {
	// Driver is a database/sql driver name: pgx, postgres, mysql or sqlite3
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB is a connection pool with the dialect its queries are rendered in
type DB struct {
	*sql.DB
	Dialect query.Dialect
}

// Open opens the pool, applies pool limits and verifies the connection
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, err := query.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// Wrap pairs an existing pool with the dialect of driver
func Wrap(db *sql.DB, driver string) (*DB, error) {
	dialect, err := query.DialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &DB{DB: db, Dialect: dialect}, nil
}
