// Package database opens the relational store behind the bookstore.
package database

import (
	"bookstore-service/internal/config"
	"bookstore-service/internal/repository"
	"context"
	"database/sql"
	"fmt"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"net"
	"time"

	_ "modernc.org/sqlite"
)

// MySQLDSN renders the driver DSN for cfg. parseTime is required to scan
// DATETIME columns into time.Time.
func MySQLDSN(cfg config.DatabaseConfig) string {
	dsn := mysql.NewConfig()
	dsn.User = cfg.User
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	dsn.DBName = cfg.Name
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	return dsn.FormatDSN()
}

// Open connects to the configured database, retrying while it comes up, and
// returns the pool together with its SQL dialect.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, repository.Dialect, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := OpenSQLite(cfg.Path)
		return db, repository.DialectSQLite, err
	case "mysql":
		db, err := connectWithRetry(ctx, "mysql", MySQLDSN(cfg), cfg)
		if err != nil {
			return nil, "", err
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
		db.SetConnMaxLifetime(5 * time.Minute)
		return db, repository.DialectMySQL, nil
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func connectWithRetry(ctx context.Context, driver, dsn string, cfg config.DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB
	var err error
	attempts := cfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		db, err = sql.Open(driver, dsn)
		if err == nil {
			err = db.PingContext(ctx)
			if err == nil {
				log.Info().Msgf("Connected to DB %s", cfg.Name)
				return db, nil
			}
			_ = db.Close()
		}
		log.Warn().Err(err).Msgf("Retry %d: failed to connect to DB %s (%s:%s)", i+1, cfg.Name, cfg.Host, cfg.Port)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, fmt.Errorf("failed to connect to DB %s at %s:%s after retries: %w", cfg.Name, cfg.Host, cfg.Port, err)
}

// OpenSQLite opens a SQLite database on a single connection. One connection
// serializes writers, which stands in for row locks, and keeps a ":memory:"
// database alive for the life of the pool.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}
