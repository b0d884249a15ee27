package migrations

import (
	"bookstore-service/internal/repository"
	"context"
	"database/sql"
	"fmt"
	"github.com/Masterminds/semver/v3"
	"sort"
	"time"
)

// Migration is one schema step with its statements per dialect.
type Migration struct {
	Version string
	MySQL   []string
	SQLite  []string
}

func (m Migration) statements(dialect repository.Dialect) []string {
	if dialect == repository.DialectSQLite {
		return m.SQLite
	}
	return m.MySQL
}

// AllMigrations lists every schema step. Order here does not matter; steps
// are applied by ascending semantic version.
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		MySQL: []string{
			`CREATE TABLE IF NOT EXISTS users (
				user_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(100) NOT NULL,
				email VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				role VARCHAR(20) NOT NULL,
				status VARCHAR(20) NOT NULL,
				created_at DATETIME NOT NULL
			) ENGINE=InnoDB`,
			`CREATE TABLE IF NOT EXISTS books (
				book_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				author VARCHAR(255) NOT NULL DEFAULT '',
				isbn VARCHAR(32) NOT NULL DEFAULT '',
				description TEXT,
				price DECIMAL(10,2) NOT NULL DEFAULT 0,
				stock INT NOT NULL DEFAULT 0,
				type_id BIGINT NOT NULL,
				seller_id BIGINT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				CHECK (stock >= 0)
			) ENGINE=InnoDB`,
			`CREATE TABLE IF NOT EXISTS orders (
				order_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				customer_id BIGINT NOT NULL,
				total_amount DECIMAL(12,2) NOT NULL,
				status VARCHAR(20) NOT NULL,
				order_date DATETIME NOT NULL,
				INDEX orders_customer_idx (customer_id, order_date)
			) ENGINE=InnoDB`,
			`CREATE TABLE IF NOT EXISTS order_items (
				order_item_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				order_id BIGINT NOT NULL,
				book_id BIGINT NOT NULL,
				quantity INT NOT NULL,
				unit_price DECIMAL(10,2) NOT NULL,
				FOREIGN KEY (order_id) REFERENCES orders(order_id),
				FOREIGN KEY (book_id) REFERENCES books(book_id)
			) ENGINE=InnoDB`,
		},
		SQLite: []string{
			`CREATE TABLE IF NOT EXISTS users (
				user_id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL,
				status TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS books (
				book_id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL,
				author TEXT NOT NULL DEFAULT '',
				isbn TEXT NOT NULL DEFAULT '',
				description TEXT,
				price TEXT NOT NULL DEFAULT '0',
				stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
				type_id INTEGER NOT NULL,
				seller_id INTEGER NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT 1
			)`,
			`CREATE TABLE IF NOT EXISTS orders (
				order_id INTEGER PRIMARY KEY AUTOINCREMENT,
				customer_id INTEGER NOT NULL,
				total_amount TEXT NOT NULL,
				status TEXT NOT NULL,
				order_date DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS orders_customer_idx ON orders(customer_id, order_date)`,
			`CREATE TABLE IF NOT EXISTS order_items (
				order_item_id INTEGER PRIMARY KEY AUTOINCREMENT,
				order_id INTEGER NOT NULL REFERENCES orders(order_id),
				book_id INTEGER NOT NULL REFERENCES books(book_id),
				quantity INTEGER NOT NULL,
				unit_price TEXT NOT NULL
			)`,
		},
	},
	{
		Version: "1.1.0",
		MySQL: []string{
			`CREATE TABLE IF NOT EXISTS payments (
				payment_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				order_id BIGINT NOT NULL,
				method VARCHAR(32) NOT NULL,
				status VARCHAR(20) NOT NULL,
				FOREIGN KEY (order_id) REFERENCES orders(order_id)
			) ENGINE=InnoDB`,
		},
		SQLite: []string{
			`CREATE TABLE IF NOT EXISTS payments (
				payment_id INTEGER PRIMARY KEY AUTOINCREMENT,
				order_id INTEGER NOT NULL REFERENCES orders(order_id),
				method TEXT NOT NULL,
				status TEXT NOT NULL
			)`,
		},
	},
}

const versionTable = `CREATE TABLE IF NOT EXISTS schema_version (
	version VARCHAR(32) PRIMARY KEY,
	applied_at DATETIME NOT NULL
)`

// execWithRetry retries a statement while the database is still starting.
func execWithRetry(ctx context.Context, db *sql.DB, retries int, query string) error {
	_, err := db.ExecContext(ctx, query)
	for i := 0; err != nil && i < retries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
		_, err = db.ExecContext(ctx, query)
	}
	return err
}

// Migrate applies every migration newer than the ones recorded in
// schema_version, each in its own transaction.
func Migrate(ctx context.Context, db *sql.DB, dialect repository.Dialect, retries int) error {
	if err := execWithRetry(ctx, db, retries, versionTable); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	pending, err := sortedMigrations()
	if err != nil {
		return err
	}

	for _, m := range pending {
		if applied[m.Version] {
			continue
		}
		if err := apply(ctx, db, dialect, m); err != nil {
			return fmt.Errorf("migration %s: %w", m.Version, err)
		}
	}
	return nil
}

// CurrentVersion returns the highest applied schema version, or "" when the
// schema is empty.
func CurrentVersion(ctx context.Context, db *sql.DB) (string, error) {
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return "", err
	}
	var current *semver.Version
	for v := range applied {
		parsed, err := semver.NewVersion(v)
		if err != nil {
			return "", err
		}
		if current == nil || parsed.GreaterThan(current) {
			current = parsed
		}
	}
	if current == nil {
		return "", nil
	}
	return current.Original(), nil
}

func sortedMigrations() ([]Migration, error) {
	for _, m := range AllMigrations {
		if _, err := semver.NewVersion(m.Version); err != nil {
			return nil, fmt.Errorf("invalid migration version %q: %w", m.Version, err)
		}
	}
	sorted := make([]Migration, len(AllMigrations))
	copy(sorted, AllMigrations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return semver.MustParse(sorted[i].Version).LessThan(semver.MustParse(sorted[j].Version))
	})
	return sorted, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, fmt.Errorf("read schema_version: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, dialect repository.Dialect, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, stmt := range m.statements(dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`, m.Version, time.Now().UTC())
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
