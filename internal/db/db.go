// Package db provides database connection management and persistence for
// nodes, items, lending records and reminders.
package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/kimhsiao/homeinv/backend/internal/config"
)

// DatabaseFile is the SQLite file created inside the data directory.
const DatabaseFile = "homeinv.db"

// DB wraps sql.DB with the dialect of the driver it was opened with.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open opens the database selected by cfg. SQLite databases are opened with:
// - WAL mode for concurrent reads/writes
// - Foreign key constraints enabled
// - a single connection, since SQLite has one writer
func Open(cfg config.DatabaseConfig) (*DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	db, err := OpenDSN(dialect, dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpen > 0 && !dialect.SingleWriter {
		db.SetMaxOpenConns(cfg.MaxOpen)
	}
	return db, nil
}

// OpenDSN opens a database for dialect using a ready-made DSN.
func OpenDSN(dialect Dialect, dsn string) (*DB, error) {
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect.SingleWriter {
		db.SetMaxOpenConns(1) // SQLite doesn't support multiple writers
		db.SetMaxIdleConns(1)

		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect.Name, err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// dataSourceName builds the driver DSN from structured config when no
// explicit DSN is given.
func dataSourceName(cfg config.DatabaseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	switch cfg.Driver {
	case "sqlite", "sqlite3":
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create data directory: %w", err)
		}
		return filepath.Join(cfg.DataDir, DatabaseFile), nil
	case "postgres":
		p := cfg.Postgres
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(p.User, p.Password),
			Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
			Path:     "/" + p.DBName,
			RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
		}
		return u.String(), nil
	case "mysql":
		m := cfg.MySQL
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", m.User, m.Password, m.Host, m.Port, m.DBName), nil
	default:
		return "", fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
