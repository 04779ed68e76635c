// Package dbtest provides migrated in-memory databases for tests.
package dbtest

import (
	"testing"

	"github.com/kimhsiao/homeinv/backend/internal/db"
)

// Open returns a migrated in-memory SQLite database closed at test cleanup.
func Open(t testing.TB) *db.DB {
	t.Helper()
	dialect, err := db.DialectFor("sqlite")
	if err != nil {
		t.Fatalf("sqlite dialect: %v", err)
	}
	conn, err := db.OpenDSN(dialect, ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return conn
}

// NewRepository returns a repository over a fresh test database.
func NewRepository(t testing.TB) *db.Repository {
	t.Helper()
	return db.NewRepository(Open(t))
}
