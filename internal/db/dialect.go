package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the differences between the supported SQL engines that
// the repository cares about.
type Dialect struct {
	// Name is the configuration name (sqlite, sqlite3, postgres, mysql).
	Name string
	// DriverName is the database/sql driver registered for the engine.
	DriverName string
	// Numbered placeholders ($1, $2) instead of '?'.
	Numbered bool
	// SingleWriter engines are opened with one connection.
	SingleWriter bool
}

var dialects = map[string]Dialect{
	"sqlite":   {Name: "sqlite", DriverName: "sqlite", SingleWriter: true},
	"sqlite3":  {Name: "sqlite3", DriverName: "sqlite3", SingleWriter: true},
	"postgres": {Name: "postgres", DriverName: "postgres", Numbered: true},
	"mysql":    {Name: "mysql", DriverName: "mysql"},
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported database driver: %q", name)
	}
	return d, nil
}

// Rebind rewrites '?' placeholders for engines that number them.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	idx := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(idx))
			idx++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ForUpdate returns the row-lock suffix for a SELECT inside a transaction.
// Single-writer engines serialize transactions already and have no such clause.
func (d Dialect) ForUpdate() string {
	if d.SingleWriter {
		return ""
	}
	return " FOR UPDATE"
}

// InsertIgnore builds an INSERT of n values into table that silently skips
// rows hitting a unique key. The statement never fails on a duplicate, so a
// surrounding postgres transaction is not aborted.
func (d Dialect) InsertIgnore(table, columns string, n int) string {
	values := "(" + Placeholders(n) + ")"
	if d.Name == "mysql" {
		return "INSERT IGNORE INTO " + table + " (" + columns + ") VALUES " + values
	}
	return "INSERT INTO " + table + " (" + columns + ") VALUES " + values + " ON CONFLICT DO NOTHING"
}

// Placeholders returns n comma-separated '?' markers for an IN list.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
