package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect renders bind parameters for the SQL backend in use.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// ParseDialect maps a store driver name to its Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "postgres":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// Placeholder renders the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

// placeholders returns count bind parameters numbered from start.
func (d Dialect) placeholders(start, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = d.Placeholder(start + i)
	}
	return strings.Join(parts, ", ")
}

// schema is portable between PostgreSQL and SQLite. The tables are owned by
// the ingestion subsystem; the search service only reads them.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS texts (
		id   BIGINT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS readings (
		id      BIGINT PRIMARY KEY,
		value   TEXT NOT NULL,
		sign_id BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS readings_value_idx ON readings (value)`,
	`CREATE INDEX IF NOT EXISTS readings_sign_idx ON readings (sign_id)`,
	`CREATE TABLE IF NOT EXISTS sign_occurrences (
		text_id      BIGINT NOT NULL REFERENCES texts (id),
		position     INTEGER NOT NULL,
		side         TEXT NOT NULL DEFAULT '',
		line         INTEGER NOT NULL,
		discourse_id BIGINT,
		reading_id   BIGINT NOT NULL,
		markup       INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (text_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS sign_occurrences_reading_idx ON sign_occurrences (reading_id, text_id)`,
	`CREATE TABLE IF NOT EXISTS restricted_texts (
		text_id BIGINT PRIMARY KEY REFERENCES texts (id)
	)`,
	`CREATE TABLE IF NOT EXISTS text_grants (
		text_id   BIGINT NOT NULL REFERENCES texts (id),
		caller_id TEXT NOT NULL,
		PRIMARY KEY (text_id, caller_id)
	)`,
}

// Migrate creates the corpus tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying corpus schema: %w", err)
		}
	}
	return nil
}
