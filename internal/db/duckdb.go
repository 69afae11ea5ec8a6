// Package db holds the DuckDB layer catalog.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	// DataDir is the parent of the duckdb/ directory. Empty opens an
	// in-memory database.
	DataDir string
	DBName  string
}

// Path returns the database file path, or "" for an in-memory database.
func (c Config) Path() string {
	if c.DataDir == "" {
		return ""
	}
	name := c.DBName
	if name == "" {
		name = "webmap"
	}
	return filepath.Join(c.DataDir, "duckdb", name+".duckdb")
}

// Open opens the DuckDB database described by cfg.
func Open(cfg Config) (*sql.DB, error) {
	path := cfg.Path()
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening duckdb %q: %w", path, err)
	}
	return conn, nil
}

// lockdown turns off DuckDB's access to anything outside the database
// (files, URLs, extensions, ATTACH) and then freezes the configuration so
// a query cannot turn it back on. Both settings are database wide.
var lockdown = []string{
	"SET enable_external_access = false",
	"SET lock_configuration = true",
}

// Lock applies the lockdown settings to conn. Run it after the catalog is
// synced and before conn serves user queries.
func Lock(ctx context.Context, conn *sql.DB) error {
	for _, stmt := range lockdown {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}
