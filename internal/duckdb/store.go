// Package duckdb keeps a manifest of conversion runs in DuckDB.
// Each run records the input fingerprint, output prefix and summary counts,
// with per-chromosome variant totals in a side table.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for the run manifest.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create manifest directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS run_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS conversion_runs (
			id BIGINT PRIMARY KEY DEFAULT nextval('run_id_seq'),
			input_path VARCHAR,
			input_size BIGINT,
			input_modtime_ns BIGINT,
			output_prefix VARCHAR,
			sample_id VARCHAR,
			lines_read BIGINT,
			variants BIGINT,
			dropped BIGINT,
			missing_calls BIGINT,
			het_calls BIGINT,
			duration_ms BIGINT,
			converted_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS run_chromosomes (
			run_id BIGINT,
			chrom INTEGER,
			variants BIGINT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
