// Package store persists batch tabular results to Postgres. The store
// is optional: the pipeline runs fully file-backed without it.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema for the results table:
//
//	CREATE TABLE IF NOT EXISTS edgar_batch_results (
//	  batch_id     UUID NOT NULL,
//	  operation    TEXT NOT NULL,
//	  accession    TEXT NOT NULL,
//	  cik          BIGINT NOT NULL,
//	  company_name TEXT,
//	  form_type    TEXT,
//	  date_filed   DATE,
//	  status       TEXT,
//	  row_json     JSONB,
//	  created_at   TIMESTAMPTZ DEFAULT now(),
//	  PRIMARY KEY (operation, accession)
//	);

// DB wraps the connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Open creates a connection pool from a database URL.
func Open(ctx context.Context, dbURL string) (*DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("store: database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close releases the pool.
func (d *DB) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}
