// Package store owns the relational store connection, the schema bootstrap,
// and the retry helper each engine uses. The pool-singleton shape is grounded on
// agentic_valuation's pkg/core/store/db.go.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgxpool.Pool. Unlike the teacher's package-level singleton,
// it is an explicit value so tests can construct one against a disposable
// database without a process-global.
type Store struct {
	Pool *pgxpool.Pool
}

// Open parses dbURL and establishes a connection pool.
func Open(ctx context.Context, dbURL string) (*Store, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("store: database_url not configured")
	}

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}

	return &Store{Pool: pool}, nil
}

// Close releases the pool's connections.
func (s *Store) Close() {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
}
