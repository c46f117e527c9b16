package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements database.Store using PostgreSQL. Every query is scoped
// to the namespace the store was created with.
type Store struct {
	pool *pgxpool.Pool
	ns   string
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool, namespace string) *Store {
	return &Store{pool: pool, ns: namespace}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
