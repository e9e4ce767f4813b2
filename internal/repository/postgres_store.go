package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting the same
// repositories run against the pool or inside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL with pgxpool
type PostgresStore struct {
	pool    *pgxpool.Pool // nil when this store wraps an open transaction
	spaces  *PostgresSpaceRepository
	tickets *PostgresTicketRepository
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		spaces:  &PostgresSpaceRepository{db: pool},
		tickets: &PostgresTicketRepository{db: pool},
	}
}

// Spaces returns the space repository
func (s *PostgresStore) Spaces() SpaceRepository {
	return s.spaces
}

// Tickets returns the ticket repository
func (s *PostgresStore) Tickets() TicketRepository {
	return s.tickets
}

// WithinTx runs fn inside a single database transaction. A store that is
// already transaction-scoped reuses the open transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.pool == nil {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	txStore := &PostgresStore{
		spaces:  &PostgresSpaceRepository{db: tx},
		tickets: &PostgresTicketRepository{db: tx},
	}

	if err := fn(ctx, txStore); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
