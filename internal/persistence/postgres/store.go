// Package postgres implements persistence.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/persistence/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store implements persistence.Store over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ persistence.Store = (*Store)(nil)

// Open creates a pool for dsn and verifies the server is reachable.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate applies the embedded schema migrations through a database/sql
// handle borrowed from the pool.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) (int64, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load postgres migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	return migrate.Up(ctx, db, goose.DialectPostgres, sub, logger)
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// mapError translates pgx and server errors into persistence sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", persistence.ErrDuplicate, pgErr.ConstraintName)
	case "23503":
		return fmt.Errorf("%w: %s", persistence.ErrForeignKeyViolation, pgErr.ConstraintName)
	case "23514", "23502", "22003":
		return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, pgErr.ConstraintName)
	case "23P01", "40001":
		return persistence.ErrConflict
	}
	return err
}
