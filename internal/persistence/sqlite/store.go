package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/persistence/migrate"
	"github.com/example/roombook/internal/persistence/roomlock"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store implements persistence.Store on a SQLite database.
type Store struct {
	*RoomRepository
	*RequesterRepository
	*ReservationRepository
	*AuditRepository

	pool *ConnectionPool
}

var _ persistence.Store = (*Store)(nil)

// Open connects to the database described by dsn. Call Migrate before use on
// a fresh database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := NewConnectionPool(ctx, dsn)
	if err != nil {
		return nil, err
	}

	locks := roomlock.New()
	return &Store{
		RoomRepository:        NewRoomRepository(pool, locks),
		RequesterRepository:   NewRequesterRepository(pool),
		ReservationRepository: NewReservationRepository(pool, locks),
		AuditRepository:       NewAuditRepository(pool),
		pool:                  pool,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) (int64, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load sqlite migrations: %w", err)
	}
	return migrate.Up(ctx, s.pool.DB(), goose.DialectSQLite3, sub, logger)
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
