package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/persistence/memory"
	"github.com/example/roombook/internal/persistence/sqlite"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults. Logs are
// discarded unless a logger is supplied.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("audit"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithLogger overrides the logger handed to services.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// Services bundles every application service over one store.
type Services struct {
	Store        persistence.Store
	Audit        *application.StoreAuditEmitter
	Rooms        *application.RoomService
	Requesters   *application.RequesterService
	Reservations *application.ReservationService
	AuditLog     *application.AuditService

	// Admin is a bootstrapped administrator usable as the acting requester.
	Admin application.Actor
}

// Build wires the services over store and bootstraps an "admin" requester.
func (f *ServiceFactory) Build(tb testing.TB, store persistence.Store) *Services {
	tb.Helper()

	now := f.Clock.NowFunc()
	audit := application.NewStoreAuditEmitterWithIDs(store, now, f.IDGenerator.NextFunc())
	svc := &Services{
		Store:        store,
		Audit:        audit,
		Rooms:        application.NewRoomServiceWithLogger(store, audit, now, f.Logger),
		Requesters:   application.NewRequesterService(store, audit, now, f.Logger),
		Reservations: application.NewReservationService(store, store, store, audit, now, f.Logger),
		AuditLog:     application.NewAuditService(store, f.Logger),
	}

	admin, err := svc.Requesters.EnsureRequester(context.Background(), application.RequesterInput{
		Username: "admin",
		Role:     application.RoleAdmin,
	})
	if err != nil {
		tb.Fatalf("bootstrap admin: %v", err)
	}
	svc.Admin = application.ActorFromRequester(admin)
	return svc
}

// NewMemoryServices builds services over a fresh in-memory store.
func (f *ServiceFactory) NewMemoryServices(tb testing.TB) *Services {
	tb.Helper()
	return f.Build(tb, memory.New())
}

// NewSQLiteServices builds services over a migrated SQLite database in a
// temporary directory.
func (f *ServiceFactory) NewSQLiteServices(tb testing.TB) *Services {
	tb.Helper()
	return f.Build(tb, NewSQLiteStore(tb))
}

// NewSQLiteStore opens and migrates a SQLite store in a temporary directory.
// The store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(tb.TempDir(), "roombook.db"))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if _, err := store.Migrate(ctx, nil); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return store
}

// MustRoom creates a room through the room service as the admin.
func (s *Services) MustRoom(tb testing.TB, opts ...RoomOption) persistence.Room {
	tb.Helper()
	room, err := s.Rooms.CreateRoom(context.Background(), s.Admin, NewRoomFixture(opts...).Input())
	if err != nil {
		tb.Fatalf("create room: %v", err)
	}
	return room
}

// MustRequester creates a requester through the requester service as the admin.
func (s *Services) MustRequester(tb testing.TB, opts ...RequesterOption) application.Actor {
	tb.Helper()
	requester, err := s.Requesters.CreateRequester(context.Background(), s.Admin, NewRequesterFixture(opts...).Input())
	if err != nil {
		tb.Fatalf("create requester: %v", err)
	}
	return application.ActorFromRequester(requester)
}
