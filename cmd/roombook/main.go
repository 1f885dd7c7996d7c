package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/config"
	httptransport "github.com/example/roombook/internal/http"
	"github.com/example/roombook/internal/logging"
	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/persistence/memory"
	"github.com/example/roombook/internal/persistence/postgres"
	"github.com/example/roombook/internal/persistence/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	envFiles    []string
	importRooms string
	migrateOnly bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("roombook", pflag.ContinueOnError)
	flagSet.StringArrayVar(&opts.envFiles, "env-file", nil, "load environment variables from this file (repeatable; existing variables win)")
	flagSet.StringVar(&opts.importRooms, "import-rooms", "", "import rooms from a CSV file and exit")
	flagSet.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply database migrations and exit")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.envFiles...)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, syncLogger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = syncLogger() }()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if opts.migrateOnly {
		logger.Info("migrations applied; exiting", "store", cfg.Store)
		return nil
	}

	app, err := newApp(ctx, store, cfg.BootstrapAdmin, time.Now, logger)
	if err != nil {
		return err
	}

	if opts.importRooms != "" {
		return app.importRooms(ctx, opts.importRooms)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return serve(ctx, server, cfg.ShutdownTimeout, logger)
}

// serve runs server until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("roombook API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		logger.Info("roombook API stopped")
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if _, err := store.Migrate(ctx, logger); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres store: %w", err)
		}
		return store, nil
	default:
		store, err := sqlite.Open(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		if _, err := store.Migrate(ctx, logger); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate sqlite store: %w", err)
		}
		return store, nil
	}
}

type app struct {
	store        persistence.Store
	admin        application.Actor
	rooms        *application.RoomService
	requesters   *application.RequesterService
	reservations *application.ReservationService
	audit        *application.AuditService
	logger       *slog.Logger
}

// newApp wires the services over store and ensures the bootstrap administrator exists.
func newApp(ctx context.Context, store persistence.Store, adminUsername string, now func() time.Time, logger *slog.Logger) (*app, error) {
	emitter := application.NewStoreAuditEmitter(store, now)
	a := &app{
		store:        store,
		rooms:        application.NewRoomServiceWithLogger(store, emitter, now, logger),
		requesters:   application.NewRequesterService(store, emitter, now, logger),
		reservations: application.NewReservationService(store, store, store, emitter, now, logger),
		audit:        application.NewAuditService(store, logger),
		logger:       logger,
	}

	admin, err := a.requesters.EnsureRequester(ctx, application.RequesterInput{
		Username: adminUsername,
		Role:     application.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap administrator %q: %w", adminUsername, err)
	}
	if application.Role(admin.Role) != application.RoleAdmin {
		return nil, fmt.Errorf("bootstrap administrator %q exists with role %q", adminUsername, admin.Role)
	}
	a.admin = application.ActorFromRequester(admin)
	return a, nil
}

func (a *app) handler() http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Rooms:        httptransport.NewRoomHandler(a.rooms, a.logger),
		Reservations: httptransport.NewReservationHandler(a.reservations, a.rooms, a.requesters, a.logger),
		Requesters:   httptransport.NewRequesterHandler(a.requesters, a.logger),
		Audit:        httptransport.NewAuditHandler(a.audit, a.logger),
		Health:       httptransport.NewHealthHandler(a.store, a.rooms, a.logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(a.logger),
			httptransport.ResolveActor(a.requesters, a.logger),
		},
	})
}

func (a *app) importRooms(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open room import: %w", err)
	}
	defer f.Close()

	created, err := a.rooms.ImportRooms(ctx, a.admin, f)
	if err != nil {
		return fmt.Errorf("import rooms from %s: %w", path, err)
	}
	a.logger.Info("rooms imported", "path", path, "count", len(created))
	return nil
}
