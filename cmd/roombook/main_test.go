package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/config"
	httptransport "github.com/example/roombook/internal/http"
	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/persistence/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	opts, err := parseFlags([]string{"--env-file", "a.env", "--env-file=b.env", "--import-rooms", "rooms.csv", "--migrate-only"})
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if len(opts.envFiles) != 2 || opts.envFiles[1] != "b.env" || opts.importRooms != "rooms.csv" || !opts.migrateOnly {
		t.Fatalf("unexpected options %+v", opts)
	}

	if _, err := parseFlags([]string{"serve"}); err == nil {
		t.Fatalf("expected positional arguments to be rejected")
	}
	if _, err := parseFlags([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
}

func TestNewAppBootstrapsAdministrator(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	first, err := newApp(ctx, store, "root", time.Now, discardLogger())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	if !first.admin.IsAdmin() || first.admin.Name != "root" {
		t.Fatalf("unexpected admin %+v", first.admin)
	}

	second, err := newApp(ctx, store, "root", time.Now, discardLogger())
	if err != nil {
		t.Fatalf("newApp failed on restart: %v", err)
	}
	if second.admin.ID != first.admin.ID {
		t.Fatalf("expected the same administrator, got %d and %d", first.admin.ID, second.admin.ID)
	}

	if _, err := second.requesters.CreateRequester(ctx, second.admin, application.RequesterInput{Username: "plain"}); err != nil {
		t.Fatalf("CreateRequester failed: %v", err)
	}
	if _, err := newApp(ctx, store, "plain", time.Now, discardLogger()); err == nil {
		t.Fatalf("expected a non-admin bootstrap account to be rejected")
	}
}

func TestAppHandlerServesHealthAndRooms(t *testing.T) {
	a, err := newApp(context.Background(), memory.New(), "admin", time.Now, discardLogger())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	handler := a.handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthy store, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/rooms", nil)
	req.Header.Set(httptransport.ActorHeader, "admin")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected admin to clear rooms, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestImportRooms(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, memory.New(), "admin", time.Now, discardLogger())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "rooms.csv")
	if err := os.WriteFile(path, []byte("Room,Capacity,AV Equipment\nScience 101,30,projector\nArts 2,12,\n"), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	if err := a.importRooms(ctx, path); err != nil {
		t.Fatalf("importRooms failed: %v", err)
	}
	rooms, err := a.rooms.ListRooms(ctx)
	if err != nil || len(rooms) != 2 {
		t.Fatalf("expected two rooms, got %d err=%v", len(rooms), err)
	}

	if err := a.importRooms(ctx, filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("expected a missing file to fail")
	}
}

func TestOpenStoreMigratesSQLite(t *testing.T) {
	cfg := config.Config{Store: config.StoreSQLite, SQLiteDSN: filepath.Join(t.TempDir(), "roombook.db")}

	store, err := openStore(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if _, err := store.ListRooms(context.Background(), persistence.RoomFilter{}); err != nil {
		t.Fatalf("expected migrated schema, got %v", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- serve(ctx, server, time.Second, discardLogger()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return after cancellation")
	}
}
