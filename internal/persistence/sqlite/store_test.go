package sqlite_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/persistence/sqlite"
	"github.com/example/roombook/internal/persistence/storetest"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()

	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "roombook.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := store.Migrate(ctx, nil); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.Store {
		return openStore(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	version, err := store.Migrate(ctx, nil)
	if err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected schema version 1, got %d", version)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "roombook.db")

	first, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := first.Migrate(ctx, nil); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	room, err := first.CreateRoom(ctx, persistence.Room{Building: "Library", RoomNumber: "B1", Capacity: 12})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	fetched, err := second.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom after reopen failed: %v", err)
	}
	if fetched.Building != "Library" || fetched.Capacity != 12 {
		t.Fatalf("unexpected room after reopen: %+v", fetched)
	}
}

func TestNormalizeDSN(t *testing.T) {
	t.Run("adds defaults to a bare path", func(t *testing.T) {
		dsn := sqlite.NormalizeDSN("data/roombook.db")
		for _, want := range []string{"file:data/roombook.db?", "_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)", "_txlock=immediate"} {
			if !strings.Contains(dsn, want) {
				t.Fatalf("expected %q in %q", want, dsn)
			}
		}
	})

	t.Run("keeps explicit parameters", func(t *testing.T) {
		dsn := sqlite.NormalizeDSN("file:x.db?_txlock=exclusive")
		if strings.Contains(dsn, "_txlock=immediate") {
			t.Fatalf("explicit _txlock overridden: %q", dsn)
		}
		if !strings.Contains(dsn, "&_pragma=foreign_keys(1)") {
			t.Fatalf("expected foreign keys pragma appended: %q", dsn)
		}
	})
}
