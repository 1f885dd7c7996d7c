package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no logger on a bare context")
	}

	logger := slog.Default()
	ctx := ContextWithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("expected stored logger to be returned")
	}

	if got := ContextWithLogger(ctx, nil); got != ctx {
		t.Fatalf("expected nil logger to leave context unchanged")
	}
}

func TestScopedPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	fallback := slog.New(slog.NewTextHandler(&base, nil))
	ctx := ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	Scoped(ctx, fallback, "handler", "RoomHandler", "Create", "room_id", 3).Info("created")
	Scoped(context.Background(), fallback, "service", "RoomService", "").Info("listed")

	if !strings.Contains(scoped.String(), "handler=RoomHandler operation=Create room_id=3") {
		t.Fatalf("unexpected scoped output %q", scoped.String())
	}
	if !strings.Contains(base.String(), "service=RoomService") || strings.Contains(base.String(), "operation=") {
		t.Fatalf("unexpected fallback output %q", base.String())
	}
}

func TestZapConfig(t *testing.T) {
	t.Parallel()

	prod, err := zapConfig("Production", "warn")
	if err != nil {
		t.Fatalf("zapConfig failed: %v", err)
	}
	if prod.Encoding != "json" {
		t.Fatalf("expected json encoding in production, got %q", prod.Encoding)
	}
	if prod.Level.Level() != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %v", prod.Level.Level())
	}

	dev, err := zapConfig("development", "")
	if err != nil {
		t.Fatalf("zapConfig failed: %v", err)
	}
	if dev.Encoding != "console" || !dev.Development {
		t.Fatalf("expected development console config, got %+v", dev)
	}

	if _, err := zapConfig("development", "loud"); err == nil {
		t.Fatalf("expected unknown level to be rejected")
	}
}

func TestFromZapForwardsAttributes(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	logger := FromZap(zap.New(core))

	logger.Debug("hidden")
	logger.With("service", "ReservationService").Info("reservation created", "reservation_id", int64(7))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry above debug, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if entries[0].Message != "reservation created" || fields["service"] != "ReservationService" || fields["reservation_id"] != int64(7) {
		t.Fatalf("unexpected entry %+v fields=%v", entries[0].Entry, fields)
	}
}
