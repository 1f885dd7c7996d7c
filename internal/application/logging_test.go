package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/roombook/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewTextHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	serviceLogger(ctx, baseLogger, "RoomService", "CreateRoom", "room_id", 7).Info("hello")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to be bypassed, got %q", base.String())
	}
	out := scoped.String()
	for _, want := range []string{"service=RoomService", "operation=CreateRoom", "room_id=7"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	vErr := &ValidationError{}
	vErr.add(ErrInvalidCapacity, "capacity", "bad")

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrConflict, "conflict"},
		{fmt.Errorf("%w: start must be before end", ErrInvalidWindow), "invalid_window"},
		{&ImportError{Row: 3, Err: ErrRoomAlreadyExists}, "room_already_exists"},
		{vErr, "invalid_capacity"},
		{&ValidationError{}, "validation"},
		{io.EOF, "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
