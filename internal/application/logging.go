package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/roombook/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.OrDefault(logger)
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, base, "service", serviceName, operation, attrs...)
}

// ErrorKind maps taxonomy errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, ErrInvalidPartySize):
		return "invalid_party_size"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRequesterNotFound):
		return "requester_not_found"
	case errors.Is(err, ErrRoomAlreadyExists):
		return "room_already_exists"
	case errors.Is(err, ErrRequesterAlreadyExists):
		return "requester_already_exists"
	case errors.Is(err, ErrInvalidCapacity):
		return "invalid_capacity"
	case errors.Is(err, ErrInvalidLocation):
		return "invalid_location"
	case errors.Is(err, ErrInvalidRequester):
		return "invalid_requester"
	case errors.Is(err, ErrMalformedImport):
		return "malformed_import"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
