package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/roombook/internal/application"
)

var (
	errBadRequestBody     = errors.New("invalid request body")
	errInvalidRoomID      = errors.New("invalid room id")
	errInvalidReservation = errors.New("invalid reservation id")
	errInvalidRequesterID = errors.New("invalid requester id")
	errInvalidScope       = errors.New("when must be past or future")
	errInvalidDay         = errors.New("day must be formatted as YYYY-MM-DD")
	errInvertedWindow     = fmt.Errorf("%w: start must be before end", application.ErrInvalidWindow)
	errImportTooLarge     = fmt.Errorf("room import must not exceed %d bytes", maxImportBytes)
	errMissingActor       = errors.New("X-Requester header is required")
	errUnknownActor       = errors.New("X-Requester does not name a known requester")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps the application taxonomy onto HTTP statuses.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status := statusFor(err)
	resp := errorResponse{ErrorCode: application.ErrorKind(err), Message: err.Error()}
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		resp.Message = http.StatusText(status)
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) && vErr.HasErrors() {
		resp.Errors = vErr.FieldErrors
	}

	r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err, "error_kind", resp.ErrorCode)
	r.writeJSON(ctx, w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrConflict),
		errors.Is(err, application.ErrRoomAlreadyExists),
		errors.Is(err, application.ErrRequesterAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, application.ErrRoomNotFound),
		errors.Is(err, application.ErrRequesterNotFound),
		errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrInvalidWindow),
		errors.Is(err, application.ErrInvalidPartySize),
		errors.Is(err, application.ErrCapacityExceeded),
		errors.Is(err, application.ErrInvalidCapacity),
		errors.Is(err, application.ErrInvalidLocation),
		errors.Is(err, application.ErrInvalidRequester),
		errors.Is(err, application.ErrMalformedImport):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, application.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
