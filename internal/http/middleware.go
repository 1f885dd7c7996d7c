package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/persistence"
)

// ActorHeader names the requester on whose behalf a request runs.
const ActorHeader = "X-Requester"

// RequestIDHeader echoes the id assigned to each request.
const RequestIDHeader = "X-Request-ID"

// ActorResolver maps a username to a requester.
type ActorResolver interface {
	ResolveUsername(ctx context.Context, username string) (persistence.Requester, error)
}

// ResolveActor attaches the requester named by the X-Requester header to the
// request context. Requests without the header pass through without an actor;
// handlers that need one answer 401. An unknown username is rejected with 401.
func ResolveActor(resolver ActorResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := strings.TrimSpace(r.Header.Get(ActorHeader))
			if username == "" {
				next.ServeHTTP(w, r)
				return
			}

			requester, err := resolver.ResolveUsername(r.Context(), username)
			if err != nil {
				switch {
				case errors.Is(err, application.ErrRequesterNotFound):
					responder.writeError(r.Context(), w, http.StatusUnauthorized, errUnknownActor)
				default:
					responder.handleServiceError(r.Context(), w, err)
				}
				return
			}

			ctx := ContextWithActor(r.Context(), application.ActorFromRequester(requester))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger assigns each request a UUID and a scoped logger.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}
