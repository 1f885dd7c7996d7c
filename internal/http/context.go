package http

import (
	"context"
	"log/slog"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/logging"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ContextWithActor returns a derived context containing the acting requester.
func ContextWithActor(ctx context.Context, actor application.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext extracts the acting requester from context if available.
func ActorFromContext(ctx context.Context) (application.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(application.Actor)
	return actor, ok
}

// ContextWithLogger attaches a request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
