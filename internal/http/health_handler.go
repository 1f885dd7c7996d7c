package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/roombook/internal/persistence"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RoomLister reports the rooms in the directory; readiness needs at least one.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]persistence.Room, error)
}

type HealthHandler struct {
	store     Pinger
	rooms     RoomLister
	timeout   time.Duration
	responder responder
}

func NewHealthHandler(store Pinger, rooms RoomLister, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, rooms: rooms, timeout: 2 * time.Second, responder: newResponder(logger)}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.store == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.responder.loggerFor(r.Context()).WarnContext(r.Context(), "store ping failed", "error", err)
		h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// Ready answers 200 once the store is reachable and rooms have been seeded or
// imported, 503 otherwise.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.store == nil || h.rooms == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := readinessResponse{Status: "ready", DB: "ok", Seed: "ok"}
	if err := h.store.Ping(ctx); err != nil {
		h.responder.loggerFor(r.Context()).WarnContext(r.Context(), "store ping failed", "error", err)
		resp.DB = "down"
		resp.Seed = "pending"
	} else if rooms, err := h.rooms.ListRooms(ctx); err != nil || len(rooms) == 0 {
		if err != nil {
			h.responder.loggerFor(r.Context()).WarnContext(r.Context(), "room listing failed", "error", err)
		}
		resp.Seed = "pending"
	}

	status := http.StatusOK
	if resp.DB != "ok" || resp.Seed != "ok" {
		resp.Status = "not-ready"
		status = http.StatusServiceUnavailable
	}
	h.responder.writeJSON(r.Context(), w, status, resp)
}

type readinessResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
	Seed   string `json:"seed"`
}
