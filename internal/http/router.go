package http

import (
	"net/http"
)

type RouterConfig struct {
	Rooms        *RoomHandler
	Reservations *ReservationHandler
	Requesters   *RequesterHandler
	Audit        *AuditHandler
	Health       *HealthHandler
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Rooms != nil {
		mux.HandleFunc("GET /rooms", cfg.Rooms.List)
		mux.HandleFunc("POST /rooms", cfg.Rooms.Create)
		mux.HandleFunc("DELETE /rooms", cfg.Rooms.DeleteAll)
		mux.HandleFunc("POST /rooms/import", cfg.Rooms.Import)
		mux.HandleFunc("GET /rooms/{id}", cfg.Rooms.Get)
		mux.HandleFunc("PATCH /rooms/{id}", cfg.Rooms.Update)
		mux.HandleFunc("DELETE /rooms/{id}", cfg.Rooms.Delete)
		mux.HandleFunc("GET /rooms/{building}/{number}", cfg.Rooms.GetByLocation)
	}

	if cfg.Reservations != nil {
		mux.HandleFunc("POST /rooms/{building}/{number}/reservations", cfg.Reservations.Reserve)
		mux.HandleFunc("GET /availability", cfg.Reservations.Availability)
		mux.HandleFunc("GET /reservations", cfg.Reservations.List)
		mux.HandleFunc("DELETE /reservations", cfg.Reservations.DeleteAll)
		mux.HandleFunc("GET /reservations/{id}", cfg.Reservations.Get)
		mux.HandleFunc("PUT /reservations/{id}", cfg.Reservations.Update)
		mux.HandleFunc("DELETE /reservations/{id}", cfg.Reservations.Delete)
	}

	if cfg.Requesters != nil {
		mux.HandleFunc("GET /requesters", cfg.Requesters.List)
		mux.HandleFunc("POST /requesters", cfg.Requesters.Create)
		mux.HandleFunc("GET /requesters/{username}", cfg.Requesters.Get)
		mux.HandleFunc("DELETE /requesters/{id}", cfg.Requesters.Delete)
	}

	if cfg.Audit != nil {
		mux.HandleFunc("GET /audit", cfg.Audit.List)
	}

	if cfg.Health != nil {
		mux.HandleFunc("GET /healthz", cfg.Health.Check)
		mux.HandleFunc("GET /readyz", cfg.Health.Ready)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
