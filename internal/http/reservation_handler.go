package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/logging"
	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/scheduler"
)

type reservationService interface {
	TryReserve(ctx context.Context, actor application.Actor, req application.ReserveRequest) (persistence.Reservation, error)
	UpdateReservation(ctx context.Context, actor application.Actor, id int64, patch application.ReservationPatch) (persistence.Reservation, error)
	DeleteReservation(ctx context.Context, actor application.Actor, id int64) (bool, error)
	DeleteAllReservations(ctx context.Context, actor application.Actor) (int64, error)
	FindAvailable(ctx context.Context, window scheduler.Window, minCapacity int) ([]persistence.Room, error)
	GetReservation(ctx context.Context, id int64) (persistence.Reservation, error)
	ListByRoom(ctx context.Context, roomID int64) ([]persistence.Reservation, error)
	ListByRequester(ctx context.Context, requesterID int64, scope application.TimeScope) ([]persistence.Reservation, error)
	ListByDay(ctx context.Context, day time.Time) ([]persistence.Reservation, error)
	ListAll(ctx context.Context) ([]persistence.Reservation, error)
}

type roomLocator interface {
	FindByLocation(ctx context.Context, building, roomNumber string) (persistence.Room, error)
}

type ReservationHandler struct {
	service    reservationService
	rooms      roomLocator
	requesters ActorResolver
	responder  responder
	logger     *slog.Logger
}

func NewReservationHandler(service reservationService, rooms roomLocator, requesters ActorResolver, logger *slog.Logger) *ReservationHandler {
	base := logging.OrDefault(logger)
	return &ReservationHandler{service: service, rooms: rooms, requesters: requesters, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return logging.Scoped(ctx, h.logger, "handler", "ReservationHandler", operation, attrs...)
}

// Reserve books the room addressed by building and room number. The body may
// name another requester; otherwise the reservation is held by the actor.
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.rooms == nil || h.requesters == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	var req reserveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Reserve", "actor_id", actor.ID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	start, err := parseTimestamp("start", req.Start)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	end, err := parseTimestamp("end", req.End)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	room, err := h.rooms.FindByLocation(r.Context(), r.PathValue("building"), r.PathValue("number"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	requesterID := actor.ID
	if name := strings.TrimSpace(req.Requester); name != "" {
		requester, err := h.requesters.ResolveUsername(r.Context(), name)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		requesterID = requester.ID
	}

	res, err := h.service.TryReserve(r.Context(), actor, application.ReserveRequest{
		RoomID:      room.ID,
		RequesterID: requesterID,
		Window:      scheduler.Window{Start: start, End: end},
		PartySize:   req.PartySize,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Reserve", "actor_id", actor.ID).With("reservation_id", res.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(res)})
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservation)
		return
	}

	res, err := h.service.GetReservation(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(res)})
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservation)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	var req reservationPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	res, err := h.service.UpdateReservation(r.Context(), actor, id, patch)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Update", "actor_id", actor.ID, "reservation_id", id).InfoContext(r.Context(), "reservation updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(res)})
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservation)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	removed, err := h.service.DeleteReservation(r.Context(), actor, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !removed {
		h.responder.handleServiceError(r.Context(), w, application.ErrNotFound)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ReservationHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	count, err := h.service.DeleteAllReservations(r.Context(), actor)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, deletedResponse{Deleted: count})
}

// List selects reservations by room_id, requester (username, optionally with
// when=past|future) or day (YYYY-MM-DD, UTC). Without filters it lists all.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.requesters == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	var (
		out []persistence.Reservation
		err error
	)
	switch {
	case query.Get("room_id") != "":
		roomID, parseErr := strconv.ParseInt(query.Get("room_id"), 10, 64)
		if parseErr != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
			return
		}
		out, err = h.service.ListByRoom(r.Context(), roomID)
	case query.Get("requester") != "":
		scope := application.TimeScope(strings.ToLower(strings.TrimSpace(query.Get("when"))))
		if scope != application.ScopeAll && scope != application.ScopePast && scope != application.ScopeFuture {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScope)
			return
		}
		var requester persistence.Requester
		requester, err = h.requesters.ResolveUsername(r.Context(), query.Get("requester"))
		if err == nil {
			out, err = h.service.ListByRequester(r.Context(), requester.ID, scope)
		}
	case query.Get("day") != "":
		day, parseErr := time.Parse(time.DateOnly, strings.TrimSpace(query.Get("day")))
		if parseErr != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDay)
			return
		}
		out, err = h.service.ListByDay(r.Context(), day)
	default:
		out, err = h.service.ListAll(r.Context())
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: toReservationDTOs(out)})
}

// Availability lists the rooms free for the whole of [start, end).
func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	start, err := parseTimestamp("start", query.Get("start"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	end, err := parseTimestamp("end", query.Get("end"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	window, err := scheduler.NewWindow(start, end)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, errInvertedWindow)
		return
	}
	minCapacity, err := parseMinCapacity(query.Get("min_capacity"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	rooms, err := h.service.FindAvailable(r.Context(), window, minCapacity)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Availability").With("result_count", len(rooms)).DebugContext(r.Context(), "availability computed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

type reserveRequest struct {
	Requester string `json:"requester"`
	Start     string `json:"start"`
	End       string `json:"end"`
	PartySize int    `json:"party_size"`
}

type reservationPatchRequest struct {
	RoomID    *int64  `json:"room_id"`
	Start     *string `json:"start"`
	End       *string `json:"end"`
	PartySize *int    `json:"party_size"`
}

func (r reservationPatchRequest) toPatch() (application.ReservationPatch, error) {
	patch := application.ReservationPatch{RoomID: r.RoomID, PartySize: r.PartySize}
	if r.Start != nil {
		start, err := parseTimestamp("start", *r.Start)
		if err != nil {
			return application.ReservationPatch{}, err
		}
		patch.Start = &start
	}
	if r.End != nil {
		end, err := parseTimestamp("end", *r.End)
		if err != nil {
			return application.ReservationPatch{}, err
		}
		patch.End = &end
	}
	return patch, nil
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type reservationDTO struct {
	ID          int64  `json:"id"`
	RoomID      int64  `json:"room_id"`
	RequesterID int64  `json:"requester_id"`
	Start       string `json:"start"`
	End         string `json:"end"`
	PartySize   int    `json:"party_size"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toReservationDTO(res persistence.Reservation) reservationDTO {
	return reservationDTO{
		ID:          res.ID,
		RoomID:      res.RoomID,
		RequesterID: res.RequesterID,
		Start:       formatTime(res.Start),
		End:         formatTime(res.End),
		PartySize:   res.PartySize,
		CreatedAt:   res.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   res.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toReservationDTOs(reservations []persistence.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(reservations))
	for _, res := range reservations {
		out = append(out, toReservationDTO(res))
	}
	return out
}
