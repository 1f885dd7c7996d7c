package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/logging"
	"github.com/example/roombook/internal/persistence"
)

type roomService interface {
	CreateRoom(ctx context.Context, actor application.Actor, input application.RoomInput) (persistence.Room, error)
	UpdateRoom(ctx context.Context, actor application.Actor, id int64, patch application.RoomPatch) (persistence.Room, error)
	DeleteRoom(ctx context.Context, actor application.Actor, id int64) (bool, error)
	DeleteAllRooms(ctx context.Context, actor application.Actor) (int64, error)
	ImportRooms(ctx context.Context, actor application.Actor, r io.Reader) ([]persistence.Room, error)
	GetRoom(ctx context.Context, id int64) (persistence.Room, error)
	FindByLocation(ctx context.Context, building, roomNumber string) (persistence.Room, error)
	FindByBuilding(ctx context.Context, building string) ([]persistence.Room, error)
	FindByMinCapacity(ctx context.Context, minCapacity int) ([]persistence.Room, error)
	ListRooms(ctx context.Context) ([]persistence.Room, error)
}

// maxImportBytes bounds CSV uploads.
const maxImportBytes = 4 << 20

type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := logging.OrDefault(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return logging.Scoped(ctx, h.logger, "handler", "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "actor_id", actor.ID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode room request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	room, err := h.service.CreateRoom(r.Context(), actor, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "actor_id", actor.ID).With("room_id", room.ID).InfoContext(r.Context(), "room created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Import(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	rooms, err := h.service.ImportRooms(r.Context(), actor, http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.responder.writeError(r.Context(), w, http.StatusRequestEntityTooLarge, errImportTooLarge)
			return
		}
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Import", "actor_id", actor.ID).With("result_count", len(rooms)).InfoContext(r.Context(), "rooms imported")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	room, err := h.service.GetRoom(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) GetByLocation(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	room, err := h.service.FindByLocation(r.Context(), r.PathValue("building"), r.PathValue("number"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing room id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	var req roomPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "actor_id", actor.ID, "room_id", id, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode room update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	room, err := h.service.UpdateRoom(r.Context(), actor, id, application.RoomPatch{Capacity: req.Capacity, Equipment: req.Equipment})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Update", "actor_id", actor.ID, "room_id", id).InfoContext(r.Context(), "room updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	removed, err := h.service.DeleteRoom(r.Context(), actor, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !removed {
		h.responder.handleServiceError(r.Context(), w, application.ErrRoomNotFound)
		return
	}

	h.log(r.Context(), "Delete", "actor_id", actor.ID, "room_id", id).InfoContext(r.Context(), "room deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RoomHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	count, err := h.service.DeleteAllRooms(r.Context(), actor)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, deletedResponse{Deleted: count})
}

// List returns every room, or the rooms of one building and/or with at least
// min_capacity seats when those query parameters are given.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	building := strings.TrimSpace(query.Get("building"))
	minCapacity, err := parseMinCapacity(query.Get("min_capacity"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var rooms []persistence.Room
	switch {
	case building != "":
		rooms, err = h.service.FindByBuilding(r.Context(), building)
		if err == nil && minCapacity > 0 {
			rooms = filterByCapacity(rooms, minCapacity)
		}
	case minCapacity > 0:
		rooms, err = h.service.FindByMinCapacity(r.Context(), minCapacity)
	default:
		rooms, err = h.service.ListRooms(r.Context())
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "List").With("result_count", len(rooms)).DebugContext(r.Context(), "rooms listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

func filterByCapacity(rooms []persistence.Room, minCapacity int) []persistence.Room {
	out := rooms[:0]
	for _, room := range rooms {
		if room.Capacity >= minCapacity {
			out = append(out, room)
		}
	}
	return out
}

type roomRequest struct {
	Building   string  `json:"building"`
	RoomNumber string  `json:"room_number"`
	Capacity   int     `json:"capacity"`
	Equipment  *string `json:"equipment"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Building:   r.Building,
		RoomNumber: r.RoomNumber,
		Capacity:   r.Capacity,
		Equipment:  r.Equipment,
	}
}

type roomPatchRequest struct {
	Capacity  *int    `json:"capacity"`
	Equipment *string `json:"equipment"`
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type deletedResponse struct {
	Deleted int64 `json:"deleted"`
}

type roomDTO struct {
	ID         int64   `json:"id"`
	Building   string  `json:"building"`
	RoomNumber string  `json:"room_number"`
	Capacity   int     `json:"capacity"`
	Equipment  *string `json:"equipment,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

func toRoomDTO(room persistence.Room) roomDTO {
	return roomDTO{
		ID:         room.ID,
		Building:   room.Building,
		RoomNumber: room.RoomNumber,
		Capacity:   room.Capacity,
		Equipment:  room.Equipment,
		CreatedAt:  room.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  room.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toRoomDTOs(rooms []persistence.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}
