package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/roombook/internal/persistence"
)

// RoomService maintains the room directory.
type RoomService struct {
	rooms  persistence.RoomRepository
	audit  AuditEmitter
	now    func() time.Time
	logger *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms persistence.RoomRepository, audit AuditEmitter, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, audit, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms persistence.RoomRepository, audit AuditEmitter, now func() time.Time, logger *slog.Logger) *RoomService {
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, audit: audit, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and adds a room for administrators.
func (s *RoomService) CreateRoom(ctx context.Context, actor Actor, input RoomInput) (room persistence.Room, err error) {
	logger := s.loggerWith(ctx, "CreateRoom", "actor_id", actor.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if !actor.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	candidate, vErr := s.newRoom(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	room, err = s.rooms.CreateRoom(ctx, candidate)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	emit(ctx, s.audit, logger, AuditEvent{
		Actor:      actor,
		Action:     ActionRoomCreate,
		TargetType: "room",
		TargetID:   idString(room.ID),
		After:      roomSnapshot(room),
	})
	return
}

// GetRoom returns a room by id.
func (s *RoomService) GetRoom(ctx context.Context, id int64) (persistence.Room, error) {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return persistence.Room{}, storeError(err, ErrRoomNotFound)
	}
	return room, nil
}

// FindByLocation resolves a building and room number into a room.
func (s *RoomService) FindByLocation(ctx context.Context, building, roomNumber string) (persistence.Room, error) {
	building = strings.TrimSpace(building)
	roomNumber = strings.TrimSpace(roomNumber)
	if building == "" || roomNumber == "" {
		return persistence.Room{}, ErrRoomNotFound
	}

	room, err := s.rooms.GetRoomByLocation(ctx, building, roomNumber)
	if err != nil {
		return persistence.Room{}, storeError(err, ErrRoomNotFound)
	}
	return room, nil
}

// FindByBuilding lists the rooms of one building ordered by room number.
func (s *RoomService) FindByBuilding(ctx context.Context, building string) ([]persistence.Room, error) {
	building = strings.TrimSpace(building)
	if building == "" {
		vErr := &ValidationError{}
		vErr.add(ErrInvalidLocation, "building", "building is required")
		return nil, vErr
	}

	rooms, err := s.rooms.ListRooms(ctx, persistence.RoomFilter{Building: building})
	if err != nil {
		return nil, storeError(err, nil)
	}
	sortByLocation(rooms)
	return rooms, nil
}

// FindByMinCapacity lists rooms holding at least minCapacity people, smallest first.
func (s *RoomService) FindByMinCapacity(ctx context.Context, minCapacity int) ([]persistence.Room, error) {
	if minCapacity <= 0 {
		vErr := &ValidationError{}
		vErr.add(ErrInvalidCapacity, "min_capacity", "minimum capacity must be a positive integer")
		return nil, vErr
	}

	rooms, err := s.rooms.ListRooms(ctx, persistence.RoomFilter{MinCapacity: minCapacity})
	if err != nil {
		return nil, storeError(err, nil)
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Capacity != rooms[j].Capacity {
			return rooms[i].Capacity < rooms[j].Capacity
		}
		return locationLess(rooms[i], rooms[j])
	})
	return rooms, nil
}

// ListRooms returns every room ordered by building then room number.
func (s *RoomService) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rooms, err := s.rooms.ListRooms(ctx, persistence.RoomFilter{})
	if err != nil {
		return nil, storeError(err, nil)
	}
	sortByLocation(rooms)
	return rooms, nil
}

// UpdateRoom applies a partial update. Existing reservations are not re-checked
// against a reduced capacity. An empty patch returns the room unchanged.
func (s *RoomService) UpdateRoom(ctx context.Context, actor Actor, id int64, patch RoomPatch) (room persistence.Room, err error) {
	logger := s.loggerWith(ctx, "UpdateRoom", "actor_id", actor.ID, "room_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room updated")
	}()

	if !actor.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	var existing persistence.Room
	existing, err = s.rooms.GetRoom(ctx, id)
	if err != nil {
		err = storeError(err, ErrRoomNotFound)
		return
	}
	if patch.Empty() {
		room = existing
		return
	}

	updated := existing
	if patch.Capacity != nil {
		if *patch.Capacity <= 0 {
			vErr := &ValidationError{}
			vErr.add(ErrInvalidCapacity, "capacity", "capacity must be a positive integer")
			err = vErr
			return
		}
		updated.Capacity = *patch.Capacity
	}
	if patch.Equipment != nil {
		updated.Equipment = normalizeOptionalString(patch.Equipment)
	}
	updated.UpdatedAt = s.now().UTC()

	room, err = s.rooms.UpdateRoom(ctx, updated)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	emit(ctx, s.audit, logger, AuditEvent{
		Actor:      actor,
		Action:     ActionRoomUpdate,
		TargetType: "room",
		TargetID:   idString(room.ID),
		Before:     roomSnapshot(existing),
		After:      roomSnapshot(room),
	})
	return
}

// DeleteRoom removes a room and its reservations. It reports whether a room was removed.
func (s *RoomService) DeleteRoom(ctx context.Context, actor Actor, id int64) (removed bool, err error) {
	logger := s.loggerWith(ctx, "DeleteRoom", "actor_id", actor.ID, "room_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("removed", removed).InfoContext(ctx, "room delete processed")
	}()

	if !actor.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	existing, getErr := s.rooms.GetRoom(ctx, id)
	if getErr != nil && !errors.Is(getErr, persistence.ErrNotFound) {
		err = storeError(getErr, nil)
		return
	}

	removed, err = s.rooms.DeleteRoom(ctx, id)
	if err != nil {
		err = storeError(err, nil)
		return
	}
	if removed {
		emit(ctx, s.audit, logger, AuditEvent{
			Actor:      actor,
			Action:     ActionRoomDelete,
			TargetType: "room",
			TargetID:   idString(id),
			Before:     roomSnapshot(existing),
			Details:    "reservations for the room were removed with it",
		})
	}
	return
}

// DeleteAllRooms removes every room and every reservation.
func (s *RoomService) DeleteAllRooms(ctx context.Context, actor Actor) (count int64, err error) {
	logger := s.loggerWith(ctx, "DeleteAllRooms", "actor_id", actor.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete all rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("removed", count).InfoContext(ctx, "all rooms deleted")
	}()

	if !actor.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	count, err = s.rooms.DeleteAllRooms(ctx)
	if err != nil {
		err = storeError(err, nil)
		return
	}

	emit(ctx, s.audit, logger, AuditEvent{
		Actor:      actor,
		Action:     ActionRoomDeleteAll,
		TargetType: "room",
		TargetID:   "*",
		Details:    fmt.Sprintf("deleted %d rooms", count),
	})
	return
}

// newRoom validates input and builds the room to store. Capacity is checked
// before location so the reported kind is deterministic.
func (s *RoomService) newRoom(input RoomInput) (persistence.Room, *ValidationError) {
	vErr := &ValidationError{}

	if input.Capacity <= 0 {
		vErr.add(ErrInvalidCapacity, "capacity", "capacity must be a positive integer")
	}
	building := strings.TrimSpace(input.Building)
	roomNumber := strings.TrimSpace(input.RoomNumber)
	if building == "" {
		vErr.add(ErrInvalidLocation, "building", "building is required")
	}
	if roomNumber == "" {
		vErr.add(ErrInvalidLocation, "room_number", "room number is required")
	}
	if vErr.HasErrors() {
		return persistence.Room{}, vErr
	}

	now := s.now().UTC()
	return persistence.Room{
		Building:   building,
		RoomNumber: roomNumber,
		Capacity:   input.Capacity,
		Equipment:  normalizeOptionalString(input.Equipment),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ParseCapacity converts caller text into a capacity, rejecting anything that
// is not a positive integer.
func ParseCapacity(value string) (int, error) {
	capacity, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || capacity <= 0 {
		vErr := &ValidationError{}
		vErr.add(ErrInvalidCapacity, "capacity", fmt.Sprintf("capacity %q must be a positive integer", value))
		return 0, vErr
	}
	return capacity, nil
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrRoomNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrRoomAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add(ErrInvalidCapacity, "capacity", "capacity must be a positive integer")
		return vErr
	}
	return storeError(err, nil)
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func locationLess(a, b persistence.Room) bool {
	if a.Building != b.Building {
		return a.Building < b.Building
	}
	if a.RoomNumber != b.RoomNumber {
		return a.RoomNumber < b.RoomNumber
	}
	return a.ID < b.ID
}

func sortByLocation(rooms []persistence.Room) {
	sort.SliceStable(rooms, func(i, j int) bool { return locationLess(rooms[i], rooms[j]) })
}
