package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/scheduler"
)

// ReservationService decides whether reservations may be committed and which
// rooms are free. It holds no state of its own; the reservation repository's
// CommitReservation is the only place that serialises writers.
type ReservationService struct {
	rooms        persistence.RoomRepository
	requesters   persistence.RequesterRepository
	reservations persistence.ReservationRepository
	audit        AuditEmitter
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService constructs the reservation engine.
func NewReservationService(
	rooms persistence.RoomRepository,
	requesters persistence.RequesterRepository,
	reservations persistence.ReservationRepository,
	audit AuditEmitter,
	now func() time.Time,
	logger *slog.Logger,
) *ReservationService {
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		rooms:        rooms,
		requesters:   requesters,
		reservations: reservations,
		audit:        audit,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// TryReserve commits a new reservation when the window is well formed and not
// yet started, the room and requester exist, the party fits and no existing
// reservation on the room overlaps. Checks run in that order and the first
// failure is returned.
func (s *ReservationService) TryReserve(ctx context.Context, actor Actor, req ReserveRequest) (res persistence.Reservation, err error) {
	logger := s.loggerWith(ctx, "TryReserve",
		"actor_id", actor.ID,
		"room_id", req.RoomID,
		"requester_id", req.RequesterID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "reservation rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", res.ID, "duration", res.Window().Duration()).InfoContext(ctx, "reservation created")
	}()

	if !actor.canActFor(req.RequesterID) {
		err = ErrUnauthorized
		return
	}

	now := s.now().UTC()
	candidate := persistence.Reservation{
		RoomID:      req.RoomID,
		RequesterID: req.RequesterID,
		Start:       req.Window.Start.UTC(),
		End:         req.Window.End.UTC(),
		PartySize:   req.PartySize,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	res, err = s.commit(ctx, candidate, now)
	if err != nil {
		return
	}

	emit(ctx, s.audit, logger, AuditEvent{
		Actor:      actor,
		Action:     ActionBookingCreate,
		TargetType: "reservation",
		TargetID:   idString(res.ID),
		After:      reservationSnapshot(res),
	})
	return
}

// UpdateReservation applies a patch by running the stored reservation plus the
// patch through the same checks as TryReserve, with the reservation itself
// excluded from the overlap check. An empty patch returns the reservation unchanged.
func (s *ReservationService) UpdateReservation(ctx context.Context, actor Actor, id int64, patch ReservationPatch) (res persistence.Reservation, err error) {
	logger := s.loggerWith(ctx, "UpdateReservation", "actor_id", actor.ID, "reservation_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "reservation update rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation updated")
	}()

	var existing persistence.Reservation
	existing, err = s.reservations.GetReservation(ctx, id)
	if err != nil {
		err = storeError(err, ErrNotFound)
		return
	}
	if !actor.canActFor(existing.RequesterID) {
		err = ErrUnauthorized
		return
	}
	if patch.Empty() {
		res = existing
		return
	}

	now := s.now().UTC()
	candidate := existing
	if patch.RoomID != nil {
		candidate.RoomID = *patch.RoomID
	}
	if patch.Start != nil {
		candidate.Start = patch.Start.UTC()
	}
	if patch.End != nil {
		candidate.End = patch.End.UTC()
	}
	if patch.PartySize != nil {
		candidate.PartySize = *patch.PartySize
	}
	candidate.UpdatedAt = now

	res, err = s.commit(ctx, candidate, now)
	if err != nil {
		return
	}

	emit(ctx, s.audit, logger, AuditEvent{
		Actor:      actor,
		Action:     ActionBookingUpdate,
		TargetType: "reservation",
		TargetID:   idString(res.ID),
		Before:     reservationSnapshot(existing),
		After:      reservationSnapshot(res),
	})
	return
}

// commit validates candidate and hands it to the repository's atomic
// check-and-write. A zero candidate ID inserts; otherwise it replaces.
func (s *ReservationService) commit(ctx context.Context, candidate persistence.Reservation, now time.Time) (persistence.Reservation, error) {
	window := candidate.Window()
	if err := window.Validate(); err != nil {
		return persistence.Reservation{}, fmt.Errorf("%w: start must be before end", ErrInvalidWindow)
	}
	if window.StartsBefore(now) {
		return persistence.Reservation{}, fmt.Errorf("%w: window starts before the current time", ErrInvalidWindow)
	}

	room, err := s.rooms.GetRoom(ctx, candidate.RoomID)
	if err != nil {
		return persistence.Reservation{}, storeError(err, ErrRoomNotFound)
	}
	if _, err := s.requesters.GetRequester(ctx, candidate.RequesterID); err != nil {
		return persistence.Reservation{}, storeError(err, ErrRequesterNotFound)
	}

	if candidate.PartySize < 1 {
		return persistence.Reservation{}, fmt.Errorf("%w: party size must be at least 1", ErrInvalidPartySize)
	}
	if candidate.PartySize > room.Capacity {
		return persistence.Reservation{}, fmt.Errorf("%w: party of %d exceeds capacity %d", ErrCapacityExceeded, candidate.PartySize, room.Capacity)
	}

	committed, err := s.reservations.CommitReservation(ctx, candidate)
	switch {
	case err == nil:
		return committed, nil
	case errors.Is(err, persistence.ErrConflict):
		return persistence.Reservation{}, ErrConflict
	case errors.Is(err, persistence.ErrNotFound):
		return persistence.Reservation{}, ErrNotFound
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		// The room or requester was removed after the checks above.
		if _, getErr := s.rooms.GetRoom(ctx, candidate.RoomID); errors.Is(getErr, persistence.ErrNotFound) {
			return persistence.Reservation{}, ErrRoomNotFound
		}
		return persistence.Reservation{}, ErrRequesterNotFound
	}
	return persistence.Reservation{}, storeError(err, nil)
}

// FindAvailable returns every room without a reservation overlapping window,
// optionally limited to rooms holding at least minCapacity people, ordered by
// building then room number. Past windows are allowed. It takes no locks, so
// the result may be stale by the time the caller acts on it.
func (s *ReservationService) FindAvailable(ctx context.Context, window scheduler.Window, minCapacity int) (rooms []persistence.Room, err error) {
	window = window.UTC()
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("%w: start must be before end", ErrInvalidWindow)
	}

	occupiedIDs, err := s.reservations.OccupiedRoomIDs(ctx, window)
	if err != nil {
		return nil, storeError(err, nil)
	}
	occupied := make(map[int64]struct{}, len(occupiedIDs))
	for _, id := range occupiedIDs {
		occupied[id] = struct{}{}
	}

	filter := persistence.RoomFilter{}
	if minCapacity > 0 {
		filter.MinCapacity = minCapacity
	}
	all, err := s.rooms.ListRooms(ctx, filter)
	if err != nil {
		return nil, storeError(err, nil)
	}

	rooms = make([]persistence.Room, 0, len(all))
	for _, room := range all {
		if _, busy := occupied[room.ID]; busy {
			continue
		}
		if minCapacity > 0 && room.Capacity < minCapacity {
			continue
		}
		rooms = append(rooms, room)
	}
	sortByLocation(rooms)
	return rooms, nil
}

// GetReservation returns a reservation by id.
func (s *ReservationService) GetReservation(ctx context.Context, id int64) (persistence.Reservation, error) {
	res, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		return persistence.Reservation{}, storeError(err, ErrNotFound)
	}
	return res, nil
}

// ListByRoom returns the reservations held on a room.
func (s *ReservationService) ListByRoom(ctx context.Context, roomID int64) ([]persistence.Reservation, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, storeError(err, ErrRoomNotFound)
	}
	return s.list(ctx, persistence.ReservationFilter{RoomID: &roomID})
}

// ListByRequester returns a requester's reservations, optionally only those
// that started before now (past) or start now or later (future).
func (s *ReservationService) ListByRequester(ctx context.Context, requesterID int64, scope TimeScope) ([]persistence.Reservation, error) {
	if _, err := s.requesters.GetRequester(ctx, requesterID); err != nil {
		return nil, storeError(err, ErrRequesterNotFound)
	}

	filter := persistence.ReservationFilter{RequesterID: &requesterID}
	now := s.now().UTC()
	switch scope {
	case ScopePast:
		filter.StartsBefore = &now
	case ScopeFuture:
		filter.StartsAtOrAfter = &now
	}
	return s.list(ctx, filter)
}

// ListByDay returns the reservations intersecting the UTC calendar day containing day.
func (s *ReservationService) ListByDay(ctx context.Context, day time.Time) ([]persistence.Reservation, error) {
	window := scheduler.DayWindow(day)
	return s.list(ctx, persistence.ReservationFilter{Overlapping: &window})
}

// ListAll returns every reservation ordered by start.
func (s *ReservationService) ListAll(ctx context.Context) ([]persistence.Reservation, error) {
	return s.list(ctx, persistence.ReservationFilter{})
}

func (s *ReservationService) list(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	out, err := s.reservations.ListReservations(ctx, filter)
	if err != nil {
		return nil, storeError(err, nil)
	}
	return out, nil
}

// DeleteReservation removes a reservation held by the actor, or any
// reservation for registrars and administrators. It reports whether a
// reservation was removed.
func (s *ReservationService) DeleteReservation(ctx context.Context, actor Actor, id int64) (removed bool, err error) {
	logger := s.loggerWith(ctx, "DeleteReservation", "actor_id", actor.ID, "reservation_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("removed", removed).InfoContext(ctx, "reservation delete processed")
	}()

	existing, getErr := s.reservations.GetReservation(ctx, id)
	if errors.Is(getErr, persistence.ErrNotFound) {
		return false, nil
	}
	if getErr != nil {
		err = storeError(getErr, nil)
		return
	}
	if !actor.canActFor(existing.RequesterID) {
		err = ErrUnauthorized
		return
	}

	removed, err = s.reservations.DeleteReservation(ctx, id)
	if err != nil {
		err = storeError(err, nil)
		return
	}
	if removed {
		emit(ctx, s.audit, logger, AuditEvent{
			Actor:      actor,
			Action:     ActionBookingDelete,
			TargetType: "reservation",
			TargetID:   idString(id),
			Before:     reservationSnapshot(existing),
		})
	}
	return
}

// DeleteAllReservations removes every reservation. Only administrators may call it.
func (s *ReservationService) DeleteAllReservations(ctx context.Context, actor Actor) (count int64, err error) {
	logger := s.loggerWith(ctx, "DeleteAllReservations", "actor_id", actor.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete all reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("removed", count).InfoContext(ctx, "all reservations deleted")
	}()

	if !actor.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	count, err = s.reservations.DeleteAllReservations(ctx)
	if err != nil {
		err = storeError(err, nil)
		return
	}

	emit(ctx, s.audit, logger, AuditEvent{
		Actor:      actor,
		Action:     ActionBookingDeleteAll,
		TargetType: "reservation",
		TargetID:   "*",
		Details:    fmt.Sprintf("deleted %d reservations", count),
	})
	return
}
