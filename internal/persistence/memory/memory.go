// Package memory implements the persistence repositories in process memory.
// Each Storage is independent, so tests can create one per case.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/persistence/roomlock"
	"github.com/example/roombook/internal/scheduler"
)

type location struct {
	building   string
	roomNumber string
}

// Storage keeps every repository in maps guarded by one RWMutex. Reservation
// commits additionally hold a per-room lock across the overlap check and the
// write, so commits on different rooms never wait on each other.
type Storage struct {
	mu    sync.RWMutex
	locks *roomlock.Locker

	rooms        map[int64]persistence.Room
	roomsByLoc   map[location]int64
	requesters   map[int64]persistence.Requester
	byUsername   map[string]int64
	reservations map[int64]persistence.Reservation
	byRoom       map[int64]map[int64]struct{}
	audit        []persistence.AuditRecord

	nextRoomID        int64
	nextRequesterID   int64
	nextReservationID int64
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		locks:        roomlock.New(),
		rooms:        make(map[int64]persistence.Room),
		roomsByLoc:   make(map[location]int64),
		requesters:   make(map[int64]persistence.Requester),
		byUsername:   make(map[string]int64),
		reservations: make(map[int64]persistence.Reservation),
		byRoom:       make(map[int64]map[int64]struct{}),
	}
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Storage) Close() error { return nil }

// --- RoomRepository implementation ---

// CreateRoom stores a new room and assigns its id.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	if room.Capacity <= 0 {
		return persistence.Room{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := location{room.Building, room.RoomNumber}
	if _, ok := s.roomsByLoc[key]; ok {
		return persistence.Room{}, persistence.ErrDuplicate
	}

	s.nextRoomID++
	room.ID = s.nextRoomID
	s.rooms[room.ID] = cloneRoom(room)
	s.roomsByLoc[key] = room.ID
	return cloneRoom(room), nil
}

// UpdateRoom replaces an existing room.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	if room.Capacity <= 0 {
		return persistence.Room{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}

	oldKey := location{existing.Building, existing.RoomNumber}
	newKey := location{room.Building, room.RoomNumber}
	if newKey != oldKey {
		if _, taken := s.roomsByLoc[newKey]; taken {
			return persistence.Room{}, persistence.ErrDuplicate
		}
		delete(s.roomsByLoc, oldKey)
		s.roomsByLoc[newKey] = room.ID
	}

	room.CreatedAt = existing.CreatedAt
	s.rooms[room.ID] = cloneRoom(room)
	return cloneRoom(room), nil
}

// GetRoom retrieves a room by id.
func (s *Storage) GetRoom(ctx context.Context, id int64) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return cloneRoom(room), nil
}

// GetRoomByLocation retrieves a room by building and room number.
func (s *Storage) GetRoomByLocation(ctx context.Context, building, roomNumber string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.roomsByLoc[location{building, roomNumber}]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return cloneRoom(s.rooms[id]), nil
}

// ListRooms returns rooms matching the filter ordered by building then room number.
func (s *Storage) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if filter.Building != "" && room.Building != filter.Building {
			continue
		}
		if filter.MinCapacity > 0 && room.Capacity < filter.MinCapacity {
			continue
		}
		rooms = append(rooms, cloneRoom(room))
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Building != rooms[j].Building {
			return rooms[i].Building < rooms[j].Building
		}
		if rooms[i].RoomNumber != rooms[j].RoomNumber {
			return rooms[i].RoomNumber < rooms[j].RoomNumber
		}
		return rooms[i].ID < rooms[j].ID
	})

	return rooms, nil
}

// DeleteRoom removes a room together with its reservations.
func (s *Storage) DeleteRoom(ctx context.Context, id int64) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return false, nil
	}

	for resID := range s.byRoom[id] {
		delete(s.reservations, resID)
	}
	delete(s.byRoom, id)
	delete(s.roomsByLoc, location{room.Building, room.RoomNumber})
	delete(s.rooms, id)
	return true, nil
}

// DeleteAllRooms removes every room and every reservation.
func (s *Storage) DeleteAllRooms(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := int64(len(s.rooms))
	s.rooms = make(map[int64]persistence.Room)
	s.roomsByLoc = make(map[location]int64)
	s.reservations = make(map[int64]persistence.Reservation)
	s.byRoom = make(map[int64]map[int64]struct{})
	return removed, nil
}

// --- RequesterRepository implementation ---

// CreateRequester stores a new requester and assigns its id.
func (s *Storage) CreateRequester(ctx context.Context, requester persistence.Requester) (persistence.Requester, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[requester.Username]; ok {
		return persistence.Requester{}, persistence.ErrDuplicate
	}

	s.nextRequesterID++
	requester.ID = s.nextRequesterID
	s.requesters[requester.ID] = requester
	s.byUsername[requester.Username] = requester.ID
	return requester, nil
}

// GetRequester retrieves a requester by id.
func (s *Storage) GetRequester(ctx context.Context, id int64) (persistence.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requester, ok := s.requesters[id]
	if !ok {
		return persistence.Requester{}, persistence.ErrNotFound
	}
	return requester, nil
}

// GetRequesterByUsername retrieves a requester by username.
func (s *Storage) GetRequesterByUsername(ctx context.Context, username string) (persistence.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return persistence.Requester{}, persistence.ErrNotFound
	}
	return s.requesters[id], nil
}

// ListRequesters returns all requesters ordered by username.
func (s *Storage) ListRequesters(ctx context.Context) ([]persistence.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Requester, 0, len(s.requesters))
	for _, r := range s.requesters {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// DeleteRequester removes a requester together with their reservations.
func (s *Storage) DeleteRequester(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requester, ok := s.requesters[id]
	if !ok {
		return false, nil
	}

	for resID, res := range s.reservations {
		if res.RequesterID == id {
			s.removeReservationLocked(resID)
		}
	}
	delete(s.byUsername, requester.Username)
	delete(s.requesters, id)
	return true, nil
}

// --- ReservationRepository implementation ---

// CommitReservation checks the room for overlaps and writes the reservation
// while holding that room's lock.
func (s *Storage) CommitReservation(ctx context.Context, reservation persistence.Reservation) (persistence.Reservation, error) {
	unlock := s.locks.Lock(reservation.RoomID)
	defer unlock()

	s.mu.RLock()
	existing := s.bookingsForRoomLocked(reservation.RoomID)
	s.mu.RUnlock()

	if scheduler.HasConflict(existing, reservation.Booking()) {
		return persistence.Reservation{}, persistence.ErrConflict
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[reservation.RoomID]; !ok {
		return persistence.Reservation{}, persistence.ErrForeignKeyViolation
	}
	if _, ok := s.requesters[reservation.RequesterID]; !ok {
		return persistence.Reservation{}, persistence.ErrForeignKeyViolation
	}

	if reservation.ID == 0 {
		s.nextReservationID++
		reservation.ID = s.nextReservationID
	} else {
		previous, ok := s.reservations[reservation.ID]
		if !ok {
			return persistence.Reservation{}, persistence.ErrNotFound
		}
		reservation.CreatedAt = previous.CreatedAt
		s.removeReservationLocked(reservation.ID)
	}

	s.reservations[reservation.ID] = reservation
	ids, ok := s.byRoom[reservation.RoomID]
	if !ok {
		ids = make(map[int64]struct{})
		s.byRoom[reservation.RoomID] = ids
	}
	ids[reservation.ID] = struct{}{}
	return reservation, nil
}

// GetReservation retrieves a reservation by id.
func (s *Storage) GetReservation(ctx context.Context, id int64) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return res, nil
}

// ListReservations returns reservations matching the filter ordered by start then id.
func (s *Storage) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Reservation, 0)
	for _, res := range s.reservations {
		if matchesFilter(res, filter) {
			out = append(out, res)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// OccupiedRoomIDs returns the rooms with a reservation overlapping w in ascending order.
func (s *Storage) OccupiedRoomIDs(ctx context.Context, w scheduler.Window) ([]int64, error) {
	s.mu.RLock()
	bookings := make([]scheduler.Booking, 0, len(s.reservations))
	for _, res := range s.reservations {
		bookings = append(bookings, res.Booking())
	}
	s.mu.RUnlock()

	occupied := scheduler.OccupiedRooms(bookings, w)
	ids := make([]int64, 0, len(occupied))
	for id := range occupied {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// DeleteReservation removes a reservation by id.
func (s *Storage) DeleteReservation(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[id]; !ok {
		return false, nil
	}
	s.removeReservationLocked(id)
	return true, nil
}

// DeleteAllReservations removes every reservation.
func (s *Storage) DeleteAllReservations(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := int64(len(s.reservations))
	s.reservations = make(map[int64]persistence.Reservation)
	s.byRoom = make(map[int64]map[int64]struct{})
	return removed, nil
}

// --- AuditRepository implementation ---

// AppendAudit appends a record to the log.
func (s *Storage) AppendAudit(ctx context.Context, record persistence.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, cloneAudit(record))
	return nil
}

// ListAudit returns up to filter.Limit matching records, newest first.
func (s *Storage) ListAudit(ctx context.Context, filter persistence.AuditFilter) ([]persistence.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.AuditRecord, 0)
	for i := len(s.audit) - 1; i >= 0; i-- {
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
		if filter.Matches(s.audit[i]) {
			out = append(out, cloneAudit(s.audit[i]))
		}
	}
	return out, nil
}

func (s *Storage) bookingsForRoomLocked(roomID int64) []scheduler.Booking {
	ids := s.byRoom[roomID]
	bookings := make([]scheduler.Booking, 0, len(ids))
	for id := range ids {
		bookings = append(bookings, s.reservations[id].Booking())
	}
	return bookings
}

func (s *Storage) removeReservationLocked(id int64) {
	res, ok := s.reservations[id]
	if !ok {
		return
	}
	delete(s.reservations, id)
	if ids, ok := s.byRoom[res.RoomID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byRoom, res.RoomID)
		}
	}
}

func matchesFilter(res persistence.Reservation, filter persistence.ReservationFilter) bool {
	if filter.RoomID != nil && res.RoomID != *filter.RoomID {
		return false
	}
	if filter.RequesterID != nil && res.RequesterID != *filter.RequesterID {
		return false
	}
	if filter.Overlapping != nil && !res.Window().Overlaps(*filter.Overlapping) {
		return false
	}
	if filter.StartsBefore != nil && !res.Start.Before(*filter.StartsBefore) {
		return false
	}
	if filter.StartsAtOrAfter != nil && res.Start.Before(*filter.StartsAtOrAfter) {
		return false
	}
	return true
}

func cloneRoom(room persistence.Room) persistence.Room {
	var equipment *string
	if room.Equipment != nil {
		value := *room.Equipment
		equipment = &value
	}
	room.Equipment = equipment
	return room
}

func cloneAudit(record persistence.AuditRecord) persistence.AuditRecord {
	record.Before = maps.Clone(record.Before)
	record.After = maps.Clone(record.After)
	return record
}
