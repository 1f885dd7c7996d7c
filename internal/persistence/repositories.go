package persistence

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/example/roombook/internal/scheduler"
)

// RoomFilter narrows room listings. Zero values disable a criterion.
type RoomFilter struct {
	Building    string
	MinCapacity int
}

// RoomRepository stores the room directory. Listings are ordered by building then room number.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id int64) (Room, error)
	GetRoomByLocation(ctx context.Context, building, roomNumber string) (Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
	// DeleteRoom removes the room and its reservations.
	DeleteRoom(ctx context.Context, id int64) (bool, error)
	DeleteAllRooms(ctx context.Context) (int64, error)
}

// RequesterRepository stores the requester directory.
type RequesterRepository interface {
	CreateRequester(ctx context.Context, requester Requester) (Requester, error)
	GetRequester(ctx context.Context, id int64) (Requester, error)
	GetRequesterByUsername(ctx context.Context, username string) (Requester, error)
	ListRequesters(ctx context.Context) ([]Requester, error)
	// DeleteRequester removes the requester and their reservations.
	DeleteRequester(ctx context.Context, id int64) (bool, error)
}

// ReservationFilter narrows reservation listings. Nil fields disable a criterion.
type ReservationFilter struct {
	RoomID          *int64
	RequesterID     *int64
	Overlapping     *scheduler.Window
	StartsBefore    *time.Time
	StartsAtOrAfter *time.Time
}

// ReservationRepository stores reservations. Listings are ordered by start then id.
type ReservationRepository interface {
	// CommitReservation atomically checks the reservation's room for overlapping
	// reservations and writes it. A zero ID inserts; a non-zero ID replaces that
	// record, which is excluded from the overlap check. It returns ErrConflict when
	// an overlapping reservation exists, ErrForeignKeyViolation when the room or
	// requester is gone and ErrNotFound when the record being replaced is gone.
	CommitReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	GetReservation(ctx context.Context, id int64) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	// OccupiedRoomIDs returns the distinct rooms holding a reservation that overlaps w.
	OccupiedRoomIDs(ctx context.Context, w scheduler.Window) ([]int64, error)
	DeleteReservation(ctx context.Context, id int64) (bool, error)
	DeleteAllReservations(ctx context.Context) (int64, error)
}

// AuditFilter narrows audit listings. Zero values disable a criterion.
type AuditFilter struct {
	ActorName string
	// ActionPrefix keeps records whose action starts with it.
	ActionPrefix string
	// ActionScopes keeps records whose action starts with any of the prefixes.
	ActionScopes []string
	// From and To bound CreatedAt inclusively.
	From  *time.Time
	To    *time.Time
	Limit int
}

// Matches reports whether record satisfies every criterion except Limit.
func (f AuditFilter) Matches(record AuditRecord) bool {
	if f.ActorName != "" && record.ActorName != f.ActorName {
		return false
	}
	if !strings.HasPrefix(record.Action, f.ActionPrefix) {
		return false
	}
	if len(f.ActionScopes) > 0 && !slices.ContainsFunc(f.ActionScopes, func(scope string) bool {
		return strings.HasPrefix(record.Action, scope)
	}) {
		return false
	}
	if f.From != nil && record.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && record.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// AuditRepository is the append-only audit log.
type AuditRepository interface {
	AppendAudit(ctx context.Context, record AuditRecord) error
	// ListAudit returns the records matching filter, newest first.
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditRecord, error)
}

// Store bundles every repository behind one backend.
type Store interface {
	RoomRepository
	RequesterRepository
	ReservationRepository
	AuditRepository
	Ping(ctx context.Context) error
	Close() error
}
