package application

import (
	"time"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/scheduler"
)

// Role is a requester's permission level.
type Role string

const (
	// RoleStaff may manage their own reservations.
	RoleStaff Role = "staff"
	// RoleRegistrar may manage anyone's reservations.
	RoleRegistrar Role = "registrar"
	// RoleAdmin may additionally manage rooms, requesters and the audit log.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleRegistrar, RoleAdmin:
		return true
	}
	return false
}

// Actor is the requester on whose authority an operation runs.
type Actor struct {
	ID   int64
	Name string
	Role Role
}

// ActorFromRequester builds an Actor from a stored requester.
func ActorFromRequester(r persistence.Requester) Actor {
	return Actor{ID: r.ID, Name: r.Username, Role: Role(r.Role)}
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// canActFor reports whether the actor may create or change reservations held by requesterID.
func (a Actor) canActFor(requesterID int64) bool {
	return a.ID == requesterID || a.Role == RoleRegistrar || a.Role == RoleAdmin
}

// RoomInput captures caller provided room fields for creation.
type RoomInput struct {
	Building   string
	RoomNumber string
	Capacity   int
	Equipment  *string
}

// RoomPatch captures a partial room update. Nil fields are left unchanged;
// an empty Equipment clears it.
type RoomPatch struct {
	Capacity  *int
	Equipment *string
}

// Empty reports whether the patch changes nothing.
func (p RoomPatch) Empty() bool {
	return p.Capacity == nil && p.Equipment == nil
}

// RequesterInput captures caller provided requester fields.
type RequesterInput struct {
	Username    string
	DisplayName string
	Role        Role
}

// ReserveRequest is a candidate reservation.
type ReserveRequest struct {
	RoomID      int64
	RequesterID int64
	Window      scheduler.Window
	PartySize   int
}

// ReservationPatch captures a partial reservation update. Nil fields are left unchanged.
type ReservationPatch struct {
	RoomID    *int64
	Start     *time.Time
	End       *time.Time
	PartySize *int
}

// Empty reports whether the patch changes nothing.
func (p ReservationPatch) Empty() bool {
	return p.RoomID == nil && p.Start == nil && p.End == nil && p.PartySize == nil
}

// TimeScope selects reservations relative to the current instant.
type TimeScope string

const (
	// ScopeAll selects every reservation.
	ScopeAll TimeScope = ""
	// ScopePast selects reservations that started before now.
	ScopePast TimeScope = "past"
	// ScopeFuture selects reservations starting now or later.
	ScopeFuture TimeScope = "future"
)
