package persistence

import (
	"time"

	"github.com/example/roombook/internal/scheduler"
)

// Room is a bookable room identified by building and room number.
type Room struct {
	ID         int64
	Building   string
	RoomNumber string
	Capacity   int
	Equipment  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Requester is a person on whose behalf reservations are made.
type Requester struct {
	ID          int64
	Username    string
	DisplayName string
	Role        string
	CreatedAt   time.Time
}

// Reservation binds a room to a requester for a half-open window.
type Reservation struct {
	ID          int64
	RoomID      int64
	RequesterID int64
	Start       time.Time
	End         time.Time
	PartySize   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Window returns the reservation's occupied interval.
func (r Reservation) Window() scheduler.Window {
	return scheduler.Window{Start: r.Start, End: r.End}
}

// Booking returns the view of the reservation used for conflict checks.
func (r Reservation) Booking() scheduler.Booking {
	return scheduler.Booking{ID: r.ID, RoomID: r.RoomID, Window: r.Window()}
}

// AuditRecord is an append-only entry describing a state change.
type AuditRecord struct {
	ID         string
	ActorID    int64
	ActorName  string
	Action     string
	TargetType string
	TargetID   string
	Before     map[string]any
	After      map[string]any
	Details    string
	CreatedAt  time.Time
}
