package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/persistence"
)

var (
	roomCounter      uint64
	requesterCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic room that can be materialised as
// service input or as a stored record.
type RoomFixture struct {
	Building   string
	RoomNumber string
	Capacity   int
	Equipment  *string
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a room fixture with a unique room number.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	fixture := RoomFixture{
		Building:   "Science",
		RoomNumber: fmt.Sprintf("%03d", idx),
		Capacity:   20,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithLocation overrides the building and room number.
func WithLocation(building, roomNumber string) RoomOption {
	return func(f *RoomFixture) {
		f.Building = building
		f.RoomNumber = roomNumber
	}
}

// WithCapacity overrides the capacity.
func WithCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// WithEquipment sets the equipment tag.
func WithEquipment(equipment string) RoomOption {
	return func(f *RoomFixture) {
		f.Equipment = &equipment
	}
}

// Input returns the fixture as application.RoomInput.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Building:   f.Building,
		RoomNumber: f.RoomNumber,
		Capacity:   f.Capacity,
		Equipment:  f.Equipment,
	}
}

// Persistence returns the fixture as an unsaved persistence.Room.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		Building:   f.Building,
		RoomNumber: f.RoomNumber,
		Capacity:   f.Capacity,
		Equipment:  f.Equipment,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
}

// -------------------------- Requester fixtures ---------------------------

// RequesterFixture represents a deterministic requester.
type RequesterFixture struct {
	Username    string
	DisplayName string
	Role        application.Role
}

// RequesterOption configures the generated requester fixture.
type RequesterOption func(*RequesterFixture)

// NewRequesterFixture returns a staff requester with a unique username.
func NewRequesterFixture(opts ...RequesterOption) RequesterFixture {
	idx := atomic.AddUint64(&requesterCounter, 1)
	fixture := RequesterFixture{
		Username:    fmt.Sprintf("user%03d", idx),
		DisplayName: fmt.Sprintf("User %03d", idx),
		Role:        application.RoleStaff,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUsername overrides the username.
func WithUsername(username string) RequesterOption {
	return func(f *RequesterFixture) {
		f.Username = username
	}
}

// WithRole overrides the role.
func WithRole(role application.Role) RequesterOption {
	return func(f *RequesterFixture) {
		f.Role = role
	}
}

// Input returns the fixture as application.RequesterInput.
func (f RequesterFixture) Input() application.RequesterInput {
	return application.RequesterInput{Username: f.Username, DisplayName: f.DisplayName, Role: f.Role}
}

// Persistence returns the fixture as an unsaved persistence.Requester.
func (f RequesterFixture) Persistence() persistence.Requester {
	return persistence.Requester{
		Username:    f.Username,
		DisplayName: f.DisplayName,
		Role:        string(f.Role),
		CreatedAt:   referenceTime,
	}
}
