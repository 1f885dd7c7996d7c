package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/roombook/internal/persistence"
)

// Rejection kinds. Every error returned by the services matches exactly one of
// these with errors.Is.
var (
	// ErrInvalidWindow is returned for empty, inverted or already started reservation windows.
	ErrInvalidWindow = errors.New("application: invalid window")
	// ErrInvalidPartySize is returned when a party size is below one.
	ErrInvalidPartySize = errors.New("application: invalid party size")
	// ErrCapacityExceeded is returned when a party does not fit the room.
	ErrCapacityExceeded = errors.New("application: capacity exceeded")
	// ErrRoomNotFound is returned when a room id or location does not resolve.
	ErrRoomNotFound = errors.New("application: room not found")
	// ErrRequesterNotFound is returned when a requester id or username does not resolve.
	ErrRequesterNotFound = errors.New("application: requester not found")
	// ErrRoomAlreadyExists is returned when a building and room number pair is taken.
	ErrRoomAlreadyExists = errors.New("application: room already exists")
	// ErrRequesterAlreadyExists is returned when a username is taken.
	ErrRequesterAlreadyExists = errors.New("application: requester already exists")
	// ErrInvalidCapacity is returned for non-positive or non-integer capacities.
	ErrInvalidCapacity = errors.New("application: invalid capacity")
	// ErrInvalidLocation is returned when a building or room number is empty.
	ErrInvalidLocation = errors.New("application: invalid location")
	// ErrInvalidRequester is returned when a username or role is unusable.
	ErrInvalidRequester = errors.New("application: invalid requester")
	// ErrMalformedImport is returned when a room import cannot be read as CSV.
	ErrMalformedImport = errors.New("application: malformed import")
	// ErrConflict is returned when a window overlaps an existing reservation on the same room.
	ErrConflict = errors.New("application: reservation conflict")
	// ErrStoreUnavailable wraps storage failures that are not business rejections.
	ErrStoreUnavailable = errors.New("application: store unavailable")
	// ErrUnauthorized is returned when the acting requester lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when a reservation id does not resolve.
	ErrNotFound = errors.New("application: not found")
)

// ValidationError captures field level validation issues that callers can surface to users.
// Kind is the rejection kind of the first failing rule and is what errors.Is matches.
type ValidationError struct {
	Kind        error
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	prefix := "validation failed"
	if v.Kind != nil {
		prefix = v.Kind.Error()
	}
	if len(v.FieldErrors) == 0 {
		return prefix
	}

	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// Unwrap exposes the rejection kind.
func (v *ValidationError) Unwrap() error {
	if v == nil {
		return nil
	}
	return v.Kind
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first kind recorded wins.
func (v *ValidationError) add(kind error, field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if v.Kind == nil {
		v.Kind = kind
	}
	v.FieldErrors[field] = message
}

// storeError converts a repository error into the taxonomy. A not-found error
// becomes notFound; anything unrecognised is reported as ErrStoreUnavailable.
func storeError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, persistence.ErrNotFound) {
		return notFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
