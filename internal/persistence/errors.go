package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a CHECK constraint rejects a write.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a write references a missing parent record.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrConflict is returned when a reservation overlaps another one on the same room.
	ErrConflict = errors.New("persistence: reservation window conflict")
)
