package postgres

import "context"

// Truncate empties every table and resets identities.
func Truncate(ctx context.Context, s *Store) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE audit_log, reservations, requesters, rooms RESTART IDENTITY CASCADE`)
	return err
}

// MapError exposes the driver error translation.
var MapError = mapError
