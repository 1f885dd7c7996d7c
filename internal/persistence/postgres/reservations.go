package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/scheduler"
)

const reservationColumns = `id, room_id, requester_id, start_at, end_at, party_size, created_at, updated_at`

// CommitReservation locks the room row, checks for overlapping reservations
// and writes the reservation in one transaction. The exclusion constraint on
// the table catches anything that slips past the check.
func (s *Store) CommitReservation(ctx context.Context, res persistence.Reservation) (persistence.Reservation, error) {
	var committed persistence.Reservation

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var roomID int64
		err := tx.QueryRow(ctx, `SELECT id FROM rooms WHERE id = $1 FOR UPDATE`, res.RoomID).Scan(&roomID)
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.ErrForeignKeyViolation
		}
		if err != nil {
			return err
		}

		var conflict bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM reservations
				WHERE room_id = $1 AND id <> $2 AND start_at < $3 AND $4 < end_at
			)`,
			res.RoomID, res.ID, res.End.UTC(), res.Start.UTC(),
		).Scan(&conflict)
		if err != nil {
			return err
		}
		if conflict {
			return persistence.ErrConflict
		}

		if res.ID == 0 {
			committed, err = scanReservation(tx.QueryRow(ctx, `
				INSERT INTO reservations (room_id, requester_id, start_at, end_at, party_size, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING `+reservationColumns,
				res.RoomID, res.RequesterID, res.Start.UTC(), res.End.UTC(),
				res.PartySize, res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
			))
			return err
		}

		committed, err = scanReservation(tx.QueryRow(ctx, `
			UPDATE reservations
			SET room_id = $1, requester_id = $2, start_at = $3, end_at = $4, party_size = $5, updated_at = $6
			WHERE id = $7
			RETURNING `+reservationColumns,
			res.RoomID, res.RequesterID, res.Start.UTC(), res.End.UTC(),
			res.PartySize, res.UpdatedAt.UTC(), res.ID,
		))
		return err
	})
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	return committed, nil
}

// GetReservation retrieves a reservation by id.
func (s *Store) GetReservation(ctx context.Context, id int64) (persistence.Reservation, error) {
	res, err := scanReservation(s.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	return res, nil
}

// ListReservations returns reservations matching the filter ordered by start then id.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.RoomID != nil {
		clauses = append(clauses, "room_id = "+arg(*filter.RoomID))
	}
	if filter.RequesterID != nil {
		clauses = append(clauses, "requester_id = "+arg(*filter.RequesterID))
	}
	if filter.Overlapping != nil {
		clauses = append(clauses, "start_at < "+arg(filter.Overlapping.End.UTC())+" AND "+arg(filter.Overlapping.Start.UTC())+" < end_at")
	}
	if filter.StartsBefore != nil {
		clauses = append(clauses, "start_at < "+arg(filter.StartsBefore.UTC()))
	}
	if filter.StartsAtOrAfter != nil {
		clauses = append(clauses, "start_at >= "+arg(filter.StartsAtOrAfter.UTC()))
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]persistence.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, mapError(rows.Err())
}

// OccupiedRoomIDs returns the rooms holding a reservation that overlaps w.
func (s *Store) OccupiedRoomIDs(ctx context.Context, w scheduler.Window) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT room_id FROM reservations
		WHERE start_at < $1 AND $2 < end_at
		ORDER BY room_id`,
		w.End.UTC(), w.Start.UTC(),
	)
	if err != nil {
		return nil, mapError(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, mapError(err)
	}
	return ids, nil
}

// DeleteReservation removes a reservation by id.
func (s *Store) DeleteReservation(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAllReservations removes every reservation.
func (s *Store) DeleteAllReservations(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reservations`)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func scanReservation(row pgx.Row) (persistence.Reservation, error) {
	var res persistence.Reservation
	if err := row.Scan(&res.ID, &res.RoomID, &res.RequesterID, &res.Start, &res.End, &res.PartySize, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return persistence.Reservation{}, err
	}
	res.Start = res.Start.UTC()
	res.End = res.End.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()
	return res, nil
}
