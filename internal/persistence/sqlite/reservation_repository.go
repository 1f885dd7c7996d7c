package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/persistence/roomlock"
	"github.com/example/roombook/internal/scheduler"
)

// ReservationRepository implements persistence.ReservationRepository using SQLite.
type ReservationRepository struct {
	pool   *ConnectionPool
	locks  *roomlock.Locker
	mapper *ErrorMapper
}

// NewReservationRepository creates a new SQLite reservation repository.
func NewReservationRepository(pool *ConnectionPool, locks *roomlock.Locker) *ReservationRepository {
	return &ReservationRepository{pool: pool, locks: locks, mapper: NewErrorMapper()}
}

const reservationColumns = `id, room_id, requester_id, start_at, end_at, party_size, created_at, updated_at`

// CommitReservation runs the overlap check and the write in one immediate
// transaction while holding the room's in-process lock.
func (r *ReservationRepository) CommitReservation(ctx context.Context, res persistence.Reservation) (persistence.Reservation, error) {
	unlock := r.locks.Lock(res.RoomID)
	defer unlock()

	res.Start = res.Start.UTC()
	res.End = res.End.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var conflict bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM reservations
				WHERE room_id = ? AND id != ? AND start_at < ? AND ? < end_at
			)`,
			res.RoomID, res.ID, formatTime(res.End), formatTime(res.Start),
		).Scan(&conflict)
		if err != nil {
			return err
		}
		if conflict {
			return persistence.ErrConflict
		}

		if res.ID == 0 {
			result, err := tx.ExecContext(ctx, `
				INSERT INTO reservations (room_id, requester_id, start_at, end_at, party_size, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				res.RoomID, res.RequesterID,
				formatTime(res.Start), formatTime(res.End),
				res.PartySize,
				formatTime(res.CreatedAt), formatTime(res.UpdatedAt),
			)
			if err != nil {
				return err
			}
			res.ID, err = result.LastInsertId()
			return err
		}

		var createdAt string
		err = tx.QueryRowContext(ctx, `
			UPDATE reservations
			SET room_id = ?, requester_id = ?, start_at = ?, end_at = ?, party_size = ?, updated_at = ?
			WHERE id = ?
			RETURNING created_at`,
			res.RoomID, res.RequesterID,
			formatTime(res.Start), formatTime(res.End),
			res.PartySize, formatTime(res.UpdatedAt),
			res.ID,
		).Scan(&createdAt)
		if err != nil {
			return err
		}
		res.CreatedAt, err = parseTime(createdAt)
		return err
	})
	if errors.Is(err, persistence.ErrConflict) {
		return persistence.Reservation{}, persistence.ErrConflict
	}
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}
	return res, nil
}

// GetReservation retrieves a reservation by id.
func (r *ReservationRepository) GetReservation(ctx context.Context, id int64) (persistence.Reservation, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}
	return res, nil
}

// ListReservations returns reservations matching the filter ordered by start then id.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != nil {
		clauses = append(clauses, "room_id = ?")
		args = append(args, *filter.RoomID)
	}
	if filter.RequesterID != nil {
		clauses = append(clauses, "requester_id = ?")
		args = append(args, *filter.RequesterID)
	}
	if filter.Overlapping != nil {
		clauses = append(clauses, "start_at < ? AND ? < end_at")
		args = append(args, formatTime(filter.Overlapping.End), formatTime(filter.Overlapping.Start))
	}
	if filter.StartsBefore != nil {
		clauses = append(clauses, "start_at < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}
	if filter.StartsAtOrAfter != nil {
		clauses = append(clauses, "start_at >= ?")
		args = append(args, formatTime(*filter.StartsAtOrAfter))
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_at, id`

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
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
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return out, nil
}

// OccupiedRoomIDs returns the rooms holding a reservation that overlaps w.
func (r *ReservationRepository) OccupiedRoomIDs(ctx context.Context, w scheduler.Window) ([]int64, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT DISTINCT room_id FROM reservations
		WHERE start_at < ? AND ? < end_at
		ORDER BY room_id`,
		formatTime(w.End), formatTime(w.Start),
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return ids, nil
}

// DeleteReservation removes a reservation by id.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id int64) (bool, error) {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeleteAllReservations removes every reservation.
func (r *ReservationRepository) DeleteAllReservations(ctx context.Context) (int64, error) {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM reservations`)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return result.RowsAffected()
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		res                              persistence.Reservation
		start, end, createdAt, updatedAt string
	)
	if err := row.Scan(&res.ID, &res.RoomID, &res.RequesterID, &start, &end, &res.PartySize, &createdAt, &updatedAt); err != nil {
		return persistence.Reservation{}, err
	}

	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&res.Start, start},
		{&res.End, end},
		{&res.CreatedAt, createdAt},
		{&res.UpdatedAt, updatedAt},
	} {
		t, err := parseTime(f.src)
		if err != nil {
			return persistence.Reservation{}, err
		}
		*f.dst = t
	}
	return res, nil
}
