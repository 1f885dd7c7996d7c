package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/example/roombook/internal/persistence"
)

const roomColumns = `id, building, room_number, capacity, equipment, created_at, updated_at`

// CreateRoom inserts a new room and returns it with its assigned id.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	if room.Capacity <= 0 {
		return persistence.Room{}, persistence.ErrConstraintViolation
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO rooms (building, room_number, capacity, equipment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+roomColumns,
		room.Building, room.RoomNumber, room.Capacity, room.Equipment,
		room.CreatedAt.UTC(), room.UpdatedAt.UTC(),
	)
	created, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return created, nil
}

// UpdateRoom updates an existing room.
func (s *Store) UpdateRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	if room.Capacity <= 0 {
		return persistence.Room{}, persistence.ErrConstraintViolation
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE rooms
		SET building = $1, room_number = $2, capacity = $3, equipment = $4, updated_at = $5
		WHERE id = $6
		RETURNING `+roomColumns,
		room.Building, room.RoomNumber, room.Capacity, room.Equipment, room.UpdatedAt.UTC(), room.ID,
	)
	updated, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return updated, nil
}

// GetRoom retrieves a room by id.
func (s *Store) GetRoom(ctx context.Context, id int64) (persistence.Room, error) {
	room, err := scanRoom(s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

// GetRoomByLocation retrieves a room by building and room number.
func (s *Store) GetRoomByLocation(ctx context.Context, building, roomNumber string) (persistence.Room, error) {
	room, err := scanRoom(s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE building = $1 AND room_number = $2`,
		building, roomNumber,
	))
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

// ListRooms returns rooms matching the filter ordered by building then room number.
func (s *Store) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Building != "" {
		args = append(args, filter.Building)
		clauses = append(clauses, "building = $"+strconv.Itoa(len(args)))
	}
	if filter.MinCapacity > 0 {
		args = append(args, filter.MinCapacity)
		clauses = append(clauses, "capacity >= $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + roomColumns + ` FROM rooms`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY building COLLATE "C", room_number COLLATE "C", id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]persistence.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, mapError(rows.Err())
}

// DeleteRoom removes a room; its reservations are removed by ON DELETE CASCADE.
func (s *Store) DeleteRoom(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAllRooms removes every room and, by cascade, every reservation.
func (s *Store) DeleteAllRooms(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms`)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func scanRoom(row pgx.Row) (persistence.Room, error) {
	var room persistence.Room
	if err := row.Scan(&room.ID, &room.Building, &room.RoomNumber, &room.Capacity, &room.Equipment, &room.CreatedAt, &room.UpdatedAt); err != nil {
		return persistence.Room{}, err
	}
	room.CreatedAt = room.CreatedAt.UTC()
	room.UpdatedAt = room.UpdatedAt.UTC()
	return room, nil
}
