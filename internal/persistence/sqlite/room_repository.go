package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/persistence/roomlock"
)

// RoomRepository implements persistence.RoomRepository using SQLite
type RoomRepository struct {
	pool   *ConnectionPool
	locks  *roomlock.Locker
	mapper *ErrorMapper
}

// NewRoomRepository creates a new SQLite room repository. The locker must be
// shared with the reservation repository so room deletion and reservation
// commits on the same room are serialised.
func NewRoomRepository(pool *ConnectionPool, locks *roomlock.Locker) *RoomRepository {
	return &RoomRepository{pool: pool, locks: locks, mapper: NewErrorMapper()}
}

const roomColumns = `id, building, room_number, capacity, equipment, created_at, updated_at`

// CreateRoom inserts a new room and returns it with its assigned id.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	if room.Capacity <= 0 {
		return persistence.Room{}, persistence.ErrConstraintViolation
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO rooms (building, room_number, capacity, equipment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		room.Building,
		room.RoomNumber,
		room.Capacity,
		nullableString(room.Equipment),
		formatTime(room.CreatedAt),
		formatTime(room.UpdatedAt),
	)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.Room{}, fmt.Errorf("read room id: %w", err)
	}
	room.ID = id
	room.CreatedAt = room.CreatedAt.UTC()
	room.UpdatedAt = room.UpdatedAt.UTC()
	return room, nil
}

// UpdateRoom updates an existing room.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	if room.Capacity <= 0 {
		return persistence.Room{}, persistence.ErrConstraintViolation
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE rooms
		SET building = ?, room_number = ?, capacity = ?, equipment = ?, updated_at = ?
		WHERE id = ?`,
		room.Building,
		room.RoomNumber,
		room.Capacity,
		nullableString(room.Equipment),
		formatTime(room.UpdatedAt),
		room.ID,
	)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return persistence.Room{}, fmt.Errorf("read rows affected: %w", err)
	}
	if rows == 0 {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return r.GetRoom(ctx, room.ID)
}

// GetRoom retrieves a room by id.
func (r *RoomRepository) GetRoom(ctx context.Context, id int64) (persistence.Room, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return room, nil
}

// GetRoomByLocation retrieves a room by building and room number.
func (r *RoomRepository) GetRoomByLocation(ctx context.Context, building, roomNumber string) (persistence.Room, error) {
	row := r.pool.DB().QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE building = ? AND room_number = ?`,
		building, roomNumber,
	)
	room, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return room, nil
}

// ListRooms returns rooms matching the filter ordered by building then room number.
func (r *RoomRepository) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Building != "" {
		clauses = append(clauses, "building = ?")
		args = append(args, filter.Building)
	}
	if filter.MinCapacity > 0 {
		clauses = append(clauses, "capacity >= ?")
		args = append(args, filter.MinCapacity)
	}

	query := `SELECT ` + roomColumns + ` FROM rooms`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY building, room_number, id`

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	rooms := make([]persistence.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rooms, nil
}

// DeleteRoom removes a room; its reservations are removed by ON DELETE CASCADE.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id int64) (bool, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeleteAllRooms removes every room and, by cascade, every reservation.
func (r *RoomRepository) DeleteAllRooms(ctx context.Context) (int64, error) {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM rooms`)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room                 persistence.Room
		equipment            sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&room.ID, &room.Building, &room.RoomNumber, &room.Capacity, &equipment, &createdAt, &updatedAt); err != nil {
		return persistence.Room{}, err
	}

	if equipment.Valid {
		value := equipment.String
		room.Equipment = &value
	}

	var err error
	if room.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
