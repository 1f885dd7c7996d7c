package application

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/example/roombook/internal/persistence"
)

// CSV column headers recognised by ImportRooms.
const (
	csvColumnRoom      = "Room"
	csvColumnCapacity  = "Capacity"
	csvColumnEquipment = "AV Equipment"
)

// ImportError reports the CSV row that rejected an import.
type ImportError struct {
	Row int
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// ImportRooms creates rooms from CSV with the columns "Room" ("<building>
// <room number>"), "Capacity" and optionally "AV Equipment". Rows with an
// empty Room cell are skipped. Every row is validated before anything is
// written; if a write fails part way, rooms created by this import are removed
// again.
func (s *RoomService) ImportRooms(ctx context.Context, actor Actor, r io.Reader) (created []persistence.Room, err error) {
	logger := s.loggerWith(ctx, "ImportRooms", "actor_id", actor.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to import rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(created)).InfoContext(ctx, "rooms imported")
	}()

	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}

	candidates, err := s.parseRoomCSV(ctx, r)
	if err != nil {
		return nil, err
	}

	created = make([]persistence.Room, 0, len(candidates))
	for _, c := range candidates {
		room, createErr := s.rooms.CreateRoom(ctx, c.room)
		if createErr != nil {
			s.rollbackImport(ctx, logger, created)
			return nil, &ImportError{Row: c.row, Err: mapRoomRepoError(createErr)}
		}
		created = append(created, room)
	}

	snapshots := make([]any, 0, len(created))
	for _, room := range created {
		snapshots = append(snapshots, roomSnapshot(room))
	}
	emit(ctx, s.audit, logger, AuditEvent{
		Actor:      actor,
		Action:     ActionRoomImport,
		TargetType: "room",
		TargetID:   "*",
		After:      map[string]any{"rooms": snapshots},
		Details:    fmt.Sprintf("imported %d rooms", len(created)),
	})
	return created, nil
}

type importCandidate struct {
	row  int
	room persistence.Room
}

func (s *RoomService) parseRoomCSV(ctx context.Context, r io.Reader) ([]importCandidate, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, csvReadError(1, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	roomCol, ok := columns[csvColumnRoom]
	if !ok {
		return nil, &ImportError{Row: 1, Err: fmt.Errorf("%w: missing %q column", ErrInvalidLocation, csvColumnRoom)}
	}
	capacityCol, ok := columns[csvColumnCapacity]
	if !ok {
		return nil, &ImportError{Row: 1, Err: fmt.Errorf("%w: missing %q column", ErrInvalidCapacity, csvColumnCapacity)}
	}
	equipmentCol, hasEquipment := columns[csvColumnEquipment]

	cell := func(record []string, i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	seen := make(map[[2]string]int)
	var candidates []importCandidate
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvReadError(row, err)
		}

		location := cell(record, roomCol)
		if location == "" {
			continue
		}
		building, roomNumber := splitLocation(location)

		capacity, err := ParseCapacity(cell(record, capacityCol))
		if err != nil {
			return nil, &ImportError{Row: row, Err: err}
		}

		input := RoomInput{Building: building, RoomNumber: roomNumber, Capacity: capacity}
		if hasEquipment {
			equipment := cell(record, equipmentCol)
			input.Equipment = &equipment
		}

		room, vErr := s.newRoom(input)
		if vErr.HasErrors() {
			return nil, &ImportError{Row: row, Err: vErr}
		}

		key := [2]string{room.Building, room.RoomNumber}
		if first, dup := seen[key]; dup {
			return nil, &ImportError{Row: row, Err: fmt.Errorf("%w: same room as row %d", ErrRoomAlreadyExists, first)}
		}
		seen[key] = row

		if _, err := s.rooms.GetRoomByLocation(ctx, room.Building, room.RoomNumber); err == nil {
			return nil, &ImportError{Row: row, Err: ErrRoomAlreadyExists}
		} else if !errors.Is(err, persistence.ErrNotFound) {
			return nil, storeError(err, nil)
		}

		candidates = append(candidates, importCandidate{row: row, room: room})
	}
	return candidates, nil
}

func (s *RoomService) rollbackImport(ctx context.Context, logger *slog.Logger, created []persistence.Room) {
	for _, room := range created {
		if _, err := s.rooms.DeleteRoom(ctx, room.ID); err != nil {
			logger.WarnContext(ctx, "failed to roll back imported room", "room_id", room.ID, "error", err)
		}
	}
}

// splitLocation splits "<building> <room number>": the last whitespace
// separated token is the room number and the rest is the building. A single
// token yields an empty room number.
func splitLocation(value string) (building, roomNumber string) {
	fields := strings.Fields(value)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
}

// csvReadError reports a CSV syntax error or a failure of the underlying reader,
// which stays reachable with errors.As.
func csvReadError(row int, err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &ImportError{Row: row, Err: fmt.Errorf("%w: %v", ErrMalformedImport, parseErr.Err)}
	}
	return &ImportError{Row: row, Err: fmt.Errorf("%w: %w", ErrMalformedImport, err)}
}
