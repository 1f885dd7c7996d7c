package scheduler

import "testing"

func TestHasConflict(t *testing.T) {
	existing := []Booking{
		{ID: 1, RoomID: 10, Window: Window{at(10, 0), at(12, 0)}},
		{ID: 2, RoomID: 10, Window: Window{at(13, 0), at(14, 0)}},
		{ID: 3, RoomID: 20, Window: Window{at(10, 0), at(12, 0)}},
	}

	t.Run("room overlap produces conflict", func(t *testing.T) {
		if !HasConflict(existing, Booking{RoomID: 10, Window: Window{at(11, 0), at(13, 0)}}) {
			t.Fatal("expected a conflict with booking 1")
		}
	})

	t.Run("other rooms are ignored", func(t *testing.T) {
		if HasConflict(existing, Booking{RoomID: 30, Window: Window{at(10, 0), at(12, 0)}}) {
			t.Fatal("expected no conflict on an unbooked room")
		}
	})

	t.Run("touching windows do not conflict", func(t *testing.T) {
		if HasConflict(existing, Booking{RoomID: 10, Window: Window{at(12, 0), at(13, 0)}}) {
			t.Fatal("expected back-to-back windows not to conflict")
		}
	})

	t.Run("record being replaced is excluded", func(t *testing.T) {
		candidate := Booking{ID: 1, RoomID: 10, Window: Window{at(10, 30), at(12, 30)}}
		if HasConflict(existing, candidate) {
			t.Fatal("expected the replaced record to be excluded")
		}
	})
}

func TestOccupiedRooms(t *testing.T) {
	existing := []Booking{
		{ID: 1, RoomID: 10, Window: Window{at(10, 0), at(12, 0)}},
		{ID: 2, RoomID: 10, Window: Window{at(12, 0), at(13, 0)}},
		{ID: 3, RoomID: 20, Window: Window{at(9, 0), at(10, 0)}},
	}

	occupied := OccupiedRooms(existing, Window{at(10, 0), at(11, 0)})
	if len(occupied) != 1 {
		t.Fatalf("expected one occupied room, got %v", occupied)
	}
	if _, ok := occupied[10]; !ok {
		t.Fatalf("expected room 10 to be occupied, got %v", occupied)
	}
}
