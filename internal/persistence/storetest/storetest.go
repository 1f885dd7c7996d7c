// Package storetest holds the behavioural contract shared by every
// persistence.Store backend. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/scheduler"
)

// Opener returns a fresh, empty store. It should register its own cleanup.
type Opener func(t *testing.T) persistence.Store

var base = time.Date(2030, time.June, 3, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return base.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// Run executes the full contract against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("rooms", func(t *testing.T) { testRooms(t, open) })
	t.Run("requesters", func(t *testing.T) { testRequesters(t, open) })
	t.Run("reservations", func(t *testing.T) { testReservations(t, open) })
	t.Run("concurrent commits", func(t *testing.T) { testConcurrentCommits(t, open) })
	t.Run("audit", func(t *testing.T) { testAudit(t, open) })
}

func mustRoom(t *testing.T, store persistence.Store, building, number string, capacity int) persistence.Room {
	t.Helper()
	room, err := store.CreateRoom(context.Background(), persistence.Room{
		Building:   building,
		RoomNumber: number,
		Capacity:   capacity,
		CreatedAt:  base,
		UpdatedAt:  base,
	})
	if err != nil {
		t.Fatalf("CreateRoom(%s %s) failed: %v", building, number, err)
	}
	return room
}

func mustRequester(t *testing.T, store persistence.Store, username string) persistence.Requester {
	t.Helper()
	requester, err := store.CreateRequester(context.Background(), persistence.Requester{
		Username:    username,
		DisplayName: username,
		Role:        "staff",
		CreatedAt:   base,
	})
	if err != nil {
		t.Fatalf("CreateRequester(%s) failed: %v", username, err)
	}
	return requester
}

func reservation(room persistence.Room, requester persistence.Requester, start, end time.Time) persistence.Reservation {
	return persistence.Reservation{
		RoomID:      room.ID,
		RequesterID: requester.ID,
		Start:       start,
		End:         end,
		PartySize:   1,
		CreatedAt:   base,
		UpdatedAt:   base,
	}
}

func testRooms(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("creates, reads, updates and deletes rooms", func(t *testing.T) {
		store := open(t)
		equipment := "Projector"

		created, err := store.CreateRoom(ctx, persistence.Room{
			Building: "Science", RoomNumber: "101", Capacity: 30, Equipment: &equipment,
			CreatedAt: base, UpdatedAt: base,
		})
		if err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}
		if created.ID == 0 {
			t.Fatal("expected an id to be assigned")
		}

		fetched, err := store.GetRoomByLocation(ctx, "Science", "101")
		if err != nil {
			t.Fatalf("GetRoomByLocation failed: %v", err)
		}
		if fetched.ID != created.ID || fetched.Capacity != 30 || fetched.Equipment == nil || *fetched.Equipment != "Projector" {
			t.Fatalf("unexpected room: %+v", fetched)
		}

		fetched.Capacity = 45
		fetched.Equipment = nil
		fetched.UpdatedAt = base.Add(time.Hour)
		if _, err := store.UpdateRoom(ctx, fetched); err != nil {
			t.Fatalf("UpdateRoom failed: %v", err)
		}

		updated, err := store.GetRoom(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetRoom failed: %v", err)
		}
		if updated.Capacity != 45 || updated.Equipment != nil {
			t.Fatalf("update not persisted: %+v", updated)
		}

		removed, err := store.DeleteRoom(ctx, created.ID)
		if err != nil || !removed {
			t.Fatalf("DeleteRoom = %v, %v; want true, nil", removed, err)
		}
		removed, err = store.DeleteRoom(ctx, created.ID)
		if err != nil || removed {
			t.Fatalf("second DeleteRoom = %v, %v; want false, nil", removed, err)
		}
		if _, err := store.GetRoom(ctx, created.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("rejects duplicate locations", func(t *testing.T) {
		store := open(t)
		mustRoom(t, store, "Science", "101", 10)

		_, err := store.CreateRoom(ctx, persistence.Room{Building: "Science", RoomNumber: "101", Capacity: 5, CreatedAt: base, UpdatedAt: base})
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("rejects non-positive capacity", func(t *testing.T) {
		store := open(t)

		_, err := store.CreateRoom(ctx, persistence.Room{Building: "Science", RoomNumber: "102", Capacity: 0, CreatedAt: base, UpdatedAt: base})
		if !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
	})

	t.Run("lists rooms ordered by building and number with filters", func(t *testing.T) {
		store := open(t)
		mustRoom(t, store, "Science", "201", 20)
		mustRoom(t, store, "Arts", "105", 50)
		mustRoom(t, store, "Science", "101", 40)

		all, err := store.ListRooms(ctx, persistence.RoomFilter{})
		if err != nil {
			t.Fatalf("ListRooms failed: %v", err)
		}
		got := make([]string, 0, len(all))
		for _, r := range all {
			got = append(got, r.Building+" "+r.RoomNumber)
		}
		want := []string{"Arts 105", "Science 101", "Science 201"}
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, got)
			}
		}

		science, err := store.ListRooms(ctx, persistence.RoomFilter{Building: "Science", MinCapacity: 30})
		if err != nil {
			t.Fatalf("ListRooms with filter failed: %v", err)
		}
		if len(science) != 1 || science[0].RoomNumber != "101" {
			t.Fatalf("expected only Science 101, got %+v", science)
		}
	})

	t.Run("room deletion cascades to reservations", func(t *testing.T) {
		store := open(t)
		room := mustRoom(t, store, "Science", "101", 10)
		other := mustRoom(t, store, "Science", "102", 10)
		alice := mustRequester(t, store, "alice")

		res, err := store.CommitReservation(ctx, reservation(room, alice, at(10, 0), at(11, 0)))
		if err != nil {
			t.Fatalf("CommitReservation failed: %v", err)
		}
		kept, err := store.CommitReservation(ctx, reservation(other, alice, at(10, 0), at(11, 0)))
		if err != nil {
			t.Fatalf("CommitReservation failed: %v", err)
		}

		if _, err := store.DeleteRoom(ctx, room.ID); err != nil {
			t.Fatalf("DeleteRoom failed: %v", err)
		}
		if _, err := store.GetReservation(ctx, res.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected reservation to be removed, got %v", err)
		}
		if _, err := store.GetReservation(ctx, kept.ID); err != nil {
			t.Fatalf("expected reservation on other room to survive, got %v", err)
		}

		removed, err := store.DeleteAllRooms(ctx)
		if err != nil || removed != 1 {
			t.Fatalf("DeleteAllRooms = %d, %v; want 1, nil", removed, err)
		}
		if _, err := store.GetReservation(ctx, kept.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected all reservations removed, got %v", err)
		}
	})
}

func testRequesters(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("creates and resolves requesters", func(t *testing.T) {
		store := open(t)
		mustRequester(t, store, "bob")
		alice := mustRequester(t, store, "alice")

		byName, err := store.GetRequesterByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("GetRequesterByUsername failed: %v", err)
		}
		if byName.ID != alice.ID || byName.Role != "staff" {
			t.Fatalf("unexpected requester: %+v", byName)
		}

		if _, err := store.GetRequesterByUsername(ctx, "carol"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		listed, err := store.ListRequesters(ctx)
		if err != nil {
			t.Fatalf("ListRequesters failed: %v", err)
		}
		if len(listed) != 2 || listed[0].Username != "alice" || listed[1].Username != "bob" {
			t.Fatalf("expected alice then bob, got %+v", listed)
		}
	})

	t.Run("rejects duplicate usernames", func(t *testing.T) {
		store := open(t)
		mustRequester(t, store, "alice")

		_, err := store.CreateRequester(ctx, persistence.Requester{Username: "alice", Role: "staff", CreatedAt: base})
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("requester deletion cascades to reservations", func(t *testing.T) {
		store := open(t)
		room := mustRoom(t, store, "Science", "101", 10)
		alice := mustRequester(t, store, "alice")

		res, err := store.CommitReservation(ctx, reservation(room, alice, at(10, 0), at(11, 0)))
		if err != nil {
			t.Fatalf("CommitReservation failed: %v", err)
		}

		removed, err := store.DeleteRequester(ctx, alice.ID)
		if err != nil || !removed {
			t.Fatalf("DeleteRequester = %v, %v; want true, nil", removed, err)
		}
		if _, err := store.GetReservation(ctx, res.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected reservation to be removed, got %v", err)
		}
	})
}

func testReservations(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("allows back to back and rejects overlaps", func(t *testing.T) {
		store := open(t)
		room := mustRoom(t, store, "Science", "101", 10)
		alice := mustRequester(t, store, "alice")

		first, err := store.CommitReservation(ctx, reservation(room, alice, at(10, 0), at(11, 0)))
		if err != nil {
			t.Fatalf("first commit failed: %v", err)
		}
		if first.ID == 0 {
			t.Fatal("expected an id to be assigned")
		}
		if _, err := store.CommitReservation(ctx, reservation(room, alice, at(11, 0), at(12, 0))); err != nil {
			t.Fatalf("back to back commit failed: %v", err)
		}

		for _, w := range []scheduler.Window{
			{Start: at(10, 0), End: at(11, 0)},
			{Start: at(10, 30), End: at(11, 30)},
			{Start: at(9, 0), End: at(13, 0)},
		} {
			if _, err := store.CommitReservation(ctx, reservation(room, alice, w.Start, w.End)); !errors.Is(err, persistence.ErrConflict) {
				t.Fatalf("expected ErrConflict for %v, got %v", w, err)
			}
		}

		all, err := store.ListReservations(ctx, persistence.ReservationFilter{})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected two reservations, got %d", len(all))
		}
	})

	t.Run("rooms are independent", func(t *testing.T) {
		store := open(t)
		r1 := mustRoom(t, store, "Science", "101", 10)
		r2 := mustRoom(t, store, "Science", "102", 10)
		alice := mustRequester(t, store, "alice")

		if _, err := store.CommitReservation(ctx, reservation(r1, alice, at(10, 0), at(11, 0))); err != nil {
			t.Fatalf("commit on r1 failed: %v", err)
		}
		if _, err := store.CommitReservation(ctx, reservation(r2, alice, at(10, 0), at(11, 0))); err != nil {
			t.Fatalf("commit on r2 failed: %v", err)
		}
	})

	t.Run("replacing a reservation excludes itself", func(t *testing.T) {
		store := open(t)
		room := mustRoom(t, store, "Science", "101", 10)
		alice := mustRequester(t, store, "alice")

		res, err := store.CommitReservation(ctx, reservation(room, alice, at(10, 0), at(11, 0)))
		if err != nil {
			t.Fatalf("commit failed: %v", err)
		}
		blocker, err := store.CommitReservation(ctx, reservation(room, alice, at(12, 0), at(13, 0)))
		if err != nil {
			t.Fatalf("commit failed: %v", err)
		}

		res.Start, res.End = at(10, 30), at(11, 30)
		res.PartySize = 4
		updated, err := store.CommitReservation(ctx, res)
		if err != nil {
			t.Fatalf("replace failed: %v", err)
		}
		if updated.ID != res.ID || updated.PartySize != 4 {
			t.Fatalf("unexpected replacement: %+v", updated)
		}

		res.End = at(12, 30)
		if _, err := store.CommitReservation(ctx, res); !errors.Is(err, persistence.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		stored, err := store.GetReservation(ctx, res.ID)
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		if !stored.Start.Equal(at(10, 30)) || !stored.End.Equal(at(11, 30)) {
			t.Fatalf("rejected replacement changed the record: %+v", stored)
		}

		if _, err := store.DeleteReservation(ctx, blocker.ID); err != nil {
			t.Fatalf("DeleteReservation failed: %v", err)
		}
		ghost := res
		ghost.ID = blocker.ID
		ghost.Start, ghost.End = at(15, 0), at(16, 0)
		if _, err := store.CommitReservation(ctx, ghost); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound replacing a deleted record, got %v", err)
		}
	})

	t.Run("rejects missing rooms and requesters", func(t *testing.T) {
		store := open(t)
		room := mustRoom(t, store, "Science", "101", 10)
		alice := mustRequester(t, store, "alice")

		missingRoom := reservation(room, alice, at(10, 0), at(11, 0))
		missingRoom.RoomID = room.ID + 100
		if _, err := store.CommitReservation(ctx, missingRoom); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation for room, got %v", err)
		}

		missingRequester := reservation(room, alice, at(10, 0), at(11, 0))
		missingRequester.RequesterID = alice.ID + 100
		if _, err := store.CommitReservation(ctx, missingRequester); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation for requester, got %v", err)
		}
	})

	t.Run("filters listings and occupied rooms", func(t *testing.T) {
		store := open(t)
		r1 := mustRoom(t, store, "Science", "101", 10)
		r2 := mustRoom(t, store, "Science", "102", 10)
		r3 := mustRoom(t, store, "Science", "103", 10)
		alice := mustRequester(t, store, "alice")
		bob := mustRequester(t, store, "bob")

		commits := []persistence.Reservation{
			reservation(r2, alice, at(14, 0), at(15, 0)),
			reservation(r1, alice, at(9, 0), at(10, 0)),
			reservation(r1, bob, at(10, 0), at(11, 0)),
			reservation(r3, bob, at(23, 0), at(25, 0)),
		}
		for _, c := range commits {
			if _, err := store.CommitReservation(ctx, c); err != nil {
				t.Fatalf("commit failed: %v", err)
			}
		}

		byAlice, err := store.ListReservations(ctx, persistence.ReservationFilter{RequesterID: &alice.ID})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(byAlice) != 2 || !byAlice[0].Start.Equal(at(9, 0)) {
			t.Fatalf("expected alice's reservations in start order, got %+v", byAlice)
		}

		byRoom, err := store.ListReservations(ctx, persistence.ReservationFilter{RoomID: &r1.ID})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(byRoom) != 2 {
			t.Fatalf("expected two reservations on r1, got %d", len(byRoom))
		}

		cutoff := at(10, 0)
		before, err := store.ListReservations(ctx, persistence.ReservationFilter{StartsBefore: &cutoff})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(before) != 1 {
			t.Fatalf("expected one reservation before cutoff, got %d", len(before))
		}
		after, err := store.ListReservations(ctx, persistence.ReservationFilter{StartsAtOrAfter: &cutoff})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(after) != 3 {
			t.Fatalf("expected three reservations at or after cutoff, got %d", len(after))
		}

		nextDay := scheduler.DayWindow(at(24, 0))
		onNextDay, err := store.ListReservations(ctx, persistence.ReservationFilter{Overlapping: &nextDay})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(onNextDay) != 1 || onNextDay[0].RoomID != r3.ID {
			t.Fatalf("expected the overnight reservation, got %+v", onNextDay)
		}

		occupied, err := store.OccupiedRoomIDs(ctx, scheduler.Window{Start: at(9, 30), End: at(14, 0)})
		if err != nil {
			t.Fatalf("OccupiedRoomIDs failed: %v", err)
		}
		if len(occupied) != 1 || occupied[0] != r1.ID {
			t.Fatalf("expected only r1 occupied, got %v", occupied)
		}

		removed, err := store.DeleteAllReservations(ctx)
		if err != nil || removed != 4 {
			t.Fatalf("DeleteAllReservations = %d, %v; want 4, nil", removed, err)
		}
	})
}

func testConcurrentCommits(t *testing.T, open Opener) {
	const attempts = 16

	ctx := context.Background()
	store := open(t)
	room := mustRoom(t, store, "Science", "101", 10)
	other := mustRoom(t, store, "Science", "102", 10)
	alice := mustRequester(t, store, "alice")

	var (
		successes atomic.Int32
		conflicts atomic.Int32
		others    atomic.Int32
	)

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		start := at(10, i%3*10)
		g.Go(func() error {
			_, err := store.CommitReservation(ctx, reservation(room, alice, start, start.Add(time.Hour)))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, persistence.ErrConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
		g.Go(func() error {
			_, err := store.CommitReservation(ctx, reservation(other, alice, at(8, i), at(8, i+1)))
			if err == nil {
				others.Add(1)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected commit error: %v", err)
	}

	if successes.Load() != 1 || conflicts.Load() != attempts-1 {
		t.Fatalf("expected exactly one success and %d conflicts, got %d and %d", attempts-1, successes.Load(), conflicts.Load())
	}
	if others.Load() != attempts {
		t.Fatalf("expected every disjoint commit on the other room to succeed, got %d", others.Load())
	}

	committed, err := store.ListReservations(ctx, persistence.ReservationFilter{RoomID: &room.ID})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	for i := range committed {
		for j := i + 1; j < len(committed); j++ {
			if committed[i].Window().Overlaps(committed[j].Window()) {
				t.Fatalf("overlapping reservations committed: %+v and %+v", committed[i], committed[j])
			}
		}
	}
}

func testAudit(t *testing.T, open Opener) {
	ctx := context.Background()
	store := open(t)

	for i, action := range []string{"booking.create", "booking.delete", "booking.deleteAll"} {
		err := store.AppendAudit(ctx, persistence.AuditRecord{
			ID:         "audit-" + action,
			ActorID:    1,
			ActorName:  "admin",
			Action:     action,
			TargetType: "reservation",
			TargetID:   "7",
			Before:     map[string]any{"partySize": float64(i)},
			Details:    action,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendAudit failed: %v", err)
		}
	}

	records, err := store.ListAudit(ctx, persistence.AuditFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected two records, got %d", len(records))
	}
	if records[0].Action != "booking.deleteAll" || records[1].Action != "booking.delete" {
		t.Fatalf("expected newest first, got %s then %s", records[0].Action, records[1].Action)
	}
	if got := records[1].Before["partySize"]; got != float64(1) {
		t.Fatalf("expected before snapshot to round trip, got %v", got)
	}
	for i, record := range []persistence.AuditRecord{
		{ID: "audit-room", ActorID: 2, ActorName: "lee", Action: "room.create", TargetType: "room", TargetID: "3"},
		{ID: "audit-requester", ActorID: 1, ActorName: "admin", Action: "requester.create", TargetType: "requester", TargetID: "2"},
	} {
		record.CreatedAt = base.Add(time.Duration(3+i) * time.Minute)
		if err := store.AppendAudit(ctx, record); err != nil {
			t.Fatalf("AppendAudit failed: %v", err)
		}
	}

	at := func(minutes int) *time.Time {
		v := base.Add(time.Duration(minutes) * time.Minute)
		return &v
	}
	tests := []struct {
		name   string
		filter persistence.AuditFilter
		want   []string
	}{
		{name: "all", filter: persistence.AuditFilter{}, want: []string{"audit-requester", "audit-room", "audit-booking.deleteAll", "audit-booking.delete", "audit-booking.create"}},
		{name: "actor", filter: persistence.AuditFilter{ActorName: "lee"}, want: []string{"audit-room"}},
		{name: "action prefix", filter: persistence.AuditFilter{ActionPrefix: "booking.delete"}, want: []string{"audit-booking.deleteAll", "audit-booking.delete"}},
		{name: "prefix wildcards are literal", filter: persistence.AuditFilter{ActionPrefix: "booking_"}, want: nil},
		{name: "scopes", filter: persistence.AuditFilter{ActionScopes: []string{"room.", "requester."}}, want: []string{"audit-requester", "audit-room"}},
		{name: "scopes and prefix", filter: persistence.AuditFilter{ActionScopes: []string{"booking.", "room."}, ActionPrefix: "r"}, want: []string{"audit-room"}},
		{name: "inclusive range", filter: persistence.AuditFilter{From: at(1), To: at(3)}, want: []string{"audit-room", "audit-booking.deleteAll", "audit-booking.delete"}},
		{name: "from only with limit", filter: persistence.AuditFilter{From: at(2), Limit: 1}, want: []string{"audit-requester"}},
		{name: "empty range", filter: persistence.AuditFilter{From: at(10)}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.ListAudit(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListAudit failed: %v", err)
			}
			got := make([]string, 0, len(records))
			for _, record := range records {
				got = append(got, record.ID)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
