package application_test

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/persistence/memory"
	"github.com/example/roombook/internal/scheduler"
	"github.com/example/roombook/internal/testfixtures"
)

// forEachStore runs fn against services backed by every embedded store.
func forEachStore(t *testing.T, fn func(t *testing.T, factory *testfixtures.ServiceFactory, svc *testfixtures.Services)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		factory := testfixtures.NewServiceFactory()
		fn(t, factory, factory.NewMemoryServices(t))
	})
	t.Run("sqlite", func(t *testing.T) {
		factory := testfixtures.NewServiceFactory()
		fn(t, factory, factory.NewSQLiteServices(t))
	})
}

func reserve(svc *testfixtures.Services, actor application.Actor, roomID int64, w scheduler.Window, party int) (persistence.Reservation, error) {
	return svc.Reservations.TryReserve(context.Background(), actor, application.ReserveRequest{
		RoomID:      roomID,
		RequesterID: actor.ID,
		Window:      w,
		PartySize:   party,
	})
}

func TestReservationService_TryReserve(t *testing.T) {
	forEachStore(t, func(t *testing.T, factory *testfixtures.ServiceFactory, svc *testfixtures.Services) {
		clock := factory.Clock
		room := svc.MustRoom(t, testfixtures.WithCapacity(50))
		other := svc.MustRoom(t, testfixtures.WithCapacity(50))
		alice := svc.MustRequester(t)

		first := clock.Window(time.Hour, time.Hour)
		res, err := reserve(svc, alice, room.ID, first, 10)
		if err != nil {
			t.Fatalf("TryReserve failed: %v", err)
		}
		if res.ID == 0 || res.RoomID != room.ID || res.RequesterID != alice.ID {
			t.Fatalf("unexpected reservation %+v", res)
		}
		if !res.Start.Equal(first.Start) || !res.End.Equal(first.End) {
			t.Fatalf("expected window %v-%v, got %v-%v", first.Start, first.End, res.Start, res.End)
		}

		t.Run("back to back windows do not conflict", func(t *testing.T) {
			if _, err := reserve(svc, alice, room.ID, clock.Window(2*time.Hour, time.Hour), 10); err != nil {
				t.Fatalf("expected back-to-back reservation to succeed, got %v", err)
			}
			if _, err := reserve(svc, alice, room.ID, clock.Window(0, time.Hour), 10); err != nil {
				t.Fatalf("expected reservation ending at existing start to succeed, got %v", err)
			}
		})

		t.Run("identical window conflicts", func(t *testing.T) {
			if _, err := reserve(svc, alice, room.ID, first, 1); !errors.Is(err, application.ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}
		})

		t.Run("partial overlap conflicts", func(t *testing.T) {
			w := clock.Window(90*time.Minute, time.Hour)
			if _, err := reserve(svc, alice, room.ID, w, 1); !errors.Is(err, application.ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}
			inner := clock.Window(70*time.Minute, 10*time.Minute)
			if _, err := reserve(svc, alice, room.ID, inner, 1); !errors.Is(err, application.ErrConflict) {
				t.Fatalf("expected ErrConflict for contained window, got %v", err)
			}
		})

		t.Run("same window on another room succeeds", func(t *testing.T) {
			if _, err := reserve(svc, alice, other.ID, first, 10); err != nil {
				t.Fatalf("expected reservation on another room to succeed, got %v", err)
			}
		})

		t.Run("capacity boundaries", func(t *testing.T) {
			boundary := svc.MustRoom(t, testfixtures.WithCapacity(50))
			w := clock.Window(24*time.Hour, time.Hour)

			if _, err := reserve(svc, alice, boundary.ID, w, 51); !errors.Is(err, application.ErrCapacityExceeded) {
				t.Fatalf("expected ErrCapacityExceeded for 51, got %v", err)
			}
			if _, err := reserve(svc, alice, boundary.ID, w, 0); !errors.Is(err, application.ErrInvalidPartySize) {
				t.Fatalf("expected ErrInvalidPartySize for 0, got %v", err)
			}
			if _, err := reserve(svc, alice, boundary.ID, w, 50); err != nil {
				t.Fatalf("expected full-capacity party to succeed, got %v", err)
			}
		})

		t.Run("window must be well formed and not started", func(t *testing.T) {
			start := clock.Now().Add(48 * time.Hour)
			empty := scheduler.Window{Start: start, End: start}
			if _, err := reserve(svc, alice, room.ID, empty, 1); !errors.Is(err, application.ErrInvalidWindow) {
				t.Fatalf("expected ErrInvalidWindow for empty window, got %v", err)
			}
			inverted := scheduler.Window{Start: start, End: start.Add(-time.Minute)}
			if _, err := reserve(svc, alice, room.ID, inverted, 1); !errors.Is(err, application.ErrInvalidWindow) {
				t.Fatalf("expected ErrInvalidWindow for inverted window, got %v", err)
			}
			past := clock.Window(-time.Minute, time.Hour)
			if _, err := reserve(svc, alice, other.ID, past, 1); !errors.Is(err, application.ErrInvalidWindow) {
				t.Fatalf("expected ErrInvalidWindow for started window, got %v", err)
			}
		})

		t.Run("unknown references", func(t *testing.T) {
			w := clock.Window(72*time.Hour, time.Hour)
			if _, err := reserve(svc, alice, 9999, w, 1); !errors.Is(err, application.ErrRoomNotFound) {
				t.Fatalf("expected ErrRoomNotFound, got %v", err)
			}

			_, err := svc.Reservations.TryReserve(context.Background(), svc.Admin, application.ReserveRequest{
				RoomID: room.ID, RequesterID: 9999, Window: w, PartySize: 1,
			})
			if !errors.Is(err, application.ErrRequesterNotFound) {
				t.Fatalf("expected ErrRequesterNotFound, got %v", err)
			}
		})

		t.Run("rejections leave no trace", func(t *testing.T) {
			all, err := svc.Reservations.ListByRoom(context.Background(), room.ID)
			if err != nil {
				t.Fatalf("ListByRoom failed: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("expected 3 reservations on the room, got %d", len(all))
			}
		})
	})
}

func TestReservationService_CheckOrder(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	svc := factory.NewMemoryServices(t)
	clock := factory.Clock
	room := svc.MustRoom(t, testfixtures.WithCapacity(5))
	alice := svc.MustRequester(t)
	bob := svc.MustRequester(t)

	past := clock.Window(-2*time.Hour, time.Hour)
	future := clock.Window(time.Hour, time.Hour)

	cases := []struct {
		name  string
		actor application.Actor
		req   application.ReserveRequest
		want  error
	}{
		{
			name:  "authorization precedes window validation",
			actor: bob,
			req:   application.ReserveRequest{RoomID: 9999, RequesterID: alice.ID, Window: past, PartySize: 0},
			want:  application.ErrUnauthorized,
		},
		{
			name:  "window precedes room lookup",
			actor: alice,
			req:   application.ReserveRequest{RoomID: 9999, RequesterID: alice.ID, Window: past, PartySize: 0},
			want:  application.ErrInvalidWindow,
		},
		{
			name:  "room precedes requester lookup",
			actor: svc.Admin,
			req:   application.ReserveRequest{RoomID: 9999, RequesterID: 8888, Window: future, PartySize: 0},
			want:  application.ErrRoomNotFound,
		},
		{
			name:  "requester precedes party size",
			actor: svc.Admin,
			req:   application.ReserveRequest{RoomID: room.ID, RequesterID: 8888, Window: future, PartySize: 0},
			want:  application.ErrRequesterNotFound,
		},
		{
			name:  "party size is checked against capacity",
			actor: alice,
			req:   application.ReserveRequest{RoomID: room.ID, RequesterID: alice.ID, Window: future, PartySize: 6},
			want:  application.ErrCapacityExceeded,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Reservations.TryReserve(context.Background(), tc.actor, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReservationService_Authorization(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	svc := factory.NewMemoryServices(t)
	room := svc.MustRoom(t)
	alice := svc.MustRequester(t)
	bob := svc.MustRequester(t)
	registrar := svc.MustRequester(t, testfixtures.WithRole(application.RoleRegistrar))
	ctx := context.Background()

	res, err := svc.Reservations.TryReserve(ctx, registrar, application.ReserveRequest{
		RoomID: room.ID, RequesterID: alice.ID, Window: factory.Clock.Window(time.Hour, time.Hour), PartySize: 2,
	})
	if err != nil {
		t.Fatalf("expected registrar to reserve on behalf of alice, got %v", err)
	}

	if _, err := svc.Reservations.DeleteReservation(ctx, bob, res.ID); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized when bob deletes alice's reservation, got %v", err)
	}
	party := 3
	if _, err := svc.Reservations.UpdateReservation(ctx, bob, res.ID, application.ReservationPatch{PartySize: &party}); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized when bob updates alice's reservation, got %v", err)
	}
	if _, err := svc.Reservations.DeleteAllReservations(ctx, registrar); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected only admins to delete all reservations, got %v", err)
	}

	removed, err := svc.Reservations.DeleteReservation(ctx, alice, res.ID)
	if err != nil || !removed {
		t.Fatalf("expected alice to delete her reservation, got removed=%v err=%v", removed, err)
	}
	removed, err = svc.Reservations.DeleteReservation(ctx, alice, res.ID)
	if err != nil || removed {
		t.Fatalf("expected second delete to report false, got removed=%v err=%v", removed, err)
	}
}

func TestReservationService_ConcurrentReservations(t *testing.T) {
	forEachStore(t, func(t *testing.T, factory *testfixtures.ServiceFactory, svc *testfixtures.Services) {
		room := svc.MustRoom(t, testfixtures.WithCapacity(10))
		window := factory.Clock.Window(time.Hour, time.Hour)

		const attempts = 12
		actors := make([]application.Actor, attempts)
		for i := range actors {
			actors[i] = svc.MustRequester(t)
		}

		var succeeded, conflicted atomic.Int32
		var g errgroup.Group
		for i := 0; i < attempts; i++ {
			actor := actors[i]
			g.Go(func() error {
				_, err := reserve(svc, actor, room.ID, window, 1)
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, application.ErrConflict):
					conflicted.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("unexpected reservation error: %v", err)
		}

		if succeeded.Load() != 1 || conflicted.Load() != attempts-1 {
			t.Fatalf("expected exactly one success, got %d successes and %d conflicts", succeeded.Load(), conflicted.Load())
		}

		stored, err := svc.Reservations.ListByRoom(context.Background(), room.ID)
		if err != nil {
			t.Fatalf("ListByRoom failed: %v", err)
		}
		if len(stored) != 1 {
			t.Fatalf("expected one stored reservation, got %d", len(stored))
		}
	})
}

func TestReservationService_FindAvailable(t *testing.T) {
	forEachStore(t, func(t *testing.T, factory *testfixtures.ServiceFactory, svc *testfixtures.Services) {
		ctx := context.Background()
		clock := factory.Clock
		science101 := svc.MustRoom(t, testfixtures.WithLocation("Science", "101"), testfixtures.WithCapacity(30))
		arts2 := svc.MustRoom(t, testfixtures.WithLocation("Arts", "2"), testfixtures.WithCapacity(10))
		arts1 := svc.MustRoom(t, testfixtures.WithLocation("Arts", "1"), testfixtures.WithCapacity(40))
		alice := svc.MustRequester(t)

		booked := clock.Window(time.Hour, time.Hour)
		if _, err := reserve(svc, alice, arts2.ID, booked, 5); err != nil {
			t.Fatalf("TryReserve failed: %v", err)
		}

		ids := func(rooms []persistence.Room) []int64 {
			out := make([]int64, 0, len(rooms))
			for _, r := range rooms {
				out = append(out, r.ID)
			}
			return out
		}
		equal := func(a, b []int64) bool {
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return true
		}

		overlapping := clock.Window(90*time.Minute, time.Hour)
		got, err := svc.Reservations.FindAvailable(ctx, overlapping, 0)
		if err != nil {
			t.Fatalf("FindAvailable failed: %v", err)
		}
		if want := []int64{arts1.ID, science101.ID}; !equal(ids(got), want) {
			t.Fatalf("expected %v, got %v", want, ids(got))
		}

		again, err := svc.Reservations.FindAvailable(ctx, overlapping, 0)
		if err != nil {
			t.Fatalf("FindAvailable failed: %v", err)
		}
		if !equal(ids(again), ids(got)) {
			t.Fatalf("expected repeated query to match, got %v then %v", ids(got), ids(again))
		}

		adjacent := clock.Window(2*time.Hour, time.Hour)
		got, err = svc.Reservations.FindAvailable(ctx, adjacent, 0)
		if err != nil {
			t.Fatalf("FindAvailable failed: %v", err)
		}
		if want := []int64{arts1.ID, arts2.ID, science101.ID}; !equal(ids(got), want) {
			t.Fatalf("expected every room free after the reservation ends, got %v", ids(got))
		}

		got, err = svc.Reservations.FindAvailable(ctx, adjacent, 35)
		if err != nil {
			t.Fatalf("FindAvailable failed: %v", err)
		}
		if want := []int64{arts1.ID}; !equal(ids(got), want) {
			t.Fatalf("expected only rooms with capacity >= 35, got %v", ids(got))
		}

		past := clock.Window(-3*time.Hour, time.Hour)
		if _, err := svc.Reservations.FindAvailable(ctx, past, 0); err != nil {
			t.Fatalf("expected past windows to be queryable, got %v", err)
		}

		inverted := scheduler.Window{Start: booked.End, End: booked.Start}
		if _, err := svc.Reservations.FindAvailable(ctx, inverted, 0); !errors.Is(err, application.ErrInvalidWindow) {
			t.Fatalf("expected ErrInvalidWindow, got %v", err)
		}
	})
}

func TestReservationService_UpdateReservation(t *testing.T) {
	forEachStore(t, func(t *testing.T, factory *testfixtures.ServiceFactory, svc *testfixtures.Services) {
		ctx := context.Background()
		clock := factory.Clock
		room := svc.MustRoom(t, testfixtures.WithCapacity(8))
		alice := svc.MustRequester(t)

		first, err := reserve(svc, alice, room.ID, clock.Window(time.Hour, time.Hour), 2)
		if err != nil {
			t.Fatalf("TryReserve failed: %v", err)
		}
		second, err := reserve(svc, alice, room.ID, clock.Window(3*time.Hour, time.Hour), 2)
		if err != nil {
			t.Fatalf("TryReserve failed: %v", err)
		}

		shifted := first.Start.Add(30 * time.Minute)
		shiftedEnd := first.End.Add(30 * time.Minute)
		updated, err := svc.Reservations.UpdateReservation(ctx, alice, first.ID, application.ReservationPatch{Start: &shifted, End: &shiftedEnd})
		if err != nil {
			t.Fatalf("expected update overlapping only itself to succeed, got %v", err)
		}
		if updated.ID != first.ID || !updated.Start.Equal(shifted) || !updated.CreatedAt.Equal(first.CreatedAt) {
			t.Fatalf("unexpected updated reservation %+v", updated)
		}

		intoSecond := second.Start.Add(15 * time.Minute)
		if _, err := svc.Reservations.UpdateReservation(ctx, alice, first.ID, application.ReservationPatch{End: &intoSecond, Start: &shifted}); !errors.Is(err, application.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		tooMany := 9
		if _, err := svc.Reservations.UpdateReservation(ctx, alice, first.ID, application.ReservationPatch{PartySize: &tooMany}); !errors.Is(err, application.ErrCapacityExceeded) {
			t.Fatalf("expected ErrCapacityExceeded, got %v", err)
		}

		unchanged, err := svc.Reservations.UpdateReservation(ctx, alice, first.ID, application.ReservationPatch{})
		if err != nil || !unchanged.Start.Equal(shifted) {
			t.Fatalf("expected empty patch to return stored reservation, got %+v err=%v", unchanged, err)
		}

		if _, err := svc.Reservations.UpdateReservation(ctx, alice, 9999, application.ReservationPatch{PartySize: &tooMany}); !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestReservationService_Queries(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	svc := factory.NewMemoryServices(t)
	clock := factory.Clock
	ctx := context.Background()
	room := svc.MustRoom(t)
	alice := svc.MustRequester(t)
	bob := svc.MustRequester(t)

	soon, err := reserve(svc, alice, room.ID, clock.Window(time.Hour, time.Hour), 1)
	if err != nil {
		t.Fatalf("TryReserve failed: %v", err)
	}
	later, err := reserve(svc, alice, room.ID, clock.Window(48*time.Hour, time.Hour), 1)
	if err != nil {
		t.Fatalf("TryReserve failed: %v", err)
	}
	if _, err := reserve(svc, bob, room.ID, clock.Window(3*time.Hour, time.Hour), 1); err != nil {
		t.Fatalf("TryReserve failed: %v", err)
	}

	clock.Advance(90 * time.Minute)

	past, err := svc.Reservations.ListByRequester(ctx, alice.ID, application.ScopePast)
	if err != nil {
		t.Fatalf("ListByRequester failed: %v", err)
	}
	if len(past) != 1 || past[0].ID != soon.ID {
		t.Fatalf("expected only the started reservation in the past scope, got %+v", past)
	}

	future, err := svc.Reservations.ListByRequester(ctx, alice.ID, application.ScopeFuture)
	if err != nil {
		t.Fatalf("ListByRequester failed: %v", err)
	}
	if len(future) != 1 || future[0].ID != later.ID {
		t.Fatalf("expected only the upcoming reservation in the future scope, got %+v", future)
	}

	all, err := svc.Reservations.ListByRequester(ctx, alice.ID, application.ScopeAll)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected both of alice's reservations, got %d err=%v", len(all), err)
	}

	day, err := svc.Reservations.ListByDay(ctx, soon.Start)
	if err != nil {
		t.Fatalf("ListByDay failed: %v", err)
	}
	if len(day) != 2 {
		t.Fatalf("expected two reservations on the first day, got %d", len(day))
	}

	if _, err := svc.Reservations.ListByRequester(ctx, 9999, application.ScopeAll); !errors.Is(err, application.ErrRequesterNotFound) {
		t.Fatalf("expected ErrRequesterNotFound, got %v", err)
	}
	if _, err := svc.Reservations.ListByRoom(ctx, 9999); !errors.Is(err, application.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := svc.Reservations.GetReservation(ctx, 9999); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	count, err := svc.Reservations.DeleteAllReservations(ctx, svc.Admin)
	if err != nil || count != 3 {
		t.Fatalf("expected 3 reservations deleted, got %d err=%v", count, err)
	}
}

func TestReservationService_Audit(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	svc := factory.NewMemoryServices(t)
	ctx := context.Background()
	room := svc.MustRoom(t)
	alice := svc.MustRequester(t)

	res, err := reserve(svc, alice, room.ID, factory.Clock.Window(time.Hour, time.Hour), 1)
	if err != nil {
		t.Fatalf("TryReserve failed: %v", err)
	}
	if _, err := reserve(svc, alice, room.ID, factory.Clock.Window(time.Hour, time.Hour), 1); !errors.Is(err, application.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	records, err := svc.AuditLog.ListAudit(ctx, svc.Admin, persistence.AuditFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	latest := records[0]
	if latest.Action != application.ActionBookingCreate || latest.ActorID != alice.ID || latest.TargetID != strconv.FormatInt(res.ID, 10) {
		t.Fatalf("unexpected audit record %+v", latest)
	}
	if latest.After["roomId"] != room.ID || latest.After["id"] != res.ID {
		t.Fatalf("expected reservation snapshot, got %v", latest.After)
	}

	if _, err := svc.AuditLog.ListAudit(ctx, alice, persistence.AuditFilter{}); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected non-admins to be refused, got %v", err)
	}
}

func TestAuditService_ListAudit(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	svc := factory.NewMemoryServices(t)
	ctx := context.Background()
	start := factory.Clock.Now()

	lee := svc.MustRequester(t, testfixtures.WithUsername("lee"), testfixtures.WithRole(application.RoleRegistrar))
	factory.Clock.Advance(time.Hour)
	room := svc.MustRoom(t)
	if _, err := reserve(svc, lee, room.ID, factory.Clock.Window(time.Hour, time.Hour), 1); err != nil {
		t.Fatalf("TryReserve failed: %v", err)
	}

	t.Run("registrars see booking and room records", func(t *testing.T) {
		records, err := svc.AuditLog.ListAudit(ctx, lee, persistence.AuditFilter{})
		if err != nil {
			t.Fatalf("ListAudit failed: %v", err)
		}
		if len(records) != 2 || records[0].Action != application.ActionBookingCreate || records[1].Action != application.ActionRoomCreate {
			t.Fatalf("expected booking and room records newest first, got %+v", records)
		}

		records, err = svc.AuditLog.ListAudit(ctx, lee, persistence.AuditFilter{ActionPrefix: "requester."})
		if err != nil || len(records) != 0 {
			t.Fatalf("expected requester records to stay hidden, got %+v err=%v", records, err)
		}
	})

	t.Run("admins filter by actor action and time", func(t *testing.T) {
		records, err := svc.AuditLog.ListAudit(ctx, svc.Admin, persistence.AuditFilter{ActorName: "lee"})
		if err != nil || len(records) != 1 || records[0].Action != application.ActionBookingCreate {
			t.Fatalf("expected lee's booking only, got %+v err=%v", records, err)
		}

		records, err = svc.AuditLog.ListAudit(ctx, svc.Admin, persistence.AuditFilter{ActionPrefix: "requester."})
		if err != nil || len(records) != 1 || records[0].TargetID != strconv.FormatInt(lee.ID, 10) {
			t.Fatalf("expected lee's creation record, got %+v err=%v", records, err)
		}

		to := start
		records, err = svc.AuditLog.ListAudit(ctx, svc.Admin, persistence.AuditFilter{To: &to})
		if err != nil || len(records) != 1 || records[0].Action != application.ActionRequesterCreate {
			t.Fatalf("expected the inclusive upper bound to match the first record, got %+v err=%v", records, err)
		}

		from := start.Add(time.Minute)
		if _, err := svc.AuditLog.ListAudit(ctx, svc.Admin, persistence.AuditFilter{From: &from, To: &to}); !errors.Is(err, application.ErrInvalidWindow) {
			t.Fatalf("expected ErrInvalidWindow for an inverted range, got %v", err)
		}
	})
}

type failingEmitter struct{ calls atomic.Int32 }

func (f *failingEmitter) Emit(context.Context, application.AuditEvent) error {
	f.calls.Add(1)
	return errors.New("audit sink offline")
}

func TestReservationService_AuditFailureDoesNotRejectReservation(t *testing.T) {
	store := memory.New()
	clock := testfixtures.NewClock(time.Time{})
	emitter := &failingEmitter{}
	now := clock.NowFunc()

	requesters := application.NewRequesterService(store, emitter, now, nil)
	requester, err := requesters.EnsureRequester(context.Background(), application.RequesterInput{Username: "carol"})
	if err != nil {
		t.Fatalf("EnsureRequester failed: %v", err)
	}
	room, err := store.CreateRoom(context.Background(), testfixtures.NewRoomFixture().Persistence())
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	svc := application.NewReservationService(store, store, store, emitter, now, nil)
	actor := application.ActorFromRequester(requester)
	res, err := svc.TryReserve(context.Background(), actor, application.ReserveRequest{
		RoomID: room.ID, RequesterID: actor.ID, Window: clock.Window(time.Hour, time.Hour), PartySize: 1,
	})
	if err != nil {
		t.Fatalf("expected reservation to commit despite audit failure, got %v", err)
	}
	if emitter.calls.Load() != 1 {
		t.Fatalf("expected one emit attempt, got %d", emitter.calls.Load())
	}
	if _, err := store.GetReservation(context.Background(), res.ID); err != nil {
		t.Fatalf("expected reservation to be stored, got %v", err)
	}
}
