package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/testfixtures"
)

func TestRequesterService(t *testing.T) {
	factory := testfixtures.NewServiceFactory()
	svc := factory.NewMemoryServices(t)
	ctx := context.Background()

	t.Run("bootstrap is idempotent", func(t *testing.T) {
		again, err := svc.Requesters.EnsureRequester(ctx, application.RequesterInput{Username: "admin", Role: application.RoleAdmin})
		if err != nil || again.ID != svc.Admin.ID {
			t.Fatalf("expected existing admin %d, got %+v err=%v", svc.Admin.ID, again, err)
		}
	})

	t.Run("create defaults role and display name", func(t *testing.T) {
		created, err := svc.Requesters.CreateRequester(ctx, svc.Admin, application.RequesterInput{Username: " dana "})
		if err != nil {
			t.Fatalf("CreateRequester failed: %v", err)
		}
		if created.Username != "dana" || created.DisplayName != "dana" || created.Role != string(application.RoleStaff) {
			t.Fatalf("unexpected requester %+v", created)
		}

		if _, err := svc.Requesters.CreateRequester(ctx, svc.Admin, application.RequesterInput{Username: "dana"}); !errors.Is(err, application.ErrRequesterAlreadyExists) {
			t.Fatalf("expected ErrRequesterAlreadyExists, got %v", err)
		}

		resolved, err := svc.Requesters.ResolveUsername(ctx, "dana")
		if err != nil || resolved.ID != created.ID {
			t.Fatalf("expected ResolveUsername to find dana, got %+v err=%v", resolved, err)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		_, err := svc.Requesters.CreateRequester(ctx, svc.Admin, application.RequesterInput{Username: "", Role: "owner"})
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) || !errors.Is(err, application.ErrInvalidRequester) {
			t.Fatalf("expected ErrInvalidRequester validation error, got %v", err)
		}
		if len(vErr.FieldErrors) != 2 {
			t.Fatalf("expected username and role errors, got %v", vErr.FieldErrors)
		}
	})

	t.Run("only administrators manage requesters", func(t *testing.T) {
		staff := svc.MustRequester(t)
		if _, err := svc.Requesters.CreateRequester(ctx, staff, testfixtures.NewRequesterFixture().Input()); !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := svc.Requesters.DeleteRequester(ctx, staff, svc.Admin.ID); !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("delete removes held reservations", func(t *testing.T) {
		room := svc.MustRoom(t)
		erin := svc.MustRequester(t)
		res, err := svc.Reservations.TryReserve(ctx, erin, application.ReserveRequest{
			RoomID: room.ID, RequesterID: erin.ID, Window: factory.Clock.Window(time.Hour, time.Hour), PartySize: 1,
		})
		if err != nil {
			t.Fatalf("TryReserve failed: %v", err)
		}

		removed, err := svc.Requesters.DeleteRequester(ctx, svc.Admin, erin.ID)
		if err != nil || !removed {
			t.Fatalf("expected requester removed, got removed=%v err=%v", removed, err)
		}
		if _, err := svc.Reservations.GetReservation(ctx, res.ID); !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected reservation removed with requester, got %v", err)
		}
		if _, err := svc.Requesters.GetRequester(ctx, erin.ID); !errors.Is(err, application.ErrRequesterNotFound) {
			t.Fatalf("expected ErrRequesterNotFound, got %v", err)
		}
	})

	t.Run("list is ordered by username", func(t *testing.T) {
		all, err := svc.Requesters.ListRequesters(ctx)
		if err != nil {
			t.Fatalf("ListRequesters failed: %v", err)
		}
		for i := 1; i < len(all); i++ {
			if all[i-1].Username > all[i].Username {
				t.Fatalf("expected usernames in order, got %q before %q", all[i-1].Username, all[i].Username)
			}
		}
	})
}
