package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/example/roombook/internal/persistence"
)

// Audit action tags.
const (
	ActionBookingCreate    = "booking.create"
	ActionBookingUpdate    = "booking.update"
	ActionBookingDelete    = "booking.delete"
	ActionBookingDeleteAll = "booking.deleteAll"
	ActionRoomCreate       = "room.create"
	ActionRoomUpdate       = "room.update"
	ActionRoomDelete       = "room.delete"
	ActionRoomDeleteAll    = "room.deleteAll"
	ActionRoomImport       = "room.import"
	ActionRequesterCreate  = "requester.create"
	ActionRequesterDelete  = "requester.delete"
)

// AuditEvent describes one committed state change.
type AuditEvent struct {
	Actor      Actor
	Action     string
	TargetType string
	TargetID   string
	Before     map[string]any
	After      map[string]any
	Details    string
}

// AuditEmitter records audit events. It is append-only and never read by the services.
type AuditEmitter interface {
	Emit(ctx context.Context, event AuditEvent) error
}

// StoreAuditEmitter appends events to an audit repository.
type StoreAuditEmitter struct {
	repo  persistence.AuditRepository
	now   func() time.Time
	newID func() string
}

// NewStoreAuditEmitter constructs an emitter writing to repo with random UUID record ids.
func NewStoreAuditEmitter(repo persistence.AuditRepository, now func() time.Time) *StoreAuditEmitter {
	return NewStoreAuditEmitterWithIDs(repo, now, nil)
}

// NewStoreAuditEmitterWithIDs constructs an emitter with a specified record id source.
func NewStoreAuditEmitterWithIDs(repo persistence.AuditRepository, now func() time.Time, newID func() string) *StoreAuditEmitter {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &StoreAuditEmitter{repo: repo, now: now, newID: newID}
}

// Emit stores the event with a generated id and timestamp.
func (e *StoreAuditEmitter) Emit(ctx context.Context, event AuditEvent) error {
	record := persistence.AuditRecord{
		ID:         e.newID(),
		ActorID:    event.Actor.ID,
		ActorName:  event.Actor.Name,
		Action:     event.Action,
		TargetType: event.TargetType,
		TargetID:   event.TargetID,
		Before:     event.Before,
		After:      event.After,
		Details:    event.Details,
		CreatedAt:  e.now().UTC(),
	}
	if err := e.repo.AppendAudit(ctx, record); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// emit forwards an event. Failures are logged and never undo the committed change.
func emit(ctx context.Context, emitter AuditEmitter, logger *slog.Logger, event AuditEvent) {
	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"target_id", event.TargetID,
			"error", err,
		)
	}
}

// AuditService exposes the audit log. Administrators see every record,
// registrars only booking and room records.
type AuditService struct {
	repo   persistence.AuditRepository
	logger *slog.Logger
}

// DefaultAuditLimit bounds audit listings when the caller gives no limit.
const DefaultAuditLimit = 100

// RegistrarAuditScopes are the action prefixes visible to registrars.
var RegistrarAuditScopes = []string{"booking.", "room."}

// NewAuditService constructs an audit reader.
func NewAuditService(repo persistence.AuditRepository, logger *slog.Logger) *AuditService {
	return &AuditService{repo: repo, logger: defaultLogger(logger)}
}

// ListAudit returns the records matching filter, newest first. A registrar's
// listing is further restricted to RegistrarAuditScopes.
func (s *AuditService) ListAudit(ctx context.Context, actor Actor, filter persistence.AuditFilter) (records []persistence.AuditRecord, err error) {
	logger := s.loggerWith(ctx, "ListAudit", "actor_id", actor.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list audit log", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	switch actor.Role {
	case RoleAdmin:
	case RoleRegistrar:
		filter.ActionScopes = RegistrarAuditScopes
	default:
		return nil, ErrUnauthorized
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, fmt.Errorf("%w: from must not be after to", ErrInvalidWindow)
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultAuditLimit
	}

	records, err = s.repo.ListAudit(ctx, filter)
	if err != nil {
		return nil, storeError(err, nil)
	}
	return records, nil
}

func (s *AuditService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuditService", operation, attrs...)
}

func roomSnapshot(room persistence.Room) map[string]any {
	snapshot := map[string]any{
		"id":         room.ID,
		"building":   room.Building,
		"roomNumber": room.RoomNumber,
		"capacity":   room.Capacity,
	}
	if room.Equipment != nil {
		snapshot["equipment"] = *room.Equipment
	}
	return snapshot
}

func reservationSnapshot(res persistence.Reservation) map[string]any {
	return map[string]any{
		"id":          res.ID,
		"roomId":      res.RoomID,
		"requesterId": res.RequesterID,
		"start":       res.Start.UTC().Format(time.RFC3339Nano),
		"end":         res.End.UTC().Format(time.RFC3339Nano),
		"partySize":   res.PartySize,
	}
}

func requesterSnapshot(r persistence.Requester) map[string]any {
	return map[string]any{
		"id":          r.ID,
		"username":    r.Username,
		"displayName": r.DisplayName,
		"role":        r.Role,
	}
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
