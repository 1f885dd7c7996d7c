package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/example/roombook/internal/persistence"
)

// RequesterService maintains the requester directory.
type RequesterService struct {
	requesters persistence.RequesterRepository
	audit      AuditEmitter
	now        func() time.Time
	logger     *slog.Logger
}

// NewRequesterService constructs a requester service.
func NewRequesterService(requesters persistence.RequesterRepository, audit AuditEmitter, now func() time.Time, logger *slog.Logger) *RequesterService {
	if now == nil {
		now = time.Now
	}
	return &RequesterService{requesters: requesters, audit: audit, now: now, logger: defaultLogger(logger)}
}

func (s *RequesterService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RequesterService", operation, attrs...)
}

// CreateRequester adds a requester. Only administrators may call it.
func (s *RequesterService) CreateRequester(ctx context.Context, actor Actor, input RequesterInput) (requester persistence.Requester, err error) {
	logger := s.loggerWith(ctx, "CreateRequester", "actor_id", actor.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create requester", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("requester_id", requester.ID).InfoContext(ctx, "requester created")
	}()

	if !actor.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	requester, err = s.create(ctx, input)
	if err != nil {
		return
	}

	emit(ctx, s.audit, logger, AuditEvent{
		Actor:      actor,
		Action:     ActionRequesterCreate,
		TargetType: "requester",
		TargetID:   idString(requester.ID),
		After:      requesterSnapshot(requester),
	})
	return
}

// EnsureRequester returns the requester with input's username, creating it
// when absent. It is meant for startup bootstrapping and performs no
// authorization.
func (s *RequesterService) EnsureRequester(ctx context.Context, input RequesterInput) (persistence.Requester, error) {
	existing, err := s.requesters.GetRequesterByUsername(ctx, strings.TrimSpace(input.Username))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.Requester{}, storeError(err, nil)
	}

	created, err := s.create(ctx, input)
	if errors.Is(err, ErrRequesterAlreadyExists) {
		existing, err = s.requesters.GetRequesterByUsername(ctx, strings.TrimSpace(input.Username))
		return existing, storeError(err, ErrRequesterNotFound)
	}
	if err == nil {
		s.loggerWith(ctx, "EnsureRequester").InfoContext(ctx, "requester bootstrapped", "requester_id", created.ID, "username", created.Username)
	}
	return created, err
}

// ResolveUsername maps a username to its requester.
func (s *RequesterService) ResolveUsername(ctx context.Context, username string) (persistence.Requester, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return persistence.Requester{}, ErrRequesterNotFound
	}
	requester, err := s.requesters.GetRequesterByUsername(ctx, username)
	if err != nil {
		return persistence.Requester{}, storeError(err, ErrRequesterNotFound)
	}
	return requester, nil
}

// GetRequester returns a requester by id.
func (s *RequesterService) GetRequester(ctx context.Context, id int64) (persistence.Requester, error) {
	requester, err := s.requesters.GetRequester(ctx, id)
	if err != nil {
		return persistence.Requester{}, storeError(err, ErrRequesterNotFound)
	}
	return requester, nil
}

// ListRequesters returns every requester ordered by username.
func (s *RequesterService) ListRequesters(ctx context.Context) ([]persistence.Requester, error) {
	requesters, err := s.requesters.ListRequesters(ctx)
	if err != nil {
		return nil, storeError(err, nil)
	}
	return requesters, nil
}

// DeleteRequester removes a requester and their reservations.
func (s *RequesterService) DeleteRequester(ctx context.Context, actor Actor, id int64) (removed bool, err error) {
	logger := s.loggerWith(ctx, "DeleteRequester", "actor_id", actor.ID, "requester_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete requester", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("removed", removed).InfoContext(ctx, "requester delete processed")
	}()

	if !actor.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	existing, getErr := s.requesters.GetRequester(ctx, id)
	if getErr != nil && !errors.Is(getErr, persistence.ErrNotFound) {
		err = storeError(getErr, nil)
		return
	}

	removed, err = s.requesters.DeleteRequester(ctx, id)
	if err != nil {
		err = storeError(err, nil)
		return
	}
	if removed {
		emit(ctx, s.audit, logger, AuditEvent{
			Actor:      actor,
			Action:     ActionRequesterDelete,
			TargetType: "requester",
			TargetID:   idString(id),
			Before:     requesterSnapshot(existing),
			Details:    "reservations held by the requester were removed",
		})
	}
	return
}

func (s *RequesterService) create(ctx context.Context, input RequesterInput) (persistence.Requester, error) {
	vErr := &ValidationError{}
	username := strings.TrimSpace(input.Username)
	if username == "" {
		vErr.add(ErrInvalidRequester, "username", "username is required")
	}
	role := input.Role
	if role == "" {
		role = RoleStaff
	}
	if !role.Valid() {
		vErr.add(ErrInvalidRequester, "role", "role must be staff, registrar or admin")
	}
	if vErr.HasErrors() {
		return persistence.Requester{}, vErr
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = username
	}

	requester, err := s.requesters.CreateRequester(ctx, persistence.Requester{
		Username:    username,
		DisplayName: displayName,
		Role:        string(role),
		CreatedAt:   s.now().UTC(),
	})
	if errors.Is(err, persistence.ErrDuplicate) {
		return persistence.Requester{}, ErrRequesterAlreadyExists
	}
	if err != nil {
		return persistence.Requester{}, storeError(err, nil)
	}
	return requester, nil
}
