package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/persistence"
)

type auditService interface {
	ListAudit(ctx context.Context, actor application.Actor, filter persistence.AuditFilter) ([]persistence.AuditRecord, error)
}

type AuditHandler struct {
	service   auditService
	responder responder
}

func NewAuditHandler(service auditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{service: service, responder: newResponder(logger)}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	filter, err := parseAuditFilter(r)
	if errors.Is(err, application.ErrInvalidWindow) {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	records, err := h.service.ListAudit(r.Context(), actor, filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]auditDTO, 0, len(records))
	for _, record := range records {
		out = append(out, auditDTO{
			ID:         record.ID,
			ActorID:    record.ActorID,
			ActorName:  record.ActorName,
			Action:     record.Action,
			TargetType: record.TargetType,
			TargetID:   record.TargetID,
			Before:     record.Before,
			After:      record.After,
			Details:    record.Details,
			CreatedAt:  record.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAuditResponse{Records: out})
}

// parseAuditFilter reads the actor, action, from, to and limit query values.
func parseAuditFilter(r *http.Request) (persistence.AuditFilter, error) {
	query := r.URL.Query()
	filter := persistence.AuditFilter{
		ActorName:    strings.TrimSpace(query.Get("actor")),
		ActionPrefix: strings.TrimSpace(query.Get("action")),
	}
	if value := query.Get("from"); strings.TrimSpace(value) != "" {
		from, err := parseTimestamp("from", value)
		if err != nil {
			return filter, err
		}
		filter.From = &from
	}
	if value := query.Get("to"); strings.TrimSpace(value) != "" {
		to, err := parseTimestamp("to", value)
		if err != nil {
			return filter, err
		}
		filter.To = &to
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = parsed
	}
	return filter, nil
}

type listAuditResponse struct {
	Records []auditDTO `json:"records"`
}

type auditDTO struct {
	ID         string         `json:"id"`
	ActorID    int64          `json:"actor_id"`
	ActorName  string         `json:"actor_name"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	Details    string         `json:"details,omitempty"`
	CreatedAt  string         `json:"created_at"`
}
