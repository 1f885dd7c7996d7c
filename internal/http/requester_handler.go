package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/logging"
	"github.com/example/roombook/internal/persistence"
)

type requesterService interface {
	CreateRequester(ctx context.Context, actor application.Actor, input application.RequesterInput) (persistence.Requester, error)
	DeleteRequester(ctx context.Context, actor application.Actor, id int64) (bool, error)
	ListRequesters(ctx context.Context) ([]persistence.Requester, error)
	ResolveUsername(ctx context.Context, username string) (persistence.Requester, error)
}

type RequesterHandler struct {
	service   requesterService
	responder responder
	logger    *slog.Logger
}

func NewRequesterHandler(service requesterService, logger *slog.Logger) *RequesterHandler {
	base := logging.OrDefault(logger)
	return &RequesterHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RequesterHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	var req requesterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	requester, err := h.service.CreateRequester(r.Context(), actor, application.RequesterInput{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Role:        application.Role(req.Role),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logging.Scoped(r.Context(), h.logger, "handler", "RequesterHandler", "Create", "actor_id", actor.ID).
		With("requester_id", requester.ID).InfoContext(r.Context(), "requester created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, requesterResponse{Requester: toRequesterDTO(requester)})
}

func (h *RequesterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRequesterID)
		return
	}

	actor, ok := requireActor(h.responder, w, r)
	if !ok {
		return
	}

	removed, err := h.service.DeleteRequester(r.Context(), actor, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !removed {
		h.responder.handleServiceError(r.Context(), w, application.ErrRequesterNotFound)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RequesterHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if _, ok := requireActor(h.responder, w, r); !ok {
		return
	}

	requester, err := h.service.ResolveUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, requesterResponse{Requester: toRequesterDTO(requester)})
}

func (h *RequesterHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if _, ok := requireActor(h.responder, w, r); !ok {
		return
	}

	requesters, err := h.service.ListRequesters(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]requesterDTO, 0, len(requesters))
	for _, requester := range requesters {
		out = append(out, toRequesterDTO(requester))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRequestersResponse{Requesters: out})
}

type requesterRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type requesterResponse struct {
	Requester requesterDTO `json:"requester"`
}

type listRequestersResponse struct {
	Requesters []requesterDTO `json:"requesters"`
}

type requesterDTO struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	CreatedAt   string `json:"created_at"`
}

func toRequesterDTO(r persistence.Requester) requesterDTO {
	return requesterDTO{
		ID:          r.ID,
		Username:    r.Username,
		DisplayName: r.DisplayName,
		Role:        r.Role,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
