package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/roombook/internal/application"
)

// requireActor returns the acting requester or writes 401.
func requireActor(resp responder, w http.ResponseWriter, r *http.Request) (application.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		resp.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
		return application.Actor{}, false
	}
	return actor, true
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	return nil
}

// parseTimestamp reads an RFC 3339 timestamp and normalises it to UTC.
func parseTimestamp(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", application.ErrInvalidWindow, field)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", application.ErrInvalidWindow, field)
	}
	return t.UTC(), nil
}

// parseMinCapacity reads an optional min_capacity query value. Absent and
// zero both mean no capacity filter.
func parseMinCapacity(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(value); err == nil && n == 0 {
		return 0, nil
	}
	return application.ParseCapacity(value)
}

// formatTime keeps sub-second precision so a reported bound can be booked back to back.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
