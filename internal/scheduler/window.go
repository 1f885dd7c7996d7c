package scheduler

import (
	"errors"
	"time"
)

// ErrInvalidWindow is returned when a window does not start strictly before it ends.
var ErrInvalidWindow = errors.New("scheduler: window start must be before end")

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a UTC-normalised window and validates it.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}.UTC()
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// UTC returns the window with both bounds expressed in UTC.
func (w Window) UTC() Window {
	return Window{Start: w.Start.UTC(), End: w.End.UTC()}
}

// Validate reports ErrInvalidWindow for empty or inverted windows.
func (w Window) Validate() error {
	if !w.Start.Before(w.End) {
		return ErrInvalidWindow
	}
	return nil
}

// Overlaps reports whether the two windows share at least one instant.
// Windows that only touch at an endpoint do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// StartsBefore reports whether the window begins before the reference instant.
func (w Window) StartsBefore(reference time.Time) bool {
	return w.Start.Before(reference)
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// DayWindow returns the UTC calendar day containing t as [00:00Z, next 00:00Z).
func DayWindow(t time.Time) Window {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}
