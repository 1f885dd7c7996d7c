package testfixtures

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	t.Run("zero start uses reference time", func(t *testing.T) {
		if got := NewClock(time.Time{}).Now(); !got.Equal(ReferenceTime()) {
			t.Fatalf("expected ReferenceTime, got %v", got)
		}
	})

	t.Run("normalizes to UTC", func(t *testing.T) {
		tokyo := time.FixedZone("JST", 9*60*60)
		clock := NewClock(time.Date(2024, time.March, 14, 18, 0, 0, 0, tokyo))
		if loc := clock.Now().Location(); loc != time.UTC {
			t.Fatalf("expected UTC, got %v", loc)
		}
		clock.Set(time.Date(2024, time.March, 15, 9, 0, 0, 0, tokyo))
		if got := clock.Now(); got.Hour() != 0 || got.Location() != time.UTC {
			t.Fatalf("expected 00:00 UTC, got %v", got)
		}
	})

	t.Run("advance and window", func(t *testing.T) {
		start := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)
		clock := NewClock(start)

		if got := clock.Advance(90 * time.Minute); !got.Equal(start.Add(90 * time.Minute)) {
			t.Fatalf("advance returned %v", got)
		}

		w := clock.Window(30*time.Minute, time.Hour)
		if !w.Start.Equal(time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected start %v", w.Start)
		}
		if w.Duration() != time.Hour {
			t.Fatalf("unexpected duration %v", w.Duration())
		}
	})
}
