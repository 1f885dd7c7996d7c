package testfixtures

import (
	"sync"
	"time"

	"github.com/example/roombook/internal/scheduler"
)

// Clock is a manually driven UTC time source. Services receive NowFunc so
// tests decide when "now" moves relative to the windows they reserve.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns c.Now, or time.Now for a nil clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Advance moves the clock forward by d and reports the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Window is the half-open window [now+offset, now+offset+d).
func (c *Clock) Window(offset, d time.Duration) scheduler.Window {
	start := c.Now().Add(offset)
	return scheduler.Window{Start: start, End: start.Add(d)}
}
