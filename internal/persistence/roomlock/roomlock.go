// Package roomlock provides mutual exclusion keyed by room id.
package roomlock

import "sync"

// Locker hands out one mutex per room. Entries are reference counted and
// dropped once no goroutine holds or waits for them, so memory tracks the
// number of rooms in use rather than the number ever seen.
type Locker struct {
	mu    sync.Mutex
	rooms map[int64]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{rooms: make(map[int64]*entry)}
}

// Lock blocks until the caller holds the lock for roomID and returns the
// function that releases it.
func (l *Locker) Lock(roomID int64) (unlock func()) {
	l.mu.Lock()
	e, ok := l.rooms[roomID]
	if !ok {
		e = &entry{}
		l.rooms[roomID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.rooms, roomID)
			}
			l.mu.Unlock()
		})
	}
}

// held returns the number of rooms currently tracked.
func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}
