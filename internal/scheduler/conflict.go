package scheduler

// Booking is the minimal view of a committed reservation needed for conflict checks.
type Booking struct {
	ID     int64
	RoomID int64
	Window Window
}

// HasConflict reports whether any booking on the candidate's room overlaps it.
// A booking sharing the candidate's non-zero ID is the record being replaced and is skipped.
func HasConflict(existing []Booking, candidate Booking) bool {
	for _, b := range existing {
		if b.RoomID != candidate.RoomID || (candidate.ID != 0 && b.ID == candidate.ID) {
			continue
		}
		if b.Window.Overlaps(candidate.Window) {
			return true
		}
	}
	return false
}

// OccupiedRooms returns the distinct room ids holding a booking that overlaps w.
func OccupiedRooms(existing []Booking, w Window) map[int64]struct{} {
	occupied := make(map[int64]struct{})
	for _, b := range existing {
		if b.Window.Overlaps(w) {
			occupied[b.RoomID] = struct{}{}
		}
	}
	return occupied
}
