package model

import "time"

// Event is the read‑only view of an event needed to decide whether
// tickets may be issued.  Events are owned by the event service; this
// service only reads the check‑in window.
//
// Fields:
//  ID              – event identifier.
//  Title           – display title.
//  CheckInOpensAt  – start of the attendance window (nil = unbounded).
//  CheckInClosesAt – end of the attendance window (nil = unbounded).
type Event struct {
	ID              string     // events.id
	Title           string     // events.title
	CheckInOpensAt  *time.Time // events.checkin_opens_at (nullable)
	CheckInClosesAt *time.Time // events.checkin_closes_at (nullable)
}

// CheckInOpen reports whether now falls inside [opens, closes).
func (e *Event) CheckInOpen(now time.Time) bool {
	if e.CheckInOpensAt != nil && now.Before(*e.CheckInOpensAt) {
		return false
	}
	if e.CheckInClosesAt != nil && !now.Before(*e.CheckInClosesAt) {
		return false
	}
	return true
}
