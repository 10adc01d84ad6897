package model

import "time"

// Registration is the durable record of attendance created by a
// successful ticket redemption.  It is written in the same
// transaction that flips the ticket's used flag and is never
// mutated afterwards by this service.
//
// Fields:
//  ID          – UUID string, primary key.
//  EventID     – event attended.
//  UserID      – attendee.
//  TicketHash  – hash of the redeemed ticket (unique).
//  CheckedInAt – redemption time.
type Registration struct {
	ID          string    // registrations.id
	EventID     string    // registrations.event_id
	UserID      string    // registrations.user_id
	TicketHash  string    // registrations.ticket_hash
	CheckedInAt time.Time // registrations.checked_in_at
}
