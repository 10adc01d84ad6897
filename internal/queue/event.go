// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// AttendanceQueue is the durable queue attendance events are published to.
const AttendanceQueue = "attendance.recorded"

// AttendanceRecordedEvent is published after a ticket has been redeemed.
// It carries enough information for downstream consumers to log, notify
// or feed analytics without querying the primary database.
type AttendanceRecordedEvent struct {
	RegistrationID string `json:"registration_id"`
	EventID        string `json:"event_id"`
	UserID         string `json:"user_id"`
	CheckedInAt    string `json:"checked_in_at"` // RFC 3339, UTC
}
