// Package repository defines error types that are reused across the
// ticket and event stores.  These sentinel values let the service
// layer tell apart the outcomes of a lookup or a redemption attempt
// without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when no ticket row matches the token hash.
var ErrNotFound = errors.New("ticket not found")

// ErrAlreadyUsed is returned by Redeem when the ticket's used flag was
// already set, i.e. another redemption won the race.
var ErrAlreadyUsed = errors.New("ticket already used")

// ErrSuperseded is returned by Redeem when a newer ticket was issued
// for the same event and user.
var ErrSuperseded = errors.New("ticket superseded")

// ErrExpired is returned by Redeem when the ticket expired between the
// caller's expiry check and the conditional update.
var ErrExpired = errors.New("ticket expired")

// ErrEventNotFound is returned when an event id is unknown.
var ErrEventNotFound = errors.New("event not found")
