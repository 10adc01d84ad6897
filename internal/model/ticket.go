package model

import "time"

// Ticket is a single attendance credential for one (event, user) pair.
// The signed Token is what the attendee's QR code carries; only its
// SHA‑256 hash is stored.  A ticket is redeemable while it is unused,
// not superseded and not past ExpiresAt.
//
// Fields:
//  TokenHash      – SHA‑256 hex of the token, primary key.
//  Token          – signed token; set on issue, never persisted.
//  EventID        – event the ticket admits to.
//  UserID         – attendee the ticket was issued to.
//  Nonce          – random value that makes every token distinct.
//  IssuedAt       – mint time.
//  ExpiresAt      – IssuedAt + TTL; always after IssuedAt.
//  Used           – one‑way latch, false until redeemed.
//  UsedAt         – set exactly once at redemption.
//  RegistrationID – set exactly once at redemption.
//  SupersededAt   – set when a newer ticket was issued for the pair.
type Ticket struct {
	TokenHash      string     // tickets.token_hash
	Token          string     // not stored
	EventID        string     // tickets.event_id
	UserID         string     // tickets.user_id
	Nonce          string     // tickets.nonce
	IssuedAt       time.Time  // tickets.issued_at
	ExpiresAt      time.Time  // tickets.expires_at
	Used           bool       // tickets.used
	UsedAt         *time.Time // tickets.used_at (nullable)
	RegistrationID *string    // tickets.registration_id (nullable)
	SupersededAt   *time.Time // tickets.superseded_at (nullable)
}

// Expired reports whether the ticket is past its expiry at now.
func (t *Ticket) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// Superseded reports whether a newer ticket replaced this one.
func (t *Ticket) Superseded() bool { return t.SupersededAt != nil }
