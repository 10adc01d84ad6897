// Package ticket holds the values exchanged between the issuer, the
// validator and the client components: issued tickets, redemption
// results, the calling user and the failure taxonomy.  Persistent
// entities live in package model.
package ticket

import (
	"strings"
	"time"
)

// Issued is the issuer's answer: the token to render and its expiry.
type Issued struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Redemption is the validator's answer on success.
type Redemption struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"-"`
	UserID         string    `json:"-"`
	CheckedInAt    time.Time `json:"-"`
}

// Caller is the authenticated user context supplied by the transport.
// Identity issuance is someone else's job; we only consume it.
type Caller struct {
	UserID string
	Role   string
}

// Roles that may act on behalf of other users.
const (
	RoleStaff     = "STAFF"
	RoleOrganizer = "ORGANIZER"
)

// IsStaff reports whether the caller works the door.
func (c Caller) IsStaff() bool {
	switch strings.ToUpper(c.Role) {
	case RoleStaff, RoleOrganizer:
		return true
	}
	return false
}
