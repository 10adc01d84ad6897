package middleware

// identity.go exposes the authenticated user that JWTAuth stored in the
// Echo context.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/ticket"
)

// Caller returns the authenticated user of the request.  The zero Caller
// is returned on routes that are not behind JWTAuth.
func Caller(c echo.Context) ticket.Caller {
	uid, _ := c.Get(ctxUserID).(string)
	role, _ := c.Get(ctxRole).(string)
	return ticket.Caller{UserID: uid, Role: role}
}

// userID returns the caller's id for use in rate‑limit and cache keys,
// or "anon" when unauthenticated.
func userID(c echo.Context) string {
	if uid, ok := c.Get(ctxUserID).(string); ok && uid != "" {
		return uid
	}
	return "anon"
}
