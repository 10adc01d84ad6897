package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
	"github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/event-checkin/internal/ticket"
)

// Context keys populated by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context.
// Access tokens are minted by the identity service; the provided secret
// must match the one it signs with.  Handlers read the authenticated user
// with Caller(c).
func JWTAuth(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := parser.Parse(raw, func(*jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return unauthorized(c, http.StatusUnauthorized, "invalid access token")
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c, http.StatusUnauthorized, "invalid claims")
			}
			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				return unauthorized(c, http.StatusUnauthorized, "access token has no subject")
			}
			role, _ := claims["role"].(string)

			c.Set(ctxUserID, sub)
			c.Set(ctxRole, strings.ToUpper(role))
			return next(c)
		}
	}
}

// unauthorized writes the failure body used across the API for
// authentication and authorization errors.
func unauthorized(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": ticket.KindUnauthorized, "message": msg})
}
