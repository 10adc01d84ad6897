package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/event-checkin/internal/ticket"
)

// statusFor maps a failure kind onto its HTTP status.
func statusFor(kind ticket.Kind) int {
	switch kind {
	case ticket.KindUnauthorized:
		return http.StatusForbidden
	case ticket.KindEventNotFound:
		return http.StatusNotFound
	case ticket.KindCheckInWindowClosed:
		return http.StatusUnprocessableEntity
	case ticket.KindInvalidToken:
		return http.StatusBadRequest
	case ticket.KindExpired:
		return http.StatusGone
	case ticket.KindAlreadyUsed:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": kind, "message": text}.  Errors
// without a kind are logged and reported as a generic 500 so storage
// details never reach the client.
func writeError(c echo.Context, log *zerolog.Logger, err error) error {
	var te *ticket.Error
	if !errors.As(err, &te) {
		log.Error().Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Msg("request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "Internal",
			"message": "internal server error",
		})
	}
	return c.JSON(statusFor(te.Kind), echo.Map{
		"error":   te.Kind,
		"message": ticket.MessageOf(te),
	})
}
