package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/event-checkin/internal/middleware"
	"github.com/iliyamo/event-checkin/internal/service"
	"github.com/iliyamo/event-checkin/internal/ticket"
)

// TicketHandler exposes ticket issuance, check‑in and the attendance list.
// All methods assume JWTAuth has run; the check‑in and attendance routes
// additionally sit behind RequireRole for door staff.
type TicketHandler struct {
	Issuer    *service.Issuer    // mints tickets
	Validator *service.Validator // redeems tickets
	Log       *zerolog.Logger
}

// NewTicketHandler constructs a TicketHandler and panics if any dependency is nil.
func NewTicketHandler(issuer *service.Issuer, validator *service.Validator, log *zerolog.Logger) *TicketHandler {
	if issuer == nil || validator == nil || log == nil {
		panic("nil dependency passed to NewTicketHandler")
	}
	return &TicketHandler{Issuer: issuer, Validator: validator, Log: log}
}

type issuedResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type checkInRequest struct {
	Token string `json:"token"`
}

type checkInResponse struct {
	RegistrationID string `json:"registration_id"`
}

type registrationResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	CheckedInAt string `json:"checked_in_at"`
}

// IssueTicket handles GET /v1/events/:id/ticket.  The ticket is issued for
// the authenticated user unless a ?user_id= query names someone else,
// which only door staff may do.  Every call returns a new token and
// invalidates the previous unredeemed one.
func (h *TicketHandler) IssueTicket(c echo.Context) error {
	caller := middleware.Caller(c)
	if caller.UserID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": ticket.KindUnauthorized, "message": "authentication required"})
	}
	userID := strings.TrimSpace(c.QueryParam("user_id"))
	if userID == "" {
		userID = caller.UserID
	}

	issued, err := h.Issuer.RequestTicket(c.Request().Context(), c.Param("id"), userID, caller)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, issuedResponse{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// CheckIn handles POST /v1/check-in with body {"token": "..."}.
func (h *TicketHandler) CheckIn(c echo.Context) error {
	raw, ok := h.bindToken(c)
	if !ok {
		return writeError(c, h.Log, ticket.ErrInvalidToken)
	}
	res, err := h.Validator.Redeem(c.Request().Context(), raw)
	return h.checkedIn(c, res, err)
}

// CheckInForEvent handles POST /v1/events/:id/check-in.  It behaves like
// CheckIn but rejects tickets for any other event.
func (h *TicketHandler) CheckInForEvent(c echo.Context) error {
	raw, ok := h.bindToken(c)
	if !ok {
		return writeError(c, h.Log, ticket.ErrInvalidToken)
	}
	res, err := h.Validator.RedeemForEvent(c.Request().Context(), c.Param("id"), raw)
	return h.checkedIn(c, res, err)
}

// Attendance handles GET /v1/events/:id/attendance.
func (h *TicketHandler) Attendance(c echo.Context) error {
	regs, err := h.Validator.Attendance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]registrationResponse, 0, len(regs))
	for _, r := range regs {
		out = append(out, registrationResponse{
			ID:          r.ID,
			UserID:      r.UserID,
			CheckedInAt: r.CheckedInAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": c.Param("id"), "registrations": out})
}

func (h *TicketHandler) bindToken(c echo.Context) (string, bool) {
	var req checkInRequest
	if err := c.Bind(&req); err != nil {
		return "", false
	}
	raw := strings.TrimSpace(req.Token)
	return raw, raw != ""
}

func (h *TicketHandler) checkedIn(c echo.Context, res ticket.Redemption, err error) error {
	if err != nil {
		h.Log.Debug().
			Str("station", middleware.Caller(c).UserID).
			Str("kind", string(ticket.KindOf(err))).
			Msg("check-in rejected")
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, checkInResponse{RegistrationID: res.RegistrationID})
}
