package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/event-checkin/internal/config"
	"github.com/iliyamo/event-checkin/internal/handler"    // handlers that implement the endpoints
	"github.com/iliyamo/event-checkin/internal/middleware" // JWT authentication and role enforcement
	"github.com/iliyamo/event-checkin/internal/ticket"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring probe this endpoint.
	e.GET("/healthz", handler.Health)
}

// Deps bundles what RegisterTickets needs besides the handler.  Redis is
// optional; without it rate limiting and caching are disabled.
type Deps struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
	Log       *zerolog.Logger
}

// RegisterTickets registers the ticket and check‑in routes.  Every route
// requires a valid access token.  Check‑in and the attendance list are
// limited to door staff and organizers; check‑in is additionally rate
// limited per account and the attendance list is briefly cached.
func RegisterTickets(e *echo.Echo, h *handler.TicketHandler, d Deps) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(d.JWTSecret))

	// Any authenticated user may request their own rotating ticket.
	auth.GET("/events/:id/ticket", h.IssueTicket)

	staff := auth.Group("", middleware.RequireRole(ticket.RoleStaff, ticket.RoleOrganizer))
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)
	staff.POST("/check-in", h.CheckIn, limit)
	staff.POST("/events/:id/check-in", h.CheckInForEvent, limit)
	staff.GET("/events/:id/attendance", h.Attendance, middleware.NewRedisCache(d.Cache, d.Redis))
}
