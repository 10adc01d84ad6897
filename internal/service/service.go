// Package service implements ticket issuance and redemption on top of a
// ticket store, an event directory and the token codec.
package service

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/ticket"
)

// TicketStore persists tickets and registrations.  Redeem must be an
// atomic compare‑and‑set on the ticket's used flag.
type TicketStore interface {
	Issue(ctx context.Context, t *model.Ticket) (int64, error)
	FindByHash(ctx context.Context, hash string) (*model.Ticket, error)
	Redeem(ctx context.Context, hash string, reg *model.Registration) error
	RegistrationsByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventDirectory looks up events by id.
type EventDirectory interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// Authorizer decides whether caller may obtain a ticket for userID.
type Authorizer interface {
	Authorize(ctx context.Context, caller ticket.Caller, eventID, userID string) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, caller ticket.Caller, eventID, userID string) bool

func (f AuthorizerFunc) Authorize(ctx context.Context, caller ticket.Caller, eventID, userID string) bool {
	return f(ctx, caller, eventID, userID)
}

// SelfOrStaff lets users request their own tickets and lets door staff
// and organizers request tickets for anyone.
var SelfOrStaff Authorizer = AuthorizerFunc(func(_ context.Context, caller ticket.Caller, _, userID string) bool {
	if caller.UserID == "" {
		return false
	}
	return caller.UserID == userID || caller.IsStaff()
})

// Publisher delivers attendance events to downstream consumers.
type Publisher interface {
	PublishAttendance(ctx context.Context, ev queue.AttendanceRecordedEvent) error
}

type options struct {
	clock      clockwork.Clock
	authorizer Authorizer
	publisher  Publisher
}

// Option configures an Issuer or a Validator.
type Option func(*options)

// WithClock replaces the wall clock.
func WithClock(c clockwork.Clock) Option { return func(o *options) { o.clock = c } }

// WithAuthorizer replaces SelfOrStaff.
func WithAuthorizer(a Authorizer) Option { return func(o *options) { o.authorizer = a } }

// WithPublisher sets where attendance events go.  Without one nothing is
// published.
func WithPublisher(p Publisher) Option { return func(o *options) { o.publisher = p } }

func buildOptions(opts []Option) options {
	o := options{clock: clockwork.NewRealClock(), authorizer: SelfOrStaff}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
