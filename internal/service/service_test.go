package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/logging"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/ticket"
	"github.com/iliyamo/event-checkin/internal/token"
)

var (
	start    = time.Date(2026, 6, 12, 18, 30, 0, 0, time.UTC)
	attendee = ticket.Caller{UserID: "user-1", Role: "MEMBER"}
)

type fixture struct {
	clock     *clockwork.FakeClock
	store     *repository.MemoryTicketStore
	events    *repository.MemoryEventStore
	codec     *token.Codec
	issuer    *Issuer
	validator *Validator
	published *recordingPublisher
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	codec, err := token.New([]byte("a-deployment-secret-for-tests"))
	require.NoError(t, err)

	f := &fixture{
		clock:     clockwork.NewFakeClockAt(start),
		store:     repository.NewMemoryTicketStore(),
		events:    repository.NewMemoryEventStore(model.Event{ID: "evt-1", Title: "Launch night"}),
		codec:     codec,
		published: &recordingPublisher{},
	}
	f.issuer = NewIssuer(codec, f.store, f.events, ttl, logging.Nop(), WithClock(f.clock))
	f.validator = NewValidator(codec, f.store, logging.Nop(), WithClock(f.clock), WithPublisher(f.published))
	return f
}

func (f *fixture) issue(t *testing.T) ticket.Issued {
	t.Helper()
	got, err := f.issuer.RequestTicket(context.Background(), "evt-1", attendee.UserID, attendee)
	require.NoError(t, err)
	return got
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AttendanceRecordedEvent
	err    error
}

func (p *recordingPublisher) PublishAttendance(_ context.Context, ev queue.AttendanceRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) snapshot() []queue.AttendanceRecordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.AttendanceRecordedEvent(nil), p.events...)
}

// failingStore lets every call fail with err.
type failingStore struct{ err error }

func (s failingStore) Issue(context.Context, *model.Ticket) (int64, error) { return 0, s.err }
func (s failingStore) FindByHash(context.Context, string) (*model.Ticket, error) {
	return nil, s.err
}
func (s failingStore) Redeem(context.Context, string, *model.Registration) error { return s.err }
func (s failingStore) RegistrationsByEvent(context.Context, string) ([]model.Registration, error) {
	return nil, s.err
}
func (s failingStore) PurgeExpired(context.Context, time.Time) (int64, error) { return 0, s.err }

var errDBDown = errors.New("db down")
