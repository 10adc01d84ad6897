package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
)

// MemoryTicketStore is an in‑process TicketRepo replacement used by tests
// and by the server when STORE=memory.  A single mutex guards every
// read and write, so Redeem's check‑and‑set is atomic with respect to
// concurrent callers.
type MemoryTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*model.Ticket
	regs    []model.Registration
}

// NewMemoryTicketStore returns an empty store.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{tickets: make(map[string]*model.Ticket)}
}

// Issue stores a copy of t and supersedes older unredeemed tickets for
// the same pair.
func (s *MemoryTicketStore) Issue(_ context.Context, t *model.Ticket) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var superseded int64
	at := t.IssuedAt.UTC()
	for _, old := range s.tickets {
		if old.EventID == t.EventID && old.UserID == t.UserID && !old.Used && old.SupersededAt == nil {
			old.SupersededAt = &at
			superseded++
		}
	}
	cp := *t
	cp.Token = ""
	s.tickets[t.TokenHash] = &cp
	return superseded, nil
}

// FindByHash returns a copy of the stored ticket.
func (s *MemoryTicketStore) FindByHash(_ context.Context, hash string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[hash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// Redeem flips the used flag and records reg if the ticket is eligible.
func (s *MemoryTicketStore) Redeem(_ context.Context, hash string, reg *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[hash]
	switch {
	case !ok:
		return ErrNotFound
	case t.Used:
		return ErrAlreadyUsed
	case t.SupersededAt != nil:
		return ErrSuperseded
	case t.Expired(reg.CheckedInAt):
		return ErrExpired
	}

	at := reg.CheckedInAt.UTC()
	id := reg.ID
	t.Used = true
	t.UsedAt = &at
	t.RegistrationID = &id

	r := *reg
	r.TicketHash = hash
	r.CheckedInAt = at
	s.regs = append(s.regs, r)
	return nil
}

// RegistrationsByEvent lists the event's registrations by check‑in time.
func (s *MemoryTicketStore) RegistrationsByEvent(_ context.Context, eventID string) ([]model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Registration
	for _, r := range s.regs {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedInAt.Before(out[j].CheckedInAt) })
	return out, nil
}

// PurgeExpired drops unredeemed tickets that expired at or before cutoff.
func (s *MemoryTicketStore) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for h, t := range s.tickets {
		if !t.Used && !t.ExpiresAt.After(cutoff) {
			delete(s.tickets, h)
			n++
		}
	}
	return n, nil
}

// MemoryEventStore serves events from a map.  It backs STORE=memory and
// tests; events are seeded with Put.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[string]model.Event
}

// NewMemoryEventStore returns a store seeded with events.
func NewMemoryEventStore(events ...model.Event) *MemoryEventStore {
	s := &MemoryEventStore{events: make(map[string]model.Event, len(events))}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

// Put adds or replaces an event.
func (s *MemoryEventStore) Put(e model.Event) {
	s.mu.Lock()
	s.events[e.ID] = e
	s.mu.Unlock()
}

// GetByID returns the event or ErrEventNotFound.
func (s *MemoryEventStore) GetByID(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &e, nil
}
