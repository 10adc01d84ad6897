package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/ticket"
	"github.com/iliyamo/event-checkin/internal/token"
	"github.com/iliyamo/event-checkin/internal/utils"
)

// nonceBytes is the amount of randomness in every ticket.
const nonceBytes = 16

// Issuer mints short‑lived tickets.  Every call yields a new token and
// supersedes the caller's previous unredeemed ticket for the event.
type Issuer struct {
	codec  *token.Codec
	store  TicketStore
	events EventDirectory
	ttl    time.Duration
	auth   Authorizer
	clock  clockwork.Clock
	log    *zerolog.Logger
}

// NewIssuer wires an Issuer.  ttl must be at least one second; expiry
// is rounded down to the whole second the token can carry.
func NewIssuer(codec *token.Codec, store TicketStore, events EventDirectory, ttl time.Duration, log *zerolog.Logger, opts ...Option) *Issuer {
	o := buildOptions(opts)
	return &Issuer{
		codec:  codec,
		store:  store,
		events: events,
		ttl:    ttl,
		auth:   o.authorizer,
		clock:  o.clock,
		log:    log,
	}
}

// RequestTicket issues a ticket for userID at eventID on behalf of caller.
func (s *Issuer) RequestTicket(ctx context.Context, eventID, userID string, caller ticket.Caller) (ticket.Issued, error) {
	if userID == "" || !s.auth.Authorize(ctx, caller, eventID, userID) {
		return ticket.Issued{}, ticket.ErrUnauthorized
	}

	// token timestamps have second precision
	now := s.clock.Now().UTC().Truncate(time.Second)

	ev, err := s.events.GetByID(ctx, eventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return ticket.Issued{}, ticket.ErrEventNotFound
	}
	if err != nil {
		return ticket.Issued{}, fmt.Errorf("lookup event %s: %w", eventID, err)
	}
	if !ev.CheckInOpen(now) {
		return ticket.Issued{}, ticket.ErrCheckInWindowClosed
	}

	nonce, err := utils.RandomHex(nonceBytes)
	if err != nil {
		return ticket.Issued{}, fmt.Errorf("generate nonce: %w", err)
	}
	t := &model.Ticket{
		EventID:   eventID,
		UserID:    userID,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl).Truncate(time.Second),
	}
	t.Token, err = s.codec.Encode(token.Claims{
		EventID:   t.EventID,
		UserID:    t.UserID,
		Nonce:     t.Nonce,
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
	})
	if err != nil {
		return ticket.Issued{}, err
	}
	t.TokenHash = utils.HashToken(t.Token)

	superseded, err := s.store.Issue(ctx, t)
	if err != nil {
		return ticket.Issued{}, fmt.Errorf("store ticket: %w", err)
	}

	s.log.Debug().
		Str("event_id", eventID).
		Str("user_id", userID).
		Str("requested_by", caller.UserID).
		Int64("superseded", superseded).
		Time("expires_at", t.ExpiresAt).
		Msg("ticket issued")

	return ticket.Issued{Token: t.Token, ExpiresAt: t.ExpiresAt}, nil
}

// PurgeExpired removes unredeemed tickets that expired more than
// retention ago.
func (s *Issuer) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.store.PurgeExpired(ctx, s.clock.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge expired tickets: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("purged", n).Msg("expired tickets purged")
	}
	return n, nil
}

// RunJanitor calls PurgeExpired every interval until ctx is done.
func (s *Issuer) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	tk := s.clock.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.Chan():
			if _, err := s.PurgeExpired(ctx, retention); err != nil {
				s.log.Error().Err(err).Msg("ticket janitor")
			}
		}
	}
}
