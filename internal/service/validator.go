package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/ticket"
	"github.com/iliyamo/event-checkin/internal/token"
	"github.com/iliyamo/event-checkin/internal/utils"
)

const publishTimeout = 5 * time.Second

// Validator redeems tickets presented at the door.  Checks run in a fixed
// order: signature, stored state, expiry, then the used flag.  An expired
// ticket is reported as Expired even when it was also used.
type Validator struct {
	codec     *token.Codec
	store     TicketStore
	clock     clockwork.Clock
	publisher Publisher
	log       *zerolog.Logger
}

// NewValidator wires a Validator.
func NewValidator(codec *token.Codec, store TicketStore, log *zerolog.Logger, opts ...Option) *Validator {
	o := buildOptions(opts)
	return &Validator{
		codec:     codec,
		store:     store,
		clock:     o.clock,
		publisher: o.publisher,
		log:       log,
	}
}

// Redeem checks raw and, if it is a current, unused, unexpired ticket,
// records attendance.  Among concurrent calls with the same token at
// most one succeeds.
func (v *Validator) Redeem(ctx context.Context, raw string) (ticket.Redemption, error) {
	return v.redeem(ctx, "", raw)
}

// RedeemForEvent is Redeem for a station bound to eventID.  A ticket for
// any other event is InvalidToken.
func (v *Validator) RedeemForEvent(ctx context.Context, eventID, raw string) (ticket.Redemption, error) {
	return v.redeem(ctx, eventID, raw)
}

func (v *Validator) redeem(ctx context.Context, station, raw string) (ticket.Redemption, error) {
	claims, err := v.codec.Decode(raw)
	if err != nil {
		v.log.Debug().Err(err).Msg("token rejected")
		return ticket.Redemption{}, err
	}
	if station != "" && claims.EventID != station {
		return ticket.Redemption{}, invalidToken("ticket is for a different event")
	}

	hash := utils.HashToken(raw)
	t, err := v.store.FindByHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return ticket.Redemption{}, invalidToken("")
	}
	if err != nil {
		return ticket.Redemption{}, fmt.Errorf("lookup ticket: %w", err)
	}
	if t.Superseded() {
		return ticket.Redemption{}, invalidToken("ticket was replaced by a newer one")
	}
	if t.EventID != claims.EventID || t.UserID != claims.UserID || !t.ExpiresAt.Equal(claims.ExpiresAt) {
		v.log.Warn().Str("ticket", hash[:12]).Msg("stored ticket disagrees with its token")
		return ticket.Redemption{}, invalidToken("")
	}

	now := v.clock.Now().UTC()
	if t.Expired(now) {
		return ticket.Redemption{}, ticket.ErrExpired
	}
	if t.Used {
		return ticket.Redemption{}, ticket.ErrAlreadyUsed
	}

	reg := &model.Registration{
		ID:          uuid.NewString(),
		EventID:     t.EventID,
		UserID:      t.UserID,
		CheckedInAt: now,
	}
	switch err := v.store.Redeem(ctx, hash, reg); {
	case err == nil:
	case errors.Is(err, repository.ErrAlreadyUsed):
		return ticket.Redemption{}, ticket.ErrAlreadyUsed
	case errors.Is(err, repository.ErrExpired):
		return ticket.Redemption{}, ticket.ErrExpired
	case errors.Is(err, repository.ErrSuperseded):
		return ticket.Redemption{}, invalidToken("ticket was replaced by a newer one")
	case errors.Is(err, repository.ErrNotFound):
		return ticket.Redemption{}, invalidToken("")
	default:
		return ticket.Redemption{}, fmt.Errorf("redeem ticket: %w", err)
	}

	v.log.Info().
		Str("registration_id", reg.ID).
		Str("event_id", reg.EventID).
		Str("user_id", reg.UserID).
		Msg("checked in")
	v.publish(ctx, reg)

	return ticket.Redemption{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		CheckedInAt:    reg.CheckedInAt,
	}, nil
}

// publish sends the attendance event in the background.  Failures are
// logged only; the check‑in has already been committed.
func (v *Validator) publish(ctx context.Context, reg *model.Registration) {
	if v.publisher == nil {
		return
	}
	ev := queue.AttendanceRecordedEvent{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		CheckedInAt:    reg.CheckedInAt.Format(time.RFC3339),
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := v.publisher.PublishAttendance(pctx, ev); err != nil {
			v.log.Warn().Err(err).Str("registration_id", ev.RegistrationID).Msg("attendance event not published")
		}
	}()
}

// Attendance lists the registrations recorded for eventID.
func (v *Validator) Attendance(ctx context.Context, eventID string) ([]model.Registration, error) {
	regs, err := v.store.RegistrationsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

func invalidToken(msg string) error {
	if msg == "" {
		return ticket.ErrInvalidToken
	}
	return &ticket.Error{Kind: ticket.KindInvalidToken, Message: msg}
}
