package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-checkin/internal/model"
)

// EventRepo reads the check‑in window of events.  The events table is
// owned by the event service; this repository never writes to it.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// GetByID loads an event by id.  ErrEventNotFound is returned when no
// row matches.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var (
		e      model.Event
		opens  sql.NullTime
		closes sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, checkin_opens_at, checkin_closes_at FROM events WHERE id = ? LIMIT 1`, id).
		Scan(&e.ID, &e.Title, &opens, &closes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	if opens.Valid {
		v := opens.Time.UTC()
		e.CheckInOpensAt = &v
	}
	if closes.Valid {
		v := closes.Time.UTC()
		e.CheckInClosesAt = &v
	}
	return &e, nil
}
