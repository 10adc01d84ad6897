package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
)

// TicketRepo persists tickets and registrations in MySQL.  Tickets are
// keyed by the SHA‑256 hash of their token; the raw token never reaches
// the table.  All timestamps are written and read in UTC.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// Issue stores t and, in the same transaction, marks every earlier
// unredeemed ticket for the same event and user as superseded.  It
// returns how many tickets were superseded.
func (r *TicketRepo) Issue(ctx context.Context, t *model.Ticket) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET superseded_at = ?
         WHERE event_id = ? AND user_id = ? AND used = 0 AND superseded_at IS NULL`,
		t.IssuedAt.UTC(), t.EventID, t.UserID)
	if err != nil {
		return 0, err
	}
	superseded, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tickets (token_hash, event_id, user_id, nonce, issued_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.TokenHash, t.EventID, t.UserID, t.Nonce, t.IssuedAt.UTC(), t.ExpiresAt.UTC())
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return superseded, nil
}

// FindByHash loads the ticket stored under hash.  ErrNotFound is
// returned when no row exists.
func (r *TicketRepo) FindByHash(ctx context.Context, hash string) (*model.Ticket, error) {
	var (
		t            model.Ticket
		usedAt       sql.NullTime
		regID        sql.NullString
		supersededAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, event_id, user_id, nonce, issued_at, expires_at, used, used_at, registration_id, superseded_at
         FROM tickets WHERE token_hash = ? LIMIT 1`, hash).
		Scan(&t.TokenHash, &t.EventID, &t.UserID, &t.Nonce, &t.IssuedAt, &t.ExpiresAt,
			&t.Used, &usedAt, &regID, &supersededAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.IssuedAt = t.IssuedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	if usedAt.Valid {
		v := usedAt.Time.UTC()
		t.UsedAt = &v
	}
	if regID.Valid {
		v := regID.String
		t.RegistrationID = &v
	}
	if supersededAt.Valid {
		v := supersededAt.Time.UTC()
		t.SupersededAt = &v
	}
	return &t, nil
}

// Redeem atomically flips the ticket's used flag and inserts reg.  The
// flip is a conditional UPDATE that only matches an unused, current,
// unexpired row, so among concurrent callers exactly one sees a row
// affected.  The others get ErrAlreadyUsed (or ErrSuperseded, ErrExpired,
// ErrNotFound depending on what the row looks like afterwards).
func (r *TicketRepo) Redeem(ctx context.Context, hash string, reg *model.Registration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	at := reg.CheckedInAt.UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET used = 1, used_at = ?, registration_id = ?
         WHERE token_hash = ? AND used = 0 AND superseded_at IS NULL AND expires_at > ?`,
		at, reg.ID, hash, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.explainMissTx(ctx, tx, hash)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO registrations (id, event_id, user_id, ticket_hash, checked_in_at) VALUES (?, ?, ?, ?, ?)`,
		reg.ID, reg.EventID, reg.UserID, hash, at)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// explainMissTx maps a conditional update that matched nothing onto the
// reason the row was not eligible.
func (r *TicketRepo) explainMissTx(ctx context.Context, tx *sql.Tx, hash string) error {
	var (
		used         bool
		supersededAt sql.NullTime
	)
	err := tx.QueryRowContext(ctx,
		`SELECT used, superseded_at FROM tickets WHERE token_hash = ? LIMIT 1`, hash).
		Scan(&used, &supersededAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return err
	case used:
		return ErrAlreadyUsed
	case supersededAt.Valid:
		return ErrSuperseded
	default:
		return ErrExpired
	}
}

// RegistrationsByEvent lists the attendance records of an event ordered
// by check‑in time.
func (r *TicketRepo) RegistrationsByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, user_id, ticket_hash, checked_in_at
         FROM registrations WHERE event_id = ? ORDER BY checked_in_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Registration
	for rows.Next() {
		var reg model.Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.TicketHash, &reg.CheckedInAt); err != nil {
			return nil, err
		}
		reg.CheckedInAt = reg.CheckedInAt.UTC()
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// PurgeExpired deletes unredeemed tickets that expired before cutoff.
// Redeemed tickets are kept because registrations reference them.
func (r *TicketRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tickets WHERE used = 0 AND expires_at <= ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
