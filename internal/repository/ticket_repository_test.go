package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/model"
)

func newTicketRepoWithMock(t *testing.T) (*TicketRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTicketRepo(db), mock
}

var (
	issuedAt  = time.Date(2026, 4, 2, 19, 0, 0, 0, time.UTC)
	expiresAt = issuedAt.Add(30 * time.Second)
)

func sampleTicket() *model.Ticket {
	return &model.Ticket{
		TokenHash: "hash-1",
		EventID:   "evt-1",
		UserID:    "user-1",
		Nonce:     "n-1",
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
}

const (
	qSupersede  = `(?s)^UPDATE\s+tickets\s+SET\s+superseded_at\s*=\s*\?\s+WHERE\s+event_id\s*=\s*\?\s+AND\s+user_id\s*=\s*\?\s+AND\s+used\s*=\s*0\s+AND\s+superseded_at\s+IS\s+NULL$`
	qInsertTkt  = `(?s)^INSERT\s+INTO\s+tickets\s*\(token_hash,\s*event_id,\s*user_id,\s*nonce,\s*issued_at,\s*expires_at\)`
	qFlipUsed   = `(?s)^UPDATE\s+tickets\s+SET\s+used\s*=\s*1,\s*used_at\s*=\s*\?,\s*registration_id\s*=\s*\?\s+WHERE\s+token_hash\s*=\s*\?\s+AND\s+used\s*=\s*0\s+AND\s+superseded_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*\?$`
	qInsertReg  = `(?s)^INSERT\s+INTO\s+registrations\s*\(id,\s*event_id,\s*user_id,\s*ticket_hash,\s*checked_in_at\)`
	qExplain    = `(?s)^SELECT\s+used,\s*superseded_at\s+FROM\s+tickets\s+WHERE\s+token_hash\s*=\s*\?`
	qFindTicket = `(?s)^SELECT\s+token_hash,\s*event_id,.*FROM\s+tickets\s+WHERE\s+token_hash\s*=\s*\?`
)

func TestTicketRepo_Issue_SupersedesAndInserts(t *testing.T) {
	repo, mock := newTicketRepoWithMock(t)
	tk := sampleTicket()

	mock.ExpectBegin()
	mock.ExpectExec(qSupersede).
		WithArgs(issuedAt, "evt-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(qInsertTkt).
		WithArgs("hash-1", "evt-1", "user-1", "n-1", issuedAt, expiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.Issue(context.Background(), tk)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_Issue_InsertFailureRollsBack(t *testing.T) {
	repo, mock := newTicketRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(qSupersede).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(qInsertTkt).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	_, err := repo.Issue(context.Background(), sampleTicket())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_FindByHash(t *testing.T) {
	repo, mock := newTicketRepoWithMock(t)
	usedAt := issuedAt.Add(5 * time.Second)

	cols := []string{"token_hash", "event_id", "user_id", "nonce", "issued_at", "expires_at", "used", "used_at", "registration_id", "superseded_at"}
	mock.ExpectQuery(qFindTicket).
		WithArgs("hash-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("hash-1", "evt-1", "user-1", "n-1", issuedAt, expiresAt, true, usedAt, "reg-1", nil))

	got, err := repo.FindByHash(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "evt-1", got.EventID)
	assert.True(t, got.Used)
	require.NotNil(t, got.UsedAt)
	assert.Equal(t, usedAt, *got.UsedAt)
	require.NotNil(t, got.RegistrationID)
	assert.Equal(t, "reg-1", *got.RegistrationID)
	assert.Nil(t, got.SupersededAt)
}

func TestTicketRepo_FindByHash_NotFound(t *testing.T) {
	repo, mock := newTicketRepoWithMock(t)

	mock.ExpectQuery(qFindTicket).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func sampleRegistration() *model.Registration {
	return &model.Registration{
		ID:          "reg-1",
		EventID:     "evt-1",
		UserID:      "user-1",
		CheckedInAt: issuedAt.Add(10 * time.Second),
	}
}

func TestTicketRepo_Redeem_Success(t *testing.T) {
	repo, mock := newTicketRepoWithMock(t)
	reg := sampleRegistration()

	mock.ExpectBegin()
	mock.ExpectExec(qFlipUsed).
		WithArgs(reg.CheckedInAt, "reg-1", "hash-1", reg.CheckedInAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qInsertReg).
		WithArgs("reg-1", "evt-1", "user-1", "hash-1", reg.CheckedInAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Redeem(context.Background(), "hash-1", reg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_Redeem_Misses(t *testing.T) {
	tests := []struct {
		name string
		rows *sqlmock.Rows
		err  error
		want error
	}{
		{"lost race", sqlmock.NewRows([]string{"used", "superseded_at"}).AddRow(true, nil), nil, ErrAlreadyUsed},
		{"superseded", sqlmock.NewRows([]string{"used", "superseded_at"}).AddRow(false, issuedAt), nil, ErrSuperseded},
		{"expired meanwhile", sqlmock.NewRows([]string{"used", "superseded_at"}).AddRow(false, nil), nil, ErrExpired},
		{"missing", nil, sql.ErrNoRows, ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newTicketRepoWithMock(t)

			mock.ExpectBegin()
			mock.ExpectExec(qFlipUsed).WillReturnResult(sqlmock.NewResult(0, 0))
			q := mock.ExpectQuery(qExplain).WithArgs("hash-1")
			if tc.rows != nil {
				q.WillReturnRows(tc.rows)
			} else {
				q.WillReturnError(tc.err)
			}
			mock.ExpectRollback()

			err := repo.Redeem(context.Background(), "hash-1", sampleRegistration())
			assert.ErrorIs(t, err, tc.want)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTicketRepo_Redeem_RegistrationInsertFails(t *testing.T) {
	repo, mock := newTicketRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(qFlipUsed).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qInsertReg).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Redeem(context.Background(), "hash-1", sampleRegistration())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_RegistrationsByEvent(t *testing.T) {
	repo, mock := newTicketRepoWithMock(t)
	at := issuedAt.Add(time.Minute)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*event_id,\s*user_id,\s*ticket_hash,\s*checked_in_at\s+FROM\s+registrations`).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "user_id", "ticket_hash", "checked_in_at"}).
			AddRow("reg-1", "evt-1", "user-1", "hash-1", at).
			AddRow("reg-2", "evt-1", "user-2", "hash-2", at.Add(time.Second)))

	regs, err := repo.RegistrationsByEvent(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "user-2", regs[1].UserID)
}

func TestTicketRepo_PurgeExpired(t *testing.T) {
	repo, mock := newTicketRepoWithMock(t)

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+tickets\s+WHERE\s+used\s*=\s*0\s+AND\s+expires_at\s*<=\s*\?$`).
		WithArgs(issuedAt).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.PurgeExpired(context.Background(), issuedAt)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
}

func TestEventRepo_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewEventRepo(db)

	q := `(?s)^SELECT\s+id,\s*title,\s*checkin_opens_at,\s*checkin_closes_at\s+FROM\s+events\s+WHERE\s+id\s*=\s*\?`
	mock.ExpectQuery(q).WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "checkin_opens_at", "checkin_closes_at"}).
			AddRow("evt-1", "Spring meetup", issuedAt, nil))
	mock.ExpectQuery(q).WithArgs("evt-x").WillReturnError(sql.ErrNoRows)

	e, err := repo.GetByID(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "Spring meetup", e.Title)
	require.NotNil(t, e.CheckInOpensAt)
	assert.Nil(t, e.CheckInClosesAt)

	_, err = repo.GetByID(context.Background(), "evt-x")
	assert.ErrorIs(t, err, ErrEventNotFound)
}
