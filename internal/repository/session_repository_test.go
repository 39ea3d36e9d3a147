package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSessionRepositoryListBySchool(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "school_id", "name", "start_date", "end_date", "is_current", "is_active", "created_at", "updated_at"}).
		AddRow("session-2", "school-1", "2026-27", now, now.AddDate(1, 0, 0), true, true, now, now).
		AddRow("session-1", "school-1", "2025-26", now.AddDate(-1, 0, 0), now, false, true, now, now)
	mock.ExpectQuery("SELECT (.+) FROM academic_sessions WHERE school_id = ").
		WithArgs("school-1").
		WillReturnRows(rows)

	sessions, err := repo.ListBySchool(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.True(t, sessions[0].IsCurrent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositorySetCurrent(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_sessions SET is_current = FALSE, updated_at = NOW() WHERE school_id = $1 AND is_current = TRUE")).
		WithArgs("school-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_sessions SET is_current = TRUE, is_active = TRUE, updated_at = NOW() WHERE id = $1 AND school_id = $2")).
		WithArgs("session-2", "school-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetCurrent(context.Background(), "school-1", "session-2")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositorySetCurrentUnknownSession(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE academic_sessions SET is_current = FALSE").
		WithArgs("school-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE academic_sessions SET is_current = TRUE").
		WithArgs("missing", "school-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetCurrent(context.Background(), "school-1", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryExistsName(t *testing.T) {
	db, mock, cleanup := newSessionMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery("SELECT 1 FROM academic_sessions WHERE school_id = ").
		WithArgs("school-1", "2026-27").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	taken, err := repo.ExistsName(context.Background(), "school-1", "2026-27", "")
	require.NoError(t, err)
	assert.True(t, taken)

	mock.ExpectQuery("SELECT 1 FROM academic_sessions WHERE school_id = ").
		WithArgs("school-1", "2027-28").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	taken, err = repo.ExistsName(context.Background(), "school-1", "2027-28", "")
	require.NoError(t, err)
	assert.False(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}
