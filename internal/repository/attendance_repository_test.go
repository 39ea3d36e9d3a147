package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
)

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("INSERT INTO attendances").
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.Attendance{
		StudentID: "student-1",
		ClassID:   "class-1",
		SessionID: "session-1",
		Date:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:    models.AttendancePresent,
	}
	err := repo.Upsert(context.Background(), record)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryList(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "session_id", "date", "status", "check_in_time", "check_out_time", "notes", "marked_by", "created_at", "updated_at"}).
		AddRow("att-1", "student-1", "class-1", "session-1", now, models.AttendancePresent, nil, nil, nil, nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM attendances WHERE class_id = (.+) ORDER BY date DESC").
		WithArgs("class-1", "session-1").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendances WHERE class_id = `).
		WithArgs("class-1", "session-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{ClassID: "class-1", SessionID: "session-1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListForMonth(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "session_id", "date", "status", "check_in_time", "check_out_time", "notes", "marked_by", "created_at", "updated_at"}).
		AddRow("att-1", "student-1", "class-1", "session-1", now, models.AttendanceHalfDay, nil, nil, nil, nil, now, now)
	mock.ExpectQuery(`SELECT (.+) FROM attendances\s+WHERE student_id = (.+) EXTRACT\(MONTH FROM date\)`).
		WithArgs("student-1", "class-1", "session-1", 3, 2026).
		WillReturnRows(rows)

	records, err := repo.ListForMonth(context.Background(), "student-1", "class-1", "session-1", 3, 2026)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, models.AttendanceHalfDay, records[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
