package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
)

type mockAttendanceRepo struct {
	upserted []*models.Attendance
	month    []models.Attendance
	records  []models.AttendanceRecord
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) error {
	m.upserted = append(m.upserted, record)
	return nil
}

func (m *mockAttendanceRepo) ListForDate(ctx context.Context, classID, sessionID string, date time.Time) ([]models.AttendanceRecord, error) {
	return m.records, nil
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error) {
	return nil, 0, nil
}

func (m *mockAttendanceRepo) ListForMonth(ctx context.Context, studentID, classID, sessionID string, month, year int) ([]models.Attendance, error) {
	return m.month, nil
}

type mockSummaryRepo struct {
	upserted []*models.AttendanceSummary
	summary  *models.AttendanceSummary
}

func (m *mockSummaryRepo) Upsert(ctx context.Context, summary *models.AttendanceSummary) error {
	m.upserted = append(m.upserted, summary)
	return nil
}

func (m *mockSummaryRepo) Find(ctx context.Context, studentID, classID, sessionID string, month, year int) (*models.AttendanceSummary, error) {
	if m.summary == nil {
		return nil, sql.ErrNoRows
	}
	return m.summary, nil
}

func (m *mockSummaryRepo) ListByStudent(ctx context.Context, studentID, sessionID string) ([]models.AttendanceSummary, error) {
	if m.summary == nil {
		return nil, nil
	}
	return []models.AttendanceSummary{*m.summary}, nil
}

type mockAttendanceClassRepo struct {
	class *models.Class
}

func (m *mockAttendanceClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if m.class == nil {
		return nil, sql.ErrNoRows
	}
	return m.class, nil
}

type mockAttendanceEnrollmentRepo struct {
	roster []models.EnrollmentDetail
}

func (m *mockAttendanceEnrollmentRepo) ListActiveByClass(ctx context.Context, classID, sessionID string) ([]models.EnrollmentDetail, error) {
	return m.roster, nil
}

func enrolledStudent(id string) models.EnrollmentDetail {
	return models.EnrollmentDetail{StudentEnrollment: models.StudentEnrollment{StudentID: id, IsActive: true}}
}

func newAttendanceServiceForTest(repo *mockAttendanceRepo, summaries *mockSummaryRepo, classes *mockAttendanceClassRepo, enrollments *mockAttendanceEnrollmentRepo) *AttendanceService {
	return NewAttendanceService(repo, summaries, classes, enrollments, validator.New(), zap.NewNop())
}

func TestAttendanceServiceTakeSkipsUnenrolledStudents(t *testing.T) {
	repo := &mockAttendanceRepo{}
	classes := &mockAttendanceClassRepo{class: &models.Class{ID: "class-1", SchoolID: "school-1", SessionID: "session-1"}}
	enrollments := &mockAttendanceEnrollmentRepo{roster: []models.EnrollmentDetail{enrolledStudent("student-1")}}
	svc := newAttendanceServiceForTest(repo, &mockSummaryRepo{}, classes, enrollments)

	result, err := svc.Take(context.Background(), "school-1", "class-1", "session-1", "teacher-1", TakeAttendanceRequest{
		Date: time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC),
		Entries: []AttendanceEntry{
			{StudentID: "student-1", Status: string(models.AttendancePresent)},
			{StudentID: "student-9", Status: string(models.AttendanceAbsent)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Marked)
	assert.Equal(t, []string{"student-9"}, result.Skipped)

	require.Len(t, repo.upserted, 1)
	record := repo.upserted[0]
	assert.Equal(t, "student-1", record.StudentID)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), record.Date)
	require.NotNil(t, record.MarkedBy)
	assert.Equal(t, "teacher-1", *record.MarkedBy)
}

func TestAttendanceServiceTakeUnknownStatus(t *testing.T) {
	classes := &mockAttendanceClassRepo{class: &models.Class{ID: "class-1", SchoolID: "school-1", SessionID: "session-1"}}
	svc := newAttendanceServiceForTest(&mockAttendanceRepo{}, &mockSummaryRepo{}, classes, &mockAttendanceEnrollmentRepo{})

	_, err := svc.Take(context.Background(), "school-1", "class-1", "session-1", "", TakeAttendanceRequest{
		Date:    time.Now(),
		Entries: []AttendanceEntry{{StudentID: "student-1", Status: "vacation"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceTakeClassOutsideSession(t *testing.T) {
	classes := &mockAttendanceClassRepo{class: &models.Class{ID: "class-1", SchoolID: "school-1", SessionID: "session-1"}}
	svc := newAttendanceServiceForTest(&mockAttendanceRepo{}, &mockSummaryRepo{}, classes, &mockAttendanceEnrollmentRepo{})

	_, err := svc.Take(context.Background(), "school-1", "class-1", "session-2", "", TakeAttendanceRequest{
		Date:    time.Now(),
		Entries: []AttendanceEntry{{StudentID: "student-1", Status: string(models.AttendancePresent)}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceTakeRecomputesFullRoster(t *testing.T) {
	repo := &mockAttendanceRepo{}
	classes := &mockAttendanceClassRepo{class: &models.Class{ID: "class-1", SchoolID: "school-1", SessionID: "session-1"}}
	enrollments := &mockAttendanceEnrollmentRepo{roster: []models.EnrollmentDetail{
		enrolledStudent("student-1"),
		enrolledStudent("student-2"),
		enrolledStudent("student-3"),
	}}
	summaries := &mockSummaryRepo{}
	svc := newAttendanceServiceForTest(repo, summaries, classes, enrollments)

	// Only one student is marked; rollups must still be refreshed for the
	// whole roster so omitted students carry correct month counts.
	result, err := svc.Take(context.Background(), "school-1", "class-1", "session-1", "teacher-1", TakeAttendanceRequest{
		Date:    time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC),
		Entries: []AttendanceEntry{{StudentID: "student-2", Status: string(models.AttendancePresent)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Marked)

	require.Len(t, summaries.upserted, 3)
	recomputed := make([]string, 0, len(summaries.upserted))
	for _, summary := range summaries.upserted {
		recomputed = append(recomputed, summary.StudentID)
		assert.Equal(t, 3, summary.Month)
		assert.Equal(t, 2026, summary.Year)
	}
	assert.ElementsMatch(t, []string{"student-1", "student-2", "student-3"}, recomputed)
}

func TestAttendanceServiceRecomputeSummaryCountsPresentOnly(t *testing.T) {
	repo := &mockAttendanceRepo{month: []models.Attendance{
		{Status: models.AttendancePresent},
		{Status: models.AttendancePresent},
		{Status: models.AttendanceLate},
		{Status: models.AttendanceHalfDay},
		{Status: models.AttendanceAbsent},
	}}
	summaries := &mockSummaryRepo{}
	svc := newAttendanceServiceForTest(repo, summaries, &mockAttendanceClassRepo{}, &mockAttendanceEnrollmentRepo{})

	err := svc.RecomputeSummary(context.Background(), "student-1", "class-1", "session-1", 3, 2026)
	require.NoError(t, err)

	require.Len(t, summaries.upserted, 1)
	summary := summaries.upserted[0]
	assert.Equal(t, 5, summary.TotalDays)
	assert.Equal(t, 2, summary.PresentDays)
	assert.Equal(t, 1, summary.LateDays)
	assert.Equal(t, 1, summary.HalfDays)
	assert.Equal(t, 1, summary.AbsentDays)
	// Late and half-day marks earn no partial credit: 2 of 5 days.
	assert.InDelta(t, 40.0, summary.AttendancePercentage, 0.001)
}

func TestAttendanceServiceRecomputeSummaryEmptyMonth(t *testing.T) {
	summaries := &mockSummaryRepo{}
	svc := newAttendanceServiceForTest(&mockAttendanceRepo{}, summaries, &mockAttendanceClassRepo{}, &mockAttendanceEnrollmentRepo{})

	err := svc.RecomputeSummary(context.Background(), "student-1", "class-1", "session-1", 1, 2026)
	require.NoError(t, err)

	require.Len(t, summaries.upserted, 1)
	assert.Equal(t, 0, summaries.upserted[0].TotalDays)
	assert.Equal(t, 0.0, summaries.upserted[0].AttendancePercentage)
}

func TestAttendanceServiceSummaryNotFound(t *testing.T) {
	svc := newAttendanceServiceForTest(&mockAttendanceRepo{}, &mockSummaryRepo{}, &mockAttendanceClassRepo{}, &mockAttendanceEnrollmentRepo{})

	_, err := svc.Summary(context.Background(), "student-1", "class-1", "session-1", 2, 2026)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
