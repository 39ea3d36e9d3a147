package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollment     *models.StudentEnrollment
	activeExists   bool
	rollTaken      bool
	nextRoll       int
	created        []*models.StudentEnrollment
	classUpdates   []string
	deactivated    []string
	roster         []models.EnrollmentDetail
	lastExcludedID string
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return m.roster, len(m.roster), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.StudentEnrollment, error) {
	if m.enrollment == nil || m.enrollment.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *m.enrollment
	return &copied, nil
}

func (m *mockEnrollmentRepo) ExistsActive(ctx context.Context, studentID, sessionID, excludeID string) (bool, error) {
	return m.activeExists, nil
}

func (m *mockEnrollmentRepo) RollNumberTaken(ctx context.Context, classID, sessionID string, rollNumber int, excludeID string) (bool, error) {
	m.lastExcludedID = excludeID
	return m.rollTaken, nil
}

func (m *mockEnrollmentRepo) NextRollNumber(ctx context.Context, classID, sessionID string) (int, error) {
	return m.nextRoll, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.StudentEnrollment) error {
	enrollment.ID = "enrollment-new"
	m.created = append(m.created, enrollment)
	return nil
}

func (m *mockEnrollmentRepo) UpdateClass(ctx context.Context, id, classID string, rollNumber int) error {
	m.classUpdates = append(m.classUpdates, id)
	return nil
}

func (m *mockEnrollmentRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func (m *mockEnrollmentRepo) ListActiveByClass(ctx context.Context, classID, sessionID string) ([]models.EnrollmentDetail, error) {
	return m.roster, nil
}

type mockEnrollmentStudentRepo struct {
	student *models.Student
}

func (m *mockEnrollmentStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.student == nil || m.student.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

type mockEnrollmentClassRepo struct {
	class *models.Class
}

func (m *mockEnrollmentClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if m.class == nil || m.class.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.class, nil
}

func newEnrollmentServiceForTest(repo *mockEnrollmentRepo, students *mockEnrollmentStudentRepo, classes *mockEnrollmentClassRepo) *EnrollmentService {
	return NewEnrollmentService(repo, students, classes, validator.New(), zap.NewNop())
}

func activeStudent() *models.Student {
	return &models.Student{ID: "student-1", SchoolID: "school-1", AdmissionNo: "ADM-001", FirstName: "Asha", IsActive: true}
}

func sessionClass() *models.Class {
	return &models.Class{ID: "class-1", SchoolID: "school-1", SessionID: "session-1", Name: "Grade 5", IsActive: true}
}

func TestEnrollmentServiceEnrollAutoAssignsRollNumber(t *testing.T) {
	repo := &mockEnrollmentRepo{nextRoll: 12}
	svc := newEnrollmentServiceForTest(repo, &mockEnrollmentStudentRepo{student: activeStudent()}, &mockEnrollmentClassRepo{class: sessionClass()})

	enrollment, err := svc.Enroll(context.Background(), "school-1", "session-1", EnrollRequest{
		StudentID: "student-1",
		ClassID:   "class-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 12, enrollment.RollNumber)
	assert.True(t, enrollment.IsActive)
	require.Len(t, repo.created, 1)
}

func TestEnrollmentServiceEnrollRejectsSecondActiveEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{activeExists: true}
	svc := newEnrollmentServiceForTest(repo, &mockEnrollmentStudentRepo{student: activeStudent()}, &mockEnrollmentClassRepo{class: sessionClass()})

	_, err := svc.Enroll(context.Background(), "school-1", "session-1", EnrollRequest{
		StudentID: "student-1",
		ClassID:   "class-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRejectsTakenRollNumber(t *testing.T) {
	repo := &mockEnrollmentRepo{rollTaken: true}
	svc := newEnrollmentServiceForTest(repo, &mockEnrollmentStudentRepo{student: activeStudent()}, &mockEnrollmentClassRepo{class: sessionClass()})

	_, err := svc.Enroll(context.Background(), "school-1", "session-1", EnrollRequest{
		StudentID:  "student-1",
		ClassID:    "class-1",
		RollNumber: 7,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollInactiveStudent(t *testing.T) {
	student := activeStudent()
	student.IsActive = false
	svc := newEnrollmentServiceForTest(&mockEnrollmentRepo{}, &mockEnrollmentStudentRepo{student: student}, &mockEnrollmentClassRepo{class: sessionClass()})

	_, err := svc.Enroll(context.Background(), "school-1", "session-1", EnrollRequest{
		StudentID: "student-1",
		ClassID:   "class-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollClassFromOtherSession(t *testing.T) {
	class := sessionClass()
	class.SessionID = "session-0"
	svc := newEnrollmentServiceForTest(&mockEnrollmentRepo{}, &mockEnrollmentStudentRepo{student: activeStudent()}, &mockEnrollmentClassRepo{class: class})

	_, err := svc.Enroll(context.Background(), "school-1", "session-1", EnrollRequest{
		StudentID: "student-1",
		ClassID:   "class-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceTransferExcludesOwnEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{
		enrollment: &models.StudentEnrollment{ID: "enrollment-1", StudentID: "student-1", ClassID: "class-1", SessionID: "session-1", RollNumber: 3, IsActive: true},
	}
	class := sessionClass()
	class.ID = "class-2"
	svc := newEnrollmentServiceForTest(repo, &mockEnrollmentStudentRepo{}, &mockEnrollmentClassRepo{class: class})

	enrollment, err := svc.Transfer(context.Background(), "school-1", "enrollment-1", TransferRequest{
		ClassID:    "class-2",
		RollNumber: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "class-2", enrollment.ClassID)
	assert.Equal(t, 3, enrollment.RollNumber)
	assert.Equal(t, "enrollment-1", repo.lastExcludedID)
	assert.Equal(t, []string{"enrollment-1"}, repo.classUpdates)
}

func TestEnrollmentServiceWithdraw(t *testing.T) {
	repo := &mockEnrollmentRepo{
		enrollment: &models.StudentEnrollment{ID: "enrollment-1", IsActive: true},
	}
	svc := newEnrollmentServiceForTest(repo, &mockEnrollmentStudentRepo{}, &mockEnrollmentClassRepo{})

	err := svc.Withdraw(context.Background(), "enrollment-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"enrollment-1"}, repo.deactivated)
}

func TestEnrollmentServiceWithdrawUnknownEnrollment(t *testing.T) {
	svc := newEnrollmentServiceForTest(&mockEnrollmentRepo{}, &mockEnrollmentStudentRepo{}, &mockEnrollmentClassRepo{})

	err := svc.Withdraw(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
