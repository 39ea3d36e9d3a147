package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentEnrollment, error)
	ExistsActive(ctx context.Context, studentID, sessionID, excludeID string) (bool, error)
	RollNumberTaken(ctx context.Context, classID, sessionID string, rollNumber int, excludeID string) (bool, error)
	NextRollNumber(ctx context.Context, classID, sessionID string) (int, error)
	Create(ctx context.Context, enrollment *models.StudentEnrollment) error
	UpdateClass(ctx context.Context, id, classID string, rollNumber int) error
	Deactivate(ctx context.Context, id string) error
	ListActiveByClass(ctx context.Context, classID, sessionID string) ([]models.EnrollmentDetail, error)
}

type enrollmentStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type enrollmentClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// EnrollmentService registers students into classes per session.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  enrollmentStudentRepository
	classes   enrollmentClassRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository, students enrollmentStudentRepository, classes enrollmentClassRepository, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, classes: classes, validator: validate, logger: logger}
}

// EnrollRequest is the payload for enrolling a student.
type EnrollRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	ClassID    string `json:"class_id" validate:"required"`
	RollNumber int    `json:"roll_number" validate:"gte=0"`
}

// TransferRequest is the payload for moving a student to another class.
type TransferRequest struct {
	ClassID    string `json:"class_id" validate:"required"`
	RollNumber int    `json:"roll_number" validate:"gte=0"`
}

// List returns enrollments matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Roster returns the active class roster ordered by roll number.
func (s *EnrollmentService) Roster(ctx context.Context, classID, sessionID string) ([]models.EnrollmentDetail, error) {
	roster, err := s.repo.ListActiveByClass(ctx, classID, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	return roster, nil
}

// Enroll registers a student into a class for the session. A student holds
// at most one active enrollment per session; roll numbers are unique within
// a class session and auto-assigned when omitted.
func (s *EnrollmentService) Enroll(ctx context.Context, schoolID, sessionID string, req EnrollRequest) (*models.StudentEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if !student.IsActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is inactive")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.SchoolID != schoolID || class.SessionID != sessionID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found in this session")
	}

	enrolled, err := s.repo.ExistsActive(ctx, req.StudentID, sessionID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment in this session")
	}

	rollNumber := req.RollNumber
	if rollNumber == 0 {
		rollNumber, err = s.repo.NextRollNumber(ctx, req.ClassID, sessionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign roll number")
		}
	} else {
		taken, err := s.repo.RollNumberTaken(ctx, req.ClassID, sessionID, rollNumber, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roll number")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "roll number is already taken in this class")
		}
	}

	enrollment := &models.StudentEnrollment{
		StudentID:      req.StudentID,
		ClassID:        req.ClassID,
		SessionID:      sessionID,
		RollNumber:     rollNumber,
		EnrollmentDate: time.Now().UTC(),
		IsActive:       true,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("student enrolled",
		zap.String("student_id", req.StudentID),
		zap.String("class_id", req.ClassID),
		zap.String("session_id", sessionID),
		zap.Int("roll_number", rollNumber))
	return enrollment, nil
}

// Transfer moves an enrollment to another class in the same session.
func (s *EnrollmentService) Transfer(ctx context.Context, schoolID, enrollmentID string, req TransferRequest) (*models.StudentEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}

	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.SchoolID != schoolID || class.SessionID != enrollment.SessionID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found in this session")
	}

	rollNumber := req.RollNumber
	if rollNumber == 0 {
		rollNumber, err = s.repo.NextRollNumber(ctx, req.ClassID, enrollment.SessionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign roll number")
		}
	} else {
		taken, err := s.repo.RollNumberTaken(ctx, req.ClassID, enrollment.SessionID, rollNumber, enrollmentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roll number")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "roll number is already taken in this class")
		}
	}

	if err := s.repo.UpdateClass(ctx, enrollmentID, req.ClassID, rollNumber); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transfer enrollment")
	}

	enrollment.ClassID = req.ClassID
	enrollment.RollNumber = rollNumber
	enrollment.IsActive = true
	return enrollment, nil
}

// Withdraw deactivates an enrollment. Historical attendance and fee records
// remain attached to the student.
func (s *EnrollmentService) Withdraw(ctx context.Context, enrollmentID string) error {
	if _, err := s.repo.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if err := s.repo.Deactivate(ctx, enrollmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	s.logger.Info("enrollment withdrawn", zap.String("enrollment_id", enrollmentID))
	return nil
}
