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

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) error
	ListForDate(ctx context.Context, classID, sessionID string, date time.Time) ([]models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error)
	ListForMonth(ctx context.Context, studentID, classID, sessionID string, month, year int) ([]models.Attendance, error)
}

type attendanceSummaryRepository interface {
	Upsert(ctx context.Context, summary *models.AttendanceSummary) error
	Find(ctx context.Context, studentID, classID, sessionID string, month, year int) (*models.AttendanceSummary, error)
	ListByStudent(ctx context.Context, studentID, sessionID string) ([]models.AttendanceSummary, error)
}

type attendanceClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type attendanceEnrollmentRepository interface {
	ListActiveByClass(ctx context.Context, classID, sessionID string) ([]models.EnrollmentDetail, error)
}

// AttendanceService records daily attendance and maintains monthly rollups.
type AttendanceService struct {
	repo        attendanceRepository
	summaries   attendanceSummaryRepository
	classes     attendanceClassRepository
	enrollments attendanceEnrollmentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, summaries attendanceSummaryRepository, classes attendanceClassRepository, enrollments attendanceEnrollmentRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:        repo,
		summaries:   summaries,
		classes:     classes,
		enrollments: enrollments,
		validator:   validate,
		logger:      logger,
	}
}

// AttendanceEntry is one student's mark in a take-attendance request.
type AttendanceEntry struct {
	StudentID    string     `json:"student_id" validate:"required"`
	Status       string     `json:"status" validate:"required"`
	CheckInTime  *time.Time `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`
	Notes        *string    `json:"notes"`
}

// TakeAttendanceRequest marks attendance for a class on one day.
type TakeAttendanceRequest struct {
	Date    time.Time         `json:"date" validate:"required"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// TakeAttendanceResult summarises a take-attendance run.
type TakeAttendanceResult struct {
	Marked  int      `json:"marked"`
	Skipped []string `json:"skipped,omitempty"`
}

// Take records attendance for a class day. Re-marking the same day replaces
// the earlier record (last write wins). Entries for students without an
// active enrollment in the class are skipped and reported back. After the
// writes, the monthly rollup of every actively enrolled student in the class
// is recomputed, so students omitted from the request still carry correct
// counts for the month.
func (s *AttendanceService) Take(ctx context.Context, schoolID, classID, sessionID, markedBy string, req TakeAttendanceRequest) (*TakeAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.SchoolID != schoolID || class.SessionID != sessionID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found in this session")
	}

	for _, entry := range req.Entries {
		if !models.AttendanceStatus(entry.Status).Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
		}
	}

	roster, err := s.enrollments.ListActiveByClass(ctx, classID, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	enrolled := make(map[string]bool, len(roster))
	for _, e := range roster {
		enrolled[e.StudentID] = true
	}

	date := truncateToDay(req.Date)
	result := &TakeAttendanceResult{}
	for _, entry := range req.Entries {
		if !enrolled[entry.StudentID] {
			result.Skipped = append(result.Skipped, entry.StudentID)
			continue
		}

		record := &models.Attendance{
			StudentID:    entry.StudentID,
			ClassID:      classID,
			SessionID:    sessionID,
			Date:         date,
			Status:       models.AttendanceStatus(entry.Status),
			CheckInTime:  entry.CheckInTime,
			CheckOutTime: entry.CheckOutTime,
			Notes:        entry.Notes,
		}
		if markedBy != "" {
			record.MarkedBy = &markedBy
		}
		if err := s.repo.Upsert(ctx, record); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
		}
		result.Marked++
	}

	for _, enrollment := range roster {
		if err := s.RecomputeSummary(ctx, enrollment.StudentID, classID, sessionID, int(date.Month()), date.Year()); err != nil {
			s.logger.Warn("failed to recompute attendance summary",
				zap.String("student_id", enrollment.StudentID), zap.Error(err))
		}
	}

	s.logger.Info("attendance taken",
		zap.String("class_id", classID),
		zap.Time("date", date),
		zap.Int("marked", result.Marked),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

// ForDate returns the attendance sheet of a class for one day.
func (s *AttendanceService) ForDate(ctx context.Context, classID, sessionID string, date time.Time) ([]models.AttendanceRecord, error) {
	records, err := s.repo.ListForDate(ctx, classID, sessionID, truncateToDay(date))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return records, nil
}

// List returns attendance records matching the filter.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// RecomputeSummary re-derives a student's monthly rollup from the raw
// attendance rows and replaces the stored summary. The operation is
// idempotent: recomputing an unchanged month leaves identical counts.
func (s *AttendanceService) RecomputeSummary(ctx context.Context, studentID, classID, sessionID string, month, year int) error {
	records, err := s.repo.ListForMonth(ctx, studentID, classID, sessionID, month, year)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load month attendance")
	}

	summary := &models.AttendanceSummary{
		StudentID: studentID,
		ClassID:   classID,
		SessionID: sessionID,
		Month:     month,
		Year:      year,
	}
	for _, record := range records {
		summary.TotalDays++
		switch record.Status {
		case models.AttendancePresent:
			summary.PresentDays++
		case models.AttendanceAbsent:
			summary.AbsentDays++
		case models.AttendanceLate:
			summary.LateDays++
		case models.AttendanceHalfDay:
			summary.HalfDays++
		}
	}
	// Only full present days count toward the percentage; late and half-day
	// marks are tallied separately without partial credit.
	if summary.TotalDays > 0 {
		summary.AttendancePercentage = float64(summary.PresentDays) / float64(summary.TotalDays) * 100
	}

	if err := s.summaries.Upsert(ctx, summary); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance summary")
	}
	return nil
}

// Summary returns the stored monthly rollup for a student.
func (s *AttendanceService) Summary(ctx context.Context, studentID, classID, sessionID string, month, year int) (*models.AttendanceSummary, error) {
	summary, err := s.summaries.Find(ctx, studentID, classID, sessionID, month, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no attendance summary for this month")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance summary")
	}
	return summary, nil
}

// StudentSummaries returns all monthly rollups for a student in a session.
func (s *AttendanceService) StudentSummaries(ctx context.Context, studentID, sessionID string) ([]models.AttendanceSummary, error) {
	summaries, err := s.summaries.ListByStudent(ctx, studentID, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance summaries")
	}
	return summaries, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
