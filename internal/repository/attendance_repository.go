package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
)

// AttendanceRepository handles persistence of daily attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, student_id, class_id, session_id, date, status, check_in_time, check_out_time,
        notes, marked_by, created_at, updated_at`

// Upsert writes one attendance record, replacing any existing record for the
// same student, class, session and date. Last write wins on re-marking.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO attendances (id, student_id, class_id, session_id, date, status, check_in_time,
        check_out_time, notes, marked_by, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :session_id, :date, :status, :check_in_time,
        :check_out_time, :notes, :marked_by, :created_at, :updated_at)
        ON CONFLICT (student_id, class_id, session_id, date) DO UPDATE SET
        status = EXCLUDED.status, check_in_time = EXCLUDED.check_in_time, check_out_time = EXCLUDED.check_out_time,
        notes = EXCLUDED.notes, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// ListForDate returns attendance for a class on a given day with student
// metadata, ordered by roll number.
func (r *AttendanceRepository) ListForDate(ctx context.Context, classID, sessionID string, date time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT a.id, a.student_id, a.class_id, a.session_id, a.date, a.status, a.check_in_time,
        a.check_out_time, a.notes, a.marked_by, a.created_at, a.updated_at,
        s.first_name || CASE WHEN s.last_name = '' THEN '' ELSE ' ' || s.last_name END AS student_name,
        e.roll_number
        FROM attendances a
        JOIN students s ON s.id = a.student_id
        JOIN student_enrollments e ON e.student_id = a.student_id AND e.class_id = a.class_id AND e.session_id = a.session_id
        WHERE a.class_id = $1 AND a.session_id = $2 AND a.date = $3
        ORDER BY e.roll_number ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, classID, sessionID, date); err != nil {
		return nil, fmt.Errorf("list attendance for date: %w", err)
	}
	return records, nil
}

// List returns attendance records filtered by the provided criteria.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM attendances%s ORDER BY date DESC LIMIT %d OFFSET %d`, attendanceColumns, clause, size, offset)
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendances%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// ListForMonth returns a student's attendance rows for one calendar month,
// the input for the monthly summary recomputation.
func (r *AttendanceRepository) ListForMonth(ctx context.Context, studentID, classID, sessionID string, month, year int) ([]models.Attendance, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendances
        WHERE student_id = $1 AND class_id = $2 AND session_id = $3
        AND EXTRACT(MONTH FROM date) = $4 AND EXTRACT(YEAR FROM date) = $5
        ORDER BY date ASC`, attendanceColumns)
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, studentID, classID, sessionID, month, year); err != nil {
		return nil, fmt.Errorf("list month attendance: %w", err)
	}
	return records, nil
}

// ListClassBetween returns raw attendance observations for a class between
// two dates inclusive, for the report aggregators.
func (r *AttendanceRepository) ListClassBetween(ctx context.Context, classID, sessionID string, from, to time.Time) ([]models.DailyAttendanceRow, error) {
	const query = `SELECT student_id, date, status FROM attendances
        WHERE class_id = $1 AND session_id = $2 AND date >= $3 AND date <= $4
        ORDER BY date ASC`
	var rows []models.DailyAttendanceRow
	if err := r.db.SelectContext(ctx, &rows, query, classID, sessionID, from, to); err != nil {
		return nil, fmt.Errorf("list class attendance range: %w", err)
	}
	return rows, nil
}

// ListStudentBetween returns raw attendance observations for one student
// between two dates inclusive.
func (r *AttendanceRepository) ListStudentBetween(ctx context.Context, studentID, sessionID string, from, to time.Time) ([]models.DailyAttendanceRow, error) {
	const query = `SELECT student_id, date, status FROM attendances
        WHERE student_id = $1 AND session_id = $2 AND date >= $3 AND date <= $4
        ORDER BY date ASC`
	var rows []models.DailyAttendanceRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID, sessionID, from, to); err != nil {
		return nil, fmt.Errorf("list student attendance range: %w", err)
	}
	return rows, nil
}
