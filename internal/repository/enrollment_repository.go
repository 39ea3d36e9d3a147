package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
)

// EnrollmentRepository handles persistence of student enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with student and class metadata.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM student_enrollments e
JOIN students s ON s.id = e.student_id
JOIN classes c ON c.id = e.class_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("e.is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
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
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.class_id, e.session_id, e.roll_number, e.enrollment_date, e.is_active, e.created_at,
        s.first_name || CASE WHEN s.last_name = '' THEN '' ELSE ' ' || s.last_name END AS student_name,
        s.admission_no, c.name AS class_name
        %s ORDER BY c.name ASC, e.roll_number ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.StudentEnrollment, error) {
	const query = `SELECT id, student_id, class_id, session_id, roll_number, enrollment_date, is_active, created_at
        FROM student_enrollments WHERE id = $1`
	var enrollment models.StudentEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindActiveByStudentAndSession returns the student's active enrollment for a
// session, if any.
func (r *EnrollmentRepository) FindActiveByStudentAndSession(ctx context.Context, studentID, sessionID string) (*models.StudentEnrollment, error) {
	const query = `SELECT id, student_id, class_id, session_id, roll_number, enrollment_date, is_active, created_at
        FROM student_enrollments WHERE student_id = $1 AND session_id = $2 AND is_active = TRUE LIMIT 1`
	var enrollment models.StudentEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, sessionID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActive checks for an active enrollment of the student in the session.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, sessionID, excludeID string) (bool, error) {
	query := `SELECT 1 FROM student_enrollments WHERE student_id = $1 AND session_id = $2 AND is_active = TRUE`
	args := []interface{}{studentID, sessionID}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// RollNumberTaken checks whether the roll number is used in the class session.
func (r *EnrollmentRepository) RollNumberTaken(ctx context.Context, classID, sessionID string, rollNumber int, excludeID string) (bool, error) {
	query := `SELECT 1 FROM student_enrollments WHERE class_id = $1 AND session_id = $2 AND roll_number = $3 AND is_active = TRUE`
	args := []interface{}{classID, sessionID, rollNumber}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check roll number: %w", err)
	}
	return true, nil
}

// NextRollNumber returns the next free roll number in a class session.
func (r *EnrollmentRepository) NextRollNumber(ctx context.Context, classID, sessionID string) (int, error) {
	const query = `SELECT COALESCE(MAX(roll_number), 0) + 1 FROM student_enrollments WHERE class_id = $1 AND session_id = $2`
	var next int
	if err := r.db.GetContext(ctx, &next, query, classID, sessionID); err != nil {
		return 0, fmt.Errorf("next roll number: %w", err)
	}
	return next, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.StudentEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = time.Now().UTC()
	}
	enrollment.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO student_enrollments (id, student_id, class_id, session_id, roll_number, enrollment_date, is_active, created_at)
        VALUES (:id, :student_id, :class_id, :session_id, :roll_number, :enrollment_date, :is_active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateClass moves an enrollment to another class, reactivating it.
func (r *EnrollmentRepository) UpdateClass(ctx context.Context, id, classID string, rollNumber int) error {
	const query = `UPDATE student_enrollments SET class_id = $2, roll_number = $3, is_active = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, classID, rollNumber); err != nil {
		return fmt.Errorf("transfer enrollment: %w", err)
	}
	return nil
}

// Deactivate withdraws an enrollment.
func (r *EnrollmentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE student_enrollments SET is_active = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deactivate enrollment: %w", err)
	}
	return nil
}

// ListActiveByClass returns active enrollments for a class session ordered by
// roll number.
func (r *EnrollmentRepository) ListActiveByClass(ctx context.Context, classID, sessionID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.class_id, e.session_id, e.roll_number, e.enrollment_date, e.is_active, e.created_at,
        s.first_name || CASE WHEN s.last_name = '' THEN '' ELSE ' ' || s.last_name END AS student_name,
        s.admission_no, c.name AS class_name
        FROM student_enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN classes c ON c.id = e.class_id
        WHERE e.class_id = $1 AND e.session_id = $2 AND e.is_active = TRUE
        ORDER BY e.roll_number ASC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, classID, sessionID); err != nil {
		return nil, fmt.Errorf("list class enrollments: %w", err)
	}
	return enrollments, nil
}

// ListActiveStudentIDs returns the IDs of actively enrolled students for the
// given session, optionally restricted to one class.
func (r *EnrollmentRepository) ListActiveStudentIDs(ctx context.Context, sessionID, classID string) ([]string, error) {
	query := `SELECT e.student_id FROM student_enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.session_id = $1 AND e.is_active = TRUE AND s.is_active = TRUE`
	args := []interface{}{sessionID}
	if classID != "" {
		query += fmt.Sprintf(" AND e.class_id = $%d", len(args)+1)
		args = append(args, classID)
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list enrolled student ids: %w", err)
	}
	return ids, nil
}

// CountActiveBySession returns the number of active enrollments in a session.
func (r *EnrollmentRepository) CountActiveBySession(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM student_enrollments WHERE session_id = $1 AND is_active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count session enrollments: %w", err)
	}
	return count, nil
}
