package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
)

// AttendanceSummaryRepository handles the monthly attendance rollup cache.
type AttendanceSummaryRepository struct {
	db *sqlx.DB
}

// NewAttendanceSummaryRepository constructs the repository.
func NewAttendanceSummaryRepository(db *sqlx.DB) *AttendanceSummaryRepository {
	return &AttendanceSummaryRepository{db: db}
}

const summaryColumns = `id, student_id, class_id, session_id, month, year, total_days, present_days,
        absent_days, late_days, half_days, attendance_percentage, created_at, updated_at`

// Upsert replaces the rollup for (student, class, session, month, year) with
// freshly derived counts, keyed by the table's unique index.
func (r *AttendanceSummaryRepository) Upsert(ctx context.Context, summary *models.AttendanceSummary) error {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	summary.CreatedAt = now
	summary.UpdatedAt = now
	const query = `INSERT INTO attendance_summaries (id, student_id, class_id, session_id, month, year,
        total_days, present_days, absent_days, late_days, half_days, attendance_percentage, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :session_id, :month, :year,
        :total_days, :present_days, :absent_days, :late_days, :half_days, :attendance_percentage, :created_at, :updated_at)
        ON CONFLICT (student_id, class_id, session_id, month, year) DO UPDATE SET
        total_days = EXCLUDED.total_days, present_days = EXCLUDED.present_days, absent_days = EXCLUDED.absent_days,
        late_days = EXCLUDED.late_days, half_days = EXCLUDED.half_days,
        attendance_percentage = EXCLUDED.attendance_percentage, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, summary); err != nil {
		return fmt.Errorf("upsert attendance summary: %w", err)
	}
	return nil
}

// Find returns the rollup for one student month, if present.
func (r *AttendanceSummaryRepository) Find(ctx context.Context, studentID, classID, sessionID string, month, year int) (*models.AttendanceSummary, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_summaries
        WHERE student_id = $1 AND class_id = $2 AND session_id = $3 AND month = $4 AND year = $5`, summaryColumns)
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, studentID, classID, sessionID, month, year); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListByStudent returns all rollups for a student in a session, newest first.
func (r *AttendanceSummaryRepository) ListByStudent(ctx context.Context, studentID, sessionID string) ([]models.AttendanceSummary, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_summaries
        WHERE student_id = $1 AND session_id = $2 ORDER BY year DESC, month DESC`, summaryColumns)
	var summaries []models.AttendanceSummary
	if err := r.db.SelectContext(ctx, &summaries, query, studentID, sessionID); err != nil {
		return nil, fmt.Errorf("list attendance summaries: %w", err)
	}
	return summaries, nil
}
