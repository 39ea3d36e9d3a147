package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
)

// SessionRepository handles persistence of academic sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, school_id, name, start_date, end_date, is_current, is_active, created_at, updated_at`

// ListBySchool returns all sessions for a school, newest first.
func (r *SessionRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.AcademicSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_sessions WHERE school_id = $1 ORDER BY start_date DESC`, sessionColumns)
	var sessions []models.AcademicSession
	if err := r.db.SelectContext(ctx, &sessions, query, schoolID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// FindByID returns a session by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_sessions WHERE id = $1`, sessionColumns)
	var session models.AcademicSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindCurrent returns the school's current session, if one is set.
func (r *SessionRepository) FindCurrent(ctx context.Context, schoolID string) (*models.AcademicSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_sessions WHERE school_id = $1 AND is_current = TRUE LIMIT 1`, sessionColumns)
	var session models.AcademicSession
	if err := r.db.GetContext(ctx, &session, query, schoolID); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindMostRecentActive returns the newest active session, used as a fallback
// when no session carries the current flag.
func (r *SessionRepository) FindMostRecentActive(ctx context.Context, schoolID string) (*models.AcademicSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_sessions WHERE school_id = $1 AND is_active = TRUE ORDER BY start_date DESC LIMIT 1`, sessionColumns)
	var session models.AcademicSession
	if err := r.db.GetContext(ctx, &session, query, schoolID); err != nil {
		return nil, err
	}
	return &session, nil
}

// ExistsName checks whether the school already has a session with the name.
func (r *SessionRepository) ExistsName(ctx context.Context, schoolID, name, excludeID string) (bool, error) {
	query := `SELECT 1 FROM academic_sessions WHERE school_id = $1 AND LOWER(name) = LOWER($2)`
	args := []interface{}{schoolID, name}
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
		return false, fmt.Errorf("check session name: %w", err)
	}
	return true, nil
}

// Create persists a new session record.
func (r *SessionRepository) Create(ctx context.Context, session *models.AcademicSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	const query = `INSERT INTO academic_sessions (id, school_id, name, start_date, end_date, is_current, is_active, created_at, updated_at)
        VALUES (:id, :school_id, :name, :start_date, :end_date, :is_current, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update persists mutable session fields.
func (r *SessionRepository) Update(ctx context.Context, session *models.AcademicSession) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_sessions SET name = :name, start_date = :start_date, end_date = :end_date,
        is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// SetCurrent marks one session as the school's current one, clearing the flag
// on every other session in the same transaction so at most one session is
// current at any time.
func (r *SessionRepository) SetCurrent(ctx context.Context, schoolID, sessionID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set current session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE academic_sessions SET is_current = FALSE, updated_at = NOW() WHERE school_id = $1 AND is_current = TRUE`, schoolID); err != nil {
		return fmt.Errorf("clear current session: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE academic_sessions SET is_current = TRUE, is_active = TRUE, updated_at = NOW() WHERE id = $1 AND school_id = $2`, sessionID, schoolID)
	if err != nil {
		return fmt.Errorf("set current session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set current session result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set current session: %w", err)
	}
	return nil
}
