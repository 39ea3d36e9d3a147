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

// FeeStructureRepository handles persistence of fee structures.
type FeeStructureRepository struct {
	db *sqlx.DB
}

// NewFeeStructureRepository constructs the repository.
func NewFeeStructureRepository(db *sqlx.DB) *FeeStructureRepository {
	return &FeeStructureRepository{db: db}
}

const feeStructureColumns = `id, school_id, session_id, class_id, name, description, amount, frequency, is_active, created_at, updated_at`

// ListBySession returns fee structures for a school session.
func (r *FeeStructureRepository) ListBySession(ctx context.Context, schoolID, sessionID string, activeOnly bool) ([]models.FeeStructure, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_structures WHERE school_id = $1 AND session_id = $2`, feeStructureColumns)
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY name ASC"
	var structures []models.FeeStructure
	if err := r.db.SelectContext(ctx, &structures, query, schoolID, sessionID); err != nil {
		return nil, fmt.Errorf("list fee structures: %w", err)
	}
	return structures, nil
}

// FindByID returns a fee structure by its ID.
func (r *FeeStructureRepository) FindByID(ctx context.Context, id string) (*models.FeeStructure, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_structures WHERE id = $1`, feeStructureColumns)
	var structure models.FeeStructure
	if err := r.db.GetContext(ctx, &structure, query, id); err != nil {
		return nil, err
	}
	return &structure, nil
}

// Create persists a new fee structure record.
func (r *FeeStructureRepository) Create(ctx context.Context, structure *models.FeeStructure) error {
	if structure.ID == "" {
		structure.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	structure.CreatedAt = now
	structure.UpdatedAt = now
	const query = `INSERT INTO fee_structures (id, school_id, session_id, class_id, name, description, amount, frequency, is_active, created_at, updated_at)
        VALUES (:id, :school_id, :session_id, :class_id, :name, :description, :amount, :frequency, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, structure); err != nil {
		return fmt.Errorf("create fee structure: %w", err)
	}
	return nil
}

// Update persists mutable fee structure fields. Amount changes affect future
// assignments only; existing student fees keep their captured amount.
func (r *FeeStructureRepository) Update(ctx context.Context, structure *models.FeeStructure) error {
	structure.UpdatedAt = time.Now().UTC()
	const query = `UPDATE fee_structures SET name = :name, description = :description, amount = :amount,
        frequency = :frequency, class_id = :class_id, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, structure); err != nil {
		return fmt.Errorf("update fee structure: %w", err)
	}
	return nil
}

// CountStudentFees returns the number of student fees derived from the
// structure, used as a delete guard.
func (r *FeeStructureRepository) CountStudentFees(ctx context.Context, structureID string) (int, error) {
	const query = `SELECT COUNT(*) FROM student_fees WHERE fee_structure_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, structureID); err != nil {
		return 0, fmt.Errorf("count structure fees: %w", err)
	}
	return count, nil
}

// Delete removes a fee structure. Callers must run the reference guard first.
func (r *FeeStructureRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM fee_structures WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete fee structure: %w", err)
	}
	return nil
}

// CountBySession returns the number of fee structures in a school session.
func (r *FeeStructureRepository) CountBySession(ctx context.Context, schoolID, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM fee_structures WHERE school_id = $1 AND session_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, sessionID); err != nil {
		return 0, fmt.Errorf("count fee structures: %w", err)
	}
	return count, nil
}

// ApplicableStudentIDs resolves the students a structure targets: active
// enrollments in the structure's session, narrowed to its class when set.
func (r *FeeStructureRepository) ApplicableStudentIDs(ctx context.Context, structure *models.FeeStructure) ([]string, error) {
	query := `SELECT e.student_id FROM student_enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.session_id = $1 AND e.is_active = TRUE AND s.is_active = TRUE`
	args := []interface{}{structure.SessionID}
	if structure.ClassID != nil && *structure.ClassID != "" {
		query += fmt.Sprintf(" AND e.class_id = $%d", len(args)+1)
		args = append(args, *structure.ClassID)
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("resolve applicable students: %w", err)
	}
	return ids, nil
}

// ValidateIDs returns which of the given structure IDs exist for the school.
func (r *FeeStructureRepository) ValidateIDs(ctx context.Context, schoolID string, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, schoolID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf("SELECT id FROM fee_structures WHERE school_id = $1 AND id IN (%s)", strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("validate fee structures: %w", err)
	}
	defer rows.Close()
	existing := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan fee structure id: %w", err)
		}
		existing[id] = true
	}
	return existing, nil
}
