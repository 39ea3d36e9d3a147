package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
)

// FeeDiscountRepository handles persistence of discount grants.
type FeeDiscountRepository struct {
	db *sqlx.DB
}

// NewFeeDiscountRepository constructs the repository.
func NewFeeDiscountRepository(db *sqlx.DB) *FeeDiscountRepository {
	return &FeeDiscountRepository{db: db}
}

const discountColumns = `id, student_id, fee_structure_id, discount_type, value, reason, valid_from, valid_to, is_active, applied_by, created_at`

// Create persists a new discount grant.
func (r *FeeDiscountRepository) Create(ctx context.Context, discount *models.FeeDiscount) error {
	if discount.ID == "" {
		discount.ID = uuid.NewString()
	}
	discount.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO fee_discounts (id, student_id, fee_structure_id, discount_type, value, reason, valid_from, valid_to, is_active, applied_by, created_at)
        VALUES (:id, :student_id, :fee_structure_id, :discount_type, :value, :reason, :valid_from, :valid_to, :is_active, :applied_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, discount); err != nil {
		return fmt.Errorf("create fee discount: %w", err)
	}
	return nil
}

// ListByStudent returns all discount grants for a student, newest first.
func (r *FeeDiscountRepository) ListByStudent(ctx context.Context, studentID string) ([]models.FeeDiscount, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_discounts WHERE student_id = $1 ORDER BY created_at DESC`, discountColumns)
	var discounts []models.FeeDiscount
	if err := r.db.SelectContext(ctx, &discounts, query, studentID); err != nil {
		return nil, fmt.Errorf("list student discounts: %w", err)
	}
	return discounts, nil
}

// ListApplicable returns active discounts covering the date for a student and
// fee structure. Grants with no structure bound apply to every structure.
func (r *FeeDiscountRepository) ListApplicable(ctx context.Context, studentID, structureID string, date time.Time) ([]models.FeeDiscount, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_discounts
        WHERE student_id = $1 AND is_active = TRUE
        AND (fee_structure_id IS NULL OR fee_structure_id = $2)
        AND valid_from <= $3 AND valid_to >= $3
        ORDER BY created_at ASC`, discountColumns)
	var discounts []models.FeeDiscount
	if err := r.db.SelectContext(ctx, &discounts, query, studentID, structureID, date); err != nil {
		return nil, fmt.Errorf("list applicable discounts: %w", err)
	}
	return discounts, nil
}

// Deactivate revokes a discount grant for future fee instances. Amounts
// already applied to existing fees are not rolled back.
func (r *FeeDiscountRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE fee_discounts SET is_active = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deactivate fee discount: %w", err)
	}
	return nil
}
