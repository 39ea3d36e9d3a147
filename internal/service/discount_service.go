package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
)

type discountRepository interface {
	Create(ctx context.Context, discount *models.FeeDiscount) error
	ListByStudent(ctx context.Context, studentID string) ([]models.FeeDiscount, error)
	Deactivate(ctx context.Context, id string) error
}

type discountFeeRepository interface {
	ListUnpaidByStudentAndStructure(ctx context.Context, studentID, sessionID string, structureID *string) ([]models.StudentFee, error)
	ApplyDiscount(ctx context.Context, feeID string, amount float64, txn *models.FeeTransaction, today time.Time) (*models.StudentFee, error)
}

// DiscountService grants discounts and applies them to outstanding fees.
type DiscountService struct {
	discounts discountRepository
	fees      discountFeeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDiscountService constructs the discount service.
func NewDiscountService(discounts discountRepository, fees discountFeeRepository, validate *validator.Validate, logger *zap.Logger) *DiscountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountService{discounts: discounts, fees: fees, validator: validate, logger: logger}
}

// ApplyDiscountRequest grants a discount to a student.
type ApplyDiscountRequest struct {
	StudentID      string    `json:"student_id" validate:"required"`
	FeeStructureID *string   `json:"fee_structure_id"`
	DiscountType   string    `json:"discount_type" validate:"required"`
	Value          float64   `json:"value" validate:"required,gt=0"`
	Reason         string    `json:"reason" validate:"required,min=2"`
	ValidFrom      time.Time `json:"valid_from" validate:"required"`
	ValidTo        time.Time `json:"valid_to" validate:"required"`
}

// DiscountApplication reports the result of a grant.
type DiscountApplication struct {
	Discount    *models.FeeDiscount `json:"discount"`
	FeesUpdated int                 `json:"fees_updated"`
}

// Apply grants a discount and retroactively applies it to the student's
// pending and partial fee instances in the session whose due date falls
// inside the validity window. Each fee adjustment and its ledger entry are
// committed together, and the status is re-derived, so a newly covered fee
// can move straight to paid. Discounts stack additively and are deliberately
// uncapped, so the net amount can drop below zero.
func (s *DiscountService) Apply(ctx context.Context, appliedBy, sessionID string, req ApplyDiscountRequest) (*DiscountApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discount payload")
	}
	discountType := models.DiscountType(req.DiscountType)
	if !discountType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown discount type")
	}
	if discountType == models.DiscountPercentage && req.Value > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "percentage discount cannot exceed 100")
	}
	if req.ValidTo.Before(req.ValidFrom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "validity window is inverted")
	}

	discount := &models.FeeDiscount{
		StudentID:      req.StudentID,
		FeeStructureID: req.FeeStructureID,
		DiscountType:   discountType,
		Value:          req.Value,
		Reason:         req.Reason,
		ValidFrom:      req.ValidFrom,
		ValidTo:        req.ValidTo,
		IsActive:       true,
	}
	if appliedBy != "" {
		discount.AppliedBy = &appliedBy
	}
	if err := s.discounts.Create(ctx, discount); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create discount")
	}

	fees, err := s.fees.ListUnpaidByStudentAndStructure(ctx, req.StudentID, sessionID, req.FeeStructureID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load outstanding fees")
	}

	now := time.Now().UTC()
	updated := 0
	for i := range fees {
		fee := &fees[i]
		if !discount.Covers(fee.DueDate) {
			continue
		}

		amount := discount.Amount(fee.FeeAmount)
		if amount <= 0 {
			continue
		}

		txn := &models.FeeTransaction{
			TransactionType: models.TransactionDiscount,
			Amount:          amount,
			TransactionID:   newTransactionReference(),
			TransactionDate: now,
			Status:          models.TransactionSuccess,
		}
		if appliedBy != "" {
			txn.CreatedBy = &appliedBy
		}
		if _, err := s.fees.ApplyDiscount(ctx, fee.ID, amount, txn, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply discount to fee")
		}
		updated++
	}

	s.logger.Info("discount applied",
		zap.String("student_id", req.StudentID),
		zap.String("discount_id", discount.ID),
		zap.Int("fees_updated", updated))
	return &DiscountApplication{Discount: discount, FeesUpdated: updated}, nil
}

// ListByStudent returns a student's discount grants.
func (s *DiscountService) ListByStudent(ctx context.Context, studentID string) ([]models.FeeDiscount, error) {
	discounts, err := s.discounts.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list discounts")
	}
	return discounts, nil
}

// Revoke deactivates a grant for future fee instances. Amounts already
// applied stay in place.
func (s *DiscountService) Revoke(ctx context.Context, discountID string) error {
	if err := s.discounts.Deactivate(ctx, discountID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke discount")
	}
	s.logger.Info("discount revoked", zap.String("discount_id", discountID))
	return nil
}
