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

type feeStructureRepository interface {
	ListBySession(ctx context.Context, schoolID, sessionID string, activeOnly bool) ([]models.FeeStructure, error)
	FindByID(ctx context.Context, id string) (*models.FeeStructure, error)
	Create(ctx context.Context, structure *models.FeeStructure) error
	Update(ctx context.Context, structure *models.FeeStructure) error
	CountStudentFees(ctx context.Context, structureID string) (int, error)
	Delete(ctx context.Context, id string) error
	ApplicableStudentIDs(ctx context.Context, structure *models.FeeStructure) ([]string, error)
	ValidateIDs(ctx context.Context, schoolID string, ids []string) (map[string]bool, error)
}

type feeInstanceRepository interface {
	Exists(ctx context.Context, studentID, structureID, sessionID string) (bool, error)
	Insert(ctx context.Context, fee *models.StudentFee, txn *models.FeeTransaction) (bool, error)
	FindByID(ctx context.Context, id string) (*models.StudentFee, error)
	List(ctx context.Context, filter models.StudentFeeFilter) ([]models.StudentFeeDetail, int, error)
	ListByStudent(ctx context.Context, studentID, sessionID string) ([]models.StudentFee, error)
}

type feeDiscountReader interface {
	ListApplicable(ctx context.Context, studentID, structureID string, date time.Time) ([]models.FeeDiscount, error)
}

type feeEnrollmentReader interface {
	FindActiveByStudentAndSession(ctx context.Context, studentID, sessionID string) (*models.StudentEnrollment, error)
}

// FeeService manages fee structures and their assignment to students.
type FeeService struct {
	structures  feeStructureRepository
	fees        feeInstanceRepository
	discounts   feeDiscountReader
	enrollments feeEnrollmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewFeeService constructs the fee service.
func NewFeeService(structures feeStructureRepository, fees feeInstanceRepository, discounts feeDiscountReader, enrollments feeEnrollmentReader, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{
		structures:  structures,
		fees:        fees,
		discounts:   discounts,
		enrollments: enrollments,
		validator:   validate,
		logger:      logger,
	}
}

// CreateFeeStructureRequest is the payload for defining a fee structure.
type CreateFeeStructureRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=150"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Frequency   string  `json:"frequency" validate:"required"`
	ClassID     *string `json:"class_id"`
}

// UpdateFeeStructureRequest is the payload for editing a fee structure.
type UpdateFeeStructureRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=150"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Frequency   string  `json:"frequency" validate:"required"`
	ClassID     *string `json:"class_id"`
	IsActive    *bool   `json:"is_active"`
}

// AssignFeeRequest targets a structure at its applicable students.
type AssignFeeRequest struct {
	DueDate time.Time `json:"due_date" validate:"required"`
}

// BulkAssignFeeRequest assigns several structures in one call.
type BulkAssignFeeRequest struct {
	FeeStructureIDs []string  `json:"fee_structure_ids" validate:"required,min=1"`
	DueDate         time.Time `json:"due_date" validate:"required"`
}

// AssignmentResult summarises an assignment run. Skipped counts students who
// already held a fee instance for the structure; reruns are harmless.
type AssignmentResult struct {
	Assigned int `json:"assigned"`
	Skipped  int `json:"skipped"`
}

// ListStructures returns fee structures for the session.
func (s *FeeService) ListStructures(ctx context.Context, schoolID, sessionID string, activeOnly bool) ([]models.FeeStructure, error) {
	structures, err := s.structures.ListBySession(ctx, schoolID, sessionID, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee structures")
	}
	return structures, nil
}

// GetStructure returns one fee structure scoped to the school.
func (s *FeeService) GetStructure(ctx context.Context, schoolID, structureID string) (*models.FeeStructure, error) {
	structure, err := s.structures.FindByID(ctx, structureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}
	if structure.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
	}
	return structure, nil
}

// CreateStructure defines a new fee structure in the session.
func (s *FeeService) CreateStructure(ctx context.Context, schoolID, sessionID string, req CreateFeeStructureRequest) (*models.FeeStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee structure payload")
	}
	frequency := models.FeeFrequency(req.Frequency)
	if !frequency.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown fee frequency")
	}

	structure := &models.FeeStructure{
		SchoolID:    schoolID,
		SessionID:   sessionID,
		ClassID:     req.ClassID,
		Name:        req.Name,
		Description: req.Description,
		Amount:      req.Amount,
		Frequency:   frequency,
		IsActive:    true,
	}
	if err := s.structures.Create(ctx, structure); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee structure")
	}

	s.logger.Info("fee structure created",
		zap.String("school_id", schoolID),
		zap.String("structure_id", structure.ID),
		zap.Float64("amount", structure.Amount))
	return structure, nil
}

// UpdateStructure edits a fee structure. Amount changes only affect future
// assignments; existing fee instances keep the amount captured at assignment.
func (s *FeeService) UpdateStructure(ctx context.Context, schoolID, structureID string, req UpdateFeeStructureRequest) (*models.FeeStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee structure payload")
	}
	frequency := models.FeeFrequency(req.Frequency)
	if !frequency.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown fee frequency")
	}

	structure, err := s.GetStructure(ctx, schoolID, structureID)
	if err != nil {
		return nil, err
	}

	structure.Name = req.Name
	structure.Description = req.Description
	structure.Amount = req.Amount
	structure.Frequency = frequency
	structure.ClassID = req.ClassID
	if req.IsActive != nil {
		structure.IsActive = *req.IsActive
	}
	if err := s.structures.Update(ctx, structure); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee structure")
	}
	return structure, nil
}

// DeleteStructure removes a structure with no derived fee instances.
func (s *FeeService) DeleteStructure(ctx context.Context, schoolID, structureID string) error {
	if _, err := s.GetStructure(ctx, schoolID, structureID); err != nil {
		return err
	}

	count, err := s.structures.CountStudentFees(ctx, structureID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count derived fees")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrReferenced, "fee structure has assigned fees and cannot be deleted")
	}

	if err := s.structures.Delete(ctx, structureID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete fee structure")
	}
	s.logger.Info("fee structure deleted", zap.String("structure_id", structureID))
	return nil
}

// Assign creates fee instances for every applicable student who does not
// already hold one for the structure in its session. The structure amount is
// captured into each instance; discounts whose validity window covers the
// due date are applied at creation.
func (s *FeeService) Assign(ctx context.Context, schoolID, structureID string, req AssignFeeRequest) (*AssignmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	structure, err := s.GetStructure(ctx, schoolID, structureID)
	if err != nil {
		return nil, err
	}
	if !structure.IsActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "fee structure is inactive")
	}

	studentIDs, err := s.structures.ApplicableStudentIDs(ctx, structure)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve applicable students")
	}

	result := &AssignmentResult{}
	today := time.Now().UTC()
	for _, studentID := range studentIDs {
		inserted, err := s.assignOne(ctx, structure, studentID, req.DueDate, today)
		if err != nil {
			return nil, err
		}
		if inserted {
			result.Assigned++
		} else {
			result.Skipped++
		}
	}

	s.logger.Info("fee structure assigned",
		zap.String("structure_id", structureID),
		zap.Int("assigned", result.Assigned),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// BulkAssign runs Assign for several structures. Unknown structure IDs fail
// the whole request before any assignment happens.
func (s *FeeService) BulkAssign(ctx context.Context, schoolID string, req BulkAssignFeeRequest) (*AssignmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk assignment payload")
	}

	existing, err := s.structures.ValidateIDs(ctx, schoolID, req.FeeStructureIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate fee structures")
	}
	for _, id := range req.FeeStructureIDs {
		if !existing[id] {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more fee structures were not found")
		}
	}

	total := &AssignmentResult{}
	for _, id := range req.FeeStructureIDs {
		res, err := s.Assign(ctx, schoolID, id, AssignFeeRequest{DueDate: req.DueDate})
		if err != nil {
			return nil, err
		}
		total.Assigned += res.Assigned
		total.Skipped += res.Skipped
	}
	return total, nil
}

func (s *FeeService) assignOne(ctx context.Context, structure *models.FeeStructure, studentID string, dueDate, today time.Time) (bool, error) {
	exists, err := s.fees.Exists(ctx, studentID, structure.ID, structure.SessionID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing fee")
	}
	if exists {
		return false, nil
	}

	fee := &models.StudentFee{
		StudentID:      studentID,
		FeeStructureID: structure.ID,
		SessionID:      structure.SessionID,
		FeeAmount:      structure.Amount,
		DueDate:        dueDate,
	}

	if enrollment, err := s.enrollments.FindActiveByStudentAndSession(ctx, studentID, structure.SessionID); err == nil {
		fee.ClassID = &enrollment.ClassID
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	discounts, err := s.discounts.ListApplicable(ctx, studentID, structure.ID, dueDate)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discounts")
	}
	for _, d := range discounts {
		fee.DiscountAmount += d.Amount(structure.Amount)
	}

	fee.RecomputeStatus(today)
	var txn *models.FeeTransaction
	if fee.DiscountAmount > 0 {
		txn = &models.FeeTransaction{
			TransactionType: models.TransactionDiscount,
			Amount:          fee.DiscountAmount,
			TransactionID:   newTransactionReference(),
			TransactionDate: today,
			Status:          models.TransactionSuccess,
		}
	}
	inserted, err := s.fees.Insert(ctx, fee, txn)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student fee")
	}
	return inserted, nil
}

// ListFees returns fee instances matching the filter.
func (s *FeeService) ListFees(ctx context.Context, filter models.StudentFeeFilter) ([]models.StudentFeeDetail, *models.Pagination, error) {
	fees, total, err := s.fees.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student fees")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return fees, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// StudentLedger returns a student's fee instances for the session.
func (s *FeeService) StudentLedger(ctx context.Context, studentID, sessionID string) ([]models.StudentFee, error) {
	fees, err := s.fees.ListByStudent(ctx, studentID, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student fees")
	}
	return fees, nil
}
