package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ExistsName(ctx context.Context, schoolID, sessionID, name, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	CountEnrollments(ctx context.Context, classID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// ClassService manages classes within sessions.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// CreateClassRequest is the payload for creating a class.
type CreateClassRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Code     string `json:"code" validate:"max=20"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

// UpdateClassRequest is the payload for editing a class.
type UpdateClassRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Code     string `json:"code" validate:"max=20"`
	Capacity int    `json:"capacity" validate:"gte=0"`
	IsActive *bool  `json:"is_active"`
}

// List returns classes matching the filter.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a class scoped to the school.
func (s *ClassService) Get(ctx context.Context, schoolID, classID string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return class, nil
}

// Create adds a class to the session.
func (s *ClassService) Create(ctx context.Context, schoolID, sessionID string, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	taken, err := s.repo.ExistsName(ctx, schoolID, sessionID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a class with this name already exists in the session")
	}

	class := &models.Class{
		SchoolID:  schoolID,
		SessionID: sessionID,
		Name:      req.Name,
		Code:      req.Code,
		Capacity:  req.Capacity,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	s.logger.Info("class created", zap.String("school_id", schoolID), zap.String("class_id", class.ID))
	return class, nil
}

// Update edits a class.
func (s *ClassService) Update(ctx context.Context, schoolID, classID string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := s.Get(ctx, schoolID, classID)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsName(ctx, schoolID, class.SessionID, req.Name, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a class with this name already exists in the session")
	}

	class.Name = req.Name
	class.Code = req.Code
	class.Capacity = req.Capacity
	if req.IsActive != nil {
		class.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete removes a class without enrollments. Classes referenced by
// enrollments are blocked to keep historical records intact.
func (s *ClassService) Delete(ctx context.Context, schoolID, classID string) error {
	if _, err := s.Get(ctx, schoolID, classID); err != nil {
		return err
	}

	count, err := s.repo.CountEnrollments(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrReferenced, "class has enrollments and cannot be deleted")
	}

	if err := s.repo.Delete(ctx, classID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.logger.Info("class deleted", zap.String("school_id", schoolID), zap.String("class_id", classID))
	return nil
}
