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

type sessionRepository interface {
	ListBySchool(ctx context.Context, schoolID string) ([]models.AcademicSession, error)
	FindByID(ctx context.Context, id string) (*models.AcademicSession, error)
	FindCurrent(ctx context.Context, schoolID string) (*models.AcademicSession, error)
	FindMostRecentActive(ctx context.Context, schoolID string) (*models.AcademicSession, error)
	ExistsName(ctx context.Context, schoolID, name, excludeID string) (bool, error)
	Create(ctx context.Context, session *models.AcademicSession) error
	Update(ctx context.Context, session *models.AcademicSession) error
	SetCurrent(ctx context.Context, schoolID, sessionID string) error
}

type sessionSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

// SessionService manages academic sessions and resolves the session context
// for requests.
type SessionService struct {
	repo      sessionRepository
	schools   sessionSchoolRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs the session service.
func NewSessionService(repo sessionRepository, schools sessionSchoolRepository, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, schools: schools, validator: validate, logger: logger}
}

// CreateSessionRequest is the payload for creating an academic session.
type CreateSessionRequest struct {
	Name         string    `json:"name" validate:"required,min=2,max=100"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required"`
	SetAsCurrent bool      `json:"set_as_current"`
}

// UpdateSessionRequest is the payload for editing an academic session.
type UpdateSessionRequest struct {
	Name      string    `json:"name" validate:"required,min=2,max=100"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	IsActive  *bool     `json:"is_active"`
}

// List returns all sessions for a school.
func (s *SessionService) List(ctx context.Context, schoolID string) ([]models.AcademicSession, error) {
	sessions, err := s.repo.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Get returns one session scoped to the school.
func (s *SessionService) Get(ctx context.Context, schoolID, sessionID string) (*models.AcademicSession, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return session, nil
}

// Create adds a new academic session for the school.
func (s *SessionService) Create(ctx context.Context, schoolID string, req CreateSessionRequest) (*models.AcademicSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}

	taken, err := s.repo.ExistsName(ctx, schoolID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check session name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a session with this name already exists")
	}

	session := &models.AcademicSession{
		SchoolID:  schoolID,
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	if req.SetAsCurrent {
		if err := s.repo.SetCurrent(ctx, schoolID, session.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set current session")
		}
		session.IsCurrent = true
	}

	s.logger.Info("session created", zap.String("school_id", schoolID), zap.String("session_id", session.ID))
	return session, nil
}

// Update edits a session's details.
func (s *SessionService) Update(ctx context.Context, schoolID, sessionID string, req UpdateSessionRequest) (*models.AcademicSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}

	session, err := s.Get(ctx, schoolID, sessionID)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsName(ctx, schoolID, req.Name, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check session name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a session with this name already exists")
	}

	session.Name = req.Name
	session.StartDate = req.StartDate
	session.EndDate = req.EndDate
	if req.IsActive != nil {
		if session.IsCurrent && !*req.IsActive {
			return nil, appErrors.Clone(appErrors.ErrConflict, "the current session cannot be deactivated")
		}
		session.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return session, nil
}

// SetCurrent promotes the session to the school's current one. The previous
// current session loses the flag in the same transaction.
func (s *SessionService) SetCurrent(ctx context.Context, schoolID, sessionID string) error {
	session, err := s.Get(ctx, schoolID, sessionID)
	if err != nil {
		return err
	}
	if !session.IsActive {
		return appErrors.Clone(appErrors.ErrConflict, "an inactive session cannot be made current")
	}
	if err := s.repo.SetCurrent(ctx, schoolID, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set current session")
	}
	s.logger.Info("current session changed", zap.String("school_id", schoolID), zap.String("session_id", sessionID))
	return nil
}

// Current returns the school's current session, falling back to the most
// recent active session when no session carries the flag.
func (s *SessionService) Current(ctx context.Context, schoolID string) (*models.AcademicSession, error) {
	session, err := s.repo.FindCurrent(ctx, schoolID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current session")
	}

	session, err = s.repo.FindMostRecentActive(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNoSession, "no active academic session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fallback session")
	}
	return session, nil
}

// Resolve builds the session context for a request. The view session is the
// explicitly requested one when valid for the school, otherwise the current
// session. Historical sessions stay browsable after a new one becomes
// current.
func (s *SessionService) Resolve(ctx context.Context, schoolID, requestedSessionID string) (*models.SessionContext, error) {
	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	sctx := &models.SessionContext{School: school}

	current, err := s.Current(ctx, schoolID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrNoSession.Code {
			return sctx, nil
		}
		return nil, err
	}
	sctx.CurrentSession = current
	sctx.ViewSession = current

	if requestedSessionID != "" && requestedSessionID != current.ID {
		requested, err := s.Get(ctx, schoolID, requestedSessionID)
		if err == nil {
			sctx.ViewSession = requested
		} else {
			s.logger.Debug("requested view session not resolvable, using current",
				zap.String("school_id", schoolID), zap.String("session_id", requestedSessionID))
		}
	}

	sessions, err := s.repo.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	sctx.AllSessions = sessions
	return sctx, nil
}
