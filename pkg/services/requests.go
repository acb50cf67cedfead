package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/repositories"
)

// RequestUpdate carries the auditor-editable request fields. Sign-off
// flags are not here; they change only through SignoffService.
type RequestUpdate struct {
	Title       string
	Description string
	DueDate     *time.Time
	Tags        string
	Assignee    *uuid.UUID
	TestNotes   string
}

// RequestService provides CRUD on evidence requests. Status and lock are
// derived state; this service recomputes them on every write so no reader
// observes flags with a stale status.
type RequestService interface {
	Create(ctx context.Context, actor auth.Actor, request *models.Request) error
	GetByID(ctx context.Context, requestID uuid.UUID) (*models.Request, error)
	ListByControl(ctx context.Context, controlRef uuid.UUID) ([]*models.Request, error)
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Request, error)
	Update(ctx context.Context, actor auth.Actor, requestID uuid.UUID, update RequestUpdate) (*models.Request, error)
	Delete(ctx context.Context, actor auth.Actor, requestID uuid.UUID) error
}

type requestService struct {
	requestRepo  repositories.RequestRepository
	controlRepo  repositories.ControlRepository
	documentRepo repositories.DocumentRepository
	logger       *zap.Logger
}

// NewRequestService creates a new RequestService.
func NewRequestService(
	requestRepo repositories.RequestRepository,
	controlRepo repositories.ControlRepository,
	documentRepo repositories.DocumentRepository,
	logger *zap.Logger,
) RequestService {
	return &requestService{
		requestRepo:  requestRepo,
		controlRepo:  controlRepo,
		documentRepo: documentRepo,
		logger:       logger.Named("request-service"),
	}
}

var _ RequestService = (*requestService)(nil)

func (s *requestService) Create(ctx context.Context, actor auth.Actor, request *models.Request) error {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor) {
		return apperrors.ErrPermissionDenied
	}
	if request.Title == "" {
		return apperrors.NewValidationError("request title is required")
	}
	if _, err := s.controlRepo.GetByID(ctx, request.ControlRef); err != nil {
		return err
	}
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	// New requests start unsigned regardless of what the caller sent.
	request.PreparerSigned = false
	request.PreparerSignoff.Clear()
	request.ReviewerSigned = false
	request.ReviewerSignoff.Clear()
	models.RecomputeDerivedState(request)

	if err := s.requestRepo.Create(ctx, request); err != nil {
		return err
	}
	s.logger.Info("Created request",
		zap.String("request_id", request.ID.String()),
		zap.String("control_ref", request.ControlRef.String()))
	return nil
}

func (s *requestService) GetByID(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	return s.requestRepo.GetByID(ctx, requestID)
}

func (s *requestService) ListByControl(ctx context.Context, controlRef uuid.UUID) ([]*models.Request, error) {
	return s.requestRepo.ListByControl(ctx, controlRef)
}

func (s *requestService) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Request, error) {
	return s.requestRepo.ListByEngagement(ctx, engagementID)
}

func (s *requestService) Update(ctx context.Context, actor auth.Actor, requestID uuid.UUID, update RequestUpdate) (*models.Request, error) {
	if actor.Role == auth.RoleClient {
		return nil, apperrors.ErrPermissionDenied
	}
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// A completed request's record is read-only to non-admins.
	if request.IsLocked && !actor.IsAdmin() {
		return nil, apperrors.ErrLocked
	}
	if update.Title == "" {
		return nil, apperrors.NewValidationError("request title is required")
	}

	request.Title = update.Title
	request.Description = update.Description
	request.DueDate = update.DueDate
	request.Tags = update.Tags
	request.Assignee = update.Assignee
	request.TestNotes = update.TestNotes

	// A field edit can re-complete an unlocked request when its flags are
	// still both signed, so the evidentiary gate applies here exactly as
	// it does on the sign-off paths.
	if err := evidentiaryGate(ctx, s.documentRepo, request); err != nil {
		return nil, err
	}
	models.RecomputeDerivedState(request)

	if err := s.requestRepo.Update(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *requestService) Delete(ctx context.Context, actor auth.Actor, requestID uuid.UUID) error {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor) {
		return apperrors.ErrPermissionDenied
	}
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.IsLocked && !actor.IsAdmin() {
		return apperrors.ErrLocked
	}
	return s.requestRepo.Delete(ctx, requestID)
}
