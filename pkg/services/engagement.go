package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/database"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/repositories"
)

// EngagementService provides operations on audit engagements. Attaching
// standards, on creation or later, is what triggers control generation;
// the composition is an explicit call, not a side-channel event.
type EngagementService interface {
	// Create persists the engagement and, when standards are selected,
	// attaches them and generates their controls in the same transaction.
	// A failure partway leaves neither the engagement nor partial rows.
	Create(ctx context.Context, actor auth.Actor, engagement *models.Engagement) error
	GetByID(ctx context.Context, engagementID uuid.UUID) (*models.Engagement, error)
	List(ctx context.Context) ([]*models.Engagement, error)
	Update(ctx context.Context, actor auth.Actor, engagement *models.Engagement) error
	Delete(ctx context.Context, actor auth.Actor, engagementID uuid.UUID) error

	// AttachStandards links additional standards and generates their
	// controls atomically.
	AttachStandards(ctx context.Context, actor auth.Actor, engagementID uuid.UUID, standardIDs []uuid.UUID) (created, skipped int, err error)

	// Resync re-runs standards generation for the engagement. Idempotent;
	// picks up catalog controls added since the last run.
	Resync(ctx context.Context, actor auth.Actor, engagementID uuid.UUID) (created, skipped int, err error)
}

type engagementService struct {
	engagementRepo repositories.EngagementRepository
	standardRepo   repositories.StandardRepository
	generation     GenerationService
	logger         *zap.Logger
	tx             txFunc
}

// NewEngagementService creates a new EngagementService.
func NewEngagementService(
	engagementRepo repositories.EngagementRepository,
	standardRepo repositories.StandardRepository,
	generation GenerationService,
	logger *zap.Logger,
) EngagementService {
	return &engagementService{
		engagementRepo: engagementRepo,
		standardRepo:   standardRepo,
		generation:     generation,
		logger:         logger.Named("engagement-service"),
		tx:             database.WithTx,
	}
}

var _ EngagementService = (*engagementService)(nil)

func (s *engagementService) Create(ctx context.Context, actor auth.Actor, engagement *models.Engagement) error {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor) {
		return apperrors.ErrPermissionDenied
	}
	if engagement.Title == "" {
		return apperrors.NewValidationError("engagement title is required")
	}
	if engagement.ClientName == "" {
		return apperrors.NewValidationError("client name is required")
	}
	if engagement.Status == "" {
		engagement.Status = models.EngagementPlanning
	}
	if !models.IsValidEngagementStatus(engagement.Status) {
		return apperrors.NewValidationError("invalid engagement status: %s", engagement.Status)
	}
	if engagement.ID == uuid.Nil {
		engagement.ID = uuid.New()
	}

	// Verify the selected standards exist before writing anything.
	for _, standardID := range engagement.Standards {
		if _, err := s.standardRepo.GetByID(ctx, standardID); err != nil {
			return fmt.Errorf("standard %s: %w", standardID, err)
		}
	}

	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.engagementRepo.Create(ctx, engagement); err != nil {
			return err
		}
		if len(engagement.Standards) == 0 {
			return nil
		}
		if err := s.engagementRepo.AttachStandards(ctx, engagement.ID, engagement.Standards); err != nil {
			return err
		}
		_, _, err := s.generation.GenerateFromStandards(ctx, engagement.ID)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to create engagement",
			zap.String("title", engagement.Title),
			zap.Error(err))
		return err
	}

	s.logger.Info("Created engagement",
		zap.String("engagement_id", engagement.ID.String()),
		zap.String("client", engagement.ClientName))
	return nil
}

func (s *engagementService) GetByID(ctx context.Context, engagementID uuid.UUID) (*models.Engagement, error) {
	return s.engagementRepo.GetByID(ctx, engagementID)
}

func (s *engagementService) List(ctx context.Context) ([]*models.Engagement, error) {
	return s.engagementRepo.List(ctx)
}

func (s *engagementService) Update(ctx context.Context, actor auth.Actor, engagement *models.Engagement) error {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor) {
		return apperrors.ErrPermissionDenied
	}
	if engagement.Title == "" {
		return apperrors.NewValidationError("engagement title is required")
	}
	if !models.IsValidEngagementStatus(engagement.Status) {
		return apperrors.NewValidationError("invalid engagement status: %s", engagement.Status)
	}
	return s.engagementRepo.Update(ctx, engagement)
}

func (s *engagementService) Delete(ctx context.Context, actor auth.Actor, engagementID uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperrors.ErrPermissionDenied
	}
	if err := s.engagementRepo.Delete(ctx, engagementID); err != nil {
		return err
	}
	s.logger.Info("Deleted engagement", zap.String("engagement_id", engagementID.String()))
	return nil
}

func (s *engagementService) AttachStandards(ctx context.Context, actor auth.Actor, engagementID uuid.UUID, standardIDs []uuid.UUID) (int, int, error) {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor) {
		return 0, 0, apperrors.ErrPermissionDenied
	}
	if len(standardIDs) == 0 {
		return 0, 0, apperrors.NewValidationError("no standards selected")
	}
	for _, standardID := range standardIDs {
		if _, err := s.standardRepo.GetByID(ctx, standardID); err != nil {
			return 0, 0, fmt.Errorf("standard %s: %w", standardID, err)
		}
	}

	var created, skipped int
	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.engagementRepo.AttachStandards(ctx, engagementID, standardIDs); err != nil {
			return err
		}
		var err error
		created, skipped, err = s.generation.GenerateFromStandards(ctx, engagementID)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return created, skipped, nil
}

func (s *engagementService) Resync(ctx context.Context, actor auth.Actor, engagementID uuid.UUID) (int, int, error) {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor) {
		return 0, 0, apperrors.ErrPermissionDenied
	}
	return s.generation.GenerateFromStandards(ctx, engagementID)
}
