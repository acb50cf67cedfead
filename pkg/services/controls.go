package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/database"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/repositories"
)

// Sign-off slot names on a control.
const (
	SlotPreparer = "preparer"
	SlotReviewer = "reviewer"
	SlotAdmin    = "admin"
)

// ControlService provides operations on engagement controls (sheet rows)
// and their attestation slots. Unlike requests, controls derive no status
// from their slots; the three attestations are independent and purely
// informational.
type ControlService interface {
	// CreateManual adds an auditor-entered control and, in the same
	// transaction, opens a default evidence request against it.
	CreateManual(ctx context.Context, actor auth.Actor, control *models.EngagementControl) error
	GetByID(ctx context.Context, controlID uuid.UUID) (*models.EngagementControl, error)
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.EngagementControl, error)

	// UpdateTestFields writes the auditor-editable free-text fields.
	UpdateTestFields(ctx context.Context, actor auth.Actor, controlID uuid.UUID, testApplied, testPerformed, testResults string) (*models.EngagementControl, error)

	// SignSlot fills the named attestation slot with the actor and now.
	// Signing an already-signed slot is a conflict; undo first.
	SignSlot(ctx context.Context, actor auth.Actor, controlID uuid.UUID, slot string) (*models.EngagementControl, error)

	// UndoSlot clears the named slot. Only the original signer or an
	// admin may undo; signer and timestamp are cleared together.
	UndoSlot(ctx context.Context, actor auth.Actor, controlID uuid.UUID, slot string) (*models.EngagementControl, error)

	Delete(ctx context.Context, actor auth.Actor, controlID uuid.UUID) error
}

type controlService struct {
	controlRepo repositories.ControlRepository
	requestRepo repositories.RequestRepository
	logger      *zap.Logger
	tx          txFunc
	now         func() time.Time
}

// NewControlService creates a new ControlService.
func NewControlService(
	controlRepo repositories.ControlRepository,
	requestRepo repositories.RequestRepository,
	logger *zap.Logger,
) ControlService {
	return &controlService{
		controlRepo: controlRepo,
		requestRepo: requestRepo,
		logger:      logger.Named("control-service"),
		tx:          database.WithTx,
		now:         time.Now,
	}
}

var _ ControlService = (*controlService)(nil)

func (s *controlService) CreateManual(ctx context.Context, actor auth.Actor, control *models.EngagementControl) error {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor) {
		return apperrors.ErrPermissionDenied
	}
	if control.ControlID == "" {
		return apperrors.NewValidationError("control identifier is required")
	}
	if control.ControlName == "" {
		return apperrors.NewValidationError("control name is required")
	}
	if control.ID == uuid.Nil {
		control.ID = uuid.New()
	}
	control.Source = models.ControlSourceManual

	err := s.tx(ctx, func(ctx context.Context) error {
		created, err := s.controlRepo.CreateIfAbsent(ctx, control)
		if err != nil {
			return err
		}
		if !created {
			return fmt.Errorf("%w: control %s already exists in this engagement", apperrors.ErrConflict, control.ControlID)
		}

		request := &models.Request{
			ID:          uuid.New(),
			ControlRef:  control.ID,
			Title:       fmt.Sprintf("Provide evidence for %s", control.ControlID),
			Description: control.Description,
		}
		models.RecomputeDerivedState(request)
		return s.requestRepo.Create(ctx, request)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Created manual control",
		zap.String("engagement_id", control.EngagementID.String()),
		zap.String("control_id", control.ControlID))
	return nil
}

func (s *controlService) GetByID(ctx context.Context, controlID uuid.UUID) (*models.EngagementControl, error) {
	return s.controlRepo.GetByID(ctx, controlID)
}

func (s *controlService) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.EngagementControl, error) {
	return s.controlRepo.ListByEngagement(ctx, engagementID)
}

func (s *controlService) UpdateTestFields(ctx context.Context, actor auth.Actor, controlID uuid.UUID, testApplied, testPerformed, testResults string) (*models.EngagementControl, error) {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor, auth.RoleControlReviewer) {
		return nil, apperrors.ErrPermissionDenied
	}
	control, err := s.controlRepo.GetByID(ctx, controlID)
	if err != nil {
		return nil, err
	}
	control.TestApplied = testApplied
	control.TestPerformed = testPerformed
	control.TestResults = testResults
	if err := s.controlRepo.UpdateTestFields(ctx, control); err != nil {
		return nil, err
	}
	return control, nil
}

func (s *controlService) SignSlot(ctx context.Context, actor auth.Actor, controlID uuid.UUID, slot string) (*models.EngagementControl, error) {
	if err := checkSlotRole(actor, slot); err != nil {
		return nil, err
	}
	control, err := s.controlRepo.GetByID(ctx, controlID)
	if err != nil {
		return nil, err
	}

	target, err := slotOf(control, slot)
	if err != nil {
		return nil, err
	}
	if target.Signed() {
		return nil, fmt.Errorf("%w: %s slot is already signed", apperrors.ErrConflict, slot)
	}
	target.Set(actor.UserID, s.now().UTC())

	if err := control.ValidateSlots(); err != nil {
		return nil, err
	}
	if err := s.controlRepo.UpdateSignoffs(ctx, control); err != nil {
		return nil, err
	}

	s.logger.Info("Signed control slot",
		zap.String("control_ref", controlID.String()),
		zap.String("slot", slot),
		zap.String("signed_by", actor.UserID.String()))
	return control, nil
}

func (s *controlService) UndoSlot(ctx context.Context, actor auth.Actor, controlID uuid.UUID, slot string) (*models.EngagementControl, error) {
	control, err := s.controlRepo.GetByID(ctx, controlID)
	if err != nil {
		return nil, err
	}

	target, err := slotOf(control, slot)
	if err != nil {
		return nil, err
	}
	if !target.Signed() {
		return nil, fmt.Errorf("%w: %s slot is not signed", apperrors.ErrConflict, slot)
	}
	if !actor.IsAdmin() && *target.SignedBy != actor.UserID {
		return nil, apperrors.ErrPermissionDenied
	}
	target.Clear()

	if err := s.controlRepo.UpdateSignoffs(ctx, control); err != nil {
		return nil, err
	}
	return control, nil
}

func (s *controlService) Delete(ctx context.Context, actor auth.Actor, controlID uuid.UUID) error {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor) {
		return apperrors.ErrPermissionDenied
	}
	return s.controlRepo.Delete(ctx, controlID)
}

// checkSlotRole enforces who may fill each attestation slot. Admins may
// sign any slot.
func checkSlotRole(actor auth.Actor, slot string) error {
	switch slot {
	case SlotPreparer:
		if !actor.Role.CanSignAsPreparer() {
			return apperrors.ErrPermissionDenied
		}
	case SlotReviewer:
		if !actor.Role.CanSignAsReviewer() {
			return apperrors.ErrPermissionDenied
		}
	case SlotAdmin:
		if !actor.IsAdmin() {
			return apperrors.ErrPermissionDenied
		}
	default:
		return apperrors.NewValidationError("unknown sign-off slot: %s", slot)
	}
	return nil
}

func slotOf(control *models.EngagementControl, slot string) (*models.SignoffSlot, error) {
	switch slot {
	case SlotPreparer:
		return &control.PreparerSignoff, nil
	case SlotReviewer:
		return &control.ReviewerSignoff, nil
	case SlotAdmin:
		return &control.AdminSignoff, nil
	default:
		return nil, apperrors.NewValidationError("unknown sign-off slot: %s", slot)
	}
}
