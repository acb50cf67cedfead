package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/repositories"
)

// SignoffService drives the request workflow. All transitions are flag
// mutations; status and lock are recomputed immediately after and written
// together with the flags in a single statement, so a concurrent reader
// never sees a signed flag with a stale status.
type SignoffService interface {
	// SignPreparer sets the preparer flag and records signer and time.
	SignPreparer(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*models.Request, error)

	// SignReviewer sets the reviewer flag. When the resulting status is
	// COMPLETED the evidentiary gate applies: the request must carry at
	// least one document or non-blank test notes.
	SignReviewer(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*models.Request, error)

	// UndoPreparer and UndoReviewer clear the corresponding flag, signer
	// and timestamp together. Only the original signer or an admin.
	UndoPreparer(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*models.Request, error)
	UndoReviewer(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*models.Request, error)

	// Unlock clears is_locked without touching sign-off flags. The next
	// recomputing save re-locks the request unless a flag was also
	// cleared; callers wanting a real reopen undo a sign-off instead.
	Unlock(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*models.Request, error)
}

type signoffService struct {
	requestRepo  repositories.RequestRepository
	documentRepo repositories.DocumentRepository
	logger       *zap.Logger
	now          func() time.Time
}

// NewSignoffService creates a new SignoffService.
func NewSignoffService(
	requestRepo repositories.RequestRepository,
	documentRepo repositories.DocumentRepository,
	logger *zap.Logger,
) SignoffService {
	return &signoffService{
		requestRepo:  requestRepo,
		documentRepo: documentRepo,
		logger:       logger.Named("signoff-service"),
		now:          time.Now,
	}
}

var _ SignoffService = (*signoffService)(nil)

func (s *signoffService) SignPreparer(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*models.Request, error) {
	if !actor.Role.CanSignAsPreparer() {
		return nil, apperrors.ErrPermissionDenied
	}
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.PreparerSigned {
		return nil, fmt.Errorf("%w: request is already signed by a preparer", apperrors.ErrConflict)
	}

	request.PreparerSigned = true
	request.PreparerSignoff.Set(actor.UserID, s.now().UTC())

	// Preparer+reviewer both signed lands in COMPLETED, which the
	// evidentiary gate protects no matter which flag flipped last.
	if err := evidentiaryGate(ctx, s.documentRepo, request); err != nil {
		return nil, err
	}

	return s.save(ctx, request, "preparer signed", actor)
}

func (s *signoffService) SignReviewer(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*models.Request, error) {
	if !actor.Role.CanSignAsReviewer() {
		return nil, apperrors.ErrPermissionDenied
	}
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.ReviewerSigned {
		return nil, fmt.Errorf("%w: request is already signed by a reviewer", apperrors.ErrConflict)
	}

	request.ReviewerSigned = true
	request.ReviewerSignoff.Set(actor.UserID, s.now().UTC())

	if err := evidentiaryGate(ctx, s.documentRepo, request); err != nil {
		return nil, err
	}

	return s.save(ctx, request, "reviewer signed", actor)
}

func (s *signoffService) UndoPreparer(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*models.Request, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.PreparerSigned {
		return nil, fmt.Errorf("%w: request has no preparer sign-off to undo", apperrors.ErrConflict)
	}
	if !actor.IsAdmin() && (request.PreparerSignoff.SignedBy == nil || *request.PreparerSignoff.SignedBy != actor.UserID) {
		return nil, apperrors.ErrPermissionDenied
	}

	request.PreparerSigned = false
	request.PreparerSignoff.Clear()
	return s.save(ctx, request, "preparer sign-off undone", actor)
}

func (s *signoffService) UndoReviewer(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*models.Request, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.ReviewerSigned {
		return nil, fmt.Errorf("%w: request has no reviewer sign-off to undo", apperrors.ErrConflict)
	}
	if !actor.IsAdmin() && (request.ReviewerSignoff.SignedBy == nil || *request.ReviewerSignoff.SignedBy != actor.UserID) {
		return nil, apperrors.ErrPermissionDenied
	}

	request.ReviewerSigned = false
	request.ReviewerSignoff.Clear()
	return s.save(ctx, request, "reviewer sign-off undone", actor)
}

func (s *signoffService) Unlock(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*models.Request, error) {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor, auth.RoleControlReviewer) {
		return nil, apperrors.ErrPermissionDenied
	}
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.IsLocked {
		return nil, fmt.Errorf("%w: request is not locked", apperrors.ErrConflict)
	}

	// Deliberately no recompute here: unlock touches the lock alone.
	request.IsLocked = false
	if err := s.requestRepo.Update(ctx, request); err != nil {
		return nil, err
	}
	s.logger.Info("Unlocked request",
		zap.String("request_id", request.ID.String()),
		zap.String("actor", actor.UserID.String()))
	return request, nil
}

// evidentiaryGate rejects a save that would land a request in COMPLETED
// with neither a supporting document nor non-blank test notes. Shared by
// the sign-off paths and the direct field-edit path so the check runs
// identically no matter how the transition is attempted.
func evidentiaryGate(ctx context.Context, documents repositories.DocumentRepository, request *models.Request) error {
	if models.DeriveRequestStatus(request.PreparerSigned, request.ReviewerSigned) != models.RequestCompleted {
		return nil
	}
	count, err := documents.CountForRequest(ctx, request.ID)
	if err != nil {
		return err
	}
	if !models.HasEvidentiaryBasis(count, request.TestNotes) {
		return apperrors.NewValidationError("cannot complete request %s: attach a document or enter test notes first", request.ID)
	}
	return nil
}

func (s *signoffService) save(ctx context.Context, request *models.Request, action string, actor auth.Actor) (*models.Request, error) {
	models.RecomputeDerivedState(request)
	if err := request.ValidateConsistency(); err != nil {
		return nil, err
	}
	if err := s.requestRepo.Update(ctx, request); err != nil {
		return nil, err
	}
	s.logger.Info("Request sign-off transition",
		zap.String("request_id", request.ID.String()),
		zap.String("action", action),
		zap.String("status", request.Status),
		zap.String("actor", actor.UserID.String()))
	return request, nil
}
