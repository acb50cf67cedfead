package services

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/blob"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/repositories"
)

// DocumentUpload describes one file upload into the document repository.
// RequestID, ControlRef, StandardID and EngagementID are all optional
// links; the document's engagement is resolved from whichever is present.
type DocumentUpload struct {
	RequestID    *uuid.UUID
	EngagementID *uuid.UUID
	ControlRef   *uuid.UUID
	StandardID   *uuid.UUID
	DocType      string
	Folder       string
	FileName     string
	ContentType  string
	Content      []byte
}

// DocumentService stores uploaded files in the blob store and their
// metadata in the document repository.
type DocumentService interface {
	// Upload validates the upload, resolves its engagement, writes the
	// content to the blob store and records the document.
	Upload(ctx context.Context, actor auth.Actor, upload DocumentUpload) (*models.RequestDocument, error)
	GetByID(ctx context.Context, docID uuid.UUID) (*models.RequestDocument, error)
	List(ctx context.Context, filter repositories.DocumentFilter) ([]*models.RequestDocument, error)

	// Download returns the document's metadata and a reader over its
	// content. The caller closes the reader.
	Download(ctx context.Context, docID uuid.UUID) (*models.RequestDocument, io.ReadCloser, error)

	// Delete removes the document record. Read-only evidence sourced
	// from a request flow is deletable only by an admin.
	Delete(ctx context.Context, actor auth.Actor, docID uuid.UUID) error
}

type documentService struct {
	documentRepo   repositories.DocumentRepository
	requestRepo    repositories.RequestRepository
	controlRepo    repositories.ControlRepository
	engagementRepo repositories.EngagementRepository
	blobs          blob.Store
	logger         *zap.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(
	documentRepo repositories.DocumentRepository,
	requestRepo repositories.RequestRepository,
	controlRepo repositories.ControlRepository,
	engagementRepo repositories.EngagementRepository,
	blobs blob.Store,
	logger *zap.Logger,
) DocumentService {
	return &documentService{
		documentRepo:   documentRepo,
		requestRepo:    requestRepo,
		controlRepo:    controlRepo,
		engagementRepo: engagementRepo,
		blobs:          blobs,
		logger:         logger.Named("document-service"),
	}
}

var _ DocumentService = (*documentService)(nil)

func (s *documentService) Upload(ctx context.Context, actor auth.Actor, upload DocumentUpload) (*models.RequestDocument, error) {
	if upload.DocType == "" {
		upload.DocType = models.DocTypeEvidence
	}
	if !models.IsValidDocType(upload.DocType) {
		return nil, apperrors.NewValidationError("invalid document type: %s", upload.DocType)
	}
	if upload.DocType == models.DocTypeWorkpaper && actor.Role == auth.RoleClient {
		return nil, apperrors.ErrPermissionDenied
	}
	if upload.Folder == "" {
		upload.Folder = models.FolderEvidence
	}
	if !models.IsValidFolder(upload.Folder) {
		return nil, apperrors.NewValidationError("invalid folder: %s", upload.Folder)
	}
	if upload.FileName == "" {
		return nil, apperrors.NewValidationError("file name is required")
	}
	if len(upload.Content) == 0 {
		return nil, apperrors.NewValidationError("file is empty")
	}

	doc := &models.RequestDocument{
		ID:          uuid.New(),
		RequestID:   upload.RequestID,
		ControlRef:  upload.ControlRef,
		StandardID:  upload.StandardID,
		DocType:     upload.DocType,
		Folder:      upload.Folder,
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		SizeBytes:   int64(len(upload.Content)),
		UploadedBy:  actor.UserID,
	}

	engagementID, readOnly, err := s.resolveEngagement(ctx, upload)
	if err != nil {
		return nil, err
	}
	doc.EngagementID = engagementID
	doc.ReadOnly = readOnly

	// A locked request's evidence set is read-only to non-admins.
	if upload.RequestID != nil {
		request, err := s.requestRepo.GetByID(ctx, *upload.RequestID)
		if err != nil {
			return nil, err
		}
		if request.IsLocked && !actor.IsAdmin() {
			return nil, apperrors.ErrLocked
		}
	}

	address, err := s.blobs.Put(ctx, upload.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to store file content: %w", err)
	}
	doc.BlobAddress = string(address)

	if err := s.documentRepo.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("Uploaded document",
		zap.String("document_id", doc.ID.String()),
		zap.String("engagement_id", doc.EngagementID.String()),
		zap.String("doc_type", doc.DocType),
		zap.Int64("size_bytes", doc.SizeBytes))
	return doc, nil
}

// resolveEngagement determines which engagement a document belongs to.
// A direct engagement link wins; otherwise the walk goes request to its
// control to that control's engagement, or control to engagement. A
// document that resolves to no engagement is a hard error. Evidence
// arriving through a request is marked read-only.
func (s *documentService) resolveEngagement(ctx context.Context, upload DocumentUpload) (uuid.UUID, bool, error) {
	if upload.EngagementID != nil {
		if _, err := s.engagementRepo.GetByID(ctx, *upload.EngagementID); err != nil {
			return uuid.Nil, false, err
		}
		return *upload.EngagementID, false, nil
	}

	var controlRef *uuid.UUID
	readOnly := false
	if upload.RequestID != nil {
		request, err := s.requestRepo.GetByID(ctx, *upload.RequestID)
		if err != nil {
			return uuid.Nil, false, err
		}
		controlRef = &request.ControlRef
		readOnly = upload.DocType == models.DocTypeEvidence
	} else if upload.ControlRef != nil {
		controlRef = upload.ControlRef
	}

	if controlRef == nil {
		return uuid.Nil, false, fmt.Errorf("%w: document resolves to no engagement", apperrors.ErrConsistency)
	}

	control, err := s.controlRepo.GetByID(ctx, *controlRef)
	if err != nil {
		return uuid.Nil, false, err
	}
	return control.EngagementID, readOnly, nil
}

func (s *documentService) GetByID(ctx context.Context, docID uuid.UUID) (*models.RequestDocument, error) {
	return s.documentRepo.GetByID(ctx, docID)
}

func (s *documentService) List(ctx context.Context, filter repositories.DocumentFilter) ([]*models.RequestDocument, error) {
	return s.documentRepo.List(ctx, filter)
}

func (s *documentService) Download(ctx context.Context, docID uuid.UUID) (*models.RequestDocument, io.ReadCloser, error) {
	doc, err := s.documentRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.blobs.Open(ctx, blob.Address(doc.BlobAddress))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stored content: %w", err)
	}
	return doc, reader, nil
}

func (s *documentService) Delete(ctx context.Context, actor auth.Actor, docID uuid.UUID) error {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor, auth.RoleControlReviewer) {
		return apperrors.ErrPermissionDenied
	}
	doc, err := s.documentRepo.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if doc.ReadOnly && !actor.IsAdmin() {
		return fmt.Errorf("%w: evidence captured from a request is read-only", apperrors.ErrPermissionDenied)
	}

	if err := s.documentRepo.Delete(ctx, docID); err != nil {
		return err
	}
	// The blob stays behind. Addresses are content-derived, so another
	// document with identical content shares the same blob; orphans are
	// harmless and reclaimable offline.

	s.logger.Info("Deleted document", zap.String("document_id", docID.String()))
	return nil
}
