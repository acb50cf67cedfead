package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/database"
	"github.com/auditsource/engine/pkg/models"
)

// DocumentFilter narrows document listings. Zero-valued fields are
// ignored.
type DocumentFilter struct {
	EngagementID uuid.UUID
	RequestID    uuid.UUID
	ControlRef   uuid.UUID
	StandardID   uuid.UUID
	DocType      string
}

// DocumentRepository provides data access for the document repository.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.RequestDocument) error
	GetByID(ctx context.Context, docID uuid.UUID) (*models.RequestDocument, error)
	List(ctx context.Context, filter DocumentFilter) ([]*models.RequestDocument, error)
	// CountForRequest counts supporting documents attached to a request;
	// the evidentiary sufficiency gate reads this.
	CountForRequest(ctx context.Context, requestID uuid.UUID) (int, error)
	Delete(ctx context.Context, docID uuid.UUID) error
}

type documentRepository struct{}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository() DocumentRepository {
	return &documentRepository{}
}

var _ DocumentRepository = (*documentRepository)(nil)

const documentColumns = `
	id, request_id, engagement_id, control_ref, standard_id, doc_type,
	folder, file_name, blob_address, content_type, size_bytes, read_only,
	uploaded_by, created_at`

func scanDocument(row pgx.Row) (*models.RequestDocument, error) {
	var d models.RequestDocument
	err := row.Scan(
		&d.ID, &d.RequestID, &d.EngagementID, &d.ControlRef, &d.StandardID,
		&d.DocType, &d.Folder, &d.FileName, &d.BlobAddress, &d.ContentType,
		&d.SizeBytes, &d.ReadOnly, &d.UploadedBy, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepository) Create(ctx context.Context, doc *models.RequestDocument) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO request_documents (
			request_id, engagement_id, control_ref, standard_id, doc_type,
			folder, file_name, blob_address, content_type, size_bytes,
			read_only, uploaded_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := scope.Conn.QueryRow(ctx, query,
		doc.RequestID,
		doc.EngagementID,
		doc.ControlRef,
		doc.StandardID,
		doc.DocType,
		doc.Folder,
		doc.FileName,
		doc.BlobAddress,
		doc.ContentType,
		doc.SizeBytes,
		doc.ReadOnly,
		doc.UploadedBy,
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, docID uuid.UUID) (*models.RequestDocument, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + documentColumns + ` FROM request_documents WHERE id = $1`

	doc, err := scanDocument(scope.Conn.QueryRow(ctx, query, docID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (r *documentRepository) List(ctx context.Context, filter DocumentFilter) ([]*models.RequestDocument, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var conditions []string
	var args []any

	addCondition := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.EngagementID != uuid.Nil {
		addCondition("engagement_id", filter.EngagementID)
	}
	if filter.RequestID != uuid.Nil {
		addCondition("request_id", filter.RequestID)
	}
	if filter.ControlRef != uuid.Nil {
		addCondition("control_ref", filter.ControlRef)
	}
	if filter.StandardID != uuid.Nil {
		addCondition("standard_id", filter.StandardID)
	}
	if filter.DocType != "" {
		addCondition("doc_type", filter.DocType)
	}

	query := `SELECT ` + documentColumns + ` FROM request_documents`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.RequestDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *documentRepository) CountForRequest(ctx context.Context, requestID uuid.UUID) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	var count int
	err := scope.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM request_documents WHERE request_id = $1`, requestID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (r *documentRepository) Delete(ctx context.Context, docID uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM request_documents WHERE id = $1`, docID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
