package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/database"
	"github.com/auditsource/engine/pkg/models"
)

// RequestRepository provides data access for evidence requests.
type RequestRepository interface {
	Create(ctx context.Context, request *models.Request) error
	GetByID(ctx context.Context, requestID uuid.UUID) (*models.Request, error)
	ListByControl(ctx context.Context, controlRef uuid.UUID) ([]*models.Request, error)
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Request, error)
	// Update writes the full mutable row, including sign-off flags, their
	// signer/timestamp pairs, and the derived status and lock, in one
	// statement.
	Update(ctx context.Context, request *models.Request) error
	Delete(ctx context.Context, requestID uuid.UUID) error
}

type requestRepository struct{}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository() RequestRepository {
	return &requestRepository{}
}

var _ RequestRepository = (*requestRepository)(nil)

const requestColumns = `
	id, control_ref, title, description, due_date, tags, assignee, test_notes,
	preparer_signed, prepared_by, preparer_signed_at,
	reviewer_signed, reviewed_by, reviewed_at,
	status, is_locked, created_at, updated_at`

func scanRequest(row pgx.Row) (*models.Request, error) {
	var req models.Request
	err := row.Scan(
		&req.ID, &req.ControlRef, &req.Title, &req.Description, &req.DueDate,
		&req.Tags, &req.Assignee, &req.TestNotes,
		&req.PreparerSigned, &req.PreparerSignoff.SignedBy, &req.PreparerSignoff.SignedAt,
		&req.ReviewerSigned, &req.ReviewerSignoff.SignedBy, &req.ReviewerSignoff.SignedAt,
		&req.Status, &req.IsLocked, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) Create(ctx context.Context, request *models.Request) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO requests (
			control_ref, title, description, due_date, tags, assignee,
			test_notes, status, is_locked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		request.ControlRef,
		request.Title,
		request.Description,
		request.DueDate,
		request.Tags,
		request.Assignee,
		request.TestNotes,
		request.Status,
		request.IsLocked,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	request, err := scanRequest(scope.Conn.QueryRow(ctx, query, requestID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return request, nil
}

func (r *requestRepository) ListByControl(ctx context.Context, controlRef uuid.UUID) ([]*models.Request, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + requestColumns + `
		FROM requests
		WHERE control_ref = $1
		ORDER BY created_at`

	return r.queryRequests(ctx, scope, query, controlRef)
}

func (r *requestRepository) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Request, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT r.id, r.control_ref, r.title, r.description, r.due_date, r.tags,
		       r.assignee, r.test_notes,
		       r.preparer_signed, r.prepared_by, r.preparer_signed_at,
		       r.reviewer_signed, r.reviewed_by, r.reviewed_at,
		       r.status, r.is_locked, r.created_at, r.updated_at
		FROM requests r
		JOIN engagement_controls c ON c.id = r.control_ref
		WHERE c.engagement_id = $1
		ORDER BY c.control_id, r.created_at`

	return r.queryRequests(ctx, scope, query, engagementID)
}

func (r *requestRepository) queryRequests(ctx context.Context, scope *database.Scope, query string, args ...any) ([]*models.Request, error) {
	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

func (r *requestRepository) Update(ctx context.Context, request *models.Request) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	// Flags, signer/timestamp pairs, status, and lock all land in one
	// UPDATE so no reader observes a flag with a stale derived status.
	query := `
		UPDATE requests
		SET title = $2, description = $3, due_date = $4, tags = $5,
		    assignee = $6, test_notes = $7,
		    preparer_signed = $8, prepared_by = $9, preparer_signed_at = $10,
		    reviewer_signed = $11, reviewed_by = $12, reviewed_at = $13,
		    status = $14, is_locked = $15, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		request.ID,
		request.Title,
		request.Description,
		request.DueDate,
		request.Tags,
		request.Assignee,
		request.TestNotes,
		request.PreparerSigned, request.PreparerSignoff.SignedBy, request.PreparerSignoff.SignedAt,
		request.ReviewerSigned, request.ReviewerSignoff.SignedBy, request.ReviewerSignoff.SignedAt,
		request.Status,
		request.IsLocked,
	).Scan(&request.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update request: %w", err)
	}
	return nil
}

func (r *requestRepository) Delete(ctx context.Context, requestID uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM requests WHERE id = $1`, requestID)
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
