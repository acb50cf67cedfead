package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/database"
	"github.com/auditsource/engine/pkg/models"
)

// EngagementRepository provides data access for engagements and their
// selected standards.
type EngagementRepository interface {
	Create(ctx context.Context, engagement *models.Engagement) error
	GetByID(ctx context.Context, engagementID uuid.UUID) (*models.Engagement, error)
	List(ctx context.Context) ([]*models.Engagement, error)
	Update(ctx context.Context, engagement *models.Engagement) error
	Delete(ctx context.Context, engagementID uuid.UUID) error
	// AttachStandards links standards to an engagement; already-linked
	// standards are skipped.
	AttachStandards(ctx context.Context, engagementID uuid.UUID, standardIDs []uuid.UUID) error
	ListStandardIDs(ctx context.Context, engagementID uuid.UUID) ([]uuid.UUID, error)
}

type engagementRepository struct{}

// NewEngagementRepository creates a new EngagementRepository.
func NewEngagementRepository() EngagementRepository {
	return &engagementRepository{}
}

var _ EngagementRepository = (*engagementRepository)(nil)

func (r *engagementRepository) Create(ctx context.Context, engagement *models.Engagement) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now()

	query := `
		INSERT INTO engagements (title, client_name, audit_year, status, lead_auditor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		engagement.Title,
		engagement.ClientName,
		engagement.AuditYear,
		engagement.Status,
		engagement.LeadAuditor,
		now,
		now,
	).Scan(&engagement.ID, &engagement.CreatedAt, &engagement.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create engagement: %w", err)
	}
	return nil
}

func (r *engagementRepository) GetByID(ctx context.Context, engagementID uuid.UUID) (*models.Engagement, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, title, client_name, audit_year, status, lead_auditor, created_at, updated_at
		FROM engagements
		WHERE id = $1`

	var e models.Engagement
	err := scope.Conn.QueryRow(ctx, query, engagementID).Scan(
		&e.ID, &e.Title, &e.ClientName, &e.AuditYear, &e.Status, &e.LeadAuditor, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get engagement: %w", err)
	}

	standards, err := r.ListStandardIDs(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	e.Standards = standards
	return &e, nil
}

func (r *engagementRepository) List(ctx context.Context) ([]*models.Engagement, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, title, client_name, audit_year, status, lead_auditor, created_at, updated_at
		FROM engagements
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list engagements: %w", err)
	}
	defer rows.Close()

	var engagements []*models.Engagement
	for rows.Next() {
		var e models.Engagement
		if err := rows.Scan(&e.ID, &e.Title, &e.ClientName, &e.AuditYear, &e.Status,
			&e.LeadAuditor, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan engagement: %w", err)
		}
		engagements = append(engagements, &e)
	}
	return engagements, rows.Err()
}

func (r *engagementRepository) Update(ctx context.Context, engagement *models.Engagement) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE engagements
		SET title = $2, client_name = $3, audit_year = $4, status = $5,
		    lead_auditor = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		engagement.ID,
		engagement.Title,
		engagement.ClientName,
		engagement.AuditYear,
		engagement.Status,
		engagement.LeadAuditor,
	).Scan(&engagement.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update engagement: %w", err)
	}
	return nil
}

func (r *engagementRepository) Delete(ctx context.Context, engagementID uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM engagements WHERE id = $1`, engagementID)
	if err != nil {
		return fmt.Errorf("failed to delete engagement: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *engagementRepository) AttachStandards(ctx context.Context, engagementID uuid.UUID, standardIDs []uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO engagement_standards (engagement_id, standard_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	for _, standardID := range standardIDs {
		if _, err := scope.Conn.Exec(ctx, query, engagementID, standardID); err != nil {
			return fmt.Errorf("failed to attach standard %s: %w", standardID, err)
		}
	}
	return nil
}

func (r *engagementRepository) ListStandardIDs(ctx context.Context, engagementID uuid.UUID) ([]uuid.UUID, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx,
		`SELECT standard_id FROM engagement_standards WHERE engagement_id = $1`, engagementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list engagement standards: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan standard id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
