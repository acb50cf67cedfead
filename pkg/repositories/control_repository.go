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

// ControlRepository provides data access for engagement controls
// ("sheet rows").
type ControlRepository interface {
	// CreateIfAbsent inserts the control unless a row already exists for
	// (engagement_id, control_id). Returns whether a row was created.
	// Existing rows are never touched; this is the non-destructive upsert
	// the generation engine relies on.
	CreateIfAbsent(ctx context.Context, control *models.EngagementControl) (bool, error)
	GetByID(ctx context.Context, controlID uuid.UUID) (*models.EngagementControl, error)
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.EngagementControl, error)
	CountByEngagement(ctx context.Context, engagementID uuid.UUID) (int, error)
	// UpdateTestFields writes the auditor-editable free-text fields.
	UpdateTestFields(ctx context.Context, control *models.EngagementControl) error
	// UpdateSignoffs writes all three sign-off slots in one statement.
	UpdateSignoffs(ctx context.Context, control *models.EngagementControl) error
	Delete(ctx context.Context, controlID uuid.UUID) error
}

type controlRepository struct{}

// NewControlRepository creates a new ControlRepository.
func NewControlRepository() ControlRepository {
	return &controlRepository{}
}

var _ ControlRepository = (*controlRepository)(nil)

const controlColumns = `
	id, engagement_id, standard_control_id, control_id, control_name,
	control_description, testing_procedure, test_applied, test_performed,
	test_results, source, preparer_signed_by, preparer_signed_at,
	reviewer_signed_by, reviewer_signed_at, admin_signed_by, admin_signed_at,
	created_at, updated_at`

func scanControl(row pgx.Row) (*models.EngagementControl, error) {
	var c models.EngagementControl
	err := row.Scan(
		&c.ID, &c.EngagementID, &c.StandardControlID, &c.ControlID, &c.ControlName,
		&c.Description, &c.TestingProcedure, &c.TestApplied, &c.TestPerformed,
		&c.TestResults, &c.Source,
		&c.PreparerSignoff.SignedBy, &c.PreparerSignoff.SignedAt,
		&c.ReviewerSignoff.SignedBy, &c.ReviewerSignoff.SignedAt,
		&c.AdminSignoff.SignedBy, &c.AdminSignoff.SignedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *controlRepository) CreateIfAbsent(ctx context.Context, control *models.EngagementControl) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO engagement_controls (
			engagement_id, standard_control_id, control_id, control_name,
			control_description, testing_procedure, test_applied,
			test_performed, test_results, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (engagement_id, control_id) DO NOTHING
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		control.EngagementID,
		control.StandardControlID,
		control.ControlID,
		control.ControlName,
		control.Description,
		control.TestingProcedure,
		control.TestApplied,
		control.TestPerformed,
		control.TestResults,
		control.Source,
	).Scan(&control.ID, &control.CreatedAt, &control.UpdatedAt)
	if err == pgx.ErrNoRows {
		// Conflict: a row already exists for this (engagement, control_id)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create engagement control: %w", err)
	}
	return true, nil
}

func (r *controlRepository) GetByID(ctx context.Context, controlID uuid.UUID) (*models.EngagementControl, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + controlColumns + ` FROM engagement_controls WHERE id = $1`

	control, err := scanControl(scope.Conn.QueryRow(ctx, query, controlID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get engagement control: %w", err)
	}
	return control, nil
}

func (r *controlRepository) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.EngagementControl, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + controlColumns + `
		FROM engagement_controls
		WHERE engagement_id = $1
		ORDER BY control_id`

	rows, err := scope.Conn.Query(ctx, query, engagementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list engagement controls: %w", err)
	}
	defer rows.Close()

	var controls []*models.EngagementControl
	for rows.Next() {
		control, err := scanControl(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan engagement control: %w", err)
		}
		controls = append(controls, control)
	}
	return controls, rows.Err()
}

func (r *controlRepository) CountByEngagement(ctx context.Context, engagementID uuid.UUID) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	var count int
	err := scope.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM engagement_controls WHERE engagement_id = $1`, engagementID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count engagement controls: %w", err)
	}
	return count, nil
}

func (r *controlRepository) UpdateTestFields(ctx context.Context, control *models.EngagementControl) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE engagement_controls
		SET control_name = $2, control_description = $3, test_applied = $4,
		    test_performed = $5, test_results = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		control.ID,
		control.ControlName,
		control.Description,
		control.TestApplied,
		control.TestPerformed,
		control.TestResults,
	).Scan(&control.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update engagement control: %w", err)
	}
	return nil
}

func (r *controlRepository) UpdateSignoffs(ctx context.Context, control *models.EngagementControl) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	// All three slots in one statement so concurrent sign-offs cannot
	// interleave a signer from one writer with a timestamp from another.
	query := `
		UPDATE engagement_controls
		SET preparer_signed_by = $2, preparer_signed_at = $3,
		    reviewer_signed_by = $4, reviewer_signed_at = $5,
		    admin_signed_by = $6, admin_signed_at = $7,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		control.ID,
		control.PreparerSignoff.SignedBy, control.PreparerSignoff.SignedAt,
		control.ReviewerSignoff.SignedBy, control.ReviewerSignoff.SignedAt,
		control.AdminSignoff.SignedBy, control.AdminSignoff.SignedAt,
	).Scan(&control.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update control sign-offs: %w", err)
	}
	return nil
}

func (r *controlRepository) Delete(ctx context.Context, controlID uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM engagement_controls WHERE id = $1`, controlID)
	if err != nil {
		return fmt.Errorf("failed to delete engagement control: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
