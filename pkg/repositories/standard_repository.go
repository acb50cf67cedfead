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

// StandardRepository provides data access for the standards catalog.
// Catalog rows are seeded by import jobs and read-only to the engine.
type StandardRepository interface {
	List(ctx context.Context) ([]*models.Standard, error)
	GetByID(ctx context.Context, standardID uuid.UUID) (*models.Standard, error)
	// ListActiveControls returns the active catalog controls across the
	// given standards, ordered by control identifier.
	ListActiveControls(ctx context.Context, standardIDs []uuid.UUID) ([]*models.StandardControl, error)
	GetControl(ctx context.Context, controlID uuid.UUID) (*models.StandardControl, error)
}

type standardRepository struct{}

// NewStandardRepository creates a new StandardRepository.
func NewStandardRepository() StandardRepository {
	return &standardRepository{}
}

var _ StandardRepository = (*standardRepository)(nil)

func (r *standardRepository) List(ctx context.Context) ([]*models.Standard, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, name, version, description, is_active, created_at, updated_at
		FROM standards
		ORDER BY name`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list standards: %w", err)
	}
	defer rows.Close()

	var standards []*models.Standard
	for rows.Next() {
		var s models.Standard
		if err := rows.Scan(&s.ID, &s.Name, &s.Version, &s.Description, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan standard: %w", err)
		}
		standards = append(standards, &s)
	}
	return standards, rows.Err()
}

func (r *standardRepository) GetByID(ctx context.Context, standardID uuid.UUID) (*models.Standard, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, name, version, description, is_active, created_at, updated_at
		FROM standards
		WHERE id = $1`

	var s models.Standard
	err := scope.Conn.QueryRow(ctx, query, standardID).Scan(
		&s.ID, &s.Name, &s.Version, &s.Description, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get standard: %w", err)
	}
	return &s, nil
}

func (r *standardRepository) ListActiveControls(ctx context.Context, standardIDs []uuid.UUID) ([]*models.StandardControl, error) {
	if len(standardIDs) == 0 {
		return nil, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, standard_id, control_id, title, description, domain,
		       default_testing_type, is_active, created_at
		FROM standard_controls
		WHERE standard_id = ANY($1) AND is_active
		ORDER BY control_id`

	rows, err := scope.Conn.Query(ctx, query, standardIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list standard controls: %w", err)
	}
	defer rows.Close()

	var controls []*models.StandardControl
	for rows.Next() {
		var c models.StandardControl
		if err := rows.Scan(&c.ID, &c.StandardID, &c.ControlID, &c.Title, &c.Description,
			&c.Domain, &c.DefaultTestingType, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan standard control: %w", err)
		}
		controls = append(controls, &c)
	}
	return controls, rows.Err()
}

func (r *standardRepository) GetControl(ctx context.Context, controlID uuid.UUID) (*models.StandardControl, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, standard_id, control_id, title, description, domain,
		       default_testing_type, is_active, created_at
		FROM standard_controls
		WHERE id = $1`

	var c models.StandardControl
	err := scope.Conn.QueryRow(ctx, query, controlID).Scan(
		&c.ID, &c.StandardID, &c.ControlID, &c.Title, &c.Description,
		&c.Domain, &c.DefaultTestingType, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get standard control: %w", err)
	}
	return &c, nil
}
