package models

import (
	"time"

	"github.com/google/uuid"
)

// Standard is a compliance framework (ISO 27001, ISO 42001, SOC 2).
// Immutable reference data once seeded.
type Standard struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version,omitempty"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StandardControl is one catalog control belonging to a Standard.
// ControlID is stable and unique per standard. Read-only to the runtime
// engine; soft-disabled via IsActive.
type StandardControl struct {
	ID                 uuid.UUID `json:"id"`
	StandardID         uuid.UUID `json:"standard_id"`
	ControlID          string    `json:"control_id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Domain             string    `json:"domain,omitempty"`
	DefaultTestingType string    `json:"default_testing_type,omitempty"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
}
