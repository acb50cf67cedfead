package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/auditsource/engine/pkg/apperrors"
)

// Source values for engagement controls.
const (
	ControlSourceAuto          = "auto"          // generated from selected standards
	ControlSourceManual        = "manual"        // entered by an auditor
	ControlSourceQuestionnaire = "questionnaire" // generated from questionnaire responses
	ControlSourceExcel         = "excel"         // bulk spreadsheet import
)

// SignoffSlot is one attestation: who signed and when.
// A slot is either fully set or fully null; partial state is illegal.
type SignoffSlot struct {
	SignedBy *uuid.UUID `json:"signed_by,omitempty"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
}

// Signed reports whether the slot carries an attestation.
func (s SignoffSlot) Signed() bool {
	return s.SignedBy != nil && s.SignedAt != nil
}

// Valid reports whether the slot is in a legal state (both set or both null).
func (s SignoffSlot) Valid() bool {
	return (s.SignedBy == nil) == (s.SignedAt == nil)
}

// Set fills the slot. Signer and timestamp are always written together.
func (s *SignoffSlot) Set(signer uuid.UUID, at time.Time) {
	signedBy := signer
	signedAt := at
	s.SignedBy = &signedBy
	s.SignedAt = &signedAt
}

// Clear empties the slot. Signer and timestamp are always cleared together.
func (s *SignoffSlot) Clear() {
	s.SignedBy = nil
	s.SignedAt = nil
}

// EngagementControl is the per-engagement materialization of a control
// ("sheet row"). (EngagementID, ControlID) is unique. The three sign-off
// slots are informational attestations; unlike Request, no status is
// derived from them.
type EngagementControl struct {
	ID                uuid.UUID  `json:"id"`
	EngagementID      uuid.UUID  `json:"engagement_id"`
	StandardControlID *uuid.UUID `json:"standard_control_id,omitempty"`
	ControlID         string     `json:"control_id"`
	ControlName       string     `json:"control_name"`
	Description       string     `json:"control_description"`
	TestingProcedure  string     `json:"testing_procedure,omitempty"`
	TestApplied       string     `json:"test_applied"`
	TestPerformed     string     `json:"test_performed"`
	TestResults       string     `json:"test_results"`
	Source            string     `json:"source"`

	PreparerSignoff SignoffSlot `json:"preparer_signoff"`
	ReviewerSignoff SignoffSlot `json:"reviewer_signoff"`
	AdminSignoff    SignoffSlot `json:"admin_signoff"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAuditorWork reports whether an auditor has entered anything into the
// free-text test fields. Generation paths must never overwrite such rows.
func (c *EngagementControl) HasAuditorWork() bool {
	return c.TestApplied != "" || c.TestPerformed != "" || c.TestResults != ""
}

// ValidateSlots rejects controls whose sign-off slots are partially set.
func (c *EngagementControl) ValidateSlots() error {
	if !c.PreparerSignoff.Valid() || !c.ReviewerSignoff.Valid() || !c.AdminSignoff.Valid() {
		return apperrors.ErrConsistency
	}
	return nil
}
