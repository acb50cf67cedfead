package models

import (
	"time"

	"github.com/google/uuid"
)

// Engagement lifecycle statuses.
const (
	EngagementPlanning  = "Planning"
	EngagementFieldwork = "Fieldwork"
	EngagementArchived  = "Archived"
)

// IsValidEngagementStatus reports whether s is a known lifecycle status.
func IsValidEngagementStatus(s string) bool {
	switch s {
	case EngagementPlanning, EngagementFieldwork, EngagementArchived:
		return true
	}
	return false
}

// Engagement is one audit project for one client.
// Standards holds the IDs of the frameworks selected for this engagement;
// attaching a standard is what drives control generation.
type Engagement struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	ClientName  string      `json:"client_name"`
	AuditYear   int         `json:"audit_year"`
	Status      string      `json:"status"`
	LeadAuditor *uuid.UUID  `json:"lead_auditor,omitempty"`
	Standards   []uuid.UUID `json:"standards,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
