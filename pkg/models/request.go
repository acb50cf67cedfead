package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/auditsource/engine/pkg/apperrors"
)

// Request statuses. Status is a pure function of the two sign-off flags;
// it is never set independently of them. An earlier schema generation
// carried Returned and MERGED states; those are a documented extension
// point and intentionally absent here.
const (
	RequestOpen           = "OPEN"
	RequestReadyForReview = "READY_FOR_REVIEW"
	RequestCompleted      = "COMPLETED"
)

// Request is a unit of evidence-collection work attached to exactly one
// EngagementControl.
type Request struct {
	ID          uuid.UUID  `json:"id"`
	ControlRef  uuid.UUID  `json:"control_ref"` // owning EngagementControl
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Tags        string     `json:"tags,omitempty"`
	Assignee    *uuid.UUID `json:"assignee,omitempty"`
	TestNotes   string     `json:"test_notes"`

	PreparerSigned  bool        `json:"preparer_signed"`
	PreparerSignoff SignoffSlot `json:"preparer_signoff"`
	ReviewerSigned  bool        `json:"reviewer_signed"`
	ReviewerSignoff SignoffSlot `json:"reviewer_signoff"`

	Status   string `json:"status"`
	IsLocked bool   `json:"is_locked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeriveRequestStatus computes a request's lifecycle status from its
// sign-off flags. Total over all four flag combinations.
func DeriveRequestStatus(preparerSigned, reviewerSigned bool) string {
	switch {
	case !preparerSigned:
		return RequestOpen
	case !reviewerSigned:
		return RequestReadyForReview
	default:
		return RequestCompleted
	}
}

// RecomputeDerivedState sets Status and IsLocked from the sign-off flags.
// Every mutating operation calls this immediately before commit, so no
// reader ever observes a flag set with a stale status. Note that after an
// explicit unlock, recomputation re-locks the request unless a flag was
// also cleared.
func RecomputeDerivedState(r *Request) {
	r.Status = DeriveRequestStatus(r.PreparerSigned, r.ReviewerSigned)
	r.IsLocked = r.Status == RequestCompleted
}

// HasEvidentiaryBasis reports whether a request meets the minimum bar for
// a terminal accepted/complete status: at least one supporting document,
// or test notes that are non-empty after trimming.
func HasEvidentiaryBasis(documentCount int, testNotes string) bool {
	return documentCount > 0 || strings.TrimSpace(testNotes) != ""
}

// ValidateConsistency rejects requests whose flags disagree with their
// signer/timestamp pairs. These states are prevented by construction;
// the check defends against silent corruption anyway.
func (r *Request) ValidateConsistency() error {
	if r.PreparerSigned != r.PreparerSignoff.Signed() || !r.PreparerSignoff.Valid() {
		return apperrors.ErrConsistency
	}
	if r.ReviewerSigned != r.ReviewerSignoff.Signed() || !r.ReviewerSignoff.Valid() {
		return apperrors.ErrConsistency
	}
	return nil
}
