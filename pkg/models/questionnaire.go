package models

import (
	"time"

	"github.com/google/uuid"
)

// Questionnaire statuses.
const (
	QuestionnaireDraft     = "draft"
	QuestionnaireCompleted = "completed"
)

// Questionnaire answer values.
const (
	AnswerYes = "yes"
	AnswerNo  = "no"
	AnswerNA  = "na"
)

// IsValidAnswer reports whether a is a known answer value.
func IsValidAnswer(a string) bool {
	return a == AnswerYes || a == AnswerNo || a == AnswerNA
}

// Questionnaire collects structured yes/no/NA answers for one standard
// within one engagement. Answers are read-only reference data; they are
// never copied into auditor workpapers.
type Questionnaire struct {
	ID           uuid.UUID  `json:"id"`
	EngagementID uuid.UUID  `json:"engagement_id"`
	StandardID   uuid.UUID  `json:"standard_id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	CreatedBy    uuid.UUID  `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// QuestionnaireQuestion asks about one standard control.
type QuestionnaireQuestion struct {
	ID                uuid.UUID `json:"id"`
	QuestionnaireID   uuid.UUID `json:"questionnaire_id"`
	StandardControlID uuid.UUID `json:"standard_control_id"`
	QuestionText      string    `json:"question_text"`
	SortOrder         int       `json:"sort_order"`
}

// QuestionnaireResponse is one respondent answer. Answer is nil until the
// question has been answered; only answered responses drive generation.
type QuestionnaireResponse struct {
	ID              uuid.UUID  `json:"id"`
	QuestionnaireID uuid.UUID  `json:"questionnaire_id"`
	QuestionID      uuid.UUID  `json:"question_id"`
	Answer          *string    `json:"answer,omitempty"`
	Comment         string     `json:"comment,omitempty"`
	AnsweredBy      *uuid.UUID `json:"answered_by,omitempty"`
	AnsweredAt      *time.Time `json:"answered_at,omitempty"`

	// StandardControlID is denormalized from the question for generation.
	StandardControlID uuid.UUID `json:"-"`
}
