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

// QuestionnaireRepository provides data access for questionnaires, their
// questions, and respondent answers.
type QuestionnaireRepository interface {
	Create(ctx context.Context, questionnaire *models.Questionnaire, questions []*models.QuestionnaireQuestion) error
	GetByID(ctx context.Context, questionnaireID uuid.UUID) (*models.Questionnaire, error)
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Questionnaire, error)
	ListQuestions(ctx context.Context, questionnaireID uuid.UUID) ([]*models.QuestionnaireQuestion, error)
	// UpsertResponse records an answer, replacing any previous answer to
	// the same question.
	UpsertResponse(ctx context.Context, response *models.QuestionnaireResponse) error
	// ListAnsweredResponses returns responses with a non-null answer,
	// each carrying its question's standard control ID.
	ListAnsweredResponses(ctx context.Context, questionnaireID uuid.UUID) ([]*models.QuestionnaireResponse, error)
	MarkCompleted(ctx context.Context, questionnaireID uuid.UUID, completedAt time.Time) error
}

type questionnaireRepository struct{}

// NewQuestionnaireRepository creates a new QuestionnaireRepository.
func NewQuestionnaireRepository() QuestionnaireRepository {
	return &questionnaireRepository{}
}

var _ QuestionnaireRepository = (*questionnaireRepository)(nil)

func (r *questionnaireRepository) Create(ctx context.Context, questionnaire *models.Questionnaire, questions []*models.QuestionnaireQuestion) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO questionnaires (engagement_id, standard_id, title, status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := scope.Conn.QueryRow(ctx, query,
		questionnaire.EngagementID,
		questionnaire.StandardID,
		questionnaire.Title,
		questionnaire.Status,
		questionnaire.CreatedBy,
	).Scan(&questionnaire.ID, &questionnaire.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create questionnaire: %w", err)
	}

	questionQuery := `
		INSERT INTO questionnaire_questions (questionnaire_id, standard_control_id, question_text, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	for _, q := range questions {
		q.QuestionnaireID = questionnaire.ID
		if err := scope.Conn.QueryRow(ctx, questionQuery,
			q.QuestionnaireID, q.StandardControlID, q.QuestionText, q.SortOrder,
		).Scan(&q.ID); err != nil {
			return fmt.Errorf("failed to create questionnaire question: %w", err)
		}
	}
	return nil
}

func (r *questionnaireRepository) GetByID(ctx context.Context, questionnaireID uuid.UUID) (*models.Questionnaire, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, engagement_id, standard_id, title, status, created_by, created_at, completed_at
		FROM questionnaires
		WHERE id = $1`

	var q models.Questionnaire
	err := scope.Conn.QueryRow(ctx, query, questionnaireID).Scan(
		&q.ID, &q.EngagementID, &q.StandardID, &q.Title, &q.Status,
		&q.CreatedBy, &q.CreatedAt, &q.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get questionnaire: %w", err)
	}
	return &q, nil
}

func (r *questionnaireRepository) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Questionnaire, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, engagement_id, standard_id, title, status, created_by, created_at, completed_at
		FROM questionnaires
		WHERE engagement_id = $1
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query, engagementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questionnaires: %w", err)
	}
	defer rows.Close()

	var questionnaires []*models.Questionnaire
	for rows.Next() {
		var q models.Questionnaire
		if err := rows.Scan(&q.ID, &q.EngagementID, &q.StandardID, &q.Title, &q.Status,
			&q.CreatedBy, &q.CreatedAt, &q.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan questionnaire: %w", err)
		}
		questionnaires = append(questionnaires, &q)
	}
	return questionnaires, rows.Err()
}

func (r *questionnaireRepository) ListQuestions(ctx context.Context, questionnaireID uuid.UUID) ([]*models.QuestionnaireQuestion, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, questionnaire_id, standard_control_id, question_text, sort_order
		FROM questionnaire_questions
		WHERE questionnaire_id = $1
		ORDER BY sort_order`

	rows, err := scope.Conn.Query(ctx, query, questionnaireID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.QuestionnaireQuestion
	for rows.Next() {
		var q models.QuestionnaireQuestion
		if err := rows.Scan(&q.ID, &q.QuestionnaireID, &q.StandardControlID, &q.QuestionText, &q.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, &q)
	}
	return questions, rows.Err()
}

func (r *questionnaireRepository) UpsertResponse(ctx context.Context, response *models.QuestionnaireResponse) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO questionnaire_responses (
			questionnaire_id, question_id, answer, comment, answered_by, answered_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (questionnaire_id, question_id) DO UPDATE
		SET answer = EXCLUDED.answer, comment = EXCLUDED.comment,
		    answered_by = EXCLUDED.answered_by, answered_at = EXCLUDED.answered_at
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		response.QuestionnaireID,
		response.QuestionID,
		response.Answer,
		response.Comment,
		response.AnsweredBy,
		response.AnsweredAt,
	).Scan(&response.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert response: %w", err)
	}
	return nil
}

func (r *questionnaireRepository) ListAnsweredResponses(ctx context.Context, questionnaireID uuid.UUID) ([]*models.QuestionnaireResponse, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT r.id, r.questionnaire_id, r.question_id, r.answer, r.comment,
		       r.answered_by, r.answered_at, q.standard_control_id
		FROM questionnaire_responses r
		JOIN questionnaire_questions q ON q.id = r.question_id
		WHERE r.questionnaire_id = $1 AND r.answer IS NOT NULL
		ORDER BY q.sort_order`

	rows, err := scope.Conn.Query(ctx, query, questionnaireID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answered responses: %w", err)
	}
	defer rows.Close()

	var responses []*models.QuestionnaireResponse
	for rows.Next() {
		var resp models.QuestionnaireResponse
		if err := rows.Scan(&resp.ID, &resp.QuestionnaireID, &resp.QuestionID, &resp.Answer,
			&resp.Comment, &resp.AnsweredBy, &resp.AnsweredAt, &resp.StandardControlID); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, &resp)
	}
	return responses, rows.Err()
}

func (r *questionnaireRepository) MarkCompleted(ctx context.Context, questionnaireID uuid.UUID, completedAt time.Time) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE questionnaires SET status = $2, completed_at = $3 WHERE id = $1`,
		questionnaireID, models.QuestionnaireCompleted, completedAt)
	if err != nil {
		return fmt.Errorf("failed to mark questionnaire completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
