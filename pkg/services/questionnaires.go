package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/database"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/repositories"
)

// QuestionnaireAnswer is one submitted answer keyed by question.
type QuestionnaireAnswer struct {
	QuestionID uuid.UUID
	Answer     string
	Comment    string
}

// QuestionnaireService collects structured answers per standard control
// and, on submission, feeds them to the generation engine. Answers are
// reference data only; they never populate auditor test fields.
type QuestionnaireService interface {
	// Create builds a draft questionnaire with one question per active
	// catalog control of the given standard.
	Create(ctx context.Context, actor auth.Actor, engagementID, standardID uuid.UUID, title string) (*models.Questionnaire, error)
	GetByID(ctx context.Context, questionnaireID uuid.UUID) (*models.Questionnaire, error)
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Questionnaire, error)
	ListQuestions(ctx context.Context, questionnaireID uuid.UUID) ([]*models.QuestionnaireQuestion, error)

	// Submit persists the answers, runs control generation over the
	// answered responses and marks the questionnaire completed, all in
	// one transaction.
	Submit(ctx context.Context, actor auth.Actor, questionnaireID uuid.UUID, answers []QuestionnaireAnswer) (created int, err error)
}

type questionnaireService struct {
	questionnaireRepo repositories.QuestionnaireRepository
	engagementRepo    repositories.EngagementRepository
	standardRepo      repositories.StandardRepository
	generation        GenerationService
	logger            *zap.Logger
	tx                txFunc
	now               func() time.Time
}

// NewQuestionnaireService creates a new QuestionnaireService.
func NewQuestionnaireService(
	questionnaireRepo repositories.QuestionnaireRepository,
	engagementRepo repositories.EngagementRepository,
	standardRepo repositories.StandardRepository,
	generation GenerationService,
	logger *zap.Logger,
) QuestionnaireService {
	return &questionnaireService{
		questionnaireRepo: questionnaireRepo,
		engagementRepo:    engagementRepo,
		standardRepo:      standardRepo,
		generation:        generation,
		logger:            logger.Named("questionnaire-service"),
		tx:                database.WithTx,
		now:               time.Now,
	}
}

var _ QuestionnaireService = (*questionnaireService)(nil)

func (s *questionnaireService) Create(ctx context.Context, actor auth.Actor, engagementID, standardID uuid.UUID, title string) (*models.Questionnaire, error) {
	if !actor.Role.In(auth.RoleAdmin, auth.RoleControlAssessor) {
		return nil, apperrors.ErrPermissionDenied
	}
	engagement, err := s.engagementRepo.GetByID(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	standard, err := s.standardRepo.GetByID(ctx, standardID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.standardRepo.ListActiveControls(ctx, []uuid.UUID{standard.ID})
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, apperrors.NewValidationError("standard %s has no active controls", standard.Name)
	}

	if title == "" {
		title = fmt.Sprintf("%s questionnaire", standard.Name)
	}
	questionnaire := &models.Questionnaire{
		ID:           uuid.New(),
		EngagementID: engagement.ID,
		StandardID:   standard.ID,
		Title:        title,
		Status:       models.QuestionnaireDraft,
		CreatedBy:    actor.UserID,
	}

	questions := make([]*models.QuestionnaireQuestion, 0, len(catalog))
	for i, sc := range catalog {
		questions = append(questions, &models.QuestionnaireQuestion{
			ID:                uuid.New(),
			QuestionnaireID:   questionnaire.ID,
			StandardControlID: sc.ID,
			QuestionText:      fmt.Sprintf("Is control %s (%s) implemented?", sc.ControlID, sc.Title),
			SortOrder:         i,
		})
	}

	if err := s.questionnaireRepo.Create(ctx, questionnaire, questions); err != nil {
		return nil, err
	}
	s.logger.Info("Created questionnaire",
		zap.String("questionnaire_id", questionnaire.ID.String()),
		zap.String("engagement_id", engagement.ID.String()),
		zap.Int("questions", len(questions)))
	return questionnaire, nil
}

func (s *questionnaireService) GetByID(ctx context.Context, questionnaireID uuid.UUID) (*models.Questionnaire, error) {
	return s.questionnaireRepo.GetByID(ctx, questionnaireID)
}

func (s *questionnaireService) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Questionnaire, error) {
	return s.questionnaireRepo.ListByEngagement(ctx, engagementID)
}

func (s *questionnaireService) ListQuestions(ctx context.Context, questionnaireID uuid.UUID) ([]*models.QuestionnaireQuestion, error) {
	return s.questionnaireRepo.ListQuestions(ctx, questionnaireID)
}

func (s *questionnaireService) Submit(ctx context.Context, actor auth.Actor, questionnaireID uuid.UUID, answers []QuestionnaireAnswer) (int, error) {
	questionnaire, err := s.questionnaireRepo.GetByID(ctx, questionnaireID)
	if err != nil {
		return 0, err
	}
	if questionnaire.Status == models.QuestionnaireCompleted {
		return 0, fmt.Errorf("%w: questionnaire is already completed", apperrors.ErrConflict)
	}
	if len(answers) == 0 {
		return 0, apperrors.NewValidationError("no answers submitted")
	}
	questions, err := s.questionnaireRepo.ListQuestions(ctx, questionnaire.ID)
	if err != nil {
		return 0, err
	}
	known := make(map[uuid.UUID]bool, len(questions))
	for _, question := range questions {
		known[question.ID] = true
	}
	for _, answer := range answers {
		if !known[answer.QuestionID] {
			return 0, apperrors.NewValidationError("question %s does not belong to questionnaire %s", answer.QuestionID, questionnaire.ID)
		}
		if !models.IsValidAnswer(strings.ToLower(answer.Answer)) {
			return 0, apperrors.NewValidationError("invalid answer %q for question %s", answer.Answer, answer.QuestionID)
		}
	}

	var created int
	err = s.tx(ctx, func(ctx context.Context) error {
		answeredAt := s.now().UTC()
		for _, answer := range answers {
			value := strings.ToLower(answer.Answer)
			answeredBy := actor.UserID
			response := &models.QuestionnaireResponse{
				ID:              uuid.New(),
				QuestionnaireID: questionnaire.ID,
				QuestionID:      answer.QuestionID,
				Answer:          &value,
				Comment:         answer.Comment,
				AnsweredBy:      &answeredBy,
				AnsweredAt:      &answeredAt,
			}
			if err := s.questionnaireRepo.UpsertResponse(ctx, response); err != nil {
				return err
			}
		}

		var err error
		created, err = s.generation.GenerateFromQuestionnaire(ctx, questionnaire.ID)
		if err != nil {
			return err
		}
		return s.questionnaireRepo.MarkCompleted(ctx, questionnaire.ID, answeredAt)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Submitted questionnaire",
		zap.String("questionnaire_id", questionnaire.ID.String()),
		zap.Int("answers", len(answers)),
		zap.Int("controls_created", created))
	return created, nil
}
