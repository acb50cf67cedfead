package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/models"
)

type questionnaireFixture struct {
	svc            *questionnaireService
	questRepo      *mockQuestionnaireRepo
	engagementRepo *mockEngagementRepo
	standardRepo   *mockStandardRepo
	controlRepo    *mockControlRepo
	engagement     *models.Engagement
	standard       *models.Standard
}

func newQuestionnaireFixture(t *testing.T) *questionnaireFixture {
	t.Helper()
	f := &questionnaireFixture{
		questRepo:      newMockQuestionnaireRepo(),
		engagementRepo: newMockEngagementRepo(),
		standardRepo:   newMockStandardRepo(),
		controlRepo:    newMockControlRepo(),
	}
	generation := NewGenerationService(f.engagementRepo, f.standardRepo, f.controlRepo, f.questRepo, zap.NewNop()).(*generationService)
	generation.tx = passTx
	f.svc = NewQuestionnaireService(f.questRepo, f.engagementRepo, f.standardRepo, generation, zap.NewNop()).(*questionnaireService)
	f.svc.tx = passTx
	f.svc.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }

	f.engagement = &models.Engagement{ID: uuid.New(), Title: "Acme FY26", ClientName: "Acme", AuditYear: 2026, Status: models.EngagementFieldwork}
	require.NoError(t, f.engagementRepo.Create(context.Background(), f.engagement))
	f.standard = f.standardRepo.addStandard("ISO 27001:2022")
	f.standardRepo.addControl(f.standard.ID, "A.5.1", "Policies for information security")
	f.standardRepo.addControl(f.standard.ID, "A.5.2", "Information security roles")
	return f
}

func TestCreateQuestionnaire_OneQuestionPerActiveControl(t *testing.T) {
	f := newQuestionnaireFixture(t)

	questionnaire, err := f.svc.Create(context.Background(), assessorActor, f.engagement.ID, f.standard.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.QuestionnaireDraft, questionnaire.Status)
	assert.Equal(t, "ISO 27001:2022 questionnaire", questionnaire.Title)

	questions, err := f.svc.ListQuestions(context.Background(), questionnaire.ID)
	require.NoError(t, err)
	assert.Len(t, questions, 2)
}

func TestCreateQuestionnaire_ClientForbidden(t *testing.T) {
	f := newQuestionnaireFixture(t)
	_, err := f.svc.Create(context.Background(), clientActor, f.engagement.ID, f.standard.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestSubmit_GeneratesControlsAndCompletes(t *testing.T) {
	f := newQuestionnaireFixture(t)
	questionnaire, err := f.svc.Create(context.Background(), assessorActor, f.engagement.ID, f.standard.ID, "")
	require.NoError(t, err)
	questions, err := f.svc.ListQuestions(context.Background(), questionnaire.ID)
	require.NoError(t, err)

	answers := []QuestionnaireAnswer{
		{QuestionID: questions[0].ID, Answer: "Yes", Comment: "Policy approved last quarter."},
		{QuestionID: questions[1].ID, Answer: "no"},
	}
	created, err := f.svc.Submit(context.Background(), clientActor, questionnaire.ID, answers)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	stored, err := f.svc.GetByID(context.Background(), questionnaire.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionnaireCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	// Answers drive row creation but never the test fields.
	controls, err := f.controlRepo.ListByEngagement(context.Background(), f.engagement.ID)
	require.NoError(t, err)
	require.Len(t, controls, 2)
	for _, c := range controls {
		assert.Equal(t, models.ControlSourceQuestionnaire, c.Source)
		assert.Empty(t, c.TestPerformed)
		assert.Empty(t, c.TestResults)
	}
}

func TestSubmit_InvalidAnswerRejected(t *testing.T) {
	f := newQuestionnaireFixture(t)
	questionnaire, err := f.svc.Create(context.Background(), assessorActor, f.engagement.ID, f.standard.ID, "")
	require.NoError(t, err)
	questions, err := f.svc.ListQuestions(context.Background(), questionnaire.ID)
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), clientActor, questionnaire.ID, []QuestionnaireAnswer{
		{QuestionID: questions[0].ID, Answer: "maybe"},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	stored, err := f.svc.GetByID(context.Background(), questionnaire.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionnaireDraft, stored.Status, "nothing persisted")
}

func TestSubmit_CompletedQuestionnaireConflicts(t *testing.T) {
	f := newQuestionnaireFixture(t)
	questionnaire, err := f.svc.Create(context.Background(), assessorActor, f.engagement.ID, f.standard.ID, "")
	require.NoError(t, err)
	questions, err := f.svc.ListQuestions(context.Background(), questionnaire.ID)
	require.NoError(t, err)

	answers := []QuestionnaireAnswer{{QuestionID: questions[0].ID, Answer: "yes"}}
	_, err = f.svc.Submit(context.Background(), clientActor, questionnaire.ID, answers)
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), clientActor, questionnaire.ID, answers)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestSubmit_NoAnswersRejected(t *testing.T) {
	f := newQuestionnaireFixture(t)
	questionnaire, err := f.svc.Create(context.Background(), assessorActor, f.engagement.ID, f.standard.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), clientActor, questionnaire.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSubmit_ForeignQuestionRejected(t *testing.T) {
	f := newQuestionnaireFixture(t)
	questionnaire, err := f.svc.Create(context.Background(), assessorActor, f.engagement.ID, f.standard.ID, "")
	require.NoError(t, err)
	questions, err := f.svc.ListQuestions(context.Background(), questionnaire.ID)
	require.NoError(t, err)

	answers := []QuestionnaireAnswer{
		{QuestionID: questions[0].ID, Answer: "yes"},
		{QuestionID: uuid.New(), Answer: "yes"}, // not one of this questionnaire's questions
	}
	_, err = f.svc.Submit(context.Background(), clientActor, questionnaire.ID, answers)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Nothing was recorded and the questionnaire stays a draft.
	stored, err := f.svc.GetByID(context.Background(), questionnaire.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionnaireDraft, stored.Status)
	responses, err := f.questRepo.ListAnsweredResponses(context.Background(), questionnaire.ID)
	require.NoError(t, err)
	assert.Empty(t, responses)
}
