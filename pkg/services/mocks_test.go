package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/repositories"
)

// passTx runs fn directly; service tests exercise logic, not the
// database transaction plumbing.
func passTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// mockEngagementRepo implements repositories.EngagementRepository in memory.
type mockEngagementRepo struct {
	engagements map[uuid.UUID]*models.Engagement
	standards   map[uuid.UUID][]uuid.UUID
}

func newMockEngagementRepo() *mockEngagementRepo {
	return &mockEngagementRepo{
		engagements: make(map[uuid.UUID]*models.Engagement),
		standards:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *mockEngagementRepo) Create(_ context.Context, engagement *models.Engagement) error {
	m.engagements[engagement.ID] = engagement
	return nil
}

func (m *mockEngagementRepo) GetByID(_ context.Context, engagementID uuid.UUID) (*models.Engagement, error) {
	engagement, ok := m.engagements[engagementID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return engagement, nil
}

func (m *mockEngagementRepo) List(_ context.Context) ([]*models.Engagement, error) {
	out := make([]*models.Engagement, 0, len(m.engagements))
	for _, e := range m.engagements {
		out = append(out, e)
	}
	return out, nil
}

func (m *mockEngagementRepo) Update(_ context.Context, engagement *models.Engagement) error {
	if _, ok := m.engagements[engagement.ID]; !ok {
		return apperrors.ErrNotFound
	}
	m.engagements[engagement.ID] = engagement
	return nil
}

func (m *mockEngagementRepo) Delete(_ context.Context, engagementID uuid.UUID) error {
	if _, ok := m.engagements[engagementID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.engagements, engagementID)
	return nil
}

func (m *mockEngagementRepo) AttachStandards(_ context.Context, engagementID uuid.UUID, standardIDs []uuid.UUID) error {
	existing := make(map[uuid.UUID]bool)
	for _, id := range m.standards[engagementID] {
		existing[id] = true
	}
	for _, id := range standardIDs {
		if !existing[id] {
			m.standards[engagementID] = append(m.standards[engagementID], id)
		}
	}
	return nil
}

func (m *mockEngagementRepo) ListStandardIDs(_ context.Context, engagementID uuid.UUID) ([]uuid.UUID, error) {
	return m.standards[engagementID], nil
}

var _ repositories.EngagementRepository = (*mockEngagementRepo)(nil)

// mockStandardRepo implements repositories.StandardRepository in memory.
type mockStandardRepo struct {
	standards map[uuid.UUID]*models.Standard
	controls  []*models.StandardControl
}

func newMockStandardRepo() *mockStandardRepo {
	return &mockStandardRepo{standards: make(map[uuid.UUID]*models.Standard)}
}

func (m *mockStandardRepo) addStandard(name string) *models.Standard {
	standard := &models.Standard{ID: uuid.New(), Name: name, IsActive: true}
	m.standards[standard.ID] = standard
	return standard
}

func (m *mockStandardRepo) addControl(standardID uuid.UUID, controlID, title string) *models.StandardControl {
	control := &models.StandardControl{
		ID:         uuid.New(),
		StandardID: standardID,
		ControlID:  controlID,
		Title:      title,
		IsActive:   true,
	}
	m.controls = append(m.controls, control)
	return control
}

func (m *mockStandardRepo) List(_ context.Context) ([]*models.Standard, error) {
	out := make([]*models.Standard, 0, len(m.standards))
	for _, s := range m.standards {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStandardRepo) GetByID(_ context.Context, standardID uuid.UUID) (*models.Standard, error) {
	standard, ok := m.standards[standardID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return standard, nil
}

func (m *mockStandardRepo) ListActiveControls(_ context.Context, standardIDs []uuid.UUID) ([]*models.StandardControl, error) {
	wanted := make(map[uuid.UUID]bool, len(standardIDs))
	for _, id := range standardIDs {
		wanted[id] = true
	}
	var out []*models.StandardControl
	for _, c := range m.controls {
		if wanted[c.StandardID] && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStandardRepo) GetControl(_ context.Context, controlID uuid.UUID) (*models.StandardControl, error) {
	for _, c := range m.controls {
		if c.ID == controlID {
			return c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

var _ repositories.StandardRepository = (*mockStandardRepo)(nil)

// mockControlRepo implements repositories.ControlRepository in memory,
// keyed like the unique index on (engagement_id, control_id).
type mockControlRepo struct {
	controls map[uuid.UUID]*models.EngagementControl
	byKey    map[string]uuid.UUID
}

func newMockControlRepo() *mockControlRepo {
	return &mockControlRepo{
		controls: make(map[uuid.UUID]*models.EngagementControl),
		byKey:    make(map[string]uuid.UUID),
	}
}

func controlKey(engagementID uuid.UUID, controlID string) string {
	return fmt.Sprintf("%s|%s", engagementID, controlID)
}

func (m *mockControlRepo) CreateIfAbsent(_ context.Context, control *models.EngagementControl) (bool, error) {
	key := controlKey(control.EngagementID, control.ControlID)
	if _, exists := m.byKey[key]; exists {
		return false, nil
	}
	now := time.Now()
	control.CreatedAt = now
	control.UpdatedAt = now
	m.controls[control.ID] = control
	m.byKey[key] = control.ID
	return true, nil
}

func (m *mockControlRepo) GetByID(_ context.Context, controlID uuid.UUID) (*models.EngagementControl, error) {
	control, ok := m.controls[controlID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *control
	return &copied, nil
}

func (m *mockControlRepo) ListByEngagement(_ context.Context, engagementID uuid.UUID) ([]*models.EngagementControl, error) {
	var out []*models.EngagementControl
	for _, c := range m.controls {
		if c.EngagementID == engagementID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockControlRepo) CountByEngagement(_ context.Context, engagementID uuid.UUID) (int, error) {
	count := 0
	for _, c := range m.controls {
		if c.EngagementID == engagementID {
			count++
		}
	}
	return count, nil
}

func (m *mockControlRepo) UpdateTestFields(_ context.Context, control *models.EngagementControl) error {
	stored, ok := m.controls[control.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.TestApplied = control.TestApplied
	stored.TestPerformed = control.TestPerformed
	stored.TestResults = control.TestResults
	return nil
}

func (m *mockControlRepo) UpdateSignoffs(_ context.Context, control *models.EngagementControl) error {
	stored, ok := m.controls[control.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.PreparerSignoff = control.PreparerSignoff
	stored.ReviewerSignoff = control.ReviewerSignoff
	stored.AdminSignoff = control.AdminSignoff
	return nil
}

func (m *mockControlRepo) Delete(_ context.Context, controlID uuid.UUID) error {
	control, ok := m.controls[controlID]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(m.byKey, controlKey(control.EngagementID, control.ControlID))
	delete(m.controls, controlID)
	return nil
}

var _ repositories.ControlRepository = (*mockControlRepo)(nil)

// mockRequestRepo implements repositories.RequestRepository in memory.
type mockRequestRepo struct {
	requests map[uuid.UUID]*models.Request
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[uuid.UUID]*models.Request)}
}

func (m *mockRequestRepo) Create(_ context.Context, request *models.Request) error {
	copied := *request
	m.requests[request.ID] = &copied
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, requestID uuid.UUID) (*models.Request, error) {
	request, ok := m.requests[requestID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *request
	return &copied, nil
}

func (m *mockRequestRepo) ListByControl(_ context.Context, controlRef uuid.UUID) ([]*models.Request, error) {
	var out []*models.Request
	for _, r := range m.requests {
		if r.ControlRef == controlRef {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockRequestRepo) ListByEngagement(_ context.Context, _ uuid.UUID) ([]*models.Request, error) {
	var out []*models.Request
	for _, r := range m.requests {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockRequestRepo) Update(_ context.Context, request *models.Request) error {
	if _, ok := m.requests[request.ID]; !ok {
		return apperrors.ErrNotFound
	}
	copied := *request
	m.requests[request.ID] = &copied
	return nil
}

func (m *mockRequestRepo) Delete(_ context.Context, requestID uuid.UUID) error {
	if _, ok := m.requests[requestID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.requests, requestID)
	return nil
}

var _ repositories.RequestRepository = (*mockRequestRepo)(nil)

// mockDocumentRepo implements repositories.DocumentRepository in memory.
type mockDocumentRepo struct {
	documents map[uuid.UUID]*models.RequestDocument
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{documents: make(map[uuid.UUID]*models.RequestDocument)}
}

func (m *mockDocumentRepo) Create(_ context.Context, doc *models.RequestDocument) error {
	m.documents[doc.ID] = doc
	return nil
}

func (m *mockDocumentRepo) GetByID(_ context.Context, docID uuid.UUID) (*models.RequestDocument, error) {
	doc, ok := m.documents[docID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return doc, nil
}

func (m *mockDocumentRepo) List(_ context.Context, filter repositories.DocumentFilter) ([]*models.RequestDocument, error) {
	var out []*models.RequestDocument
	for _, d := range m.documents {
		if filter.EngagementID != uuid.Nil && d.EngagementID != filter.EngagementID {
			continue
		}
		if filter.RequestID != uuid.Nil && (d.RequestID == nil || *d.RequestID != filter.RequestID) {
			continue
		}
		if filter.DocType != "" && d.DocType != filter.DocType {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDocumentRepo) CountForRequest(_ context.Context, requestID uuid.UUID) (int, error) {
	count := 0
	for _, d := range m.documents {
		if d.RequestID != nil && *d.RequestID == requestID {
			count++
		}
	}
	return count, nil
}

func (m *mockDocumentRepo) Delete(_ context.Context, docID uuid.UUID) error {
	if _, ok := m.documents[docID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.documents, docID)
	return nil
}

var _ repositories.DocumentRepository = (*mockDocumentRepo)(nil)

// mockQuestionnaireRepo implements repositories.QuestionnaireRepository in memory.
type mockQuestionnaireRepo struct {
	questionnaires map[uuid.UUID]*models.Questionnaire
	questions      map[uuid.UUID][]*models.QuestionnaireQuestion
	responses      map[uuid.UUID]map[uuid.UUID]*models.QuestionnaireResponse
}

func newMockQuestionnaireRepo() *mockQuestionnaireRepo {
	return &mockQuestionnaireRepo{
		questionnaires: make(map[uuid.UUID]*models.Questionnaire),
		questions:      make(map[uuid.UUID][]*models.QuestionnaireQuestion),
		responses:      make(map[uuid.UUID]map[uuid.UUID]*models.QuestionnaireResponse),
	}
}

func (m *mockQuestionnaireRepo) Create(_ context.Context, questionnaire *models.Questionnaire, questions []*models.QuestionnaireQuestion) error {
	m.questionnaires[questionnaire.ID] = questionnaire
	m.questions[questionnaire.ID] = questions
	return nil
}

func (m *mockQuestionnaireRepo) GetByID(_ context.Context, questionnaireID uuid.UUID) (*models.Questionnaire, error) {
	questionnaire, ok := m.questionnaires[questionnaireID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return questionnaire, nil
}

func (m *mockQuestionnaireRepo) ListByEngagement(_ context.Context, engagementID uuid.UUID) ([]*models.Questionnaire, error) {
	var out []*models.Questionnaire
	for _, q := range m.questionnaires {
		if q.EngagementID == engagementID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *mockQuestionnaireRepo) ListQuestions(_ context.Context, questionnaireID uuid.UUID) ([]*models.QuestionnaireQuestion, error) {
	return m.questions[questionnaireID], nil
}

func (m *mockQuestionnaireRepo) UpsertResponse(_ context.Context, response *models.QuestionnaireResponse) error {
	byQuestion, ok := m.responses[response.QuestionnaireID]
	if !ok {
		byQuestion = make(map[uuid.UUID]*models.QuestionnaireResponse)
		m.responses[response.QuestionnaireID] = byQuestion
	}
	byQuestion[response.QuestionID] = response
	return nil
}

func (m *mockQuestionnaireRepo) ListAnsweredResponses(_ context.Context, questionnaireID uuid.UUID) ([]*models.QuestionnaireResponse, error) {
	byControl := make(map[uuid.UUID]uuid.UUID)
	for _, q := range m.questions[questionnaireID] {
		byControl[q.ID] = q.StandardControlID
	}
	var out []*models.QuestionnaireResponse
	for _, r := range m.responses[questionnaireID] {
		if r.Answer == nil {
			continue
		}
		copied := *r
		copied.StandardControlID = byControl[r.QuestionID]
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockQuestionnaireRepo) MarkCompleted(_ context.Context, questionnaireID uuid.UUID, completedAt time.Time) error {
	questionnaire, ok := m.questionnaires[questionnaireID]
	if !ok {
		return apperrors.ErrNotFound
	}
	questionnaire.Status = models.QuestionnaireCompleted
	questionnaire.CompletedAt = &completedAt
	return nil
}

var _ repositories.QuestionnaireRepository = (*mockQuestionnaireRepo)(nil)

// mockConversationRepo implements repositories.ConversationRepository in memory.
type mockConversationRepo struct {
	conversations []*models.AssistantConversation
}

func (m *mockConversationRepo) Create(_ context.Context, conv *models.AssistantConversation) error {
	m.conversations = append(m.conversations, conv)
	return nil
}

func (m *mockConversationRepo) ListRecent(_ context.Context, limit int) ([]*models.AssistantConversation, error) {
	if limit <= 0 || limit > len(m.conversations) {
		limit = len(m.conversations)
	}
	return m.conversations[len(m.conversations)-limit:], nil
}

var _ repositories.ConversationRepository = (*mockConversationRepo)(nil)

// mockGenerator returns a canned answer or error.
type mockGenerator struct {
	answer string
	err    error
	prompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.prompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return strings.TrimSpace(m.answer), nil
}
