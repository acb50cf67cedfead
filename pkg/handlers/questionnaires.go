package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/services"
)

// QuestionnaireHandler handles questionnaire HTTP requests.
type QuestionnaireHandler struct {
	questionnaireService services.QuestionnaireService
	logger               *zap.Logger
}

// NewQuestionnaireHandler creates a new questionnaire handler.
func NewQuestionnaireHandler(questionnaireService services.QuestionnaireService, logger *zap.Logger) *QuestionnaireHandler {
	return &QuestionnaireHandler{
		questionnaireService: questionnaireService,
		logger:               logger,
	}
}

// RegisterRoutes registers the questionnaire handler's routes on the given mux.
func (h *QuestionnaireHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope Middleware) {
	mux.HandleFunc("POST /api/engagements/{engagement_id}/questionnaires", authMiddleware.RequireActor(scope(h.Create)))
	mux.HandleFunc("GET /api/engagements/{engagement_id}/questionnaires", authMiddleware.RequireActor(scope(h.ListByEngagement)))
	mux.HandleFunc("GET /api/questionnaires/{questionnaire_id}", authMiddleware.RequireActor(scope(h.Get)))
	mux.HandleFunc("POST /api/questionnaires/{questionnaire_id}/submit", authMiddleware.RequireActor(scope(h.Submit)))
}

type createQuestionnaireRequest struct {
	StandardID uuid.UUID `json:"standard_id"`
	Title      string    `json:"title"`
}

// Create handles POST /api/engagements/{engagement_id}/questionnaires
func (h *QuestionnaireHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	engagementID, ok := parsePathID(w, r, "engagement_id", h.logger)
	if !ok {
		return
	}

	var req createQuestionnaireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	questionnaire, err := h.questionnaireService.Create(r.Context(), actor, engagementID, req.StandardID, req.Title)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: questionnaire}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListByEngagement handles GET /api/engagements/{engagement_id}/questionnaires
func (h *QuestionnaireHandler) ListByEngagement(w http.ResponseWriter, r *http.Request) {
	engagementID, ok := parsePathID(w, r, "engagement_id", h.logger)
	if !ok {
		return
	}
	questionnaires, err := h.questionnaireService.ListByEngagement(r.Context(), engagementID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if questionnaires == nil {
		questionnaires = make([]*models.Questionnaire, 0)
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: questionnaires}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type questionnaireDetail struct {
	*models.Questionnaire
	Questions []*models.QuestionnaireQuestion `json:"questions"`
}

// Get handles GET /api/questionnaires/{questionnaire_id}
func (h *QuestionnaireHandler) Get(w http.ResponseWriter, r *http.Request) {
	questionnaireID, ok := parsePathID(w, r, "questionnaire_id", h.logger)
	if !ok {
		return
	}
	questionnaire, err := h.questionnaireService.GetByID(r.Context(), questionnaireID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	questions, err := h.questionnaireService.ListQuestions(r.Context(), questionnaireID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: questionnaireDetail{
		Questionnaire: questionnaire,
		Questions:     questions,
	}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type submitQuestionnaireRequest struct {
	Answers []struct {
		QuestionID uuid.UUID `json:"question_id"`
		Answer     string    `json:"answer"`
		Comment    string    `json:"comment"`
	} `json:"answers"`
}

type submitQuestionnaireResult struct {
	ControlsCreated int `json:"controls_created"`
}

// Submit handles POST /api/questionnaires/{questionnaire_id}/submit
func (h *QuestionnaireHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	questionnaireID, ok := parsePathID(w, r, "questionnaire_id", h.logger)
	if !ok {
		return
	}

	var req submitQuestionnaireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	answers := make([]services.QuestionnaireAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, services.QuestionnaireAnswer{
			QuestionID: a.QuestionID,
			Answer:     a.Answer,
			Comment:    a.Comment,
		})
	}

	created, err := h.questionnaireService.Submit(r.Context(), actor, questionnaireID, answers)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: submitQuestionnaireResult{ControlsCreated: created}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
