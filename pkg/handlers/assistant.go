package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/services"
)

// AssistantHandler handles AI assistant HTTP requests. When the
// assistant is disabled by configuration, the handler is not registered.
type AssistantHandler struct {
	assistantService services.AssistantService
	logger           *zap.Logger
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(assistantService services.AssistantService, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{
		assistantService: assistantService,
		logger:           logger,
	}
}

// RegisterRoutes registers the assistant handler's routes on the given mux.
func (h *AssistantHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope Middleware) {
	mux.HandleFunc("POST /api/assistant/ask", authMiddleware.RequireActor(scope(h.Ask)))
	mux.HandleFunc("GET /api/assistant/history", authMiddleware.RequireActor(scope(h.History)))
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask handles POST /api/assistant/ask
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	conversation, err := h.assistantService.Ask(r.Context(), actor, req.Question)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: conversation}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/assistant/history
func (h *AssistantHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "Limit must be a non-negative integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		limit = parsed
	}

	history, err := h.assistantService.History(r.Context(), limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if history == nil {
		history = make([]*models.AssistantConversation, 0)
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: history}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
