package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/services"
)

// EngagementHandler handles engagement HTTP requests.
type EngagementHandler struct {
	engagementService services.EngagementService
	logger            *zap.Logger
}

// NewEngagementHandler creates a new engagement handler.
func NewEngagementHandler(engagementService services.EngagementService, logger *zap.Logger) *EngagementHandler {
	return &EngagementHandler{
		engagementService: engagementService,
		logger:            logger,
	}
}

// RegisterRoutes registers the engagement handler's routes on the given mux.
func (h *EngagementHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope Middleware) {
	mux.HandleFunc("GET /api/engagements", authMiddleware.RequireActor(scope(h.List)))
	mux.HandleFunc("POST /api/engagements", authMiddleware.RequireActor(scope(h.Create)))
	mux.HandleFunc("GET /api/engagements/{engagement_id}", authMiddleware.RequireActor(scope(h.Get)))
	mux.HandleFunc("PUT /api/engagements/{engagement_id}", authMiddleware.RequireActor(scope(h.Update)))
	mux.HandleFunc("DELETE /api/engagements/{engagement_id}", authMiddleware.RequireActor(scope(h.Delete)))
	mux.HandleFunc("POST /api/engagements/{engagement_id}/standards", authMiddleware.RequireActor(scope(h.AttachStandards)))
	mux.HandleFunc("POST /api/engagements/{engagement_id}/resync", authMiddleware.RequireActor(scope(h.Resync)))
}

type engagementRequest struct {
	Title       string      `json:"title"`
	ClientName  string      `json:"client_name"`
	AuditYear   int         `json:"audit_year"`
	Status      string      `json:"status"`
	LeadAuditor *uuid.UUID  `json:"lead_auditor"`
	Standards   []uuid.UUID `json:"standards"`
}

// Create handles POST /api/engagements
func (h *EngagementHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req engagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.AuditYear == 0 {
		req.AuditYear = time.Now().Year()
	}

	engagement := &models.Engagement{
		Title:       req.Title,
		ClientName:  req.ClientName,
		AuditYear:   req.AuditYear,
		Status:      req.Status,
		LeadAuditor: req.LeadAuditor,
		Standards:   req.Standards,
	}
	if err := h.engagementService.Create(r.Context(), actor, engagement); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: engagement}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/engagements
func (h *EngagementHandler) List(w http.ResponseWriter, r *http.Request) {
	engagements, err := h.engagementService.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if engagements == nil {
		engagements = make([]*models.Engagement, 0)
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: engagements}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/engagements/{engagement_id}
func (h *EngagementHandler) Get(w http.ResponseWriter, r *http.Request) {
	engagementID, ok := parsePathID(w, r, "engagement_id", h.logger)
	if !ok {
		return
	}
	engagement, err := h.engagementService.GetByID(r.Context(), engagementID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: engagement}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/engagements/{engagement_id}
func (h *EngagementHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	engagementID, ok := parsePathID(w, r, "engagement_id", h.logger)
	if !ok {
		return
	}

	var req engagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	engagement, err := h.engagementService.GetByID(r.Context(), engagementID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	engagement.Title = req.Title
	engagement.ClientName = req.ClientName
	if req.AuditYear != 0 {
		engagement.AuditYear = req.AuditYear
	}
	if req.Status != "" {
		engagement.Status = req.Status
	}
	engagement.LeadAuditor = req.LeadAuditor

	if err := h.engagementService.Update(r.Context(), actor, engagement); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: engagement}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/engagements/{engagement_id}
func (h *EngagementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	engagementID, ok := parsePathID(w, r, "engagement_id", h.logger)
	if !ok {
		return
	}
	if err := h.engagementService.Delete(r.Context(), actor, engagementID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Engagement deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type attachStandardsRequest struct {
	Standards []uuid.UUID `json:"standards"`
}

type generationResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// AttachStandards handles POST /api/engagements/{engagement_id}/standards
func (h *EngagementHandler) AttachStandards(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	engagementID, ok := parsePathID(w, r, "engagement_id", h.logger)
	if !ok {
		return
	}

	var req attachStandardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	created, skipped, err := h.engagementService.AttachStandards(r.Context(), actor, engagementID, req.Standards)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: generationResult{Created: created, Skipped: skipped}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Resync handles POST /api/engagements/{engagement_id}/resync
func (h *EngagementHandler) Resync(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	engagementID, ok := parsePathID(w, r, "engagement_id", h.logger)
	if !ok {
		return
	}
	created, skipped, err := h.engagementService.Resync(r.Context(), actor, engagementID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: generationResult{Created: created, Skipped: skipped}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
