package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/services"
	"github.com/auditsource/engine/pkg/spreadsheet"
)

const maxSheetUploadBytes = 10 << 20 // 10 MiB

// ControlHandler handles engagement control (sheet) HTTP requests.
type ControlHandler struct {
	controlService    services.ControlService
	generationService services.GenerationService
	logger            *zap.Logger
}

// NewControlHandler creates a new control handler.
func NewControlHandler(controlService services.ControlService, generationService services.GenerationService, logger *zap.Logger) *ControlHandler {
	return &ControlHandler{
		controlService:    controlService,
		generationService: generationService,
		logger:            logger,
	}
}

// RegisterRoutes registers the control handler's routes on the given mux.
func (h *ControlHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope Middleware) {
	mux.HandleFunc("GET /api/engagements/{engagement_id}/controls", authMiddleware.RequireActor(scope(h.ListByEngagement)))
	mux.HandleFunc("POST /api/engagements/{engagement_id}/controls", authMiddleware.RequireActor(scope(h.CreateManual)))
	mux.HandleFunc("POST /api/engagements/{engagement_id}/controls/import", authMiddleware.RequireActor(scope(h.ImportSpreadsheet)))
	mux.HandleFunc("GET /api/controls/{control_id}", authMiddleware.RequireActor(scope(h.Get)))
	mux.HandleFunc("PUT /api/controls/{control_id}/tests", authMiddleware.RequireActor(scope(h.UpdateTestFields)))
	mux.HandleFunc("POST /api/controls/{control_id}/signoff/{slot}", authMiddleware.RequireActor(scope(h.SignSlot)))
	mux.HandleFunc("DELETE /api/controls/{control_id}/signoff/{slot}", authMiddleware.RequireActor(scope(h.UndoSlot)))
	mux.HandleFunc("DELETE /api/controls/{control_id}", authMiddleware.RequireActor(scope(h.Delete)))
}

type manualControlRequest struct {
	ControlID        string `json:"control_id"`
	ControlName      string `json:"control_name"`
	Description      string `json:"control_description"`
	TestingProcedure string `json:"testing_procedure"`
}

// CreateManual handles POST /api/engagements/{engagement_id}/controls
func (h *ControlHandler) CreateManual(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	engagementID, ok := parsePathID(w, r, "engagement_id", h.logger)
	if !ok {
		return
	}

	var req manualControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	control := &models.EngagementControl{
		EngagementID:     engagementID,
		ControlID:        req.ControlID,
		ControlName:      req.ControlName,
		Description:      req.Description,
		TestingProcedure: req.TestingProcedure,
	}
	if err := h.controlService.CreateManual(r.Context(), actor, control); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: control}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ImportSpreadsheet handles POST /api/engagements/{engagement_id}/controls/import
// The upload is a multipart form with a CSV file under "file".
func (h *ControlHandler) ImportSpreadsheet(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r, h.logger); !ok {
		return
	}
	engagementID, ok := parsePathID(w, r, "engagement_id", h.logger)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxSheetUploadBytes); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_upload", "Expected a multipart form upload"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_upload", "Missing file field"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	defer file.Close()

	rows, err := spreadsheet.ParseCSV(file)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_spreadsheet", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	created, err := h.generationService.GenerateFromSpreadsheet(r.Context(), engagementID, rows)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: generationResult{Created: created}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListByEngagement handles GET /api/engagements/{engagement_id}/controls
func (h *ControlHandler) ListByEngagement(w http.ResponseWriter, r *http.Request) {
	engagementID, ok := parsePathID(w, r, "engagement_id", h.logger)
	if !ok {
		return
	}
	controls, err := h.controlService.ListByEngagement(r.Context(), engagementID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if controls == nil {
		controls = make([]*models.EngagementControl, 0)
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: controls}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/controls/{control_id}
func (h *ControlHandler) Get(w http.ResponseWriter, r *http.Request) {
	controlID, ok := parsePathID(w, r, "control_id", h.logger)
	if !ok {
		return
	}
	control, err := h.controlService.GetByID(r.Context(), controlID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: control}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type testFieldsRequest struct {
	TestApplied   string `json:"test_applied"`
	TestPerformed string `json:"test_performed"`
	TestResults   string `json:"test_results"`
}

// UpdateTestFields handles PUT /api/controls/{control_id}/tests
func (h *ControlHandler) UpdateTestFields(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	controlID, ok := parsePathID(w, r, "control_id", h.logger)
	if !ok {
		return
	}

	var req testFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	control, err := h.controlService.UpdateTestFields(r.Context(), actor, controlID, req.TestApplied, req.TestPerformed, req.TestResults)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: control}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SignSlot handles POST /api/controls/{control_id}/signoff/{slot}
func (h *ControlHandler) SignSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	controlID, ok := parsePathID(w, r, "control_id", h.logger)
	if !ok {
		return
	}
	control, err := h.controlService.SignSlot(r.Context(), actor, controlID, r.PathValue("slot"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: control}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UndoSlot handles DELETE /api/controls/{control_id}/signoff/{slot}
func (h *ControlHandler) UndoSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	controlID, ok := parsePathID(w, r, "control_id", h.logger)
	if !ok {
		return
	}
	control, err := h.controlService.UndoSlot(r.Context(), actor, controlID, r.PathValue("slot"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: control}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/controls/{control_id}
func (h *ControlHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	controlID, ok := parsePathID(w, r, "control_id", h.logger)
	if !ok {
		return
	}
	if err := h.controlService.Delete(r.Context(), actor, controlID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Control deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
