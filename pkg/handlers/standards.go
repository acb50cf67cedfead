package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/repositories"
)

// StandardHandler serves the standards catalog. The catalog is reference
// data loaded by the seeding tool, so reads go straight to the repository.
type StandardHandler struct {
	standardRepo repositories.StandardRepository
	logger       *zap.Logger
}

// NewStandardHandler creates a new standard handler.
func NewStandardHandler(standardRepo repositories.StandardRepository, logger *zap.Logger) *StandardHandler {
	return &StandardHandler{
		standardRepo: standardRepo,
		logger:       logger,
	}
}

// RegisterRoutes registers the standard handler's routes on the given mux.
func (h *StandardHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope Middleware) {
	mux.HandleFunc("GET /api/standards", authMiddleware.RequireActor(scope(h.List)))
	mux.HandleFunc("GET /api/standards/{standard_id}", authMiddleware.RequireActor(scope(h.Get)))
	mux.HandleFunc("GET /api/standards/{standard_id}/controls", authMiddleware.RequireActor(scope(h.ListControls)))
}

// List handles GET /api/standards
func (h *StandardHandler) List(w http.ResponseWriter, r *http.Request) {
	standards, err := h.standardRepo.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if standards == nil {
		standards = make([]*models.Standard, 0)
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: standards}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/standards/{standard_id}
func (h *StandardHandler) Get(w http.ResponseWriter, r *http.Request) {
	standardID, ok := parsePathID(w, r, "standard_id", h.logger)
	if !ok {
		return
	}
	standard, err := h.standardRepo.GetByID(r.Context(), standardID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: standard}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListControls handles GET /api/standards/{standard_id}/controls
func (h *StandardHandler) ListControls(w http.ResponseWriter, r *http.Request) {
	standardID, ok := parsePathID(w, r, "standard_id", h.logger)
	if !ok {
		return
	}
	controls, err := h.standardRepo.ListActiveControls(r.Context(), []uuid.UUID{standardID})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if controls == nil {
		controls = make([]*models.StandardControl, 0)
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: controls}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
