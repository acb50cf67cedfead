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

// RequestHandler handles evidence request HTTP requests, including the
// sign-off workflow endpoints.
type RequestHandler struct {
	requestService services.RequestService
	signoffService services.SignoffService
	logger         *zap.Logger
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(requestService services.RequestService, signoffService services.SignoffService, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		signoffService: signoffService,
		logger:         logger,
	}
}

// RegisterRoutes registers the request handler's routes on the given mux.
func (h *RequestHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope Middleware) {
	mux.HandleFunc("POST /api/requests", authMiddleware.RequireActor(scope(h.Create)))
	mux.HandleFunc("GET /api/requests/{request_id}", authMiddleware.RequireActor(scope(h.Get)))
	mux.HandleFunc("PUT /api/requests/{request_id}", authMiddleware.RequireActor(scope(h.Update)))
	mux.HandleFunc("DELETE /api/requests/{request_id}", authMiddleware.RequireActor(scope(h.Delete)))
	mux.HandleFunc("GET /api/controls/{control_id}/requests", authMiddleware.RequireActor(scope(h.ListByControl)))
	mux.HandleFunc("GET /api/engagements/{engagement_id}/requests", authMiddleware.RequireActor(scope(h.ListByEngagement)))

	mux.HandleFunc("POST /api/requests/{request_id}/sign/preparer", authMiddleware.RequireActor(scope(h.SignPreparer)))
	mux.HandleFunc("POST /api/requests/{request_id}/sign/reviewer", authMiddleware.RequireActor(scope(h.SignReviewer)))
	mux.HandleFunc("DELETE /api/requests/{request_id}/sign/preparer", authMiddleware.RequireActor(scope(h.UndoPreparer)))
	mux.HandleFunc("DELETE /api/requests/{request_id}/sign/reviewer", authMiddleware.RequireActor(scope(h.UndoReviewer)))
	mux.HandleFunc("POST /api/requests/{request_id}/unlock", authMiddleware.RequireActor(scope(h.Unlock)))
}

type requestPayload struct {
	ControlRef  uuid.UUID  `json:"control_ref"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Tags        string     `json:"tags"`
	Assignee    *uuid.UUID `json:"assignee"`
	TestNotes   string     `json:"test_notes"`
}

// Create handles POST /api/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req requestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	request := &models.Request{
		ControlRef:  req.ControlRef,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Tags:        req.Tags,
		Assignee:    req.Assignee,
		TestNotes:   req.TestNotes,
	}
	if err := h.requestService.Create(r.Context(), actor, request); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: request}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/requests/{request_id}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID, ok := parsePathID(w, r, "request_id", h.logger)
	if !ok {
		return
	}
	request, err := h.requestService.GetByID(r.Context(), requestID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: request}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/requests/{request_id}
func (h *RequestHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	requestID, ok := parsePathID(w, r, "request_id", h.logger)
	if !ok {
		return
	}

	var req requestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	request, err := h.requestService.Update(r.Context(), actor, requestID, services.RequestUpdate{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Tags:        req.Tags,
		Assignee:    req.Assignee,
		TestNotes:   req.TestNotes,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: request}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/requests/{request_id}
func (h *RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	requestID, ok := parsePathID(w, r, "request_id", h.logger)
	if !ok {
		return
	}
	if err := h.requestService.Delete(r.Context(), actor, requestID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Request deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListByControl handles GET /api/controls/{control_id}/requests
func (h *RequestHandler) ListByControl(w http.ResponseWriter, r *http.Request) {
	controlID, ok := parsePathID(w, r, "control_id", h.logger)
	if !ok {
		return
	}
	requests, err := h.requestService.ListByControl(r.Context(), controlID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if requests == nil {
		requests = make([]*models.Request, 0)
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: requests}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListByEngagement handles GET /api/engagements/{engagement_id}/requests
func (h *RequestHandler) ListByEngagement(w http.ResponseWriter, r *http.Request) {
	engagementID, ok := parsePathID(w, r, "engagement_id", h.logger)
	if !ok {
		return
	}
	requests, err := h.requestService.ListByEngagement(r.Context(), engagementID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if requests == nil {
		requests = make([]*models.Request, 0)
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: requests}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *RequestHandler) signoffAction(w http.ResponseWriter, r *http.Request, action func(actor auth.Actor, requestID uuid.UUID) (*models.Request, error)) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	requestID, ok := parsePathID(w, r, "request_id", h.logger)
	if !ok {
		return
	}
	request, err := action(actor, requestID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: request}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SignPreparer handles POST /api/requests/{request_id}/sign/preparer
func (h *RequestHandler) SignPreparer(w http.ResponseWriter, r *http.Request) {
	h.signoffAction(w, r, func(actor auth.Actor, requestID uuid.UUID) (*models.Request, error) {
		return h.signoffService.SignPreparer(r.Context(), actor, requestID)
	})
}

// SignReviewer handles POST /api/requests/{request_id}/sign/reviewer
func (h *RequestHandler) SignReviewer(w http.ResponseWriter, r *http.Request) {
	h.signoffAction(w, r, func(actor auth.Actor, requestID uuid.UUID) (*models.Request, error) {
		return h.signoffService.SignReviewer(r.Context(), actor, requestID)
	})
}

// UndoPreparer handles DELETE /api/requests/{request_id}/sign/preparer
func (h *RequestHandler) UndoPreparer(w http.ResponseWriter, r *http.Request) {
	h.signoffAction(w, r, func(actor auth.Actor, requestID uuid.UUID) (*models.Request, error) {
		return h.signoffService.UndoPreparer(r.Context(), actor, requestID)
	})
}

// UndoReviewer handles DELETE /api/requests/{request_id}/sign/reviewer
func (h *RequestHandler) UndoReviewer(w http.ResponseWriter, r *http.Request) {
	h.signoffAction(w, r, func(actor auth.Actor, requestID uuid.UUID) (*models.Request, error) {
		return h.signoffService.UndoReviewer(r.Context(), actor, requestID)
	})
}

// Unlock handles POST /api/requests/{request_id}/unlock
func (h *RequestHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.signoffAction(w, r, func(actor auth.Actor, requestID uuid.UUID) (*models.Request, error) {
		return h.signoffService.Unlock(r.Context(), actor, requestID)
	})
}
