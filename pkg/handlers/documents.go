package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/repositories"
	"github.com/auditsource/engine/pkg/services"
)

const maxDocumentUploadBytes = 100 << 20 // 100 MiB

// DocumentHandler handles document repository HTTP requests.
type DocumentHandler struct {
	documentService services.DocumentService
	logger          *zap.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(documentService services.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          logger,
	}
}

// RegisterRoutes registers the document handler's routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope Middleware) {
	mux.HandleFunc("POST /api/documents", authMiddleware.RequireActor(scope(h.Upload)))
	mux.HandleFunc("GET /api/documents", authMiddleware.RequireActor(scope(h.List)))
	mux.HandleFunc("GET /api/documents/{document_id}", authMiddleware.RequireActor(scope(h.Get)))
	mux.HandleFunc("GET /api/documents/{document_id}/download", authMiddleware.RequireActor(scope(h.Download)))
	mux.HandleFunc("DELETE /api/documents/{document_id}", authMiddleware.RequireActor(scope(h.Delete)))
}

// Upload handles POST /api/documents. The body is a multipart form with
// the file under "file" plus optional link fields.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxDocumentUploadBytes); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_upload", "Expected a multipart form upload"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_upload", "Missing file field"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxDocumentUploadBytes))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_upload", "Failed to read file"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	upload := services.DocumentUpload{
		DocType:     r.FormValue("doc_type"),
		Folder:      r.FormValue("folder"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}
	if upload.RequestID, ok = parseOptionalFormID(w, r, "request_id", h.logger); !ok {
		return
	}
	if upload.EngagementID, ok = parseOptionalFormID(w, r, "engagement_id", h.logger); !ok {
		return
	}
	if upload.ControlRef, ok = parseOptionalFormID(w, r, "control_ref", h.logger); !ok {
		return
	}
	if upload.StandardID, ok = parseOptionalFormID(w, r, "standard_id", h.logger); !ok {
		return
	}

	doc, err := h.documentService.Upload(r.Context(), actor, upload)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: doc}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/documents with optional filter query parameters.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repositories.DocumentFilter{DocType: r.URL.Query().Get("doc_type")}
	for param, target := range map[string]*uuid.UUID{
		"engagement_id": &filter.EngagementID,
		"request_id":    &filter.RequestID,
		"control_ref":   &filter.ControlRef,
		"standard_id":   &filter.StandardID,
	} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_filter", "Invalid "+param+" format"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		*target = id
	}

	documents, err := h.documentService.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if documents == nil {
		documents = make([]*models.RequestDocument, 0)
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: documents}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/documents/{document_id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	docID, ok := parsePathID(w, r, "document_id", h.logger)
	if !ok {
		return
	}
	doc, err := h.documentService.GetByID(r.Context(), docID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: doc}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Download handles GET /api/documents/{document_id}/download
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	docID, ok := parsePathID(w, r, "document_id", h.logger)
	if !ok {
		return
	}
	doc, reader, err := h.documentService.Download(r.Context(), docID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	defer reader.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error("Failed to stream document",
			zap.String("document_id", docID.String()),
			zap.Error(err))
	}
}

// Delete handles DELETE /api/documents/{document_id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	docID, ok := parsePathID(w, r, "document_id", h.logger)
	if !ok {
		return
	}
	if err := h.documentService.Delete(r.Context(), actor, docID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Document deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// parseOptionalFormID parses a UUID form field if present; missing means
// (nil, true), malformed writes a 400 and returns false.
func parseOptionalFormID(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (*uuid.UUID, bool) {
	raw := r.FormValue(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		if writeErr := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Invalid "+name+" format"); writeErr != nil {
			logger.Error("Failed to write error response", zap.Error(writeErr))
		}
		return nil, false
	}
	return &id, true
}
