package models

import (
	"time"

	"github.com/google/uuid"
)

// Document types.
const (
	DocTypeEvidence  = "evidence"
	DocTypeWorkpaper = "workpaper"
)

// Document folders. Fixed set; uploads outside it are rejected.
const (
	FolderEvidence       = "Evidence"
	FolderWorkpapers     = "Workpapers"
	FolderPolicies       = "Policies"
	FolderReports        = "Reports"
	FolderCorrespondence = "Correspondence"
)

// IsValidDocType reports whether t is a known document type.
func IsValidDocType(t string) bool {
	return t == DocTypeEvidence || t == DocTypeWorkpaper
}

// IsValidFolder reports whether f is one of the fixed folders.
func IsValidFolder(f string) bool {
	switch f {
	case FolderEvidence, FolderWorkpapers, FolderPolicies, FolderReports, FolderCorrespondence:
		return true
	}
	return false
}

// RequestDocument is an uploaded file in the document repository. Every
// document resolves to exactly one engagement: either linked directly or
// computed by walking request -> linked control -> engagement at upload
// time. ReadOnly marks evidence sourced from a request/sheet flow, which
// only admins may delete.
type RequestDocument struct {
	ID           uuid.UUID  `json:"id"`
	RequestID    *uuid.UUID `json:"request_id,omitempty"`
	EngagementID uuid.UUID  `json:"engagement_id"`
	ControlRef   *uuid.UUID `json:"control_ref,omitempty"`
	StandardID   *uuid.UUID `json:"standard_id,omitempty"`
	DocType      string     `json:"doc_type"`
	Folder       string     `json:"folder"`
	FileName     string     `json:"file_name"`
	BlobAddress  string     `json:"blob_address"`
	ContentType  string     `json:"content_type,omitempty"`
	SizeBytes    int64      `json:"size_bytes"`
	ReadOnly     bool       `json:"read_only"`
	UploadedBy   uuid.UUID  `json:"uploaded_by"`
	CreatedAt    time.Time  `json:"created_at"`
}
