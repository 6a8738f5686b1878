package models

import (
	"time"
)

// Document represents an uploaded file and its lazily-extracted text content
type Document struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	OriginalName string     `json:"original_name"`
	MimeType     string     `json:"mime_type"`
	Size         int64      `json:"size"`
	Path         string     `json:"path"`
	UserID       string     `json:"user_id,omitempty"`
	FolderID     string     `json:"folder_id,omitempty"`
	Content      string     `json:"content,omitempty"`      // Cached extracted text
	ContentHash  string     `json:"content_hash,omitempty"` // SHA256 for duplicate detection
	IsPublic     bool       `json:"is_public"`
	AdminOnly    bool       `json:"admin_only"`
	ManagerOnly  bool       `json:"manager_only"`
	Category     string     `json:"category,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Description  string     `json:"description,omitempty"`
	Views        int        `json:"views"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// DocumentPatch carries the mutable fields for a document update
type DocumentPatch struct {
	Name        *string   `json:"name,omitempty"`
	Content     *string   `json:"content,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Description *string   `json:"description,omitempty"`
	IsPublic    *bool     `json:"is_public,omitempty"`
	AdminOnly   *bool     `json:"admin_only,omitempty"`
	ManagerOnly *bool     `json:"manager_only,omitempty"`
}

// ProcessingResult summarizes a single document processing run
type ProcessingResult struct {
	Success        bool          `json:"success"`
	DocumentID     string        `json:"document_id"`
	ChunksCreated  int           `json:"chunks_created"`
	ProcessingTime time.Duration `json:"processing_time"`
	Quality        float64       `json:"quality"` // 0-100 composite score
	Error          string        `json:"error,omitempty"`
}

// UploadResponse is returned after a successful document upload
type UploadResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	TaskID   string `json:"task_id,omitempty"`
}

// Document processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
