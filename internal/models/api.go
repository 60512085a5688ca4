package models

import (
	"time"
)

// UploadResponse is returned after accepting a single document upload.
type UploadResponse struct {
	RequestID string `json:"request_id"`
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// ProcessingStatusResponse is the polling view of a single request.
type ProcessingStatusResponse struct {
	RequestID string            `json:"request_id"`
	Status    ProcessingStatus  `json:"status"`
	Message   string            `json:"message,omitempty"`
	Result    *ProcessingResult `json:"result,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// DocumentListItem describes one archived document.
type DocumentListItem struct {
	Name        string         `json:"name"`
	Path        string         `json:"path"`
	Size        int64          `json:"size"`
	Modified    time.Time      `json:"modified"`
	Tagging     *TaggingResult `json:"tagging,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
}

// SystemStatus is the health and configuration summary for GET /api/status.
type SystemStatus struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	LLMProvider    string `json:"llm_provider"`
	LLMModel       string `json:"llm_model"`
	LLMAvailable   bool   `json:"llm_available"`
	OCRAvailable   bool   `json:"ocr_available"`
	WatcherRunning bool   `json:"watcher_running"`
	InboxFolder    string `json:"inbox_folder"`
	ArchiveFolder  string `json:"archive_folder"`
	InboxCount     int    `json:"inbox_count"`
}

// BatchUploadResponse is returned after accepting a multi-file upload.
type BatchUploadResponse struct {
	BatchID  string            `json:"batch_id"`
	Accepted []UploadResponse  `json:"accepted"`
	Rejected []BatchFileStatus `json:"rejected,omitempty"`
}

// BatchFileStatus pairs a filename with its per-file state inside an
// upload batch.
type BatchFileStatus struct {
	RequestID string           `json:"request_id,omitempty"`
	Filename  string           `json:"filename"`
	Status    ProcessingStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
}

// BatchStatusResponse is the polling view of an upload batch.
type BatchStatusResponse struct {
	BatchID   string            `json:"batch_id"`
	Status    string            `json:"status"`
	Total     int               `json:"total"`
	Completed int               `json:"completed"`
	Failed    int               `json:"failed"`
	Files     []BatchFileStatus `json:"files"`
}

// CustomPrompt is a stored user prompt override for tagging.
type CustomPrompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
