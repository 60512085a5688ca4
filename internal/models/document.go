// Package models defines the data structures shared across the
// processing pipeline, the HTTP API and the status registry.
package models

import (
	"time"
)

// ProcessingStatus is the lifecycle state of a single document.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
	StatusSkipped    ProcessingStatus = "skipped"
)

// Terminal reports whether the status is a final state.
func (s ProcessingStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// TaggingResult is the structured classification produced for a document.
type TaggingResult struct {
	Title        string   `json:"title"`
	DocumentType string   `json:"document_type"`
	Tags         []string `json:"tags"`
	Summary      string   `json:"summary,omitempty"`
	Date         string   `json:"date,omitempty"`
	Entities     []string `json:"entities,omitempty"`
	Confidence   float64  `json:"confidence"`
}

// DocumentMetadata holds the fields embedded into the PDF itself.
type DocumentMetadata struct {
	Title    string   `json:"title"`
	Author   string   `json:"author,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Keywords []string `json:"keywords"`
	Creator  string   `json:"creator"`
	Producer string   `json:"producer"`
}

// ProcessingResult is the full outcome of running one document through
// the pipeline. It is persisted as the sidecar payload and returned by
// the status API.
type ProcessingResult struct {
	Status         ProcessingStatus  `json:"status"`
	OriginalPath   string            `json:"original_path"`
	ArchivePath    string            `json:"archive_path,omitempty"`
	SidecarPath    string            `json:"sidecar_path,omitempty"`
	OCRApplied     bool              `json:"ocr_applied"`
	Metadata       *DocumentMetadata `json:"metadata,omitempty"`
	Tagging        *TaggingResult    `json:"tagging,omitempty"`
	Error          string            `json:"error,omitempty"`
	ProcessingTime float64           `json:"processing_time"`
	Timestamp      time.Time         `json:"timestamp"`
	ContentHash    string            `json:"content_hash,omitempty"`
}
