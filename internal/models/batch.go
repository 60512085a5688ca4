package models

import (
	"time"
)

// BatchStatus is the state of the inbox batch coordinator.
type BatchStatus string

const (
	BatchIdle      BatchStatus = "idle"
	BatchRunning   BatchStatus = "running"
	BatchPaused    BatchStatus = "paused"
	BatchStopping  BatchStatus = "stopping"
	BatchCompleted BatchStatus = "completed"
	BatchCancelled BatchStatus = "cancelled"
)

// Active reports whether a batch run is still in flight.
func (s BatchStatus) Active() bool {
	switch s {
	case BatchRunning, BatchPaused, BatchStopping:
		return true
	}
	return false
}

// InboxFile describes a candidate PDF discovered in the inbox folder.
type InboxFile struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Status   string    `json:"status"`
}

// TaggingSummary is the condensed per-file result reported in batch
// progress, kept small so progress payloads stay cheap to push.
type TaggingSummary struct {
	Title        string   `json:"title,omitempty"`
	DocumentType string   `json:"document_type,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	ArchivePath  string   `json:"archive_path,omitempty"`
}

// BatchFileResult is the outcome of one file within a batch run.
type BatchFileResult struct {
	Name   string          `json:"name"`
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Result *TaggingSummary `json:"result,omitempty"`
}

// BatchProgress is a snapshot of a batch run. The counters are
// monotonically non-decreasing within a single run; FilesToProcess
// shrinks as files are dispatched, ProcessedFiles grows in completion
// order, and CurrentFile is advisory (last writer wins).
type BatchProgress struct {
	Status         BatchStatus       `json:"status"`
	TotalFiles     int               `json:"total_files"`
	Processed      int               `json:"processed"`
	Skipped        int               `json:"skipped"`
	Failed         int               `json:"failed"`
	CurrentFile    string            `json:"current_file,omitempty"`
	Percent        float64           `json:"percent_complete"`
	FilesToProcess []string          `json:"files_to_process"`
	ProcessedFiles []BatchFileResult `json:"processed_files"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	Error          string            `json:"error,omitempty"`
}
