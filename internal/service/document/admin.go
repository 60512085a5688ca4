package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doctagger/doctagger/internal/archive"
	"github.com/doctagger/doctagger/internal/batch"
	"github.com/doctagger/doctagger/internal/models"
	"github.com/doctagger/doctagger/internal/observability/metrics"
	"github.com/doctagger/doctagger/pkg/registry"
)

// ErrPromptNotFound is returned for unknown prompt IDs.
var ErrPromptNotFound = errors.New("prompt not found")

// ListInbox returns the PDFs waiting in the inbox folder.
func (s *Service) ListInbox() ([]models.InboxFile, error) {
	files, err := s.coord.Scan()
	if err != nil {
		return nil, err
	}
	metrics.InboxDepth.Set(float64(len(files)))
	return files, nil
}

// ListDocuments walks the archive tree and returns every archived PDF,
// enriched from its sidecar when one exists.
func (s *Service) ListDocuments() ([]models.DocumentListItem, error) {
	items := make([]models.DocumentListItem, 0)

	err := filepath.WalkDir(s.cfg.ArchiveDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		item := models.DocumentListItem{
			Name:     d.Name(),
			Path:     path,
			Size:     info.Size(),
			Modified: info.ModTime(),
		}
		if prev, err := archive.ReadSidecar(path); err == nil && prev != nil {
			item.Tagging = prev.Tagging
			item.ContentHash = prev.ContentHash
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return items, nil
		}
		return nil, fmt.Errorf("failed to walk archive: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Modified.After(items[j].Modified)
	})
	return items, nil
}

// SystemStatus summarizes service health and configuration.
func (s *Service) SystemStatus(ctx context.Context) *models.SystemStatus {
	inbox, _ := s.ListInbox()

	return &models.SystemStatus{
		Status:         "ok",
		Version:        Version,
		LLMProvider:    s.cfg.LLMProvider,
		LLMModel:       s.cfg.LLMModel,
		LLMAvailable:   s.tagger.Available(ctx),
		OCRAvailable:   s.ocr.Available(),
		WatcherRunning: s.watcher != nil && s.watcher.Running(),
		InboxFolder:    s.cfg.InboxDir,
		ArchiveFolder:  s.cfg.ArchiveDir,
		InboxCount:     len(inbox),
	}
}

// StartInboxBatch begins processing the inbox contents. The run
// outlives the request that started it.
func (s *Service) StartInboxBatch(ctx context.Context, force bool) error {
	return s.coord.Start(context.WithoutCancel(ctx), batch.StartOptions{ForceReprocess: force})
}

// PauseInboxBatch suspends the running batch.
func (s *Service) PauseInboxBatch() error {
	return s.coord.Pause()
}

// ResumeInboxBatch continues a paused batch.
func (s *Service) ResumeInboxBatch() error {
	return s.coord.Resume()
}

// StopInboxBatch cancels the running batch.
func (s *Service) StopInboxBatch() error {
	return s.coord.Stop()
}

// InboxBatchProgress returns the batch progress snapshot.
func (s *Service) InboxBatchProgress() models.BatchProgress {
	return s.coord.Progress()
}

// onBatchUpdate persists progress snapshots and pushes them to
// clients. Terminal snapshots also feed the batch metrics.
func (s *Service) onBatchUpdate(p models.BatchProgress) {
	ctx := context.Background()
	s.setRecord(ctx, registry.Record{
		ID:     "inbox",
		Kind:   registry.KindBatch,
		Status: string(p.Status),
		Batch:  &p,
	})
	s.notifier.Broadcast(map[string]any{
		"type":     "batch_progress",
		"progress": p,
	})

	switch p.Status {
	case models.BatchCompleted, models.BatchCancelled:
		metrics.BatchRuns.WithLabelValues(string(p.Status)).Inc()
	}
}

// StartWatcher begins watching the inbox for new files. The watcher
// outlives the request that started it.
func (s *Service) StartWatcher(ctx context.Context) error {
	return s.watcher.Start(context.WithoutCancel(ctx))
}

// StopWatcher halts the inbox watcher.
func (s *Service) StopWatcher() {
	s.watcher.Stop()
}

// WatcherRunning reports the watcher state.
func (s *Service) WatcherRunning() bool {
	return s.watcher != nil && s.watcher.Running()
}

// ListPrompts returns all stored prompt overrides.
func (s *Service) ListPrompts() []models.CustomPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CustomPrompt, 0, len(s.prompts))
	for _, p := range s.prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CreatePrompt stores a new prompt override.
func (s *Service) CreatePrompt(name, prompt string) (models.CustomPrompt, error) {
	if strings.TrimSpace(prompt) == "" {
		return models.CustomPrompt{}, fmt.Errorf("prompt text is required")
	}

	now := time.Now()
	p := models.CustomPrompt{
		ID:        uuid.New().String(),
		Name:      name,
		Prompt:    prompt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.prompts[p.ID] = p
	s.mu.Unlock()
	return p, nil
}

// GetPrompt fetches one prompt override.
func (s *Service) GetPrompt(id string) (models.CustomPrompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok {
		return models.CustomPrompt{}, ErrPromptNotFound
	}
	return p, nil
}

// UpdatePrompt replaces the name and text of a stored prompt.
func (s *Service) UpdatePrompt(id, name, prompt string) (models.CustomPrompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok {
		return models.CustomPrompt{}, ErrPromptNotFound
	}
	if name != "" {
		p.Name = name
	}
	if prompt != "" {
		p.Prompt = prompt
	}
	p.UpdatedAt = time.Now()
	s.prompts[id] = p
	return p, nil
}

// DeletePrompt removes a stored prompt.
func (s *Service) DeletePrompt(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[id]; !ok {
		return ErrPromptNotFound
	}
	delete(s.prompts, id)
	return nil
}
