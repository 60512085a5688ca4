// Package document wires the pipeline, batch coordinator, watcher and
// registry into the service layer the API and CLI consume.
package document

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doctagger/doctagger/config"
	"github.com/doctagger/doctagger/internal/archive"
	"github.com/doctagger/doctagger/internal/batch"
	"github.com/doctagger/doctagger/internal/extract"
	"github.com/doctagger/doctagger/internal/models"
	"github.com/doctagger/doctagger/internal/ocr"
	"github.com/doctagger/doctagger/internal/pdfmeta"
	"github.com/doctagger/doctagger/internal/pipeline"
	"github.com/doctagger/doctagger/internal/tagging"
	"github.com/doctagger/doctagger/internal/watcher"
	"github.com/doctagger/doctagger/pkg/logger"
	"github.com/doctagger/doctagger/pkg/registry"
)

// Version is reported by the status endpoint.
const Version = "1.0.0"

// Notifier pushes live updates to connected clients.
type Notifier interface {
	Broadcast(v any)
}

type noopNotifier struct{}

func (noopNotifier) Broadcast(v any) {}

// ServiceConfig carries the service level settings.
type ServiceConfig struct {
	InboxDir      string
	ArchiveDir    string
	MaxFileSize   int64
	MaxConcurrent int
	LLMProvider   string
	LLMModel      string
}

// Service coordinates document processing for the HTTP API and CLI.
type Service struct {
	cfg      ServiceConfig
	pipeline *pipeline.Pipeline
	coord    *batch.Coordinator
	watcher  *watcher.Watcher
	registry registry.Registry
	tagger   tagging.Tagger
	ocr      ocr.Engine
	notifier Notifier
	logger   logger.Logger

	sem chan struct{}

	mu      sync.Mutex
	batches map[string][]string
	prompts map[string]models.CustomPrompt
}

// NewService assembles a Service from its collaborators.
func NewService(cfg ServiceConfig, p *pipeline.Pipeline, coord *batch.Coordinator, w *watcher.Watcher, reg registry.Registry, tagger tagging.Tagger, engine ocr.Engine, notifier Notifier, log logger.Logger) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 100 * 1024 * 1024 // 100MB
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	s := &Service{
		cfg:      cfg,
		pipeline: p,
		coord:    coord,
		watcher:  w,
		registry: reg,
		tagger:   tagger,
		ocr:      engine,
		notifier: notifier,
		logger:   log,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		batches:  make(map[string][]string),
		prompts:  make(map[string]models.CustomPrompt),
	}

	coord.OnUpdate(func(p models.BatchProgress) {
		s.onBatchUpdate(p)
	})
	return s
}

// GetService builds a fully wired Service from the application config.
func GetService(cfg *config.Config, notifier Notifier, log logger.Logger) (*Service, error) {
	reg, err := registry.NewRegistry(
		registry.Backend(cfg.Registry.Backend),
		registry.RedisOptions{
			Addr:     cfg.Registry.RedisAddr,
			Password: cfg.Registry.RedisPassword,
			DB:       cfg.Registry.RedisDB,
		},
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}

	tagger, err := tagging.NewTagger(tagging.Config{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		Timeout:       cfg.LLM.Timeout,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		OllamaURL:     cfg.LLM.OllamaURL,
		OpenAIBaseURL: cfg.LLM.OpenAIBaseURL,
		OpenAIAPIKey:  cfg.LLM.OpenAIAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tagger: %w", err)
	}

	engine := ocr.New(ocr.Options{
		Language: cfg.OCR.Language,
		Deskew:   cfg.OCR.Deskew,
		ForceOCR: cfg.OCR.ForceOCR,
		Optimize: cfg.OCR.Optimize,
		Timeout:  cfg.OCR.Timeout,
	}, log.Named("ocr"))

	arch := archive.New(cfg.Folders.Archive, cfg.Archive.Structure)
	pipe := pipeline.New(
		pipeline.Config{
			TempDir:         cfg.Folders.Temp,
			OCREnabled:      cfg.OCR.Enabled,
			OCRForce:        cfg.OCR.ForceOCR,
			OCRSkipIfExists: cfg.OCR.SkipIfExists,
			MaxTags:         cfg.Tags.MaxTags,
			Categories:      cfg.Tags.CustomCategories,
			MinConfidence:   cfg.Tags.MinConfidence,
			SidecarEnabled:  cfg.Archive.SidecarEnabled,
		},
		engine,
		extract.New(),
		tagger,
		pdfmeta.New(),
		arch,
		log.Named("pipeline"),
	)

	coord := batch.New(
		batch.Config{InboxDir: cfg.Folders.Inbox, Parallel: cfg.Server.Parallel, Archive: arch},
		func(ctx context.Context, path string, force bool) (*models.ProcessingResult, error) {
			return pipe.Process(ctx, path, pipeline.Options{ForceReprocess: force})
		},
		log.Named("batch"),
	)

	svc := NewService(
		ServiceConfig{
			InboxDir:      cfg.Folders.Inbox,
			ArchiveDir:    cfg.Folders.Archive,
			MaxConcurrent: cfg.Server.Parallel,
			LLMProvider:   cfg.LLM.Provider,
			LLMModel:      cfg.LLM.Model,
		},
		pipe, coord, nil, reg, tagger, engine, notifier, log,
	)

	svc.watcher = watcher.New(cfg.Folders.Inbox, func(ctx context.Context, path string) {
		svc.ProcessPath(ctx, path, pipeline.Options{})
	}, log.Named("watcher"))

	return svc, nil
}

// Close releases the service's resources.
func (s *Service) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	return s.registry.Close()
}

func (s *Service) setRecord(ctx context.Context, rec registry.Record) {
	rec.UpdatedAt = time.Now()
	if err := s.registry.Set(ctx, rec); err != nil {
		s.logger.Warn("failed to store status record",
			logger.String("id", rec.ID),
			logger.Error(err))
	}
}
