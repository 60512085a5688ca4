// Package pipeline orchestrates the per-document processing flow:
// OCR, text extraction, tagging, normalization, metadata embedding,
// archiving and sidecar writing.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doctagger/doctagger/internal/archive"
	"github.com/doctagger/doctagger/internal/extract"
	"github.com/doctagger/doctagger/internal/models"
	"github.com/doctagger/doctagger/internal/normalize"
	"github.com/doctagger/doctagger/internal/observability/metrics"
	"github.com/doctagger/doctagger/internal/ocr"
	"github.com/doctagger/doctagger/internal/pdfmeta"
	"github.com/doctagger/doctagger/internal/tagging"
	"github.com/doctagger/doctagger/pkg/logger"
)

// Stage identifies a pipeline phase for error reporting and progress
// callbacks.
type Stage string

const (
	StageOCR      Stage = "ocr"
	StageExtract  Stage = "extract"
	StageTagging  Stage = "tagging"
	StageMetadata Stage = "metadata"
	StageArchive  Stage = "archive"
	StageSidecar  Stage = "sidecar"
)

// StageError wraps a failure with the stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Options tune a single pipeline run.
type Options struct {
	SkipOCR        bool
	SkipArchive    bool
	ForceReprocess bool
	CustomPrompt   string

	// OnStage, when set, is invoked as each stage begins.
	OnStage func(Stage)
}

// Config carries the static pipeline settings.
type Config struct {
	TempDir string

	OCREnabled bool
	// OCRForce runs OCR even when the document already carries text.
	OCRForce bool
	// OCRSkipIfExists skips OCR for documents whose text probe passes.
	// When false, every document goes through OCR.
	OCRSkipIfExists bool

	MaxTags        int
	Categories     []string
	MinConfidence  float64
	SidecarEnabled bool
	Producer       string
}

// Pipeline processes a single PDF end to end.
type Pipeline struct {
	cfg       Config
	ocr       ocr.Engine
	extractor extract.Extractor
	tagger    tagging.Tagger
	meta      pdfmeta.Writer
	archiver  *archive.Archiver
	log       logger.Logger
}

// New assembles a pipeline from its collaborators.
func New(cfg Config, engine ocr.Engine, extractor extract.Extractor, tagger tagging.Tagger, meta pdfmeta.Writer, archiver *archive.Archiver, log logger.Logger) *Pipeline {
	if cfg.Producer == "" {
		cfg.Producer = "doctagger"
	}
	return &Pipeline{
		cfg:       cfg,
		ocr:       engine,
		extractor: extractor,
		tagger:    tagger,
		meta:      meta,
		archiver:  archiver,
		log:       log,
	}
}

// ShouldSkip reports whether the document was already processed: a
// completed sidecar next to it, a same-name file anywhere in the
// archive tree, or an archived file with identical content. A sidecar
// recording a different content hash means the file changed since and
// is processed again. Force reprocessing never skips.
func (p *Pipeline) ShouldSkip(path, contentHash string, force bool) bool {
	if force {
		return false
	}
	if prev, err := archive.ReadSidecar(path); err == nil && prev != nil {
		if prev.Status != models.StatusCompleted {
			return false
		}
		if prev.ContentHash != "" && contentHash != "" && prev.ContentHash != contentHash {
			return false
		}
		return true
	}
	if p.archiver == nil {
		return false
	}
	if p.archiver.ContainsName(filepath.Base(path)) {
		return true
	}
	return p.archiver.FindByHash(contentHash) != ""
}

// needsOCR decides whether the OCR engine runs for this document.
func (p *Pipeline) needsOCR(path string) bool {
	if p.cfg.OCRForce {
		return true
	}
	if !p.cfg.OCRSkipIfExists {
		return true
	}
	hasText, err := p.extractor.HasText(path)
	if err != nil {
		return true
	}
	return !hasText
}

// Process runs the document at path through every stage. The returned
// error is non-nil only for precondition violations; stage failures
// are reported through the result's Status and Error fields.
func (p *Pipeline) Process(ctx context.Context, path string, opts Options) (*models.ProcessingResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("document not found: %w", err)
	}
	if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, fmt.Errorf("not a PDF file: %s", path)
	}

	start := time.Now()
	result := &models.ProcessingResult{
		Status:       models.StatusProcessing,
		OriginalPath: path,
		Timestamp:    start,
	}

	if hash, err := archive.HashFile(path); err == nil {
		result.ContentHash = hash
	}

	if p.ShouldSkip(path, result.ContentHash, opts.ForceReprocess) {
		result.Status = models.StatusSkipped
		result.ProcessingTime = elapsed(start)
		return result, nil
	}

	err = p.run(ctx, path, opts, result)
	result.ProcessingTime = elapsed(start)
	if err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		p.log.Error("document processing failed",
			logger.String("path", path),
			logger.Error(err))
		return result, nil
	}

	result.Status = models.StatusCompleted
	p.log.Info("document processed",
		logger.String("path", path),
		logger.String("archive_path", result.ArchivePath),
		logger.Float64("seconds", result.ProcessingTime))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, path string, opts Options, result *models.ProcessingResult) error {
	workDir := p.cfg.TempDir
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return &StageError{StageOCR, fmt.Errorf("failed to create temp dir: %w", err)}
	}

	working := path
	cleanup := make([]string, 0, 2)
	defer func() {
		for _, f := range cleanup {
			os.Remove(f)
		}
	}()

	// OCR
	if err := ctx.Err(); err != nil {
		return &StageError{StageOCR, err}
	}
	notify(opts.OnStage, StageOCR)
	if p.cfg.OCREnabled && !opts.SkipOCR && p.needsOCR(working) {
		ocrOut := filepath.Join(workDir, "ocr_"+uuid.NewString()+".pdf")
		if err := p.ocr.Run(ctx, working, ocrOut); err != nil {
			return &StageError{StageOCR, err}
		}
		cleanup = append(cleanup, ocrOut)
		working = ocrOut
		result.OCRApplied = true
	}

	// text extraction
	if err := ctx.Err(); err != nil {
		return &StageError{StageExtract, err}
	}
	notify(opts.OnStage, StageExtract)
	text, err := p.extractor.Text(working, 0)
	if err != nil {
		return &StageError{StageExtract, err}
	}
	if strings.TrimSpace(text) == "" {
		// an empty document still goes through tagging
		text = ""
		metrics.EmptyExtractions.Inc()
		p.log.Warn("no text extracted", logger.String("path", path))
	}

	// tagging
	if err := ctx.Err(); err != nil {
		return &StageError{StageTagging, err}
	}
	notify(opts.OnStage, StageTagging)
	tags, err := p.tagger.Tag(ctx, text, tagging.TagOptions{
		Filename:     filepath.Base(path),
		CustomPrompt: opts.CustomPrompt,
		Categories:   p.cfg.Categories,
	})
	if err != nil {
		return &StageError{StageTagging, err}
	}
	normalize.Apply(tags, p.cfg.MaxTags)
	if tags.Title == "" {
		tags.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if p.cfg.MinConfidence > 0 && tags.Confidence < p.cfg.MinConfidence {
		tags.DocumentType = "other"
	}
	result.Tagging = tags

	// metadata embedding on a scratch copy
	if err := ctx.Err(); err != nil {
		return &StageError{StageMetadata, err}
	}
	notify(opts.OnStage, StageMetadata)
	metaCopy := filepath.Join(workDir, "meta_"+uuid.NewString()+".pdf")
	if err := copyFile(working, metaCopy); err != nil {
		return &StageError{StageMetadata, err}
	}
	cleanup = append(cleanup, metaCopy)

	meta := &models.DocumentMetadata{
		Title:    tags.Title,
		Subject:  tags.Summary,
		Keywords: tags.Tags,
		Creator:  p.cfg.Producer,
		Producer: p.cfg.Producer,
	}
	if info, infoErr := p.extractor.Info(working); infoErr == nil {
		// an existing author survives retagging
		meta.Author = info["Author"]
	}
	if err := p.meta.Write(ctx, metaCopy, meta); err != nil {
		return &StageError{StageMetadata, err}
	}
	result.Metadata = meta

	// archive placement
	if err := ctx.Err(); err != nil {
		return &StageError{StageArchive, err}
	}
	notify(opts.OnStage, StageArchive)
	if opts.SkipArchive {
		// replace the original in place with the tagged copy
		if err := copyFile(metaCopy, path); err != nil {
			return &StageError{StageArchive, err}
		}
		result.ArchivePath = path
	} else {
		name := tags.Title
		if name == "" {
			name = filepath.Base(path)
		}
		dst, err := p.archiver.Place(metaCopy, tags, name+".pdf")
		if err != nil {
			return &StageError{StageArchive, err}
		}
		cleanup = cleanup[:len(cleanup)-1] // metaCopy was moved
		result.ArchivePath = dst
		if err := os.Remove(path); err != nil {
			p.log.Warn("failed to remove inbox original",
				logger.String("path", path),
				logger.Error(err))
		}
	}

	// sidecar
	notify(opts.OnStage, StageSidecar)
	if p.cfg.SidecarEnabled {
		snapshot := *result
		snapshot.Status = models.StatusCompleted
		snapshot.ProcessingTime = elapsed(result.Timestamp)
		sidecar, err := archive.WriteSidecar(result.ArchivePath, &snapshot)
		if err != nil {
			// a failed sidecar never fails the document
			p.log.Warn("failed to write sidecar",
				logger.String("path", result.ArchivePath),
				logger.Error(err))
		} else {
			result.SidecarPath = sidecar
		}
	}

	return nil
}

func notify(fn func(Stage), s Stage) {
	if fn != nil {
		fn(s)
	}
}

func elapsed(start time.Time) float64 {
	return math.Round(time.Since(start).Seconds()*10) / 10
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}
