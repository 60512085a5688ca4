// Package batch runs the inbox folder through the pipeline as a
// pausable, stoppable batch with live progress reporting.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/doctagger/doctagger/internal/archive"
	"github.com/doctagger/doctagger/internal/models"
	"github.com/doctagger/doctagger/pkg/logger"
)

var (
	ErrAlreadyRunning = errors.New("a batch is already running")
	ErrNotRunning     = errors.New("no batch is running")
	ErrNotPaused      = errors.New("batch is not paused")
	ErrStopping       = errors.New("batch is stopping")
)

// ProcessFunc processes one inbox file and reports its outcome.
type ProcessFunc func(ctx context.Context, path string, force bool) (*models.ProcessingResult, error)

// StartOptions tune one batch run.
type StartOptions struct {
	// ForceReprocess processes files even when a sidecar marks them
	// as already completed.
	ForceReprocess bool
}

// Config tunes the coordinator.
type Config struct {
	InboxDir string
	Parallel int

	// Archive, when set, lets Scan classify files that already live in
	// the archive tree (by name or by content) as processed.
	Archive *archive.Archiver
}

// Coordinator owns the batch lifecycle. At most one run is active at a
// time; Pause, Resume and Stop act on the active run.
type Coordinator struct {
	cfg     Config
	process ProcessFunc
	log     logger.Logger

	// onUpdate receives a progress snapshot after every state change,
	// outside the coordinator lock.
	onUpdate func(models.BatchProgress)

	mu            sync.Mutex
	cond          *sync.Cond
	status        models.BatchStatus
	queue         []models.InboxFile
	current       map[string]struct{}
	progress      models.BatchProgress
	force         bool
	stopRequested bool
	cancel        context.CancelFunc
}

// New creates a Coordinator. parallel <= 0 defaults to 4 workers.
func New(cfg Config, process ProcessFunc, log logger.Logger) *Coordinator {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 4
	}
	c := &Coordinator{
		cfg:     cfg,
		process: process,
		log:     log,
		status:  models.BatchIdle,
		current: make(map[string]struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// OnUpdate installs a progress listener. Must be called before Start.
func (c *Coordinator) OnUpdate(fn func(models.BatchProgress)) {
	c.onUpdate = fn
}

// Scan lists the PDF files currently in the inbox, marking files whose
// sidecar already records a completed run as skippable.
func (c *Coordinator) Scan() ([]models.InboxFile, error) {
	entries, err := os.ReadDir(c.cfg.InboxDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox %s: %w", c.cfg.InboxDir, err)
	}

	files := make([]models.InboxFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(c.cfg.InboxDir, e.Name())
		status := "pending"
		if c.alreadyProcessed(path) {
			status = "processed"
		}
		files = append(files, models.InboxFile{
			Name:     e.Name(),
			Path:     path,
			Size:     info.Size(),
			Modified: info.ModTime(),
			Status:   status,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// alreadyProcessed reports whether a completed sidecar sits next to
// the file, or the archive tree holds a same-name or same-content
// copy.
func (c *Coordinator) alreadyProcessed(path string) bool {
	if prev, err := archive.ReadSidecar(path); err == nil && prev != nil && prev.Status == models.StatusCompleted {
		return true
	}
	if c.cfg.Archive == nil {
		return false
	}
	if c.cfg.Archive.ContainsName(filepath.Base(path)) {
		return true
	}
	hash, err := archive.HashFile(path)
	if err != nil {
		return false
	}
	return c.cfg.Archive.FindByHash(hash) != ""
}

// Start begins processing the current inbox contents. It returns
// immediately; workers run until the queue drains or Stop is called.
func (c *Coordinator) Start(ctx context.Context, opts StartOptions) error {
	files, err := c.Scan()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.status.Active() {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}

	queue := make([]models.InboxFile, 0, len(files))
	skipped := 0
	results := make([]models.BatchFileResult, 0, len(files))
	for _, f := range files {
		if f.Status == "processed" && !opts.ForceReprocess {
			skipped++
			results = append(results, models.BatchFileResult{
				Name:   f.Name,
				Status: string(models.StatusSkipped),
			})
			continue
		}
		queue = append(queue, f)
	}

	runCtx, cancel := context.WithCancel(ctx)
	now := time.Now()
	c.cancel = cancel
	c.force = opts.ForceReprocess
	c.stopRequested = false
	c.queue = queue
	c.current = make(map[string]struct{})
	c.status = models.BatchRunning
	c.progress = models.BatchProgress{
		Status:         models.BatchRunning,
		TotalFiles:     len(files),
		Skipped:        skipped,
		FilesToProcess: queueNames(queue),
		ProcessedFiles: results,
		StartedAt:      &now,
	}
	c.recalcLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)
	c.log.Info("batch started",
		logger.Int("total", len(files)),
		logger.Int("to_process", len(queue)),
		logger.Int("skipped", skipped))

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(runCtx)
		}()
	}

	go func() {
		wg.Wait()
		c.finish(runCtx)
		cancel()
	}()

	return nil
}

// Pause suspends dispatching. In-flight files run to completion.
// Pausing a paused batch is a no-op.
func (c *Coordinator) Pause() error {
	c.mu.Lock()
	switch c.status {
	case models.BatchPaused:
		c.mu.Unlock()
		return nil
	case models.BatchStopping:
		c.mu.Unlock()
		return ErrStopping
	case models.BatchRunning:
	default:
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.status = models.BatchPaused
	c.progress.Status = models.BatchPaused
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)
	c.log.Info("batch paused")
	return nil
}

// Resume continues a paused batch. Resuming a running batch is a
// no-op.
func (c *Coordinator) Resume() error {
	c.mu.Lock()
	switch c.status {
	case models.BatchRunning:
		c.mu.Unlock()
		return nil
	case models.BatchPaused:
	default:
		c.mu.Unlock()
		return ErrNotPaused
	}
	c.status = models.BatchRunning
	c.progress.Status = models.BatchRunning
	snapshot := c.snapshotLocked()
	c.cond.Broadcast()
	c.mu.Unlock()

	c.notify(snapshot)
	c.log.Info("batch resumed")
	return nil
}

// Stop requests cancellation. In-flight files run to completion;
// undispatched files stay in the inbox untouched.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.status.Active() {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.stopRequested = true
	c.status = models.BatchStopping
	c.progress.Status = models.BatchStopping
	snapshot := c.snapshotLocked()
	c.cond.Broadcast()
	c.mu.Unlock()

	c.notify(snapshot)
	c.log.Info("batch stop requested")
	return nil
}

// Progress returns a snapshot of the current or last run.
func (c *Coordinator) Progress() models.BatchProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Status returns the coordinator state.
func (c *Coordinator) Status() models.BatchStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Coordinator) worker(ctx context.Context) {
	c.mu.Lock()
	force := c.force
	c.mu.Unlock()

	for {
		file, ok := c.next(ctx)
		if !ok {
			return
		}

		result, err := c.process(ctx, file.Path, force)
		c.record(file, result, err)
	}
}

// next blocks while paused and pops the next file, or reports that the
// worker should exit.
func (c *Coordinator) next(ctx context.Context) (models.InboxFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if c.stopRequested || ctx.Err() != nil {
			return models.InboxFile{}, false
		}
		if c.status == models.BatchPaused {
			c.cond.Wait()
			continue
		}
		if len(c.queue) == 0 {
			return models.InboxFile{}, false
		}

		file := c.queue[0]
		c.queue = c.queue[1:]
		c.current[file.Name] = struct{}{}
		c.progress.FilesToProcess = queueNames(c.queue)
		c.progress.CurrentFile = file.Name
		return file, true
	}
}

// record is the single mutation point for per-file outcomes.
func (c *Coordinator) record(file models.InboxFile, result *models.ProcessingResult, err error) {
	c.mu.Lock()

	delete(c.current, file.Name)
	c.progress.CurrentFile = ""
	for n := range c.current {
		c.progress.CurrentFile = n
		break
	}

	fr := models.BatchFileResult{Name: file.Name}
	switch {
	case err != nil:
		fr.Status = string(models.StatusFailed)
		fr.Error = err.Error()
		c.progress.Failed++
	case result.Status == models.StatusSkipped:
		fr.Status = string(models.StatusSkipped)
		c.progress.Skipped++
	case result.Status == models.StatusFailed:
		fr.Status = string(models.StatusFailed)
		fr.Error = result.Error
		c.progress.Failed++
	default:
		fr.Status = string(models.StatusCompleted)
		c.progress.Processed++
		if result.Tagging != nil {
			fr.Result = &models.TaggingSummary{
				Title:        result.Tagging.Title,
				DocumentType: result.Tagging.DocumentType,
				Tags:         result.Tagging.Tags,
				ArchivePath:  result.ArchivePath,
			}
		}
	}
	c.progress.ProcessedFiles = append(c.progress.ProcessedFiles, fr)
	c.recalcLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)
}

// finish runs once all workers exit and settles the terminal state.
func (c *Coordinator) finish(ctx context.Context) {
	c.mu.Lock()
	now := time.Now()
	if c.stopRequested || ctx.Err() != nil {
		c.status = models.BatchCancelled
	} else {
		c.status = models.BatchCompleted
	}
	c.progress.Status = c.status
	c.progress.FinishedAt = &now
	c.progress.CurrentFile = ""
	// undispatched files stay listed on a cancelled run
	c.queue = nil
	c.recalcLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)
	c.log.Info("batch finished",
		logger.String("status", string(snapshot.Status)),
		logger.Int("processed", snapshot.Processed),
		logger.Int("failed", snapshot.Failed))
}

func (c *Coordinator) recalcLocked() {
	if c.progress.TotalFiles == 0 {
		c.progress.Percent = 0
		return
	}
	done := c.progress.Processed + c.progress.Skipped + c.progress.Failed
	pct := float64(done) / float64(c.progress.TotalFiles) * 100
	c.progress.Percent = math.Round(pct*10) / 10
}

func (c *Coordinator) snapshotLocked() models.BatchProgress {
	snap := c.progress
	snap.FilesToProcess = append([]string(nil), c.progress.FilesToProcess...)
	snap.ProcessedFiles = append([]models.BatchFileResult(nil), c.progress.ProcessedFiles...)
	return snap
}

func (c *Coordinator) notify(snapshot models.BatchProgress) {
	if c.onUpdate != nil {
		c.onUpdate(snapshot)
	}
}

func queueNames(queue []models.InboxFile) []string {
	names := make([]string, len(queue))
	for i, f := range queue {
		names[i] = f.Name
	}
	return names
}
