package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctagger/doctagger/internal/archive"
	"github.com/doctagger/doctagger/internal/models"
	"github.com/doctagger/doctagger/pkg/logger"
)

func writeInbox(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("pdf "+n), 0o644))
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func okProcess(ctx context.Context, path string, force bool) (*models.ProcessingResult, error) {
	return &models.ProcessingResult{
		Status:       models.StatusCompleted,
		OriginalPath: path,
		Tagging:      &models.TaggingResult{Title: filepath.Base(path), DocumentType: "other"},
	}, nil
}

func TestBatchCompletesAllFiles(t *testing.T) {
	dir := t.TempDir()
	writeInbox(t, dir, "a.pdf", "b.pdf", "c.pdf")

	c := New(Config{InboxDir: dir, Parallel: 2}, okProcess, logger.NewTestLogger())
	require.NoError(t, c.Start(context.Background(), StartOptions{}))

	waitFor(t, 5*time.Second, func() bool { return !c.Status().Active() })

	p := c.Progress()
	assert.Equal(t, models.BatchCompleted, p.Status)
	assert.Equal(t, 3, p.TotalFiles)
	assert.Equal(t, 3, p.Processed)
	assert.Equal(t, 0, p.Failed)
	assert.Equal(t, 100.0, p.Percent)
	assert.Empty(t, p.FilesToProcess)
	assert.Empty(t, p.CurrentFile)
	assert.NotNil(t, p.StartedAt)
	assert.NotNil(t, p.FinishedAt)
	assert.Len(t, p.ProcessedFiles, 3)
}

func TestBatchEmptyInboxReportsZeroPercent(t *testing.T) {
	dir := t.TempDir()

	c := New(Config{InboxDir: dir}, okProcess, logger.NewTestLogger())
	require.NoError(t, c.Start(context.Background(), StartOptions{}))

	waitFor(t, 5*time.Second, func() bool { return !c.Status().Active() })

	p := c.Progress()
	assert.Equal(t, models.BatchCompleted, p.Status)
	assert.Equal(t, 0, p.TotalFiles)
	assert.Equal(t, 0.0, p.Percent)
}

func TestBatchQueueShrinksOnDispatch(t *testing.T) {
	dir := t.TempDir()
	writeInbox(t, dir, "a.pdf", "b.pdf", "c.pdf")

	release := make(chan struct{})
	var started atomic.Int32
	c := New(Config{InboxDir: dir, Parallel: 1}, func(ctx context.Context, path string, force bool) (*models.ProcessingResult, error) {
		started.Add(1)
		<-release
		return okProcess(ctx, path, force)
	}, logger.NewTestLogger())

	require.NoError(t, c.Start(context.Background(), StartOptions{}))
	waitFor(t, 5*time.Second, func() bool { return started.Load() == 1 })

	// the dispatched file left the queue while still in flight
	p := c.Progress()
	assert.Equal(t, []string{"b.pdf", "c.pdf"}, p.FilesToProcess)
	assert.Equal(t, "a.pdf", p.CurrentFile)
	assert.Empty(t, p.ProcessedFiles)

	close(release)
	waitFor(t, 5*time.Second, func() bool { return !c.Status().Active() })
	assert.Empty(t, c.Progress().FilesToProcess)
}

func TestBatchSkipsFilesWithCompletedSidecar(t *testing.T) {
	dir := t.TempDir()
	writeInbox(t, dir, "done.pdf", "new.pdf")

	_, err := archive.WriteSidecar(filepath.Join(dir, "done.pdf"), &models.ProcessingResult{
		Status: models.StatusCompleted,
	})
	require.NoError(t, err)

	var processed atomic.Int32
	c := New(Config{InboxDir: dir}, func(ctx context.Context, path string, force bool) (*models.ProcessingResult, error) {
		processed.Add(1)
		return okProcess(ctx, path, force)
	}, logger.NewTestLogger())
	require.NoError(t, c.Start(context.Background(), StartOptions{}))

	waitFor(t, 5*time.Second, func() bool { return !c.Status().Active() })

	p := c.Progress()
	assert.Equal(t, 2, p.TotalFiles)
	assert.Equal(t, 1, p.Skipped)
	assert.Equal(t, 1, p.Processed)
	assert.Equal(t, int32(1), processed.Load())
}

func TestScanMarksArchivedFilesProcessed(t *testing.T) {
	dir := t.TempDir()
	root := t.TempDir()
	writeInbox(t, dir, "dup-name.pdf", "dup-content.pdf", "fresh.pdf")

	// same base name in the archive tree
	sub := filepath.Join(root, "2024", "05", "other")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "dup-name.pdf"), []byte("different bytes"), 0o644))

	// same content under a different name
	require.NoError(t, os.WriteFile(filepath.Join(sub, "renamed.pdf"), []byte("pdf dup-content.pdf"), 0o644))

	c := New(Config{InboxDir: dir, Archive: archive.New(root, "")}, okProcess, logger.NewTestLogger())
	files, err := c.Scan()
	require.NoError(t, err)
	require.Len(t, files, 3)

	byName := map[string]string{}
	for _, f := range files {
		byName[f.Name] = f.Status
	}
	assert.Equal(t, "processed", byName["dup-name.pdf"])
	assert.Equal(t, "processed", byName["dup-content.pdf"])
	assert.Equal(t, "pending", byName["fresh.pdf"])
}

func TestBatchForceReprocessIgnoresSidecars(t *testing.T) {
	dir := t.TempDir()
	writeInbox(t, dir, "done.pdf")

	_, err := archive.WriteSidecar(filepath.Join(dir, "done.pdf"), &models.ProcessingResult{
		Status: models.StatusCompleted,
	})
	require.NoError(t, err)

	var processed atomic.Int32
	var sawForce atomic.Bool
	c := New(Config{InboxDir: dir}, func(ctx context.Context, path string, force bool) (*models.ProcessingResult, error) {
		processed.Add(1)
		sawForce.Store(force)
		return okProcess(ctx, path, force)
	}, logger.NewTestLogger())
	require.NoError(t, c.Start(context.Background(), StartOptions{ForceReprocess: true}))

	waitFor(t, 5*time.Second, func() bool { return !c.Status().Active() })

	p := c.Progress()
	assert.Equal(t, 0, p.Skipped)
	assert.Equal(t, 1, p.Processed)
	assert.Equal(t, int32(1), processed.Load())
	assert.True(t, sawForce.Load())
}

func TestBatchPauseAndResume(t *testing.T) {
	dir := t.TempDir()
	writeInbox(t, dir, "a.pdf", "b.pdf", "c.pdf")

	release := make(chan struct{})
	var started atomic.Int32
	c := New(Config{InboxDir: dir, Parallel: 1}, func(ctx context.Context, path string, force bool) (*models.ProcessingResult, error) {
		started.Add(1)
		<-release
		return okProcess(ctx, path, force)
	}, logger.NewTestLogger())

	require.NoError(t, c.Start(context.Background(), StartOptions{}))
	waitFor(t, 5*time.Second, func() bool { return started.Load() == 1 })

	require.NoError(t, c.Pause())
	assert.Equal(t, models.BatchPaused, c.Status())

	// in-flight file finishes, but nothing new is dispatched
	release <- struct{}{}
	waitFor(t, 5*time.Second, func() bool { return len(c.Progress().ProcessedFiles) == 1 })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), started.Load())

	require.NoError(t, c.Resume())
	release <- struct{}{}
	release <- struct{}{}
	waitFor(t, 5*time.Second, func() bool { return !c.Status().Active() })

	p := c.Progress()
	assert.Equal(t, models.BatchCompleted, p.Status)
	assert.Equal(t, 3, p.Processed)
	assert.Equal(t, int32(3), started.Load())
}

func TestBatchPauseResumeIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeInbox(t, dir, "a.pdf")

	release := make(chan struct{})
	c := New(Config{InboxDir: dir, Parallel: 1}, func(ctx context.Context, path string, force bool) (*models.ProcessingResult, error) {
		<-release
		return okProcess(ctx, path, force)
	}, logger.NewTestLogger())

	require.NoError(t, c.Start(context.Background(), StartOptions{}))

	// resuming a running batch changes nothing
	require.NoError(t, c.Resume())
	assert.Equal(t, models.BatchRunning, c.Status())

	require.NoError(t, c.Pause())
	require.NoError(t, c.Pause())
	assert.Equal(t, models.BatchPaused, c.Status())

	require.NoError(t, c.Resume())
	close(release)
	waitFor(t, 5*time.Second, func() bool { return !c.Status().Active() })
}

func TestBatchStopLeavesUndispatchedFiles(t *testing.T) {
	dir := t.TempDir()
	writeInbox(t, dir, "a.pdf", "b.pdf", "c.pdf")

	release := make(chan struct{})
	var started atomic.Int32
	c := New(Config{InboxDir: dir, Parallel: 1}, func(ctx context.Context, path string, force bool) (*models.ProcessingResult, error) {
		started.Add(1)
		<-release
		return okProcess(ctx, path, force)
	}, logger.NewTestLogger())

	require.NoError(t, c.Start(context.Background(), StartOptions{}))
	waitFor(t, 5*time.Second, func() bool { return started.Load() == 1 })

	require.NoError(t, c.Stop())
	assert.Equal(t, models.BatchStopping, c.Status())

	release <- struct{}{}
	waitFor(t, 5*time.Second, func() bool { return !c.Status().Active() })

	p := c.Progress()
	assert.Equal(t, models.BatchCancelled, p.Status)
	assert.Len(t, p.ProcessedFiles, 1)
	assert.Equal(t, int32(1), started.Load())

	// undispatched files stay listed and stay in the inbox
	assert.Equal(t, []string{"b.pdf", "c.pdf"}, p.FilesToProcess)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestBatchControlViolations(t *testing.T) {
	dir := t.TempDir()
	c := New(Config{InboxDir: dir}, okProcess, logger.NewTestLogger())

	assert.ErrorIs(t, c.Pause(), ErrNotRunning)
	assert.ErrorIs(t, c.Resume(), ErrNotPaused)
	assert.ErrorIs(t, c.Stop(), ErrNotRunning)
}

func TestBatchStartWhileRunning(t *testing.T) {
	dir := t.TempDir()
	writeInbox(t, dir, "a.pdf")

	release := make(chan struct{})
	c := New(Config{InboxDir: dir, Parallel: 1}, func(ctx context.Context, path string, force bool) (*models.ProcessingResult, error) {
		<-release
		return okProcess(ctx, path, force)
	}, logger.NewTestLogger())

	require.NoError(t, c.Start(context.Background(), StartOptions{}))
	assert.ErrorIs(t, c.Start(context.Background(), StartOptions{}), ErrAlreadyRunning)

	close(release)
	waitFor(t, 5*time.Second, func() bool { return !c.Status().Active() })
}

func TestBatchFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	writeInbox(t, dir, "bad.pdf", "good.pdf")

	c := New(Config{InboxDir: dir, Parallel: 1}, func(ctx context.Context, path string, force bool) (*models.ProcessingResult, error) {
		if filepath.Base(path) == "bad.pdf" {
			return nil, fmt.Errorf("corrupt document")
		}
		return okProcess(ctx, path, force)
	}, logger.NewTestLogger())

	require.NoError(t, c.Start(context.Background(), StartOptions{}))
	waitFor(t, 5*time.Second, func() bool { return !c.Status().Active() })

	p := c.Progress()
	assert.Equal(t, models.BatchCompleted, p.Status)
	assert.Equal(t, 1, p.Failed)
	assert.Equal(t, 1, p.Processed)

	var badResult *models.BatchFileResult
	for i := range p.ProcessedFiles {
		if p.ProcessedFiles[i].Name == "bad.pdf" {
			badResult = &p.ProcessedFiles[i]
		}
	}
	require.NotNil(t, badResult)
	assert.Equal(t, string(models.StatusFailed), badResult.Status)
	assert.Contains(t, badResult.Error, "corrupt document")
}

func TestBatchCountsStayConsistent(t *testing.T) {
	dir := t.TempDir()
	writeInbox(t, dir, "a.pdf", "b.pdf", "c.pdf", "d.pdf")

	c := New(Config{InboxDir: dir, Parallel: 4}, okProcess, logger.NewTestLogger())

	var inconsistent atomic.Bool
	c.OnUpdate(func(p models.BatchProgress) {
		done := p.Processed + p.Skipped + p.Failed
		if done != len(p.ProcessedFiles) {
			inconsistent.Store(true)
		}
		if done > p.TotalFiles {
			inconsistent.Store(true)
		}
	})

	require.NoError(t, c.Start(context.Background(), StartOptions{}))
	waitFor(t, 5*time.Second, func() bool { return !c.Status().Active() })

	assert.False(t, inconsistent.Load(), "progress counters diverged during the run")
}

func TestScanListsOnlyPDFs(t *testing.T) {
	dir := t.TempDir()
	writeInbox(t, dir, "a.pdf", "B.PDF")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	c := New(Config{InboxDir: dir}, okProcess, logger.NewTestLogger())
	files, err := c.Scan()
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "B.PDF", files[0].Name)
	assert.Equal(t, "a.pdf", files[1].Name)
}
