// Package watcher observes the inbox folder and hands newly arrived
// PDFs to a processing callback once their writes have settled.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/doctagger/doctagger/pkg/logger"
)

const (
	// settleDelay is how long a file must stay unchanged before it is
	// considered fully written.
	settleDelay = 2 * time.Second

	settlePoll = 500 * time.Millisecond
)

// Handler receives the path of a settled inbox file.
type Handler func(ctx context.Context, path string)

// Watcher drives fsnotify over the inbox directory.
type Watcher struct {
	dir     string
	handler Handler
	log     logger.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	running  bool
	inflight map[string]struct{}
}

// New creates a watcher for dir. Each settled file is handed to
// handler on its own goroutine; a path is never redelivered while a
// handler for it is still running.
func New(dir string, handler Handler, log logger.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		handler:  handler,
		log:      log,
		inflight: make(map[string]struct{}),
	}
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start begins watching. It is an error to start a running watcher.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	go w.loop(runCtx, fw)
	w.log.Info("watcher started", logger.String("dir", w.dir))
	return nil
}

// Stop halts the watcher. Stopping an idle watcher is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.cancel()
	w.running = false
	w.log.Info("watcher stopped", logger.String("dir", w.dir))
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer fw.Close()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", logger.Error(err))

		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < settleDelay {
					continue
				}
				delete(pending, path)
				if _, err := os.Stat(path); err != nil {
					continue
				}
				if !w.acquire(path) {
					continue
				}
				w.log.Info("inbox file settled", logger.String("path", path))
				go func(p string) {
					defer w.release(p)
					w.handler(ctx, p)
				}(path)
			}
		}
	}
}

// acquire marks a path as being handled; it reports false when a
// handler for it is already running.
func (w *Watcher) acquire(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inflight[path]; busy {
		return false
	}
	w.inflight[path] = struct{}{}
	return true
}

func (w *Watcher) release(path string) {
	w.mu.Lock()
	delete(w.inflight, path)
	w.mu.Unlock()
}
