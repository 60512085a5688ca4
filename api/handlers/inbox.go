package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/doctagger/doctagger/internal/batch"
	"github.com/doctagger/doctagger/internal/service/document"
	"github.com/doctagger/doctagger/pkg/logger"
)

type InboxHandler struct {
	service *document.Service
	logger  logger.Logger
}

func NewInboxHandler(service *document.Service, log logger.Logger) *InboxHandler {
	return &InboxHandler{service: service, logger: log}
}

// Files lists the PDFs waiting in the inbox.
func (h *InboxHandler) Files(c *gin.Context) {
	files, err := h.service.ListInbox()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list inbox", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files, "count": len(files)})
}

// StartBatch begins processing the inbox.
func (h *InboxHandler) StartBatch(c *gin.Context) {
	force, _ := strconv.ParseBool(c.Query("force_reprocess"))
	h.control(c, func() error { return h.service.StartInboxBatch(c.Request.Context(), force) }, "batch started")
}

// PauseBatch suspends the running batch.
func (h *InboxHandler) PauseBatch(c *gin.Context) {
	h.control(c, h.service.PauseInboxBatch, "batch paused")
}

// ResumeBatch continues a paused batch.
func (h *InboxHandler) ResumeBatch(c *gin.Context) {
	h.control(c, h.service.ResumeInboxBatch, "batch resumed")
}

// StopBatch cancels the running batch.
func (h *InboxHandler) StopBatch(c *gin.Context) {
	h.control(c, h.service.StopInboxBatch, "batch stopping")
}

// Progress returns the batch progress snapshot.
func (h *InboxHandler) Progress(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.InboxBatchProgress())
}

// StartWatcher begins folder watching.
func (h *InboxHandler) StartWatcher(c *gin.Context) {
	if err := h.service.StartWatcher(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "failed to start watcher", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "watcher started", "running": true})
}

// StopWatcher halts folder watching.
func (h *InboxHandler) StopWatcher(c *gin.Context) {
	h.service.StopWatcher()
	c.JSON(http.StatusOK, gin.H{"message": "watcher stopped", "running": false})
}

func (h *InboxHandler) control(c *gin.Context, op func() error, okMsg string) {
	if err := op(); err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, batch.ErrAlreadyRunning),
			errors.Is(err, batch.ErrNotRunning),
			errors.Is(err, batch.ErrNotPaused),
			errors.Is(err, batch.ErrStopping):
			code = http.StatusConflict
		}
		c.JSON(code, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": okMsg, "progress": h.service.InboxBatchProgress()})
}
