package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/doctagger/doctagger/internal/pipeline"
	"github.com/doctagger/doctagger/internal/service/document"
	"github.com/doctagger/doctagger/pkg/logger"
)

type DocumentHandler struct {
	service *document.Service
	logger  logger.Logger
}

func NewDocumentHandler(service *document.Service, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{service: service, logger: log}
}

// Upload accepts one PDF and schedules it for processing.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "invalid file upload", err)
		return
	}
	defer file.Close()

	resp, err := h.service.ProcessUpload(c.Request.Context(), file, header, optionsFromForm(c))
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "failed to accept upload", err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// BatchUpload accepts several PDFs under the "files" form key.
func (h *DocumentHandler) BatchUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "invalid form data", err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		h.handleError(c, http.StatusBadRequest, "no files provided", nil)
		return
	}

	resp, err := h.service.ProcessBatchUpload(c.Request.Context(), files, optionsFromForm(c))
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "failed to accept batch", err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// Status returns the polling view of one request.
func (h *DocumentHandler) Status(c *gin.Context) {
	resp, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, document.ErrRequestNotFound) {
			h.handleError(c, http.StatusNotFound, "unknown request", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "failed to fetch status", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// BatchStatus returns the aggregated view of an upload batch.
func (h *DocumentHandler) BatchStatus(c *gin.Context) {
	resp, err := h.service.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, document.ErrRequestNotFound) {
			h.handleError(c, http.StatusNotFound, "unknown batch", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "failed to fetch batch", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Documents lists everything in the archive.
func (h *DocumentHandler) Documents(c *gin.Context) {
	items, err := h.service.ListDocuments()
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "failed to list documents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": items, "count": len(items)})
}

func optionsFromForm(c *gin.Context) pipeline.Options {
	return pipeline.Options{
		SkipOCR:        formBool(c, "skip_ocr"),
		SkipArchive:    formBool(c, "skip_archive"),
		ForceReprocess: formBool(c, "force_reprocess"),
		CustomPrompt:   c.PostForm("custom_prompt"),
	}
}

func formBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.PostForm(key))
	return err == nil && v
}

func (h *DocumentHandler) handleError(c *gin.Context, code int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Message = err.Error()
		h.logger.Warn(msg, logger.Error(err))
	}
	c.JSON(code, resp)
}
