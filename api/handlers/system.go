package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/doctagger/doctagger/api/ws"
	"github.com/doctagger/doctagger/internal/service/document"
	"github.com/doctagger/doctagger/pkg/logger"
)

type SystemHandler struct {
	service *document.Service
	hub     *ws.Hub
	logger  logger.Logger
}

func NewSystemHandler(service *document.Service, hub *ws.Hub, log logger.Logger) *SystemHandler {
	return &SystemHandler{service: service, hub: hub, logger: log}
}

// Root serves a minimal landing payload.
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "doctagger",
		"version": document.Version,
		"docs":    "/api/status",
	})
}

// Status reports service health and configuration.
func (h *SystemHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.SystemStatus(c.Request.Context()))
}

// WebSocket upgrades the connection for push updates.
func (h *SystemHandler) WebSocket(c *gin.Context) {
	h.hub.Serve(c.Writer, c.Request)
}

type promptRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt" binding:"required"`
}

// ListPrompts returns all prompt overrides.
func (h *SystemHandler) ListPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prompts": h.service.ListPrompts()})
}

// CreatePrompt stores a new prompt override.
func (h *SystemHandler) CreatePrompt(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid prompt", Message: err.Error()})
		return
	}
	p, err := h.service.CreatePrompt(req.Name, req.Prompt)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetPrompt fetches one prompt override.
func (h *SystemHandler) GetPrompt(c *gin.Context) {
	p, err := h.service.GetPrompt(c.Param("id"))
	if err != nil {
		h.promptError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdatePrompt edits a stored prompt.
func (h *SystemHandler) UpdatePrompt(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid prompt", Message: err.Error()})
		return
	}
	p, err := h.service.UpdatePrompt(c.Param("id"), req.Name, req.Prompt)
	if err != nil {
		h.promptError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeletePrompt removes a stored prompt.
func (h *SystemHandler) DeletePrompt(c *gin.Context) {
	if err := h.service.DeletePrompt(c.Param("id")); err != nil {
		h.promptError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "prompt deleted"})
}

func (h *SystemHandler) promptError(c *gin.Context, err error) {
	if errors.Is(err, document.ErrPromptNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown prompt"})
		return
	}
	h.logger.Warn("prompt operation failed", logger.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
