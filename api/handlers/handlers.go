package handlers

import (
	"github.com/doctagger/doctagger/api/ws"
	"github.com/doctagger/doctagger/internal/service/document"
	"github.com/doctagger/doctagger/pkg/logger"
)

type Handlers struct {
	Document *DocumentHandler
	Inbox    *InboxHandler
	System   *SystemHandler
}

func NewHandlers(svc *document.Service, hub *ws.Hub, log logger.Logger) *Handlers {
	return &Handlers{
		Document: NewDocumentHandler(svc, log),
		Inbox:    NewInboxHandler(svc, log),
		System:   NewSystemHandler(svc, hub, log),
	}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
