package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doctagger/doctagger/api/handlers"
	"github.com/doctagger/doctagger/api/middleware"
)

// SetupRoutes wires every endpoint onto the engine.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, corsOrigins []string) {
	r.Use(middleware.CORS(corsOrigins))
	r.Use(middleware.Metrics())

	r.GET("/", h.System.Root)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/status", h.System.Status)
		api.GET("/ws", h.System.WebSocket)

		api.POST("/upload", h.Document.Upload)
		api.GET("/process/:id", h.Document.Status)
		api.GET("/documents", h.Document.Documents)

		batch := api.Group("/batch")
		{
			batch.POST("/upload", h.Document.BatchUpload)
			batch.GET("/:id", h.Document.BatchStatus)
		}

		inbox := api.Group("/inbox")
		{
			inbox.GET("/files", h.Inbox.Files)
			inbox.GET("/batch/progress", h.Inbox.Progress)
			inbox.POST("/batch/start", h.Inbox.StartBatch)
			inbox.POST("/batch/pause", h.Inbox.PauseBatch)
			inbox.POST("/batch/resume", h.Inbox.ResumeBatch)
			inbox.POST("/batch/stop", h.Inbox.StopBatch)
		}

		watcher := api.Group("/watcher")
		{
			watcher.POST("/start", h.Inbox.StartWatcher)
			watcher.POST("/stop", h.Inbox.StopWatcher)
		}

		prompts := api.Group("/prompts")
		{
			prompts.GET("", h.System.ListPrompts)
			prompts.POST("", h.System.CreatePrompt)
			prompts.GET("/:id", h.System.GetPrompt)
			prompts.PUT("/:id", h.System.UpdatePrompt)
			prompts.DELETE("/:id", h.System.DeletePrompt)
		}
	}
}
