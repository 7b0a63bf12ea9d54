package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-ingest/api/handlers"
	"github.com/feichai0017/document-ingest/api/middleware"
	"github.com/feichai0017/document-ingest/pkg/logger"
)

// Options tune the HTTP surface. The zero value disables both features.
type Options struct {
	// UploadIdleTimeout bounds each read of an upload body. It needs
	// middleware.ConnContext on the http.Server.
	UploadIdleTimeout time.Duration
	// InFlight, when set, tracks every request so shutdown can wait for
	// failure cleanup.
	InFlight *middleware.InFlight
}

// SetupRoutes registers middleware and every route.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, log logger.Logger, opts Options) {
	if opts.InFlight != nil {
		r.Use(opts.InFlight.Middleware())
	}
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(log))
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())

	r.GET("/health", handlers.HealthCheck)

	v1 := r.Group("/api/v1")

	docs := v1.Group("/documents")
	{
		docs.POST("/upload", middleware.ReadIdleTimeout(opts.UploadIdleTimeout), h.Document.Upload)
		docs.GET("/:id", h.Document.GetDocument)
		docs.GET("/:id/job", h.Document.GetJobStatus)
	}
}
