// Package api exposes the spot store, nearest search and tile partitioning
// over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cyrcle/cyrcle-geo/internal/logging"
	"github.com/cyrcle/cyrcle-geo/internal/spotstore"
	"github.com/cyrcle/cyrcle-geo/pkg/nearest"
	"github.com/gin-gonic/gin"
)

// Handler serves the HTTP endpoints
type Handler struct {
	store    spotstore.Store
	searcher *nearest.Searcher
	logger   *slog.Logger
}

// NewHandler creates a handler
func NewHandler(store spotstore.Store, searcher *nearest.Searcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{store: store, searcher: searcher, logger: logger}
}

// Setup registers all routes on engine
func (h *Handler) Setup(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	spots := engine.Group("/spots")
	{
		spots.GET("/nearest", h.Nearest)
		spots.GET("/:id", h.GetSpot)
		spots.POST("", h.CreateSpot)
		spots.DELETE("/:id", h.DeleteSpot)
	}

	tiles := engine.Group("/tiles")
	{
		tiles.GET("", h.TilesForRectangle)
		tiles.GET("/circle", h.TilesForCircle)
	}
}

// NewEngine returns a gin engine with recovery, request logging and all routes
func NewEngine(h *Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), h.requestLogger())
	h.Setup(engine)
	return engine
}

// NewServer wraps the engine in an http.Server listening on addr
func NewServer(addr string, h *Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewEngine(h),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
