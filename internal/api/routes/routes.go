// Package routes defines the HTTP routes for the docstore service.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/unifiedui/docstore/internal/api/handlers"
	"github.com/unifiedui/docstore/internal/api/middleware"
)

// BasePath prefixes every API route.
const BasePath = "/api/v1/docstore"

// Config holds the dependencies for setting up routes.
type Config struct {
	HealthHandler    *handlers.HealthHandler
	DocumentsHandler *handlers.DocumentsHandler
}

// Setup configures all routes on the Gin engine.
func Setup(r *gin.Engine, cfg *Config) {
	v1 := r.Group(BasePath)
	{
		v1.GET("/health", cfg.HealthHandler.Health)
		v1.GET("/ready", cfg.HealthHandler.Ready)
		v1.GET("/live", cfg.HealthHandler.Live)

		v1.POST("/connection", cfg.DocumentsHandler.Connect)
		v1.DELETE("/connection", cfg.DocumentsHandler.Disconnect)

		docs := v1.Group("/documents")
		{
			docs.GET("", cfg.DocumentsHandler.List)
			docs.POST("", cfg.DocumentsHandler.Create)
			docs.POST("/search", cfg.DocumentsHandler.Search)
			docs.POST("/find-one", cfg.DocumentsHandler.FindOne)

			// Selector based single-document mutations.
			docs.PUT("", cfg.DocumentsHandler.ReplaceBy)
			docs.PATCH("", cfg.DocumentsHandler.PatchBy)
			docs.DELETE("", cfg.DocumentsHandler.DeleteBy)

			docs.GET("/:id", cfg.DocumentsHandler.Get)
			docs.PUT("/:id", cfg.DocumentsHandler.Replace)
			docs.PATCH("/:id", cfg.DocumentsHandler.Patch)
			docs.DELETE("/:id", cfg.DocumentsHandler.Delete)
		}
	}

	r.NoRoute(middleware.NotFound())
	r.NoMethod(middleware.MethodNotAllowed())
}

// SetupWithMiddleware sets up routes with common middleware.
func SetupWithMiddleware(r *gin.Engine, cfg *Config, loggingMw *middleware.LoggingMiddleware, errorMw *middleware.ErrorMiddleware, cors middleware.CORSConfig) {
	r.Use(loggingMw.Logger())
	r.Use(loggingMw.RequestLogger())
	r.Use(errorMw.Recovery())
	r.Use(middleware.NewCORSMiddleware(cors))

	Setup(r, cfg)
}
