package api

import (
	"github.com/johanesalxd/data-clean-room-demo/internal/middleware"
	"github.com/johanesalxd/data-clean-room-demo/internal/services"

	"github.com/gin-gonic/gin"
)

// Handler holds the services shared by all routes
type Handler struct {
	pipeline *services.PipelineService
	hashing  *services.HashingService
	exchange *services.ExchangeService
	locks    *services.LockService
}

// NewHandler creates the API handler
func NewHandler(pipeline *services.PipelineService, hashing *services.HashingService, exchange *services.ExchangeService, locks *services.LockService) *Handler {
	return &Handler{
		pipeline: pipeline,
		hashing:  hashing,
		exchange: exchange,
		locks:    locks,
	}
}

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, h *Handler) {
	// API route group (requires the admin API key)
	api := r.Group("/api")
	api.Use(middleware.APIKeyMiddleware())
	{
		pipeline := api.Group("/pipeline")
		{
			pipeline.POST("/runs", h.StartRun)
			pipeline.GET("/runs", h.ListRuns)
			pipeline.GET("/runs/:id", h.GetRun)
			pipeline.GET("/last-run", h.LastRun)
			pipeline.POST("/hash-emails", h.HashEmails)
			pipeline.POST("/diagnostic", h.Diagnostic)
		}

		exchanges := api.Group("/exchanges")
		{
			exchanges.POST("", h.CreateExchange)
			exchanges.GET("", h.ListExchanges)
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "dcr-simulator",
		})
	})
}
