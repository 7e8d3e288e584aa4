package router

import (
	"github.com/gin-gonic/gin"

	"taskbridge.app/bridge/internal/http/handler"
)

// SetupRoutes wires the ops surface. Everything here is control plane; the
// actual workflow traffic flows through the change feed, not HTTP.
func SetupRoutes(router *gin.Engine, monitors *handler.MonitorHandler, outcomes *handler.OutcomeHandler, populate *handler.PopulateHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		m := v1.Group("/monitors")
		{
			m.GET("", monitors.List)
			m.GET("/:project_id", monitors.Get)
			m.POST("", monitors.Start)
			m.DELETE("/:project_id", monitors.Stop)
		}

		projects := v1.Group("/projects")
		{
			projects.GET("/:project_id/outcomes", outcomes.ListByProject)
			if populate != nil {
				projects.POST("/:project_id/populate", populate.Populate)
			}
		}
	}
}
