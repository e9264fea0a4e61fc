package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthCheckTimeout = 2 * time.Second

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/links", s.handler.CreateLink)
		api.GET("/links", s.handler.ListLinks)
		api.GET("/links/:id", s.handler.GetLink)
		api.PATCH("/links/:id", s.handler.UpdateLink)
		api.DELETE("/links/:id", s.handler.DeleteLink)
		api.PUT("/links/:id/collections", s.handler.SetLinkCollections)

		api.GET("/collections", s.handler.ListCollections)
		api.GET("/collections/:id", s.handler.GetCollection)

		api.GET("/queue/stats", s.handler.QueueStats)
	}

	// The redirect route is registered last and matches any single segment
	// that is not one of the reserved paths above.
	router.GET("/:code", s.handler.Resolve)
}

// handleHealth reports the health of the server and its dependencies.
func (s *Server) handleHealth(c *gin.Context) {
	checkCtx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"database": "ok", "cache": "ok"}

	if err := s.db.PingContext(checkCtx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := s.redis.Ping(checkCtx).Err(); err != nil {
		checks["cache"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"service": s.cfg.Name,
		"version": s.cfg.Version,
		"checks":  checks,
	})
}
