// Package api exposes the HTTP surface: the public redirect endpoint and
// the management API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/linkguard/internal/config"
	"github.com/jonesrussell/linkguard/internal/logger"
)

// Server wires the HTTP router and its handlers.
type Server struct {
	cfg        config.ServiceConfig
	log        logger.Logger
	handler    *Handler
	db         *sqlx.DB
	redis      *redis.Client
	httpServer *http.Server
}

// NewServer creates the HTTP server.
func NewServer(
	cfg config.ServiceConfig,
	handler *Handler,
	db *sqlx.DB,
	redisClient *redis.Client,
	log logger.Logger,
) *Server {
	return &Server{
		cfg:     cfg,
		log:     log,
		handler: handler,
		db:      db,
		redis:   redisClient,
	}
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes(router)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("HTTP server listening", logger.Int("port", s.cfg.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs each request with its status and latency.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.Debug("Request handled",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		)
	}
}
