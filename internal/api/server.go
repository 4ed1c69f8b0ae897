package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pgx-consensus-server/internal/domain"
	"github.com/pgx-consensus-server/internal/middleware"
	"github.com/pgx-consensus-server/internal/service"
)

// Server exposes the normalization engine over HTTP.
type Server struct {
	configManager domain.ConfigManager
	engine        *service.EngineService
	repository    domain.ConsensusRepository
	versions      domain.ReferenceVersions
	router        *gin.Engine
	server        *http.Server
	logger        *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(
	configManager domain.ConfigManager,
	engine *service.EngineService,
	repository domain.ConsensusRepository,
	versions domain.ReferenceVersions,
	logger *logrus.Logger,
) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))

	server := &Server{
		configManager: configManager,
		engine:        engine,
		repository:    repository,
		versions:      versions,
		router:        router,
		logger:        logger,
	}

	server.setupRoutes(cfg.Server)

	return server
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(cfg domain.ServerConfig) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/normalize", middleware.RateLimit(cfg.RateLimit, cfg.RateBurst), s.handleNormalize)
		v1.GET("/normalize/stream", s.handleNormalizeStream)
		v1.GET("/consensus", s.handleListConsensus)
		v1.GET("/consensus/:sample_id/:gene", s.handleGetConsensus)
		v1.GET("/reference/versions", s.handleReferenceVersions)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"timestamp":      time.Now().UTC(),
		"table_versions": s.versions,
	})
}
