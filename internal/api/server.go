// Package api exposes the matching engine over HTTP: a REST surface for
// matching runs, trial catalog management and clinician feedback, plus a
// WebSocket endpoint that streams per-trial results as they are ranked.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
	"github.com/trial-match-server/internal/feedback"
	"github.com/trial-match-server/internal/ingest"
	"github.com/trial-match-server/internal/service"
	"github.com/trial-match-server/pkg/oracle"
)

// Catalog supplies the trial set for matching runs.
type Catalog interface {
	Snapshot(ctx context.Context) ([]domain.TrialDefinition, error)
	Invalidate()
}

// TrialStore manages individual catalog entries.
type TrialStore interface {
	Upsert(ctx context.Context, trial *domain.TrialDefinition) error
	GetByID(ctx context.Context, id string) (*domain.TrialDefinition, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// HealthChecker reports backing-store liveness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server represents the HTTP server.
type Server struct {
	config     *domain.Config
	matcher    *service.Matcher
	catalog    Catalog
	trials     TrialStore
	feedback   feedback.Store
	health     HealthChecker
	capability oracle.Capability
	importer   *ingest.CriteriaParser
	logger     *logrus.Logger

	router *gin.Engine
	server *http.Server
}

// Deps carries the server's collaborators. Feedback, health and trials
// may be nil; the corresponding endpoints then report unavailability.
type Deps struct {
	Config     *domain.Config
	Matcher    *service.Matcher
	Catalog    Catalog
	Trials     TrialStore
	Feedback   feedback.Store
	Health     HealthChecker
	Capability oracle.Capability
	Importer   *ingest.CriteriaParser
	Logger     *logrus.Logger
}

// NewServer creates a new HTTP server instance.
func NewServer(deps Deps) *Server {
	if deps.Config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	s := &Server{
		config:     deps.Config,
		matcher:    deps.Matcher,
		catalog:    deps.Catalog,
		trials:     deps.Trials,
		feedback:   deps.Feedback,
		health:     deps.Health,
		capability: deps.Capability,
		importer:   deps.Importer,
		logger:     deps.Logger,
		router:     router,
	}

	s.setupRoutes()
	return s
}

// Router exposes the gin engine for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
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
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/match", s.handleMatch)
		v1.GET("/match/stream", s.handleMatchStream)

		v1.GET("/trials", s.handleListTrials)
		v1.POST("/trials/import", s.handleImportTrials)
		v1.GET("/trials/:id", s.handleGetTrial)
		v1.PUT("/trials/:id", s.handleUpsertTrial)
		v1.DELETE("/trials/:id", s.handleDeleteTrial)

		v1.POST("/feedback", s.handleSaveFeedback)
		v1.GET("/feedback", s.handleListFeedback)
	}
}

// corsMiddleware adds CORS headers to responses.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString("request_id")
}
