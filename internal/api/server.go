package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/metrics"
	"github.com/biomarker-assessment-engine/internal/middleware"
	"github.com/biomarker-assessment-engine/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Dependencies are the collaborators the HTTP layer needs. Audit and Metrics
// are optional.
type Dependencies struct {
	Service  *service.AssessmentService
	Sessions domain.SessionStore
	Audit    domain.AuditStore
	Metrics  *metrics.Recorder
	Logger   *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	cfg      domain.Config
	service  *service.AssessmentService
	sessions domain.SessionStore
	audit    domain.AuditStore
	metrics  *metrics.Recorder
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg domain.Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}

	switch cfg.Server.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RouteTemplate())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	if deps.Metrics != nil {
		router.Use(requestMetrics(deps.Metrics))
	}

	s := &Server{
		cfg:      cfg,
		service:  deps.Service,
		sessions: deps.Sessions,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		router:   router,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
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
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	if s.cfg.RateLimit.Enabled {
		limiter := middleware.NewClientRateLimiter(s.cfg.RateLimit.RequestsPerSecond, s.cfg.RateLimit.Burst)
		v1.Use(middleware.RateLimit(limiter))
	}
	{
		v1.GET("/biomarkers", s.handleCatalog)
		v1.POST("/extract", s.handleExtract)
		v1.POST("/validate", s.handleValidate)
		v1.POST("/screen", s.handleScreen)
		v1.POST("/assess", s.handleAssess)

		sessions := v1.Group("/sessions")
		sessions.POST("", s.handleCreateSession)
		sessions.GET("/:id", s.handleGetSession)
		sessions.PATCH("/:id/corrections", s.handleCorrectSession)
		sessions.POST("/:id/assess", s.handleAssessSession)
		sessions.DELETE("/:id", s.handleDeleteSession)

		if s.audit != nil {
			v1.GET("/audit/summary", s.handleAuditSummary)
		}
	}
}

// breakerReporter is implemented by session stores guarded by a circuit breaker.
type breakerReporter interface {
	BreakerState() gobreaker.State
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":            "healthy",
		"timestamp":         time.Now().UTC(),
		"version":           Version,
		"reference_version": s.service.Tables().Version,
	}
	status := http.StatusOK
	if br, ok := s.sessions.(breakerReporter); ok {
		state := br.BreakerState()
		body["session_store"] = state.String()
		if state == gobreaker.StateOpen {
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, body)
}

func requestMetrics(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		recorder.ObserveRequest(c.GetString("route"), strconv.Itoa(c.Writer.Status()))
	}
}
