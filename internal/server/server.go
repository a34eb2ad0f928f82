// Package server provides the HTTP API for knowd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/completion"
	"github.com/fyrsmithlabs/knowd/internal/config"
	"github.com/fyrsmithlabs/knowd/internal/ingest"
	"github.com/fyrsmithlabs/knowd/internal/retrieval"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

// Server exposes knowledge-base and chat endpoints.
type Server struct {
	echo        *echo.Echo
	store       vectorstore.Store
	pipeline    *ingest.Pipeline
	engine      *retrieval.Engine
	completions completion.Provider
	rag         config.RAGConfig
	logger      *zap.Logger
	config      *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(store vectorstore.Store, pipeline *ingest.Pipeline, engine *retrieval.Engine, completions completion.Provider, rag config.RAGConfig, logger *zap.Logger, cfg *Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("ingest pipeline cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("retrieval engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Port: 8000}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:        e,
		store:       store,
		pipeline:    pipeline,
		engine:      engine,
		completions: completions,
		rag:         rag,
		logger:      logger,
		config:      cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/health", s.handleHealth)

	// Streaming chat
	s.echo.POST("/api/chat", s.handleChat)

	// Knowledge base
	knowledge := s.echo.Group("/api/v1/knowledge")
	knowledge.POST("/upload", s.handleUpload)
	knowledge.POST("/search", s.handleSearch)
	knowledge.POST("/generate-context", s.handleGenerateContext)
	knowledge.GET("/files", s.handleListFiles)
	knowledge.DELETE("/files/:filename", s.handleDeleteFile)
	knowledge.POST("/files/:filename/overwrite", s.handleOverwriteFile)
	knowledge.GET("/stats", s.handleStats)

	// Retrieval diagnostics
	knowledge.POST("/debug", s.handleDebug)
	knowledge.POST("/debug-comprehensive", s.handleDebugComprehensive)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
