// Package httpapi exposes the ingestion pipeline over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/harvestd/internal/docstore"
	"github.com/fyrsmithlabs/harvestd/internal/logging"
	"github.com/fyrsmithlabs/harvestd/internal/pipeline"
	"github.com/fyrsmithlabs/harvestd/internal/tenant"
)

// Ingestor runs one ingestion request. Implemented by *pipeline.Service.
type Ingestor interface {
	Ingest(ctx context.Context, id tenant.ID, url string) *pipeline.Result
}

// Server provides the harvestd HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	ingestor Ingestor
	docs     docstore.Store
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(ingestor Ingestor, docs docstore.Store, logger *logging.Logger, cfg *Config) (*Server, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor cannot be nil")
	}
	if docs == nil {
		return nil, fmt.Errorf("document store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			duration := time.Since(start)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		ingestor: ingestor,
		docs:     docs,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.echo.Group("/v1")
	v1.POST("/tenants/:tenant_id/scrape", s.handleScrape)
	v1.GET("/tenants/:tenant_id/content", s.handleContent)
}

// ScrapeRequest is the request body for POST /v1/tenants/:tenant_id/scrape.
type ScrapeRequest struct {
	URL string `json:"url"`
}

// ContentResponse is the response body for GET /v1/tenants/:tenant_id/content.
type ContentResponse struct {
	Records []docstore.EnrichedRecord `json:"records"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleScrape runs the full ingestion pipeline for one URL and returns the
// uniform pipeline result. Ingestion is synchronous: the response reports the
// final state of both stores.
func (s *Server) handleScrape(c echo.Context) error {
	id, err := tenant.Parse(c.Param("tenant_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var req ScrapeRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid scrape request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validateTargetURL(req.URL); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result := s.ingestor.Ingest(c.Request().Context(), id, req.URL)
	return c.JSON(statusFor(result), result)
}

// statusFor maps a pipeline result to an HTTP status. A fetch failure is the
// caller's problem (unreachable URL); model and storage failures are ours.
// The body always carries the full result, so a 500 with storage_success=true
// still tells the caller the raw document was persisted.
func statusFor(result *pipeline.Result) int {
	switch result.FailedStage {
	case pipeline.StageFetch:
		return http.StatusBadRequest
	case pipeline.StageModel, pipeline.StageDocumentStore, pipeline.StageVectorStore:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// handleContent returns the stored records for a URL under one tenant.
func (s *Server) handleContent(c echo.Context) error {
	id, err := tenant.Parse(c.Param("tenant_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	target := c.QueryParam("url")
	if err := validateTargetURL(target); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := tenant.WithID(c.Request().Context(), id)
	records, err := s.docs.FindByURL(ctx, id, target)
	if err != nil {
		s.logger.Error(ctx, "content lookup failed",
			zap.String("url", target),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "content lookup failed")
	}
	if records == nil {
		records = []docstore.EnrichedRecord{}
	}

	return c.JSON(http.StatusOK, ContentResponse{Records: records})
}

// validateTargetURL accepts only absolute http(s) URLs.
func validateTargetURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url field is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("url must be absolute")
	}
	return nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
