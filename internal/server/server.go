// Package server exposes the question-answering service over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ragqa/internal/domain"
	"ragqa/internal/service"
)

// QAPort is the server-facing subset of the application core.
type QAPort interface {
	IngestDocuments(paths []string) (string, error)
	AskWithTTL(ctx context.Context, question string, ttl time.Duration) (*domain.Answer, error)
	Stats() service.Stats
}

// CacheHealth reports the cache backend state for the health endpoint.
type CacheHealth interface {
	State() string
}

// Server wires the HTTP handlers.
type Server struct {
	echo    *echo.Echo
	svc     QAPort
	cache   CacheHealth // nil when caching is disabled
	logger  *slog.Logger
	started time.Time
}

// New builds the HTTP server around the service. cache may be nil.
func New(svc QAPort, cache CacheHealth, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, svc: svc, cache: cache, logger: logger, started: time.Now()}

	e.GET("/healthz", s.handleHealth)
	api := e.Group("/api/v1")
	api.POST("/query", s.handleQuery)
	api.POST("/ingest", s.handleIngest)
	api.GET("/stats", s.handleStats)
	return s
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler { return s.echo }

type queryRequest struct {
	Question string `json:"question"`
	// TTLSeconds optionally overrides the cache TTL for this answer.
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

type ingestRequest struct {
	Paths []string `json:"paths"`
}

type ingestResponse struct {
	Summary string `json:"summary"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	ans, err := s.svc.AskWithTTL(c.Request().Context(), question, ttl)
	if err != nil {
		// The answer already carries the error status; the client contract
		// is a normal body either way.
		return c.JSON(http.StatusInternalServerError, ans)
	}
	return c.JSON(http.StatusOK, ans)
}

func (s *Server) handleIngest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Paths) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "paths are required")
	}
	summary, err := s.svc.IngestDocuments(req.Paths)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ingestResponse{Status: domain.StatusError, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, ingestResponse{Summary: summary, Status: domain.StatusSuccess})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.svc.Stats())
}

func (s *Server) handleHealth(c echo.Context) error {
	cacheState := "disabled"
	if s.cache != nil {
		cacheState = s.cache.State()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"cache_backend":  cacheState,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}
