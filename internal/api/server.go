package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/tabd/annotate/internal/annotation"
	"github.com/tabd/annotate/internal/config"
	"github.com/tabd/annotate/internal/provenance"
	"github.com/tabd/annotate/internal/resolver"
)

// maxPageBytes bounds uploaded page HTML.
const maxPageBytes = "16M"

// ResolverFunc builds a change log resolver for one diff.
type ResolverFunc func(id provenance.DiffIdentity) *resolver.Resolver

// defaultAllowOrigins are the browser origins allowed when none are configured.
var defaultAllowOrigins = []string{"https://github.com"}

// Option configures a Server.
type Option func(*Server)

// WithAllowOrigins sets the CORS origins. Empty keeps the default.
func WithAllowOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowOrigins = origins
		}
	}
}

// Server represents the API server
type Server struct {
	echo      *echo.Echo
	port      int
	annotator *annotation.Service
	resolvers ResolverFunc
	settings  config.Settings

	allowOrigins []string
}

// NewServer creates a new API server
func NewServer(port int, annotator *annotation.Service, resolvers ResolverFunc, settings config.Settings, opts ...Option) *Server {
	server := &Server{
		port:         port,
		annotator:    annotator,
		resolvers:    resolvers,
		settings:     settings,
		allowOrigins: defaultAllowOrigins,
	}
	for _, opt := range opts {
		opt(server)
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogMethod:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: server.allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))
	e.Use(middleware.BodyLimit(maxPageBytes))

	server.echo = e
	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")

	v1.POST("/annotate", s.annotate)
	v1.GET("/changelog", s.changeLog)
	v1.GET("/hash", s.hash)
	v1.GET("/tracking", s.tracking)
}

// ServeHTTP lets the server be mounted or exercised with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start begins the API server
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("shutting down the server")
		}
	}()
	log.Info().Int("port", s.port).Msg("API server listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
