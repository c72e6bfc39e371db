// Package gateway provides the HTTP, SSE, and WebSocket transport for the
// chainlit-ui runtime.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/FabG/chainlit-ui/internal/logging"
	"github.com/FabG/chainlit-ui/internal/runtime"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	Heartbeat      time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:           "",
		Port:           8000,
		AllowedOrigins: []string{"*"},
		Heartbeat:      30 * time.Second,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   0, // No write timeout for SSE and WebSocket
	}
}

// ConfigFrom builds a Config from the wire-level server settings, filling
// defaults for anything unset.
func ConfigFrom(sc types.ServerConfig) *Config {
	cfg := DefaultConfig()
	if sc.Host != "" {
		cfg.Host = sc.Host
	}
	if sc.Port != 0 {
		cfg.Port = sc.Port
	}
	if len(sc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = sc.AllowedOrigins
	}
	if sc.HeartbeatSeconds > 0 {
		cfg.Heartbeat = time.Duration(sc.HeartbeatSeconds) * time.Second
	}
	return cfg
}

// Server is the HTTP server. It is a thin adapter: every route translates a
// request into one runtime call and a JSON response.
type Server struct {
	config   *Config
	router   *chi.Mux
	httpSrv  *http.Server
	registry *runtime.Registry
	log      zerolog.Logger
}

// New creates a new Server instance over a runtime registry.
func New(cfg *Config, reg *runtime.Registry) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		registry: reg,
		log:      logging.Component("gateway"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	// Request ID
	s.router.Use(middleware.RequestID)

	// Logging
	s.router.Use(middleware.Logger)

	// Recover from panics
	s.router.Use(middleware.Recoverer)

	// Real IP
	s.router.Use(middleware.RealIP)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("gateway listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
