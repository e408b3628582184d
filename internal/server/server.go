// Package server assembles the evboard HTTP + WebSocket API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/evbets/evboard/internal/domain"
	"github.com/evbets/evboard/internal/observability"
	"github.com/evbets/evboard/internal/server/handler"
	"github.com/evbets/evboard/internal/server/middleware"
	"github.com/evbets/evboard/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// RateLimit is requests per RateWindow per client IP. Zero, or a nil
	// Limiter, disables limiting.
	RateLimit  int
	RateWindow time.Duration
	Limiter    domain.RateLimiter
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Feed      *handler.FeedHandler
	View      *handler.ViewHandler
	Bookmarks *handler.BookmarkHandler
}

// Server is the headless API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
// hub and metrics may be nil.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, metrics *observability.Metrics, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, handlers, hub, metrics, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed, middleware-wrapped handler without binding a
// listener.
func NewHandler(cfg Config, handlers Handlers, hub *ws.Hub, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	mux.HandleFunc("GET /api/bookmakers", handlers.Feed.ListBookmakers)
	mux.HandleFunc("POST /api/bookmaker", handlers.Feed.SelectBookmaker)
	mux.HandleFunc("POST /api/refresh", handlers.Feed.Refresh)
	mux.HandleFunc("GET /api/fetches/recent", handlers.Feed.RecentFetches)

	mux.HandleFunc("GET /api/view", handlers.View.GetView)

	mux.HandleFunc("GET /api/bookmarks", handlers.Bookmarks.ListBookmarks)
	mux.HandleFunc("POST /api/bookmarks/{id}/toggle", handlers.Bookmarks.Toggle)
	mux.HandleFunc("POST /api/bookmarks/export", handlers.Bookmarks.Export)

	if metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, window, logger)(h)
	}
	h = middleware.Logging(logger, metrics)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
