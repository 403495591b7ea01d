// Package api wires the HTTP surface: probes, metrics, the position
// endpoints and the live stream.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/star/skywatch/internal/auth"
	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/cache"
	"github.com/star/skywatch/internal/catalog"
	"github.com/star/skywatch/internal/celestial"
	"github.com/star/skywatch/internal/health"
	"github.com/star/skywatch/internal/metrics"
	"github.com/star/skywatch/internal/observer"
	"github.com/star/skywatch/internal/stream"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr         string
	Auth         auth.Config
	TrustProxy   bool
	MaxMagnitude float64       // star listing cutoff (default: 4.5)
	Timeout      time.Duration // per-request computation budget (default: 20s)
}

// Deps are the components the handlers call into. Cache, Catalog, Stars and
// Stream are optional; routes depending on a missing one answer 503.
type Deps struct {
	Observer  observer.Observer
	Assembler *celestial.Assembler
	Registry  *body.Registry
	Cache     *cache.DailyCache
	Catalog   *catalog.Store
	Stars     *celestial.StarPool
	Stream    *stream.Handler
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewHandler(cfg, deps, logger),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with the full middleware chain.
func NewHandler(cfg Config, deps Deps, logger *slog.Logger) http.Handler {
	if cfg.MaxMagnitude == 0 {
		cfg.MaxMagnitude = 4.5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if deps.Registry == nil {
		deps.Registry = body.NewRegistry(body.SolarSystem()...)
	}
	h := &handlers{cfg: cfg, deps: deps, logger: logger, now: time.Now}

	var ready func() bool
	if deps.Cache != nil {
		ready = deps.Cache.Ready
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(ready))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/daily-positions", h.dailyPositions)
	mux.HandleFunc("GET /api/v1/realtime-positions", h.realtimePositions)
	mux.HandleFunc("GET /api/v1/celestial-data", h.celestialData)
	mux.HandleFunc("GET /api/v1/objects/{name}", h.object)
	mux.HandleFunc("GET /api/v1/stars", h.stars)
	mux.HandleFunc("GET /api/v1/cache/stats", h.cacheStats)
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/positions", deps.Stream.HandlePositions)
	}

	// Build middleware chain: metrics -> request id -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = requestIDMiddleware(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}
