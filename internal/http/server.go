package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomslee/ridehail-sim/internal/constants"
	"github.com/tomslee/ridehail-sim/internal/infra/config"
	"github.com/tomslee/ridehail-sim/internal/simulation"
)

// Server is the control/observation REST API; the websocket feed is served
// by a separate WebSocketServer sharing the same ObservationFeed.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	logger     *slog.Logger
}

// NewServer wires the versioned API and middleware chain around sim.
func NewServer(cfg *config.Config, port int, sim *simulation.Simulation) *Server {
	s := &Server{
		cfg:    cfg,
		logger: slog.With(slog.String("component", constants.ComponentHTTPServer)),
	}

	v1Handlers := NewV1Handlers(sim, s.logger)
	rateLimiter := NewRateLimitMiddleware(cfg.RateLimitRPM, s.logger)

	middlewareChain := ChainMiddleware(
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		RecoveryMiddleware(s.logger),
		CORSMiddleware(),
		SecurityHeadersMiddleware(),
		rateLimiter.Handler(),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1", v1Handlers.APIInfoHandler)
	mux.HandleFunc("/v1/control", v1Handlers.ControlHandler)
	mux.HandleFunc("/v1/observations", v1Handlers.LatestObservationHandler)
	mux.HandleFunc("/v1/health", v1Handlers.HealthHandler)
	mux.HandleFunc("/health", v1Handlers.HealthHandler)

	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	s.httpServer = &http.Server{
		Handler:      middlewareChain(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if port > 0 {
		s.httpServer.Addr = fmt.Sprintf(":%d", port)
	}

	return s
}

// GetHandler exposes the wired handler for tests driving an httptest.Server.
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
