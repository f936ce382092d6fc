package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagen/fiootv/internal/cache"
	"github.com/voyagen/fiootv/internal/catalog"
	"github.com/voyagen/fiootv/internal/config"
	"github.com/voyagen/fiootv/internal/credentials"
	"github.com/voyagen/fiootv/internal/logging"
	"github.com/voyagen/fiootv/internal/metrics"
	"github.com/voyagen/fiootv/internal/service"
	"github.com/voyagen/fiootv/internal/store"
)

// Deps are the collaborators the HTTP API is built from.
type Deps struct {
	Store       store.Store
	Credentials credentials.Store
	Names       catalog.NameSource
	Syncer      *service.Syncer
	Notifier    service.Notifier // nil disables e-mail
	Redis       *cache.Redis     // optional; adds sync and queue state to health
}

// Server holds dependencies for the HTTP API.
type Server struct {
	deps    Deps
	cfg     *config.Config
	log     zerolog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a Server and registers routes.
func New(cfg *config.Config, deps Deps) *Server {
	srv := &Server{deps: deps, cfg: cfg, log: logging.WithComponent("server"), mux: http.NewServeMux()}
	srv.routes()
	srv.handler = withMetrics(withLogging(srv.log, withCORS(srv.mux)))
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Channel directory
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("GET /api/channels", s.handleChannels)

	// Admin
	s.mux.HandleFunc("GET /api/sync-channels", s.handleSyncInfo)
	s.mux.HandleFunc("POST /api/sync-channels", s.handleSync)
	s.mux.HandleFunc("GET /api/cookie-config", s.handleGetCookieConfig)
	s.mux.HandleFunc("POST /api/cookie-config", s.handleSetCookieConfig)

	// Storefront forms
	s.mux.HandleFunc("POST /api/orders", s.handleCreateOrder)
	s.mux.HandleFunc("GET /api/orders", handleMethodNotAllowed)
	s.mux.HandleFunc("POST /api/contact", s.handleContact)
	s.mux.HandleFunc("GET /api/contact", handleMethodNotAllowed)

	s.mux.Handle("GET /metrics", metrics.Handler())

	// Docs
	s.mux.HandleFunc("GET /api/docs", handleSwaggerUI)
	s.mux.HandleFunc("GET /api/docs/openapi.yaml", handleOpenAPISpec)
}

// ServeHTTP implements http.Handler; requests pass through the metrics,
// logging and CORS middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute, // the sync handler lifts its own deadline
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("server shutdown")
		}
	}()

	s.log.Info().Str("addr", addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}
