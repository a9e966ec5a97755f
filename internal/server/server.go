// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/matthewbaird/fiberorder/internal/activity"
	"github.com/matthewbaird/fiberorder/internal/catalog"
	"github.com/matthewbaird/fiberorder/internal/handler"
	"github.com/matthewbaird/fiberorder/internal/session"
	"github.com/matthewbaird/fiberorder/internal/wire"
)

// Config holds server configuration.
type Config struct {
	Port     int
	Sessions *session.Manager
	Catalog  catalog.Provider
	Activity activity.Store
	Logger   *zap.Logger

	// AllowedOrigins are extra host patterns the websocket accepts.
	AllowedOrigins []string
}

// NewRouter registers every route and wraps them with the middleware stack.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	handler.SetLogger(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(handler.Recovery)
	r.Use(handler.Logging)

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	handler.NewSessionHandler(cfg.Sessions).RegisterRoutes(r)
	handler.NewCatalogHandler(cfg.Catalog).RegisterRoutes(r)
	if cfg.Activity != nil {
		handler.NewActivityHandler(cfg.Activity).RegisterRoutes(r)
	}
	r.Get("/v1/ws", wire.NewHandler(cfg.Sessions, cfg.AllowedOrigins, logger.Named("wire")).ServeHTTP)

	return r
}

// Run starts the HTTP server with all routes registered and shuts it down
// when ctx is done.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
