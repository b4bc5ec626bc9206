package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rezkam/torque/internal/config"
)

// HTTPServer wraps the HTTP server and its router.
type HTTPServer struct {
	server *http.Server
	router *chi.Mux
}

// NewHTTPServer creates a new HTTP server with the given router and configuration.
func NewHTTPServer(router *chi.Mux, cfg *config.ServerConfig) *HTTPServer {
	addr := ":" + cfg.HTTPPort

	return &HTTPServer{
		router: router,
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start blocks serving HTTP until the server is shut down.
func (s *HTTPServer) Start() error {
	slog.Info("HTTP server listening", "address", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
