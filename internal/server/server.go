// Package server provides the HTTP API for the assistant.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/agent"
	"github.com/hyperjump/aide/internal/config"
	"github.com/hyperjump/aide/internal/storage"
)

// Server is the HTTP server for the assistant API.
type Server struct {
	agent    *agent.Agent
	storage  storage.Storage
	config   *config.ServerConfig
	modelCfg *config.ModelConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(a *agent.Agent, storage storage.Storage, cfg *config.ServerConfig, modelCfg *config.ModelConfig, logger *zap.Logger) *Server {
	return &Server{
		agent:    a,
		storage:  storage,
		config:   cfg,
		modelCfg: modelCfg,
		logger:   logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/api/v1/chat", s.handleChat)
	r.Post("/api/v1/feedback", s.handleFeedback)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
