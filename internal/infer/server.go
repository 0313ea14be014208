package infer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/config"
	"github.com/hyperjump/aide/internal/models"
)

// Server is the HTTP front of the inference service.
type Server struct {
	service *Service
	config  *config.InferConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates an inference server.
func NewServer(service *Service, cfg *config.InferConfig, logger *zap.Logger) *Server {
	return &Server{service: service, config: cfg, logger: logger}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/infer", s.handleInfer)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting inference server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Validate()
	s.logger.Debug("infer request",
		zap.Int("max_tokens", req.MaxTokens),
		zap.Float64("temperature", req.Temperature),
		zap.Int("top_k", req.TopK),
	)
	text, err := s.service.Generate(&req)
	if err != nil {
		if errors.Is(err, ErrModelNotTrained) {
			s.respondError(w, http.StatusServiceUnavailable, ErrModelNotTrained.Error())
			return
		}
		s.logger.Error("generation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.GenerateResponse{Text: text})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"model_loaded": s.service.Loaded(),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
