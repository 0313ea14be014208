package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/models"
	"github.com/hyperjump/aide/internal/storage"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	conversationID := req.ConversationID
	if conversationID == "" {
		conv, err := s.storage.CreateConversation(ctx)
		if err != nil {
			s.logger.Error("failed to create conversation", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		conversationID = conv.ID
	} else {
		if _, err := s.storage.GetConversation(ctx, conversationID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.respondError(w, http.StatusNotFound, "conversation not found")
				return
			}
			s.logger.Error("failed to load conversation", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.logger.Debug("chat request", zap.String("conversation_id", conversationID))

	reply, assistantID, citations, err := s.agent.Reply(ctx, conversationID, req.Message)
	if err != nil {
		s.logger.Error("chat turn failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if citations == nil {
		citations = []models.Citation{}
	}
	s.respondJSON(w, http.StatusOK, &models.ChatResponse{
		ConversationID:     conversationID,
		AssistantMessageID: assistantID,
		Reply:              reply,
		Citations:          citations,
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req models.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.storage.InsertFeedback(r.Context(), req.MessageID, req.Score); err != nil {
		s.logger.Error("failed to store feedback", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversations, err := s.storage.CountConversations(ctx)
	if err != nil {
		s.logger.Error("status: count conversations failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	messages, err := s.storage.CountMessages(ctx)
	if err != nil {
		s.logger.Error("status: count messages failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	documents, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": conversations,
		"messages":      messages,
		"documents":     documents,
		"model_trained": s.modelTrained(),
	})
}

// modelTrained reports whether both model artifacts exist on disk.
func (s *Server) modelTrained() bool {
	for _, path := range []string{s.modelCfg.VocabPath(), s.modelCfg.WeightsPath()} {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
