package infer

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/config"
	"github.com/hyperjump/aide/internal/models"
)

func newTestServer(t *testing.T, trained bool) *Server {
	t.Helper()
	cfg := testConfig(t.TempDir())
	if trained {
		writeArtifacts(t, cfg, 1)
	}
	svc := NewService(cfg, zap.NewNop(), rand.New(rand.NewSource(1)))
	return NewServer(svc, &config.InferConfig{Host: "localhost", Port: 3030}, zap.NewNop())
}

func TestHandleInfer(t *testing.T) {
	s := newTestServer(t, true)

	body := `{"context":"hello world","max_tokens":10,"temperature":0.9,"top_k":5}`
	req := httptest.NewRequest(http.MethodPost, "/infer", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleInfer(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp models.GenerateResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHandleInferDefaults(t *testing.T) {
	s := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodPost, "/infer", strings.NewReader(`{"context":"hello"}`))
	w := httptest.NewRecorder()
	s.handleInfer(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestHandleInferBadJSON(t *testing.T) {
	s := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodPost, "/infer", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.handleInfer(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleInferModelNotTrained(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/infer", strings.NewReader(`{"context":"hello"}`))
	w := httptest.NewRecorder()
	s.handleInfer(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "model not trained" {
		t.Errorf("error = %q, want %q", resp["error"], "model not trained")
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["model_loaded"] != true {
		t.Errorf("model_loaded = %v, want true", resp["model_loaded"])
	}
}
