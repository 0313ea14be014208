package infer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/aide/internal/models"
)

func TestClientGenerate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/infer" {
			t.Errorf("path = %q, want /infer", r.URL.Path)
		}
		var req models.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.MaxTokens != models.DefaultMaxTokens {
			t.Errorf("max_tokens = %d, want %d", req.MaxTokens, models.DefaultMaxTokens)
		}
		if !strings.Contains(req.Context, "ASSISTANT:") {
			t.Errorf("context missing generation cue: %q", req.Context)
		}
		json.NewEncoder(w).Encode(models.GenerateResponse{Text: "a reply"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, 6*time.Second)
	text, err := c.Generate(context.Background(), "USER:\nhello\n\nASSISTANT:")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "a reply" {
		t.Errorf("text = %q, want %q", text, "a reply")
	}
}

func TestClientGenerateServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "model not trained"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	if _, err := c.Generate(context.Background(), "ctx"); err == nil {
		t.Error("expected error from unavailable server")
	} else if !strings.Contains(err.Error(), "model not trained") {
		t.Errorf("error = %v, want model not trained detail", err)
	}
}

func TestClientGenerateEmptyOutput(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.GenerateResponse{Text: "  "})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	if _, err := c.Generate(context.Background(), "ctx"); err == nil {
		t.Error("expected error for empty output")
	}
}

func TestClientGenerateUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	if _, err := c.Generate(context.Background(), "ctx"); err == nil {
		t.Error("expected error for unreachable server")
	}
}
