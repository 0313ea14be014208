package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/aide/internal/models"
)

func TestLoadConfigPrefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get cwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	content := "server:\n  host: cwd-host\n  port: 9999\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Server.Host != "cwd-host" || cfg.Server.Port != 9999 {
		t.Errorf("got %s:%d, want cwd-host:9999", cfg.Server.Host, cfg.Server.Port)
	}
	if filepath.Base(resolved) != "config.yaml" {
		t.Errorf("resolved path = %q, want cwd config.yaml", resolved)
	}
}

func TestLoadConfigUsesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := "server:\n  host: explicit-host\n  port: 7777\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Server.Host != "explicit-host" {
		t.Errorf("host = %q, want explicit-host", cfg.Server.Host)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
}

func TestPostChat(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat" {
			t.Errorf("path = %q, want /api/v1/chat", r.URL.Path)
		}
		var req models.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(models.ChatResponse{
			ConversationID: "conv-1",
			Reply:          "hi",
		})
	}))
	defer ts.Close()

	client := &http.Client{Timeout: time.Second}
	resp, err := postChat(client, ts.URL+"/", "", "hello")
	if err != nil {
		t.Fatalf("postChat failed: %v", err)
	}
	if resp.ConversationID != "conv-1" || resp.Reply != "hi" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestPostChatServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "conversation not found"})
	}))
	defer ts.Close()

	client := &http.Client{Timeout: time.Second}
	if _, err := postChat(client, ts.URL, "missing", "hello"); err == nil {
		t.Error("expected error from server failure")
	}
}
