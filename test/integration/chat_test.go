// Package integration exercises the full chat pipeline against real storage,
// a trained model, and a stubbed search provider.
package integration

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/agent"
	"github.com/hyperjump/aide/internal/config"
	"github.com/hyperjump/aide/internal/index"
	"github.com/hyperjump/aide/internal/infer"
	"github.com/hyperjump/aide/internal/models"
	"github.com/hyperjump/aide/internal/storage"
	"github.com/hyperjump/aide/internal/train"
	"github.com/hyperjump/aide/internal/web"
)

// localGenerator runs inference in-process instead of over HTTP.
type localGenerator struct {
	svc *infer.Service
}

func (g localGenerator) Generate(ctx context.Context, contextText string) (string, error) {
	req := &models.GenerateRequest{Context: contextText}
	req.Validate()
	return g.svc.Generate(req)
}

func modelConfig(dir string) *config.ModelConfig {
	return &config.ModelConfig{
		Dir:           dir,
		ContextLength: 4,
		EmbeddingDim:  8,
		HiddenDim:     16,
		Epochs:        2,
		LearningRate:  0.03,
		MaxVocab:      200,
	}
}

func searxStub(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{
				{"title": "Result One", "url": "http://example.com/one", "content": "first snippet"},
			},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestChatTurnWithTrainedModel(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "assistant.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	conv, err := store.CreateConversation(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		if _, err := store.AppendMessage(ctx, conv.ID, models.RoleUser, "please summarize my project notes again"); err != nil {
			t.Fatal(err)
		}
	}

	cfg := modelConfig(filepath.Join(dir, "model"))
	trainer := train.NewTrainer(store, cfg, zap.NewNop(), rand.New(rand.NewSource(1)))
	if _, err := trainer.Run(ctx); err != nil {
		t.Fatalf("training failed: %v", err)
	}

	svc := infer.NewService(cfg, zap.NewNop(), rand.New(rand.NewSource(1)))
	if !svc.Loaded() {
		t.Fatal("service did not load the trained artifacts")
	}

	searx := searxStub(t)
	webClient := web.NewClient(store, searx.URL, 2*time.Second, 24, zap.NewNop())
	idx := index.NewIndex(store, zap.NewNop())
	a := agent.NewAgent(store, idx, webClient, webClient, localGenerator{svc}, zap.NewNop())

	reply, assistantID, _, err := a.Reply(ctx, conv.ID, "what is the latest news about my project")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply == "" {
		t.Error("empty reply")
	}
	if assistantID == 0 {
		t.Error("assistant message id not set")
	}

	msgs, err := store.RecentMessages(ctx, conv.ID, 50)
	if err != nil {
		t.Fatal(err)
	}
	last := msgs[len(msgs)-1]
	if last.Role != models.RoleAssistant || last.Content != reply {
		t.Errorf("assistant turn not persisted: %+v", last)
	}
}

func TestWebAugmentedTurnRecordsCitations(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "assistant.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	conv, err := store.CreateConversation(ctx)
	if err != nil {
		t.Fatal(err)
	}

	searx := searxStub(t)
	webClient := web.NewClient(store, searx.URL, 2*time.Second, 24, zap.NewNop())
	idx := index.NewIndex(store, zap.NewNop())

	// No trained model: inference degrades to the fixed fallback while web
	// retrieval still runs.
	svc := infer.NewService(modelConfig(filepath.Join(dir, "model")), zap.NewNop(), nil)
	a := agent.NewAgent(store, idx, webClient, webClient, localGenerator{svc}, zap.NewNop())

	reply, _, citations, err := a.Reply(ctx, conv.ID, "latest bitcoin price")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply == "" {
		t.Error("empty reply")
	}
	if len(citations) != 1 || citations[0].URL != "http://example.com/one" {
		t.Errorf("unexpected citations %+v", citations)
	}
}
