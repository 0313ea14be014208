package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/index"
	"github.com/hyperjump/aide/internal/models"
	"github.com/hyperjump/aide/internal/storage"
)

type stubSearcher struct {
	results []models.WebResult
	calls   int
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) []models.WebResult {
	s.calls++
	return s.results
}

type stubPages struct {
	text  string
	calls int
}

func (s *stubPages) PageText(ctx context.Context, pageURL string) string {
	s.calls++
	return s.text
}

type stubGenerator struct {
	reply       string
	err         error
	lastContext string
}

func (s *stubGenerator) Generate(ctx context.Context, contextText string) (string, error) {
	s.lastContext = contextText
	return s.reply, s.err
}

func newTestAgent(t *testing.T, search *stubSearcher, pages *stubPages, gen *stubGenerator) (*Agent, storage.Storage, string) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	conv, err := store.CreateConversation(context.Background())
	if err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}

	idx := index.NewIndex(store, zap.NewNop())
	return NewAgent(store, idx, search, pages, gen, zap.NewNop()), store, conv.ID
}

func TestReplyPersistsBothMessages(t *testing.T) {
	gen := &stubGenerator{reply: "hello back"}
	a, store, convID := newTestAgent(t, &stubSearcher{}, &stubPages{}, gen)

	ctx := context.Background()
	reply, assistantID, _, err := a.Reply(ctx, convID, "hello there my friend")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply != "hello back" {
		t.Errorf("reply = %q, want %q", reply, "hello back")
	}
	if assistantID == 0 {
		t.Error("assistant message id not set")
	}

	msgs, err := store.RecentMessages(ctx, convID, 10)
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Errorf("unexpected roles %q, %q", msgs[0].Role, msgs[1].Role)
	}
}

func TestReplyContextBlockOrder(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	a, _, convID := newTestAgent(t, &stubSearcher{}, &stubPages{}, gen)

	if _, _, _, err := a.Reply(context.Background(), convID, "remind me about the meeting notes"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	ctxText := gen.lastContext
	if !strings.HasPrefix(ctxText, "SYSTEM: ") {
		t.Errorf("context does not start with system preamble: %q", ctxText)
	}
	if !strings.HasSuffix(ctxText, "\n\nASSISTANT:") {
		t.Errorf("context does not end with generation cue: %q", ctxText)
	}
	order := []string{"SYSTEM: ", "MEMORY:\n", "CHAT:\n", "USER:\n", "ASSISTANT:"}
	pos := -1
	for _, marker := range order {
		i := strings.Index(ctxText, marker)
		if i <= pos {
			t.Fatalf("block %q out of order in context:\n%s", marker, ctxText)
		}
		pos = i
	}
}

func TestReplySkipsWebWhenConfident(t *testing.T) {
	// The user message is indexed before scoring, so any content with real
	// terms matches itself and clears the threshold.
	search := &stubSearcher{results: []models.WebResult{{Title: "t", URL: "http://e.com", Snippet: "s"}}}
	gen := &stubGenerator{reply: "ok"}
	a, _, convID := newTestAgent(t, search, &stubPages{}, gen)

	if _, _, _, err := a.Reply(context.Background(), convID, "tell me about my project notes"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if search.calls != 0 {
		t.Errorf("search called %d times, want 0", search.calls)
	}
	if strings.Contains(gen.lastContext, "WEB:") {
		t.Error("context contains a web block")
	}
}

func TestReplyTriggerForcesWeb(t *testing.T) {
	search := &stubSearcher{results: []models.WebResult{{Title: "Headline", URL: "http://news.example.com", Snippet: "snippet text"}}}
	pages := &stubPages{text: "full page"}
	gen := &stubGenerator{reply: "ok"}
	a, _, convID := newTestAgent(t, search, pages, gen)

	_, _, citations, err := a.Reply(context.Background(), convID, "what is the latest weather forecast")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if search.calls != 1 {
		t.Errorf("search called %d times, want 1", search.calls)
	}
	if len(citations) != 1 || citations[0].URL != "http://news.example.com" {
		t.Errorf("unexpected citations %+v", citations)
	}
	if !strings.Contains(gen.lastContext, "WEB:\n[1] Headline — http://news.example.com") {
		t.Errorf("web block missing from context:\n%s", gen.lastContext)
	}
	// A keyword trigger alone never pulls the page extract.
	if pages.calls != 0 {
		t.Errorf("page fetch called %d times, want 0", pages.calls)
	}
}

func TestReplyLowConfidencePullsPageExtract(t *testing.T) {
	// Single-rune tokens are not indexed, so confidence stays at zero.
	search := &stubSearcher{results: []models.WebResult{{Title: "t", URL: "http://e.com/page", Snippet: "s"}}}
	pages := &stubPages{text: strings.Repeat("word ", 500)}
	gen := &stubGenerator{reply: "ok"}
	a, _, convID := newTestAgent(t, search, pages, gen)

	if _, _, _, err := a.Reply(context.Background(), convID, "x y z"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if pages.calls != 1 {
		t.Fatalf("page fetch called %d times, want 1", pages.calls)
	}
	i := strings.Index(gen.lastContext, "PAGE EXTRACT (top result):\n")
	if i < 0 {
		t.Fatalf("page extract missing from context:\n%s", gen.lastContext)
	}
	extract := gen.lastContext[i:]
	if end := strings.Index(extract, "\n\nCHAT:"); end >= 0 {
		extract = extract[:end]
	}
	body := strings.TrimPrefix(extract, "PAGE EXTRACT (top result):\n")
	if n := len([]rune(body)); n > 1800 {
		t.Errorf("page extract is %d runes, want at most 1800", n)
	}
}

func TestReplyEmptyMemoryPlaceholder(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	a, _, convID := newTestAgent(t, &stubSearcher{}, &stubPages{}, gen)

	if _, _, _, err := a.Reply(context.Background(), convID, "x y z"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if !strings.Contains(gen.lastContext, "MEMORY:\n(none)\n") {
		t.Errorf("memory placeholder missing:\n%s", gen.lastContext)
	}
}

func TestReplyFallbackOnInferenceFailure(t *testing.T) {
	for _, tc := range []struct {
		name string
		gen  *stubGenerator
	}{
		{"error", &stubGenerator{err: errors.New("connection refused")}},
		{"empty", &stubGenerator{reply: "   "}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a, store, convID := newTestAgent(t, &stubSearcher{}, &stubPages{}, tc.gen)

			reply, _, _, err := a.Reply(context.Background(), convID, "hello hello hello")
			if err != nil {
				t.Fatalf("Reply failed: %v", err)
			}
			if reply != fallbackMessage {
				t.Errorf("reply = %q, want fallback", reply)
			}
			msgs, err := store.RecentMessages(context.Background(), convID, 10)
			if err != nil {
				t.Fatalf("RecentMessages failed: %v", err)
			}
			if len(msgs) != 2 || msgs[1].Content != fallbackMessage {
				t.Error("fallback reply not persisted")
			}
		})
	}
}
