// Package agent orchestrates a conversation turn: it persists and indexes the
// user message, gathers memory and web context, calls the inference service,
// and stores the assistant reply.
package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/index"
	"github.com/hyperjump/aide/internal/models"
	"github.com/hyperjump/aide/internal/storage"
	"github.com/hyperjump/aide/pkg/utils"
)

const (
	memoryLimit    = 5
	webResultLimit = 5
	recentMessages = 6

	webThreshold     = 0.15
	extractThreshold = 0.08

	webSnippetRunes  = 280
	pageExtractRunes = 1800

	systemPreamble  = "SYSTEM: You are a helpful personal assistant. Use MEMORY and WEB snippets.\n"
	fallbackMessage = "I'm not able to generate a good answer right now. Try rephrasing, or make sure the inference server is running."
)

// forceWebRe matches recency and price cues that always warrant a web lookup.
var forceWebRe = regexp.MustCompile(`(?i)\b(latest|today|now|current|price|news|202\d)\b`)

// Searcher returns web results for a query, or nil when the lookup fails.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) []models.WebResult
}

// PageFetcher returns extracted page text, or "" when the fetch fails.
type PageFetcher interface {
	PageText(ctx context.Context, pageURL string) string
}

// Generator produces a completion for an assembled context.
type Generator interface {
	Generate(ctx context.Context, contextText string) (string, error)
}

// Agent drives one conversation turn at a time per conversation.
type Agent struct {
	store  storage.Storage
	index  *index.Index
	search Searcher
	pages  PageFetcher
	gen    Generator
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAgent wires an agent from its collaborators.
func NewAgent(store storage.Storage, idx *index.Index, search Searcher, pages PageFetcher, gen Generator, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		store:  store,
		index:  idx,
		search: search,
		pages:  pages,
		gen:    gen,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// conversationLock serializes turns on the same conversation.
func (a *Agent) conversationLock(conversationID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[conversationID] = lock
	}
	return lock
}

// Reply handles one user turn and returns the assistant reply, its message id,
// and any web citations. Retrieval and inference failures degrade the reply;
// only persistence failures propagate.
func (a *Agent) Reply(ctx context.Context, conversationID, text string) (string, int64, []models.Citation, error) {
	lock := a.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	userMsgID, err := a.store.AppendMessage(ctx, conversationID, models.RoleUser, text)
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to store user message: %w", err)
	}

	doc, err := a.store.CreateDocument(ctx, models.SourceMessage, &userMsgID, text)
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to store document: %w", err)
	}
	if err := a.index.IndexDocument(ctx, doc.ID, text); err != nil {
		return "", 0, nil, fmt.Errorf("failed to index document: %w", err)
	}

	memory, err := a.index.Search(ctx, text, memoryLimit)
	if err != nil {
		a.logger.Warn("memory search failed", zap.Error(err))
		memory = nil
	}
	confidence, err := a.index.BestScore(ctx, text)
	if err != nil {
		a.logger.Warn("confidence lookup failed", zap.Error(err))
		confidence = 0
	}

	forceWeb := forceWebRe.MatchString(text)
	useWeb := forceWeb || confidence < webThreshold

	var citations []models.Citation
	webBlock := ""
	if useWeb {
		results := a.search.Search(ctx, text, webResultLimit)

		lines := make([]string, 0, len(results))
		for i, r := range results {
			lines = append(lines, fmt.Sprintf("[%d] %s — %s\nSnippet: %s",
				i+1, r.Title, r.URL, utils.Clip(r.Snippet, webSnippetRunes)))
			citations = append(citations, models.Citation{Title: r.Title, URL: r.URL})
			if err := a.store.InsertCitation(ctx, conversationID, userMsgID, r.URL, r.Title); err != nil {
				a.logger.Warn("failed to store citation", zap.Error(err))
			}
		}
		webBlock = strings.Join(lines, "\n\n")

		if !forceWeb && confidence < extractThreshold && len(results) > 0 {
			if page := a.pages.PageText(ctx, results[0].URL); page != "" {
				webBlock += "\n\nPAGE EXTRACT (top result):\n" + utils.Clip(page, pageExtractRunes)
			}
		}
	}

	recent, err := a.store.RecentMessages(ctx, conversationID, recentMessages)
	if err != nil {
		a.logger.Warn("failed to load recent messages", zap.Error(err))
		recent = nil
	}

	contextText := assembleContext(text, memory, webBlock, recent)

	reply, err := a.gen.Generate(ctx, contextText)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			a.logger.Warn("inference failed, using fallback", zap.Error(err))
		}
		reply = fallbackMessage
	}

	assistantMsgID, err := a.store.AppendMessage(ctx, conversationID, models.RoleAssistant, reply)
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to store assistant message: %w", err)
	}
	return reply, assistantMsgID, citations, nil
}

// assembleContext builds the prompt in its fixed block order.
func assembleContext(userText string, memory []string, webBlock string, recent []*models.Message) string {
	var b strings.Builder
	b.WriteString(systemPreamble)

	b.WriteString("MEMORY:\n")
	if len(memory) > 0 {
		b.WriteString(strings.Join(memory, "\n---\n"))
	} else {
		b.WriteString("(none)")
	}
	b.WriteString("\n\n")

	if webBlock != "" {
		b.WriteString("WEB:\n")
		b.WriteString(webBlock)
		b.WriteString("\n\n")
	}

	lines := make([]string, 0, len(recent))
	for _, m := range recent {
		lines = append(lines, strings.ToUpper(m.Role)+": "+m.Content)
	}
	b.WriteString("CHAT:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")

	b.WriteString("USER:\n")
	b.WriteString(userText)
	b.WriteString("\n\nASSISTANT:")
	return b.String()
}
