// Package storage defines the persistence interface for conversations,
// documents, term statistics, and web caches.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/aide/internal/models"
)

// ErrNotFound reports that a requested row does not exist. Callers distinguish
// it from storage failures.
var ErrNotFound = errors.New("not found")

// Posting is one (document, term-frequency) row for a term.
type Posting struct {
	DocID int64
	TF    int64
}

// WebQueryRow is a raw web query cache row. Staleness is computed by the caller.
type WebQueryRow struct {
	QHash     string
	Query     string
	Payload   string
	FetchedAt time.Time
	TTLHours  int
}

// WebPageRow is a raw web page cache row.
type WebPageRow struct {
	URL       string
	Content   string
	FetchedAt time.Time
}

// Storage defines all persistence operations.
type Storage interface {
	// Conversation operations
	CreateConversation(ctx context.Context) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)

	// Message operations
	AppendMessage(ctx context.Context, conversationID, role, content string) (int64, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
	UserMessageContents(ctx context.Context) ([]string, error)

	// Document and term-statistics operations
	CreateDocument(ctx context.Context, source string, refID *int64, content string) (*models.Document, error)
	DocumentContents(ctx context.Context, ids []int64) (map[int64]string, error)
	ApplyDocTerms(ctx context.Context, docID int64, counts map[string]int) error
	DocFreqs(ctx context.Context, terms []string) (map[string]int64, error)
	Postings(ctx context.Context, term string) ([]Posting, error)
	CountDocuments(ctx context.Context) (int64, error)

	// Web cache operations
	GetWebQuery(ctx context.Context, qhash string) (*WebQueryRow, error)
	SetWebQuery(ctx context.Context, row *WebQueryRow) error
	GetWebPage(ctx context.Context, url string) (*WebPageRow, error)
	SetWebPage(ctx context.Context, row *WebPageRow) error

	// Feedback and citations
	InsertFeedback(ctx context.Context, messageID int64, score int) error
	InsertCitation(ctx context.Context, conversationID string, userMessageID int64, url, title string) error

	// Stats
	CountConversations(ctx context.Context) (int64, error)
	CountMessages(ctx context.Context) (int64, error)

	Close() error
}
