// Package models defines core data structures for conversations, documents,
// web results, and the API request/response shapes.
package models

import "time"

// Document sources.
const (
	SourceMessage = "message"
	SourceWebPage = "web_page"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Document is an indexable piece of text owned by the document index.
// RefID points back at the originating row (message id) when Source is "message".
type Document struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	RefID     *int64    `json:"ref_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is an append-only sequence of messages.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single user or assistant turn within a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// WebResult is one normalized search-provider hit.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Citation identifies a web source used to augment a reply.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
