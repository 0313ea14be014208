package models

import "fmt"

// ChatRequest is the body of POST /api/v1/chat. ConversationID may be empty,
// in which case a new conversation is created.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// Validate ensures the chat request carries a message.
func (r *ChatRequest) Validate() error {
	if r.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return nil
}

// ChatResponse is the reply for a chat turn.
type ChatResponse struct {
	ConversationID     string     `json:"conversation_id"`
	AssistantMessageID int64      `json:"assistant_message_id"`
	Reply              string     `json:"reply"`
	Citations          []Citation `json:"citations"`
}

// FeedbackRequest records a user rating for an assistant message.
type FeedbackRequest struct {
	MessageID int64 `json:"message_id"`
	Score     int   `json:"score"`
}

// Validate ensures the feedback refers to a message.
func (r *FeedbackRequest) Validate() error {
	if r.MessageID <= 0 {
		return fmt.Errorf("message_id is required")
	}
	return nil
}

// Generation parameter bounds and defaults.
const (
	DefaultMaxTokens   = 140
	DefaultTemperature = 0.9
	DefaultTopK        = 40

	MinMaxTokens   = 1
	MaxMaxTokens   = 200
	MinTemperature = 0.2
	MaxTemperature = 2.0
	MinTopK        = 5
	MaxTopK        = 200
)

// GenerateRequest is the inference-service contract: a context string plus
// sampling parameters.
type GenerateRequest struct {
	Context     string  `json:"context"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
}

// Validate applies defaults for zero values and clamps each parameter to its
// allowed range.
func (r *GenerateRequest) Validate() {
	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.Temperature == 0 {
		r.Temperature = DefaultTemperature
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	r.MaxTokens = clampInt(r.MaxTokens, MinMaxTokens, MaxMaxTokens)
	r.Temperature = clampFloat(r.Temperature, MinTemperature, MaxTemperature)
	r.TopK = clampInt(r.TopK, MinTopK, MaxTopK)
}

// GenerateResponse is the success body of the inference service.
type GenerateResponse struct {
	Text string `json:"text"`
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
