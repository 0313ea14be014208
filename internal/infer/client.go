package infer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/aide/internal/models"
)

// Client calls a remote inference server. It satisfies the agent's Generator
// contract.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an inference client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Generate requests a completion for the assembled context using default
// sampling parameters. Empty output is an error so callers can fall back.
func (c *Client) Generate(ctx context.Context, contextText string) (string, error) {
	reqBody := &models.GenerateRequest{
		Context:     contextText,
		MaxTokens:   models.DefaultMaxTokens,
		Temperature: models.DefaultTemperature,
		TopK:        models.DefaultTopK,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/infer", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return "", fmt.Errorf("inference server: %s", apiErr.Error)
		}
		return "", fmt.Errorf("inference server returned status %d", resp.StatusCode)
	}

	var out models.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", fmt.Errorf("inference server returned empty output")
	}
	return out.Text, nil
}
