// Package web provides the search-provider client and the TTL-bounded caches
// for query results and fetched page text.
package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/models"
	"github.com/hyperjump/aide/internal/storage"
)

const (
	userAgent = "aide/1.0"
	// pageTTL is the fixed retention for cached page text.
	pageTTL = 7 * 24 * time.Hour
)

// searxPayload is the subset of the SearxNG JSON response we consume.
type searxPayload struct {
	Results []searxResult `json:"results"`
}

type searxResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Client queries a SearxNG-compatible search provider and fetches page text,
// caching both through storage. Provider failures degrade to empty results.
type Client struct {
	store    storage.Storage
	http     *http.Client
	baseURL  string
	ttlHours int
	logger   *zap.Logger
	now      func() time.Time
}

// NewClient creates a web client. baseURL points at the search provider;
// ttlHours bounds query cache freshness.
func NewClient(store storage.Storage, baseURL string, timeout time.Duration, ttlHours int, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		store:    store,
		http:     &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		ttlHours: ttlHours,
		logger:   logger,
		now:      time.Now,
	}
}

// queryHash keys the query cache by the sha256 of the normalized query.
func queryHash(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:])
}

// cachedPayload returns the cached raw payload for query if present and fresh.
// Stale entries are ignored but retained.
func (c *Client) cachedPayload(ctx context.Context, query string) (string, bool) {
	row, err := c.store.GetWebQuery(ctx, queryHash(query))
	if err != nil {
		c.logger.Warn("query cache read failed", zap.Error(err))
		return "", false
	}
	if row == nil {
		return "", false
	}
	ttl := time.Duration(row.TTLHours) * time.Hour
	if c.now().Sub(row.FetchedAt) > ttl {
		return "", false
	}
	return row.Payload, true
}

// Search returns up to limit normalized results for query, cache-first.
// Any provider or decode failure yields an empty slice, never an error.
func (c *Client) Search(ctx context.Context, query string, limit int) []models.WebResult {
	if payload, ok := c.cachedPayload(ctx, query); ok {
		var parsed searxPayload
		if err := json.Unmarshal([]byte(payload), &parsed); err == nil {
			return normalizeResults(parsed.Results, limit)
		}
	}

	endpoint := fmt.Sprintf("%s/search?%s", c.baseURL, url.Values{
		"q":          {query},
		"format":     {"json"},
		"language":   {"en"},
		"safesearch": {"1"},
	}.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		c.logger.Warn("web search failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	var parsed searxPayload
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Warn("web search response not parseable", zap.Error(err))
		return nil
	}

	row := &storage.WebQueryRow{
		QHash:     queryHash(query),
		Query:     query,
		Payload:   string(body),
		FetchedAt: c.now(),
		TTLHours:  c.ttlHours,
	}
	if err := c.store.SetWebQuery(ctx, row); err != nil {
		c.logger.Warn("query cache write failed", zap.Error(err))
	}
	return normalizeResults(parsed.Results, limit)
}

// normalizeResults keeps entries that carry both title and url, stripping any
// markup from the snippet.
func normalizeResults(results []searxResult, limit int) []models.WebResult {
	var out []models.WebResult
	for _, r := range results {
		if r.Title == "" || r.URL == "" {
			continue
		}
		out = append(out, models.WebResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: strings.TrimSpace(stripTags(r.Content)),
		})
		if len(out) == limit {
			break
		}
	}
	return out
}

// PageText returns the extracted text of url, cache-first with a fixed 7-day
// TTL. Fetch or extraction failure yields "".
func (c *Client) PageText(ctx context.Context, pageURL string) string {
	row, err := c.store.GetWebPage(ctx, pageURL)
	if err != nil {
		c.logger.Warn("page cache read failed", zap.Error(err))
	}
	if row != nil && c.now().Sub(row.FetchedAt) <= pageTTL {
		return row.Content
	}

	body, err := c.get(ctx, pageURL)
	if err != nil {
		c.logger.Warn("page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	text := ExtractText(string(body))
	if text == "" {
		return ""
	}
	if err := c.store.SetWebPage(ctx, &storage.WebPageRow{URL: pageURL, Content: text, FetchedAt: c.now()}); err != nil {
		c.logger.Warn("page cache write failed", zap.Error(err))
	}
	return text
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
