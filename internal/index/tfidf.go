// Package index implements the TF-IDF document index used for memory retrieval.
package index

import (
	"context"
	"math"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/storage"
	"github.com/hyperjump/aide/internal/token"
	"github.com/hyperjump/aide/pkg/utils"
)

const (
	// minTermLen drops single-character tokens (all punctuation, most noise).
	minTermLen = 2
	// snippetRunes bounds the content returned per search hit.
	snippetRunes = 400
)

// Index scores stored documents against queries with TF-IDF weighting.
type Index struct {
	store  storage.Storage
	logger *zap.Logger
}

// NewIndex creates an index over the given storage.
func NewIndex(store storage.Storage, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{store: store, logger: logger}
}

// termCounts tokenizes text and counts terms of at least minTermLen runes.
func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, t := range token.Tokenize(text) {
		if utf8.RuneCountInString(t) < minTermLen {
			continue
		}
		counts[t]++
	}
	return counts
}

// IndexDocument tokenizes content and upserts the document's term statistics.
// Reindexing a document refreshes tf rows without inflating global df.
func (ix *Index) IndexDocument(ctx context.Context, docID int64, content string) error {
	counts := termCounts(content)
	if len(counts) == 0 {
		return nil
	}
	if err := ix.store.ApplyDocTerms(ctx, docID, counts); err != nil {
		return err
	}
	ix.logger.Debug("document indexed", zap.Int64("doc_id", docID), zap.Int("terms", len(counts)))
	return nil
}

// idf returns term -> ln((N+1)/(df+1)) + 1 for the query terms that have a df row.
func (ix *Index) idf(ctx context.Context, queryCounts map[string]int, n int64) (map[string]float64, error) {
	terms := make([]string, 0, len(queryCounts))
	for t := range queryCounts {
		terms = append(terms, t)
	}
	dfs, err := ix.store.DocFreqs(ctx, terms)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(dfs))
	for term, df := range dfs {
		if df < 1 {
			df = 1
		}
		out[term] = math.Log(float64(n+1)/float64(df+1)) + 1.0
	}
	return out, nil
}

// Search returns the contents of the top-k documents for query, each truncated
// to 400 characters. Score(doc) = Σ tf·idf·queryCount over matched terms; ties
// are broken by ascending document id. An empty query or empty corpus yields nil.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]string, error) {
	queryCounts := termCounts(query)
	if len(queryCounts) == 0 {
		return nil, nil
	}
	n, err := ix.store.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	idf, err := ix.idf(ctx, queryCounts, n)
	if err != nil {
		return nil, err
	}

	scores := make(map[int64]float64)
	for term, qcount := range queryCounts {
		w, ok := idf[term]
		if !ok {
			continue
		}
		postings, err := ix.store.Postings(ctx, term)
		if err != nil {
			return nil, err
		}
		for _, p := range postings {
			scores[p.DocID] += float64(p.TF) * w * float64(qcount)
		}
	}
	if len(scores) == 0 {
		return nil, nil
	}

	docIDs := make([]int64, 0, len(scores))
	for id := range scores {
		docIDs = append(docIDs, id)
	}
	sort.Slice(docIDs, func(i, j int) bool {
		a, b := docIDs[i], docIDs[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		return a < b
	})
	if len(docIDs) > k {
		docIDs = docIDs[:k]
	}

	contents, err := ix.store.DocumentContents(ctx, docIDs)
	if err != nil {
		return nil, err
	}
	snippets := make([]string, 0, len(docIDs))
	for _, id := range docIDs {
		content, ok := contents[id]
		if !ok {
			continue
		}
		snippets = append(snippets, utils.Clip(content, snippetRunes))
	}
	return snippets, nil
}

// BestScore returns the maximum single (term, doc) contribution
// tf·idf·queryCount for query, not the best document's aggregate score. The
// retrieval-confidence thresholds assume this definition.
func (ix *Index) BestScore(ctx context.Context, query string) (float64, error) {
	queryCounts := termCounts(query)
	if len(queryCounts) == 0 {
		return 0, nil
	}
	n, err := ix.store.CountDocuments(ctx)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, nil
	}
	idf, err := ix.idf(ctx, queryCounts, n)
	if err != nil {
		return 0, err
	}

	best := 0.0
	for term, qcount := range queryCounts {
		w, ok := idf[term]
		if !ok {
			continue
		}
		postings, err := ix.store.Postings(ctx, term)
		if err != nil {
			return 0, err
		}
		for _, p := range postings {
			if score := float64(p.TF) * w * float64(qcount); score > best {
				best = score
			}
		}
	}
	return best, nil
}
