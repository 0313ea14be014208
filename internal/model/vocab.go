// Package model implements the feed-forward language model: vocabulary,
// forward/backward passes, sampling, and artifact (de)serialization.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Reserved vocabulary entries. Their ids are fixed: the artifacts are only
// interchangeable across trainings because the specials never move.
const (
	PadToken = "<PAD>"
	UnkToken = "<UNK>"
	BosToken = "<BOS>"
	EosToken = "<EOS>"

	PadID = 0
	UnkID = 1
	BosID = 2
	EosID = 3
)

var specials = []string{PadToken, UnkToken, BosToken, EosToken}

// Vocab is an ordered, deduplicated token list bijective with a term->id map.
type Vocab struct {
	Tokens []string
	index  map[string]int
}

// NewVocab builds a Vocab from an ordered token list (as loaded from the
// artifact). Ids are list positions.
func NewVocab(tokens []string) *Vocab {
	v := &Vocab{Tokens: tokens, index: make(map[string]int, len(tokens))}
	for i, t := range tokens {
		v.index[t] = i
	}
	return v
}

// BuildVocab counts token frequencies over corpus, orders tokens by descending
// frequency (ties alphabetical, for determinism), prepends the four specials at
// ids 0-3, and truncates to maxVocab entries.
func BuildVocab(corpus []string, maxVocab int) *Vocab {
	freq := make(map[string]int)
	for _, t := range corpus {
		freq[t]++
	}
	for _, s := range specials {
		delete(freq, s)
	}

	sorted := make([]string, 0, len(freq))
	for t := range freq {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if freq[a] != freq[b] {
			return freq[a] > freq[b]
		}
		return a < b
	})

	if limit := maxVocab - len(specials); len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return NewVocab(append(append([]string{}, specials...), sorted...))
}

// Size returns the number of vocabulary entries.
func (v *Vocab) Size() int {
	return len(v.Tokens)
}

// ID returns the id for tok, or UnkID when tok is out of vocabulary.
func (v *Vocab) ID(tok string) int {
	if id, ok := v.index[tok]; ok {
		return id
	}
	return UnkID
}

// IDs maps tokens to ids, substituting UnkID for unknown tokens.
func (v *Vocab) IDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, t := range tokens {
		ids[i] = v.ID(t)
	}
	return ids
}

// Token returns the token for id, or the unknown marker for out-of-range ids.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.Tokens) {
		return UnkToken
	}
	return v.Tokens[id]
}

// Save writes the ordered token list as JSON via a temp file and rename, so a
// concurrent artifact watcher never observes a partial write.
func (v *Vocab) Save(path string) error {
	data, err := json.Marshal(v.Tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal vocabulary: %w", err)
	}
	return writeAtomic(path, data)
}

// LoadVocab reads a vocabulary artifact.
func LoadVocab(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	return NewVocab(tokens), nil
}

// writeAtomic writes data to path via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
