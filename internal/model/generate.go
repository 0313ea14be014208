package model

import (
	"math/rand"

	"github.com/hyperjump/aide/internal/token"
)

// Generate produces a reply for contextText by autoregressive sampling. The
// seed is the tokenized context wrapped in begin/end markers; the window is
// the CtxLen ids preceding the final position, left-padded with the begin
// marker. Generation stops at the end marker or after maxTokens samples;
// structural markers never appear in the output.
func Generate(m *Model, v *Vocab, contextText string, maxTokens int, temperature float64, topK int, rng *rand.Rand) string {
	seed := append([]string{BosToken}, token.Tokenize(contextText)...)
	seed = append(seed, EosToken)
	ids := v.IDs(seed)

	window := make([]int, 0, m.CtxLen)
	for i := len(ids) - 1 - m.CtxLen; i < len(ids)-1; i++ {
		if i < 0 {
			window = append(window, BosID)
		} else {
			window = append(window, ids[i])
		}
	}

	var out []string
	for t := 0; t < maxTokens; t++ {
		probs := m.Probs(window)
		nextID := Sample(probs, temperature, topK, rng)
		tok := v.Token(nextID)
		if tok == EosToken {
			break
		}
		if tok != BosToken && tok != PadToken {
			out = append(out, tok)
		}
		window = append(window[1:], nextID)
	}
	return token.Detokenize(out)
}
