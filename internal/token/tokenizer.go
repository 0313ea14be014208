// Package token provides the shared tokenizer used by both the document index
// and the language model. Indexing and the model must tokenize identically or
// vocabulary ids drift out of alignment with indexed terms.
package token

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text and splits it into tokens. A token is either a
// maximal run of ASCII alphanumerics or a single non-space symbol rune.
// Whitespace separates tokens but never produces one; non-ASCII letters and
// digits are dropped.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)

	var tokens []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			tokens = append(tokens, run.String())
			run.Reset()
		}
	}

	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			run.WriteRune(r)
			continue
		}
		flush()
		if unicode.IsSpace(r) || unicode.IsLetter(r) || unicode.IsNumber(r) {
			continue
		}
		tokens = append(tokens, string(r))
	}
	flush()
	return tokens
}

var (
	noSpaceBefore = map[string]bool{".": true, ",": true, "!": true, "?": true, ";": true, ":": true, ")": true}
	noSpaceAfter  = map[string]bool{"(": true}
)

// Detokenize joins tokens with single spaces, except that no space is placed
// before closing punctuation (. , ! ? ; : )) or after an opening parenthesis.
func Detokenize(tokens []string) string {
	var out strings.Builder
	prev := ""
	for _, t := range tokens {
		if out.Len() > 0 && !noSpaceBefore[t] && !noSpaceAfter[prev] {
			out.WriteString(" ")
		}
		out.WriteString(t)
		prev = t
	}
	return out.String()
}
