package web

import (
	"html"
	"regexp"
	"strings"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	chromeRe = regexp.MustCompile(`(?is)<(nav|footer|aside)\b[^>]*>.*?</(?:nav|footer|aside)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// stripTags removes markup from a fragment without entity decoding.
// Used for result snippets, which may embed highlight tags.
func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

// ExtractText reduces an HTML page to readable text: script, style, and page
// chrome (nav/footer/aside) blocks are removed, remaining markup is stripped,
// entities are decoded, and whitespace is collapsed.
func ExtractText(htmlSrc string) string {
	text := scriptRe.ReplaceAllString(htmlSrc, " ")
	text = styleRe.ReplaceAllString(text, " ")
	text = chromeRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
